package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/patina/sizecheck/internal/bootstrap"
	"github.com/patina/sizecheck/internal/config"
	"github.com/patina/sizecheck/pkg/api"
	"github.com/patina/sizecheck/pkg/environment"
	"github.com/patina/sizecheck/pkg/events"
	"github.com/patina/sizecheck/pkg/sizecheck"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default $SIZECHECK_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Set up logger
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	ctx := context.Background()

	engine, err := bootstrap.OpenEngine(ctx, cfg, logger, os.Stderr)
	if err != nil {
		logger.Error("failed to open engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	// Log configuration
	logger.Info("size checker configuration",
		"engine", cfg.Engine,
		"image", cfg.Image,
		"work_dir", cfg.WorkDir,
		"installer", cfg.Installer,
		"command_timeout", cfg.CommandTimeout)

	bus := events.NewBus(logger)

	manager, err := environment.NewManager(engine, cfg.Environment(), logger, bus)
	if err != nil {
		logger.Error("failed to create environment manager", "error", err)
		os.Exit(1)
	}

	// Boot in the background so /health and /status answer while the
	// image is pulled
	bootCtx, cancelBoot := context.WithCancel(ctx)
	defer cancelBoot()
	go func() {
		if err := manager.Boot(bootCtx); err != nil {
			logger.Error("environment boot failed", "error", err)
		}
	}()

	checker := sizecheck.NewChecker(manager, cfg.Checker(), logger, bus)

	// Set up routes
	mux := http.NewServeMux()
	api.NewHandlers(checker, manager, bus, logger).Routes(mux)

	// Create server
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	// Start server
	go func() {
		logger.Info("starting size checker server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	cancelBoot()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Close manager
	if err := manager.Close(shutdownCtx); err != nil {
		logger.Error("manager close error", "error", err)
	}

	logger.Info("server stopped")
}
