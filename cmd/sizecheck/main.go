// Command sizecheck installs one package in a fresh environment and prints
// how much disk its module directory takes.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/patina/sizecheck/internal/bootstrap"
	"github.com/patina/sizecheck/internal/config"
	"github.com/patina/sizecheck/pkg/environment"
	"github.com/patina/sizecheck/pkg/sizecheck"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sizecheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML config file (default $SIZECHECK_CONFIG)")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: sizecheck [-config file] [-json] <package>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	identifier := fs.Arg(0)
	if fs.NArg() > 1 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "sizecheck: %v\n", err)
		return 1
	}
	logger := cfg.NewLogger(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := check(ctx, cfg, logger, stderr, identifier)
	if errors.Is(err, sizecheck.ErrEmptyIdentifier) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "sizecheck: %v\n", err)
		return 1
	}

	if *asJSON {
		if err := writeJSON(stdout, report); err != nil {
			fmt.Fprintf(stderr, "sizecheck: %v\n", err)
			return 1
		}
		return 0
	}
	fmt.Fprintln(stdout, report.String())
	return 0
}

func check(ctx context.Context, cfg *config.Config, logger *slog.Logger, logOutput io.Writer, identifier string) (*sizecheck.Report, error) {
	// Nothing to boot for a blank identifier
	if strings.TrimSpace(identifier) == "" {
		return nil, sizecheck.ErrEmptyIdentifier
	}

	engine, err := bootstrap.OpenEngine(ctx, cfg, logger, logOutput)
	if err != nil {
		return nil, err
	}
	defer engine.Close()

	manager, err := environment.NewManager(engine, cfg.Environment(), logger, nil)
	if err != nil {
		return nil, err
	}
	defer manager.Close(context.Background())

	if err := manager.Boot(ctx); err != nil {
		return nil, err
	}

	return sizecheck.NewChecker(manager, cfg.Checker(), logger, nil).CheckSize(ctx, identifier)
}

func writeJSON(w io.Writer, report *sizecheck.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
