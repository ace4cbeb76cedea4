// Package bootstrap opens the sandbox engine selected by configuration.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"dagger.io/dagger"

	"github.com/patina/sizecheck/internal/config"
	"github.com/patina/sizecheck/pkg/sandbox"
	"github.com/patina/sizecheck/pkg/sandbox/daggerenv"
	"github.com/patina/sizecheck/pkg/sandbox/dockerenv"
)

const npmCachePath = "/root/.npm"

// Engine is an opened sandbox engine and the function that releases it
type Engine struct {
	sandbox.Engine
	closer func() error
}

// Close releases the engine connection
func (e *Engine) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer()
}

// OpenEngine connects to the engine named by cfg.Engine. Dagger progress
// output goes to logOutput.
func OpenEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger, logOutput io.Writer) (*Engine, error) {
	switch cfg.Engine {
	case config.EngineDagger:
		logger.Info("connecting to dagger")
		client, err := dagger.Connect(ctx, dagger.WithLogOutput(logOutput))
		if err != nil {
			return nil, fmt.Errorf("connect to dagger: %w", err)
		}
		engine := daggerenv.New(client, daggerenv.WithCache(cfg.CacheVolume, npmCachePath))
		return &Engine{Engine: engine, closer: client.Close}, nil

	case config.EngineDocker:
		logger.Info("using docker engine")
		return &Engine{Engine: dockerenv.New()}, nil

	default:
		return nil, fmt.Errorf("%w: unknown engine %q", config.ErrInvalidConfig, cfg.Engine)
	}
}
