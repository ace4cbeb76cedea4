// Package environment owns the lifecycle of the single isolated environment
// packages are installed into: boot, manifest seeding, readiness, teardown.
//
// Boot happens once per process (or per explicit Reset). Every other
// operation is gated on the ready state so nothing races the sandbox into
// existence.
package environment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/patina/sizecheck/pkg/events"
	"github.com/patina/sizecheck/pkg/manifest"
	"github.com/patina/sizecheck/pkg/sandbox"
)

// Config holds configuration for the environment manager
type Config struct {
	Image        string
	WorkDir      string
	ManifestPath string
	ManifestName string
	Env          map[string]string
	BootTimeout  time.Duration
}

// Manager handles environment lifecycle operations
type Manager struct {
	engine sandbox.Engine
	config *Config
	logger *slog.Logger
	bus    *events.Bus
	boots  singleflight.Group

	mu     sync.RWMutex // Protects state below
	env    sandbox.Environment
	info   Info
	closed bool
}

// NewManager creates a new environment manager. The environment is not
// booted until Boot is called.
func NewManager(engine sandbox.Engine, config *Config, logger *slog.Logger, bus *events.Bus) (*Manager, error) {
	if engine == nil {
		return nil, ErrNoEngine
	}
	if config == nil {
		config = &Config{}
	}
	if config.Image == "" {
		config.Image = "node:20-alpine"
	}
	if config.WorkDir == "" {
		config.WorkDir = "/app"
	}
	if config.ManifestPath == "" {
		config.ManifestPath = "package.json"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		engine: engine,
		config: config,
		logger: logger,
		bus:    bus,
		info: Info{
			Image:     config.Image,
			WorkDir:   config.WorkDir,
			State:     StateIdle,
			UpdatedAt: time.Now(),
		},
	}, nil
}

// Boot provisions the environment and seeds it with an empty manifest.
// Concurrent callers share one provisioning attempt. Booting a ready
// environment is a no-op; booting after a failure tries again.
func (m *Manager) Boot(ctx context.Context) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return ErrManagerClosed
	}
	if m.info.State == StateReady {
		m.mu.RUnlock()
		return nil
	}
	m.mu.RUnlock()

	_, err, shared := m.boots.Do("boot", func() (interface{}, error) {
		return nil, m.boot(ctx)
	})
	if shared {
		m.logger.Debug("joined in-flight boot")
	}
	return err
}

func (m *Manager) boot(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.info.State == StateReady {
		m.mu.Unlock()
		return nil
	}
	m.setStateLocked(StateBooting, "")
	m.mu.Unlock()

	if m.config.BootTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.BootTimeout)
		defer cancel()
	}

	m.logger.Info("booting environment",
		"image", m.config.Image,
		"workdir", m.config.WorkDir,
	)
	start := time.Now()

	seed, err := manifest.New(m.config.ManifestName).Marshal()
	if err != nil {
		return m.bootFailed(err)
	}

	env, err := m.engine.Boot(ctx, sandbox.Options{
		Image:   m.config.Image,
		WorkDir: m.config.WorkDir,
		Env:     m.config.Env,
		Files: sandbox.FileTree{
			m.config.ManifestPath: seed,
		},
	})
	if err != nil {
		return m.bootFailed(err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if err := env.Close(context.Background()); err != nil {
			m.logger.Error("failed to tear down environment booted after close", "error", err)
		}
		return ErrManagerClosed
	}
	m.env = env
	m.info.ID = env.ID()
	m.info.BootedAt = time.Now()
	m.setStateLocked(StateReady, "")
	m.mu.Unlock()

	m.logger.Info("environment ready",
		"id", env.ID(),
		"duration", time.Since(start),
	)
	return nil
}

func (m *Manager) bootFailed(err error) error {
	m.logger.Error("failed to boot environment", "error", err)

	m.mu.Lock()
	closed := m.closed
	if !closed {
		m.setStateLocked(StateUnavailable, err.Error())
	}
	m.mu.Unlock()

	if closed {
		return ErrManagerClosed
	}
	return fmt.Errorf("%w: %v", ErrBootFailed, err)
}

// setStateLocked updates the state and publishes the transition.
// Callers hold m.mu.
func (m *Manager) setStateLocked(state State, bootErr string) {
	m.info.State = state
	m.info.BootError = bootErr
	m.info.UpdatedAt = time.Now()
	if state != StateReady {
		m.info.ID = ""
	}

	m.bus.Publish(events.Event{
		Source:  events.SourceEnvironment,
		State:   string(state),
		Message: bootErr,
	})
}

// IsReady reports whether the environment accepts writes and commands
func (m *Manager) IsReady() bool {
	return m.State() == StateReady
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.info.State
}

// Info returns a copy of the environment description
func (m *Manager) Info() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.info
}

func (m *Manager) readyEnv() (sandbox.Environment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	if m.info.State != StateReady || m.env == nil {
		return nil, ErrNotReady
	}
	return m.env, nil
}

// WriteManifest overwrites the manifest file inside the environment
func (m *Manager) WriteManifest(ctx context.Context, mf *manifest.Manifest) error {
	lease, err := m.Lease()
	if err != nil {
		return err
	}
	return lease.WriteManifest(ctx, mf)
}

// Spawn starts a command inside the environment
func (m *Manager) Spawn(ctx context.Context, name string, args ...string) (sandbox.Process, error) {
	lease, err := m.Lease()
	if err != nil {
		return nil, err
	}
	return lease.Spawn(ctx, name, args...)
}

// Reset tears the current environment down and boots a fresh one
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	env := m.env
	m.env = nil
	if m.info.State != StateBooting {
		m.setStateLocked(StateIdle, "")
	}
	m.mu.Unlock()

	m.logger.Info("resetting environment")
	if env != nil {
		if err := env.Close(ctx); err != nil {
			m.logger.Error("failed to tear down environment", "error", err)
		}
	}

	return m.Boot(ctx)
}

// Close tears the environment down. The manager cannot be booted again.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	env := m.env
	m.env = nil
	m.setStateLocked(StateIdle, "")
	m.mu.Unlock()

	m.logger.Info("closing environment manager")

	if env == nil {
		return nil
	}
	if err := env.Close(ctx); err != nil {
		return fmt.Errorf("close environment: %w", err)
	}
	return nil
}
