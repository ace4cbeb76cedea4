package environment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/patina/sizecheck/pkg/manifest"
	"github.com/patina/sizecheck/pkg/sandbox"
)

// Lease pins the environment that was ready when it was taken. A Reset or
// Close tears that environment down, so later calls on the lease fail with
// sandbox.ErrClosed instead of reaching the replacement.
type Lease struct {
	env    sandbox.Environment
	config *Config
	logger *slog.Logger
}

// Lease returns a handle on the current ready environment
func (m *Manager) Lease() (*Lease, error) {
	env, err := m.readyEnv()
	if err != nil {
		return nil, err
	}
	return &Lease{env: env, config: m.config, logger: m.logger}, nil
}

// ID returns the pinned environment's ID
func (l *Lease) ID() string {
	return l.env.ID()
}

// WriteManifest overwrites the manifest file inside the pinned environment
func (l *Lease) WriteManifest(ctx context.Context, mf *manifest.Manifest) error {
	data, err := mf.Marshal()
	if err != nil {
		return err
	}

	path := sandbox.Resolve(l.config.WorkDir, l.config.ManifestPath)
	if err := l.env.WriteFile(ctx, path, data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	l.logger.Debug("wrote manifest", "path", path, "bytes", len(data))
	return nil
}

// Spawn starts a command inside the pinned environment
func (l *Lease) Spawn(ctx context.Context, name string, args ...string) (sandbox.Process, error) {
	return l.env.Spawn(ctx, name, args...)
}
