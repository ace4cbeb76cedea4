package sizecheck

import (
	"context"

	"github.com/patina/sizecheck/pkg/environment"
	"github.com/patina/sizecheck/pkg/manifest"
	"github.com/patina/sizecheck/pkg/sandbox"
)

// Environment is the part of the environment manager the pipeline drives.
// A check takes one lease and runs every step through it.
type Environment interface {
	IsReady() bool
	State() environment.State
	Lease() (*environment.Lease, error)
}

// session is the pinned environment a single check runs against
type session interface {
	WriteManifest(ctx context.Context, mf *manifest.Manifest) error
	Spawn(ctx context.Context, name string, args ...string) (sandbox.Process, error)
}

// SizeChecker defines the interface presentation layers call
type SizeChecker interface {
	CheckSize(ctx context.Context, identifier string) (*Report, error)
	Snapshot() Snapshot
}
