package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/patina/sizecheck/pkg/environment"
	"github.com/patina/sizecheck/pkg/sizecheck"
)

// MockChecker is a test implementation of sizecheck.SizeChecker and the
// environment controls the API needs
type MockChecker struct {
	CheckErr error
	ResetErr error
	Snap     sizecheck.Snapshot
	Env      environment.Info

	mu      sync.Mutex
	checks  []string
	ctxErrs []error
	resets  int
}

// NewMockChecker creates a new mock checker for a ready environment
func NewMockChecker() *MockChecker {
	return &MockChecker{
		Snap: sizecheck.Snapshot{
			Environment: environment.StateReady,
			Ready:       true,
			Phase:       sizecheck.PhaseIdle,
		},
		Env: environment.Info{
			ID:    "test-env",
			Image: "node:20-alpine",
			State: environment.StateReady,
		},
	}
}

// CheckSize mock implementation
func (m *MockChecker) CheckSize(ctx context.Context, identifier string) (*sizecheck.Report, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, sizecheck.ErrEmptyIdentifier
	}

	m.mu.Lock()
	m.checks = append(m.checks, identifier)
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	m.mu.Unlock()

	if m.CheckErr != nil {
		return nil, m.CheckErr
	}

	install := &sizecheck.CommandResult{Command: []string{"npm", "install"}, Output: "added 1 package"}
	size := &sizecheck.CommandResult{Command: []string{"du", "-sh", "node_modules/" + identifier}, Output: "1.2M\tnode_modules/" + identifier}
	return &sizecheck.Report{
		ID:        "test-report",
		Package:   identifier,
		ModuleDir: identifier,
		Install:   install,
		Size:      size,
		Text:      sizecheck.Render(identifier, install.Output, size.Output),
	}, nil
}

// Snapshot mock implementation
func (m *MockChecker) Snapshot() sizecheck.Snapshot {
	return m.Snap
}

// Reset mock implementation
func (m *MockChecker) Reset(ctx context.Context) error {
	m.mu.Lock()
	m.resets++
	m.mu.Unlock()
	return m.ResetErr
}

// Info mock implementation
func (m *MockChecker) Info() environment.Info {
	return m.Env
}

// Checks returns the identifiers checked so far
func (m *MockChecker) Checks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.checks...)
}

// ContextErrors returns ctx.Err() as each check saw it
func (m *MockChecker) ContextErrors() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]error(nil), m.ctxErrs...)
}

// Resets returns how many times Reset was called
func (m *MockChecker) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}
