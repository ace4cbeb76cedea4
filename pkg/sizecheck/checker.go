// Package sizecheck installs a package inside the managed environment and
// measures the directory it lands in.
//
// A check rewrites the environment's manifest, runs the installer, then
// runs the disk usage tool against the installed module directory. Only one
// check holds the environment at a time; a request arriving while another
// runs is rejected with ErrCheckInProgress.
package sizecheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/patina/sizecheck/pkg/environment"
	"github.com/patina/sizecheck/pkg/events"
	"github.com/patina/sizecheck/pkg/manifest"
	"github.com/patina/sizecheck/pkg/sandbox"
)

// Config holds configuration for the checker
type Config struct {
	ManifestName      string
	Installer         string
	InstallArgs       []string
	DiskUsageTool     string
	DiskUsageArgs     []string
	ModulesDir        string
	CommandTimeout    time.Duration
	MaxOutputBytes    int64
	FailOnNonZeroExit bool
}

// DefaultConfig returns the npm + du configuration
func DefaultConfig() *Config {
	return &Config{
		ManifestName:   manifest.DefaultName,
		Installer:      "npm",
		InstallArgs:    []string{"install"},
		DiskUsageTool:  "du",
		DiskUsageArgs:  []string{"-sh"},
		ModulesDir:     "node_modules",
		CommandTimeout: 5 * time.Minute,
		MaxOutputBytes: 1 << 20,
	}
}

// Checker runs the install-and-measure pipeline
type Checker struct {
	env    Environment
	config *Config
	logger *slog.Logger
	bus    *events.Bus
	sem    *semaphore.Weighted

	mu    sync.RWMutex // Protects state
	state checkState
}

type checkState struct {
	phase     Phase
	pkg       string
	checkID   string
	report    string
	warning   string
	err       string
	updatedAt time.Time
}

// NewChecker creates a checker driving env
func NewChecker(env Environment, config *Config, logger *slog.Logger, bus *events.Bus) *Checker {
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	if config.Installer == "" {
		config.Installer = defaults.Installer
		config.InstallArgs = defaults.InstallArgs
	}
	if config.DiskUsageTool == "" {
		config.DiskUsageTool = defaults.DiskUsageTool
		config.DiskUsageArgs = defaults.DiskUsageArgs
	}
	if config.ModulesDir == "" {
		config.ModulesDir = defaults.ModulesDir
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Checker{
		env:    env,
		config: config,
		logger: logger,
		bus:    bus,
		sem:    semaphore.NewWeighted(1),
		state: checkState{
			phase:     PhaseIdle,
			updatedAt: time.Now(),
		},
	}
}

// CheckSize installs identifier and reports its installed size.
//
// A blank identifier returns ErrEmptyIdentifier without touching any state.
// Before boot completes it returns ErrEnvironmentNotReady and records a
// warning. While another check runs it returns ErrCheckInProgress.
func (c *Checker) CheckSize(ctx context.Context, identifier string) (*Report, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrEmptyIdentifier
	}

	if !c.env.IsReady() {
		c.warn(identifier, "environment is still booting, try again in a few seconds")
		return nil, ErrEnvironmentNotReady
	}

	if !c.sem.TryAcquire(1) {
		c.logger.Warn("rejecting concurrent check", "package", identifier)
		return nil, ErrCheckInProgress
	}
	defer c.sem.Release(1)

	c.begin(identifier)

	report, err := c.run(ctx, identifier)
	if err != nil {
		c.fail(identifier, err)
		return nil, err
	}

	c.finish(report)
	return report, nil
}

func (c *Checker) run(ctx context.Context, identifier string) (*Report, error) {
	startedAt := time.Now()

	mf, err := manifest.ForPackage(c.config.ManifestName, identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestWriteFailed, err)
	}

	lease, err := c.env.Lease()
	if err != nil {
		return nil, ErrEnvironmentNotReady
	}

	if err := lease.WriteManifest(ctx, mf); err != nil {
		if errors.Is(err, sandbox.ErrClosed) {
			return nil, ErrEnvironmentNotReady
		}
		return nil, fmt.Errorf("%w: %v", ErrManifestWriteFailed, err)
	}

	install, err := c.runCommand(ctx, lease, c.config.Installer, c.config.InstallArgs...)
	if err != nil {
		return nil, err
	}

	moduleDir := manifest.ModuleDir(identifier)
	args := append(append([]string(nil), c.config.DiskUsageArgs...), path.Join(c.config.ModulesDir, moduleDir))

	size, err := c.runCommand(ctx, lease, c.config.DiskUsageTool, args...)
	if err != nil {
		return nil, err
	}

	return newReport(identifier, moduleDir, install, size, startedAt), nil
}

func (c *Checker) begin(identifier string) {
	c.logger.Info("checking package size", "package", identifier)

	c.mu.Lock()
	c.state = checkState{
		phase:     PhaseRunning,
		pkg:       identifier,
		updatedAt: time.Now(),
	}
	c.mu.Unlock()

	c.bus.Publish(events.Event{
		Source:  events.SourceCheck,
		State:   string(PhaseRunning),
		Package: identifier,
	})
}

func (c *Checker) finish(report *Report) {
	c.logger.Info("package size checked",
		"package", report.Package,
		"report", report.ID,
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)

	c.mu.Lock()
	c.state.phase = PhaseDone
	c.state.checkID = report.ID
	c.state.report = report.Text
	c.state.err = ""
	c.state.updatedAt = time.Now()
	c.mu.Unlock()

	c.bus.Publish(events.Event{
		Source:  events.SourceCheck,
		State:   string(PhaseDone),
		Package: report.Package,
	})
}

func (c *Checker) fail(identifier string, err error) {
	c.logger.Error("package size check failed", "package", identifier, "error", err)

	c.mu.Lock()
	c.state.phase = PhaseFailed
	c.state.checkID = ""
	c.state.report = "Error: " + err.Error()
	c.state.err = err.Error()
	c.state.updatedAt = time.Now()
	c.mu.Unlock()

	c.bus.Publish(events.Event{
		Source:  events.SourceCheck,
		State:   string(PhaseFailed),
		Package: identifier,
		Message: err.Error(),
	})
}

// warn records an advisory without touching the report
func (c *Checker) warn(identifier, message string) {
	c.logger.Warn(message, "package", identifier, "environment", c.env.State())

	c.mu.Lock()
	c.state.warning = message
	c.state.updatedAt = time.Now()
	c.mu.Unlock()

	c.bus.Publish(events.Event{
		Source:  events.SourceCheck,
		State:   "warning",
		Package: identifier,
		Message: message,
	})
}

// Snapshot returns the observable state for polling presentation layers
func (c *Checker) Snapshot() Snapshot {
	envState := c.env.State()

	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		Environment: envState,
		Ready:       envState == environment.StateReady,
		Phase:       c.state.phase,
		Loading:     c.state.phase == PhaseRunning,
		Package:     c.state.pkg,
		CheckID:     c.state.checkID,
		Report:      c.state.report,
		Warning:     c.state.warning,
		Error:       c.state.err,
		UpdatedAt:   c.state.updatedAt,
	}
}
