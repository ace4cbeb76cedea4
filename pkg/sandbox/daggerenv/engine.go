package daggerenv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"dagger.io/dagger"
	"github.com/google/uuid"

	"github.com/patina/sizecheck/pkg/sandbox"
)

// ErrNoDaggerClient indicates Dagger client is not initialized
var ErrNoDaggerClient = errors.New("dagger client not initialized")

const defaultWorkDir = "/app"

// Engine creates Dagger-backed environments
type Engine struct {
	client      *dagger.Client
	cacheVolume string
	cachePath   string
}

// Option configures an Engine
type Option func(*Engine)

// WithCache mounts the named cache volume at path in every environment
func WithCache(volume, path string) Option {
	return func(e *Engine) {
		e.cacheVolume = volume
		e.cachePath = path
	}
}

// New creates a new Dagger engine
func New(client *dagger.Client, opts ...Option) *Engine {
	e := &Engine{
		client:      client,
		cacheVolume: "sizecheck-npm-cache",
		cachePath:   "/root/.npm",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Boot creates the base container, seeds its files and forces evaluation
func (e *Engine) Boot(ctx context.Context, opts sandbox.Options) (sandbox.Environment, error) {
	if e.client == nil {
		return nil, ErrNoDaggerClient
	}
	if opts.Image == "" {
		return nil, sandbox.ErrNoImage
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir = defaultWorkDir
	}

	container := e.client.Container().
		From(opts.Image).
		WithWorkdir(workDir)

	// Apply environment variables in a stable order to keep layers cacheable
	keys := make([]string, 0, len(opts.Env))
	for key := range opts.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		container = container.WithEnvVariable(key, opts.Env[key])
	}

	if e.cacheVolume != "" && e.cachePath != "" {
		container = container.WithMountedCache(e.cachePath, e.client.CacheVolume(e.cacheVolume))
	}

	for _, p := range opts.Files.Paths() {
		container = container.WithNewFile(sandbox.Resolve(workDir, p), string(opts.Files[p]))
	}

	container, err := container.Sync(ctx)
	if err != nil {
		return nil, fmt.Errorf("provision container from %s: %w", opts.Image, err)
	}

	return &Environment{
		id:        uuid.NewString(),
		workDir:   workDir,
		container: container,
	}, nil
}

// Environment is a booted Dagger container. Writes and commands are
// applied in order on top of the latest container state.
type Environment struct {
	id      string
	workDir string

	mu        sync.Mutex
	container *dagger.Container
	closed    bool
}

// ID returns the environment identifier
func (e *Environment) ID() string { return e.id }

// WriteFile overwrites path with contents
func (e *Environment) WriteFile(ctx context.Context, path string, contents []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return sandbox.ErrClosed
	}

	container, err := e.container.
		WithNewFile(sandbox.Resolve(e.workDir, path), string(contents)).
		Sync(ctx)
	if err != nil {
		return err
	}

	e.container = container
	return nil
}

// Spawn runs a command to completion and returns its captured output
func (e *Environment) Spawn(ctx context.Context, name string, args ...string) (sandbox.Process, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, sandbox.ErrClosed
	}

	execContainer, err := e.container.
		WithExec(append([]string{name}, args...), dagger.ContainerWithExecOpts{
			Expect: dagger.ReturnTypeAny,
		}).
		Sync(ctx)
	if err != nil {
		return nil, fmt.Errorf("execution failed: %w", err)
	}

	stdout, err := execContainer.Stdout(ctx)
	if err != nil {
		return nil, fmt.Errorf("read stdout: %w", err)
	}

	stderr, err := execContainer.Stderr(ctx)
	if err != nil {
		return nil, fmt.Errorf("read stderr: %w", err)
	}

	exitCode, err := execContainer.ExitCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("read exit code: %w", err)
	}

	e.container = execContainer

	return &process{
		output:   io.MultiReader(strings.NewReader(stdout), strings.NewReader(stderr)),
		exitCode: exitCode,
	}, nil
}

// Close releases the environment. Dagger containers are ephemeral and
// cleaned up by the engine once unreferenced.
func (e *Environment) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.container = nil
	return nil
}

type process struct {
	output   io.Reader
	exitCode int
}

func (p *process) Output() io.Reader { return p.output }

func (p *process) Wait(ctx context.Context) (int, error) { return p.exitCode, nil }

// Close is a no-op: the exec has finished and its output is buffered
func (p *process) Close() error { return nil }
