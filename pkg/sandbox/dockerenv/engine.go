// Package dockerenv boots sandbox environments as long-running Docker
// containers managed by testcontainers-go.
package dockerenv

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/testcontainers/testcontainers-go"
	tcexec "github.com/testcontainers/testcontainers-go/exec"

	"github.com/patina/sizecheck/pkg/sandbox"
)

const defaultWorkDir = "/app"

// Engine creates Docker-backed environments
type Engine struct{}

// New creates a new Docker engine
func New() *Engine {
	return &Engine{}
}

// Boot starts an idle container from the image and seeds its files
func (e *Engine) Boot(ctx context.Context, opts sandbox.Options) (sandbox.Environment, error) {
	if opts.Image == "" {
		return nil, sandbox.ErrNoImage
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir = defaultWorkDir
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: opts.Image,
			Cmd:   []string{"sleep", "infinity"},
			Env:   opts.Env,
		},
		Started: true,
	})
	if err != nil {
		if container != nil {
			_ = container.Terminate(context.Background())
		}
		return nil, fmt.Errorf("start container from %s: %w", opts.Image, err)
	}

	env := &Environment{
		container: container,
		workDir:   workDir,
	}

	if err := env.mkdir(ctx, workDir); err != nil {
		_ = container.Terminate(context.Background())
		return nil, err
	}

	for _, p := range opts.Files.Paths() {
		if err := env.WriteFile(ctx, p, opts.Files[p]); err != nil {
			_ = container.Terminate(context.Background())
			return nil, fmt.Errorf("seed %s: %w", p, err)
		}
	}

	return env, nil
}

// Environment is a running container
type Environment struct {
	container testcontainers.Container
	workDir   string

	mu     sync.Mutex
	closed bool
}

// ID returns the Docker container ID
func (e *Environment) ID() string { return e.container.GetContainerID() }

func (e *Environment) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Environment) mkdir(ctx context.Context, dir string) error {
	code, reader, err := e.container.Exec(ctx, []string{"mkdir", "-p", dir}, tcexec.Multiplexed())
	if err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	if code != 0 {
		out, _ := io.ReadAll(reader)
		return fmt.Errorf("mkdir %s: exit status %d: %s", dir, code, strings.TrimSpace(string(out)))
	}
	return nil
}

// WriteFile overwrites path with contents, creating parent directories
func (e *Environment) WriteFile(ctx context.Context, p string, contents []byte) error {
	if e.isClosed() {
		return sandbox.ErrClosed
	}

	target := sandbox.Resolve(e.workDir, p)
	if err := e.mkdir(ctx, path.Dir(target)); err != nil {
		return err
	}
	return e.container.CopyToContainer(ctx, contents, target, 0o644)
}

// Spawn runs a command to completion in the working directory. Stdout
// and stderr are demultiplexed into one stream.
func (e *Environment) Spawn(ctx context.Context, name string, args ...string) (sandbox.Process, error) {
	if e.isClosed() {
		return nil, sandbox.ErrClosed
	}

	code, reader, err := e.container.Exec(ctx, append([]string{name}, args...),
		tcexec.Multiplexed(),
		tcexec.WithWorkingDir(e.workDir),
	)
	if err != nil {
		return nil, fmt.Errorf("exec %s: %w", name, err)
	}

	return &process{output: reader, exitCode: code}, nil
}

// Close terminates the container
func (e *Environment) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	return e.container.Terminate(ctx)
}

type process struct {
	output   io.Reader
	exitCode int
}

func (p *process) Output() io.Reader { return p.output }

func (p *process) Wait(ctx context.Context) (int, error) { return p.exitCode, nil }

// Close closes the exec stream when it is closable
func (p *process) Close() error {
	if c, ok := p.output.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
