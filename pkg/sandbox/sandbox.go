// Package sandbox defines the capability an isolated execution environment
// has to offer: boot a filesystem+process context, accept file writes and
// spawn commands whose output can be drained as a byte stream.
//
// The package knows nothing about packages or manifests. Engines live in
// subpackages (daggerenv, dockerenv) and are swapped freely by the
// environment manager.
package sandbox

import (
	"context"
	"errors"
	"io"
	"path"
	"sort"
)

var (
	// ErrClosed indicates the environment has already been torn down
	ErrClosed = errors.New("sandbox environment is closed")

	// ErrNoImage indicates boot options carry no base image
	ErrNoImage = errors.New("sandbox image is required")
)

// FileTree maps file paths to contents. Relative paths resolve against
// Options.WorkDir.
type FileTree map[string][]byte

// Paths returns the tree's paths in lexical order so engines seed
// deterministically.
func (t FileTree) Paths() []string {
	paths := make([]string, 0, len(t))
	for p := range t {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Options configures a boot
type Options struct {
	Image   string
	WorkDir string
	Env     map[string]string
	Files   FileTree
}

// Engine provisions environments
type Engine interface {
	Boot(ctx context.Context, opts Options) (Environment, error)
}

// Environment is one booted, isolated context
type Environment interface {
	ID() string
	WriteFile(ctx context.Context, path string, contents []byte) error
	Spawn(ctx context.Context, name string, args ...string) (Process, error)
	Close(ctx context.Context) error
}

// Process is a started command. Output yields the combined output stream
// until the process terminates; Wait returns the exit code. Close releases
// the process: a Read blocked on Output returns once Close is called.
type Process interface {
	Output() io.Reader
	Wait(ctx context.Context) (int, error)
	Close() error
}

// Resolve returns p as an absolute path, joining relative paths onto workDir.
func Resolve(workDir, p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	if workDir == "" {
		workDir = "/"
	}
	return path.Join(workDir, p)
}
