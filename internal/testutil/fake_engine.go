package testutil

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/patina/sizecheck/pkg/sandbox"
)

// Call records one operation performed against a fake environment
type Call struct {
	Op   string // "boot", "write", "spawn", "close"
	Path string
	Name string
	Args []string
	Data []byte
}

// String renders the call as "op name args..." for order assertions
func (c Call) String() string {
	switch c.Op {
	case "write":
		return "write " + c.Path
	case "spawn":
		return strings.TrimSpace("spawn " + c.Name + " " + strings.Join(c.Args, " "))
	default:
		return c.Op
	}
}

// Response scripts the behaviour of one command
type Response struct {
	Chunks   []string
	ExitCode int
	SpawnErr error
	ReadErr  error
	WaitErr  error
	// Block delays output until closed
	Block <-chan struct{}
	// Started is closed once the command has been spawned
	Started chan struct{}
}

// FakeEngine is a test implementation of sandbox.Engine
type FakeEngine struct {
	BootErr   error
	BootBlock <-chan struct{}
	WriteErr  error
	CloseErr  error

	mu        sync.Mutex
	responses map[string]Response
	calls     []Call
	files     map[string][]byte
	boots     int
	open      int
	lastOpts  sandbox.Options
}

// NewFakeEngine creates a new fake engine
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{
		responses: make(map[string]Response),
		files:     make(map[string][]byte),
	}
}

// SetResponse scripts the command called name
func (f *FakeEngine) SetResponse(name string, r Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[name] = r
}

// Calls returns all recorded calls in order
func (f *FakeEngine) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallStrings returns the recorded calls rendered with Call.String
func (f *FakeEngine) CallStrings() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// Writes returns only the recorded file writes
func (f *FakeEngine) Writes() []Call {
	var writes []Call
	for _, c := range f.Calls() {
		if c.Op == "write" {
			writes = append(writes, c)
		}
	}
	return writes
}

// File returns the current contents of path
func (f *FakeEngine) File(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[path]
	return data, ok
}

// Boots returns how many times Boot provisioned an environment
func (f *FakeEngine) Boots() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.boots
}

// OpenProcesses returns how many spawned processes have not been closed
func (f *FakeEngine) OpenProcesses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// LastOptions returns the options of the latest Boot call
func (f *FakeEngine) LastOptions() sandbox.Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOpts
}

func (f *FakeEngine) record(c Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

// Boot mock implementation
func (f *FakeEngine) Boot(ctx context.Context, opts sandbox.Options) (sandbox.Environment, error) {
	f.record(Call{Op: "boot"})

	if f.BootBlock != nil {
		select {
		case <-f.BootBlock:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.BootErr != nil {
		return nil, f.BootErr
	}

	f.mu.Lock()
	f.boots++
	f.lastOpts = opts
	for _, p := range opts.Files.Paths() {
		f.files[sandbox.Resolve(opts.WorkDir, p)] = append([]byte(nil), opts.Files[p]...)
	}
	f.mu.Unlock()

	return &FakeEnvironment{id: uuid.NewString(), engine: f, workDir: opts.WorkDir}, nil
}

// FakeEnvironment is a test implementation of sandbox.Environment
type FakeEnvironment struct {
	id      string
	engine  *FakeEngine
	workDir string

	mu     sync.Mutex
	closed bool
}

// ID mock implementation
func (e *FakeEnvironment) ID() string { return e.id }

func (e *FakeEnvironment) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// WriteFile mock implementation
func (e *FakeEnvironment) WriteFile(ctx context.Context, path string, contents []byte) error {
	if e.isClosed() {
		return sandbox.ErrClosed
	}
	path = sandbox.Resolve(e.workDir, path)
	e.engine.record(Call{Op: "write", Path: path, Data: append([]byte(nil), contents...)})

	if e.engine.WriteErr != nil {
		return e.engine.WriteErr
	}

	e.engine.mu.Lock()
	e.engine.files[path] = append([]byte(nil), contents...)
	e.engine.mu.Unlock()
	return nil
}

// Spawn mock implementation
func (e *FakeEnvironment) Spawn(ctx context.Context, name string, args ...string) (sandbox.Process, error) {
	if e.isClosed() {
		return nil, sandbox.ErrClosed
	}
	e.engine.record(Call{Op: "spawn", Name: name, Args: append([]string(nil), args...)})

	e.engine.mu.Lock()
	r, ok := e.engine.responses[name]
	e.engine.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
	if r.SpawnErr != nil {
		return nil, r.SpawnErr
	}
	if r.Started != nil {
		select {
		case <-r.Started:
		default:
			close(r.Started)
		}
	}

	done := make(chan struct{})
	e.engine.mu.Lock()
	e.engine.open++
	e.engine.mu.Unlock()

	return &fakeProcess{
		engine: e.engine,
		output: &chunkReader{chunks: r.Chunks, err: r.ReadErr, block: r.Block, done: done},
		done:   done,
		code:   r.ExitCode,
		err:    r.WaitErr,
	}, nil
}

// Close mock implementation
func (e *FakeEnvironment) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.engine.record(Call{Op: "close"})
	return e.engine.CloseErr
}

type fakeProcess struct {
	engine *FakeEngine
	output io.Reader
	done   chan struct{}
	once   sync.Once
	code   int
	err    error
}

func (p *fakeProcess) Output() io.Reader { return p.output }

func (p *fakeProcess) Wait(ctx context.Context) (int, error) {
	if p.err != nil {
		return -1, p.err
	}
	return p.code, nil
}

// Close releases a blocked Output reader
func (p *fakeProcess) Close() error {
	p.once.Do(func() {
		close(p.done)
		p.engine.mu.Lock()
		p.engine.open--
		p.engine.mu.Unlock()
	})
	return nil
}

// chunkReader yields one chunk per Read call
type chunkReader struct {
	chunks []string
	err    error
	block  <-chan struct{}
	done   <-chan struct{}
	buf    []byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.block != nil {
		select {
		case <-r.block:
		case <-r.done:
			return 0, io.ErrClosedPipe
		}
		r.block = nil
	}
	if len(r.buf) == 0 {
		if len(r.chunks) == 0 {
			if r.err != nil {
				return 0, r.err
			}
			return 0, io.EOF
		}
		r.buf = []byte(r.chunks[0])
		r.chunks = r.chunks[1:]
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}
