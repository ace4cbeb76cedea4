package dockerenv

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patina/sizecheck/pkg/sandbox"
)

func skipUnlessIntegration(t *testing.T) {
	t.Helper()
	if testing.Short() || os.Getenv("SIZECHECK_INTEGRATION") == "" {
		t.Skip("set SIZECHECK_INTEGRATION=1 to run Docker tests")
	}
}

func Test_Boot_NoImage(t *testing.T) {
	_, err := New().Boot(context.Background(), sandbox.Options{})
	assert.ErrorIs(t, err, sandbox.ErrNoImage)
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func Test_Process_Close(t *testing.T) {
	stream := &closeRecorder{Reader: strings.NewReader("ok")}
	p := &process{output: stream}
	require.NoError(t, p.Close())
	assert.True(t, stream.closed)

	plain := &process{output: strings.NewReader("ok")}
	assert.NoError(t, plain.Close())
}

func Test_Integration_WriteAndSpawn(t *testing.T) {
	skipUnlessIntegration(t)
	ctx := context.Background()

	env, err := New().Boot(ctx, sandbox.Options{
		Image:   "alpine:3.20",
		WorkDir: "/app",
		Files:   sandbox.FileTree{"package.json": []byte(`{}`)},
	})
	if err != nil {
		t.Skipf("Docker not available: %v", err)
	}
	defer env.Close(ctx)

	require.NoError(t, env.WriteFile(ctx, "nested/dir/file.txt", []byte("hello")))

	proc, err := env.Spawn(ctx, "cat", "package.json", "nested/dir/file.txt")
	require.NoError(t, err)
	out, err := io.ReadAll(proc.Output())
	require.NoError(t, err)
	assert.Equal(t, "{}hello", string(out))

	proc, err = env.Spawn(ctx, "sh", "-c", "exit 2")
	require.NoError(t, err)
	code, err := proc.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, code)

	require.NoError(t, env.Close(ctx))
	_, err = env.Spawn(ctx, "true")
	assert.ErrorIs(t, err, sandbox.ErrClosed)
}
