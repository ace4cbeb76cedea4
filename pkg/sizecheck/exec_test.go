package sizecheck

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingReader struct{ release chan struct{} }

func (r *blockingReader) Read(p []byte) (int, error) {
	<-r.release
	return 0, io.EOF
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("stream closed")
}

func Test_Drain(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		limit         int64
		want          string
		wantTruncated bool
	}{
		{"unlimited", "added 1 package", 0, "added 1 package", false},
		{"under limit", "abc", 10, "abc", false},
		{"exact limit", "abcdefghij", 10, "abcdefghij", false},
		{"over limit", "abcdefghijk", 10, "abcdefghij\n[output truncated at 10 B]", true},
		{"kibibyte limit", strings.Repeat("x", 2048), 1024, strings.Repeat("x", 1024) + "\n[output truncated at 1.0 KiB]", true},
		{"invalid utf8", "ok\xff", 0, "ok\uFFFD", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, truncated, err := drain(context.Background(), strings.NewReader(tt.input), tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantTruncated, truncated)
		})
	}
}

func Test_Drain_NilReader(t *testing.T) {
	got, truncated, err := drain(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, truncated)
}

func Test_Drain_ReadError(t *testing.T) {
	_, _, err := drain(context.Background(), failingReader{}, 0)
	assert.EqualError(t, err, "stream closed")
}

func Test_Drain_ContextDeadline(t *testing.T) {
	r := &blockingReader{release: make(chan struct{})}
	defer close(r.release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, _, err := drain(ctx, r, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func Test_Render(t *testing.T) {
	got := Render("react", "added 1 package", "1.2M\tnode_modules/react")
	assert.Equal(t, "Installing react...\nadded 1 package\n\nPackage Size:\n1.2M\tnode_modules/react", got)
}

func Test_NewChecker_Defaults(t *testing.T) {
	c := NewChecker(nil, &Config{}, nil, nil)

	assert.Equal(t, "npm", c.config.Installer)
	assert.Equal(t, []string{"install"}, c.config.InstallArgs)
	assert.Equal(t, "du", c.config.DiskUsageTool)
	assert.Equal(t, []string{"-sh"}, c.config.DiskUsageArgs)
	assert.Equal(t, "node_modules", c.config.ModulesDir)
}
