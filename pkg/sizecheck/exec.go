package sizecheck

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/patina/sizecheck/pkg/environment"
)

// CommandResult contains the drained output of one command
type CommandResult struct {
	Command   []string  `json:"command"`
	Output    string    `json:"output"`
	ExitCode  int       `json:"exit_code"`
	Truncated bool      `json:"truncated,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  string    `json:"duration"`
}

const readChunkSize = 32 * 1024

// runCommand spawns name inside the leased environment and drains its
// output to the end of stream before waiting for the exit code. The process
// is closed on return, which releases a drain abandoned on timeout.
func (c *Checker) runCommand(parent context.Context, s session, name string, args ...string) (*CommandResult, error) {
	ctx := parent
	if c.config.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.CommandTimeout)
		defer cancel()
	}

	cmdline := strings.TrimSpace(name + " " + strings.Join(args, " "))
	c.logger.Info("executing command", "command", cmdline)
	startTime := time.Now()

	proc, err := s.Spawn(ctx, name, args...)
	if err != nil {
		return nil, c.commandError(parent, ctx, cmdline, err)
	}
	defer func() {
		if err := proc.Close(); err != nil {
			c.logger.Warn("failed to close process", "command", cmdline, "error", err)
		}
	}()

	output, truncated, err := drain(ctx, proc.Output(), c.config.MaxOutputBytes)
	if err != nil {
		return nil, c.commandError(parent, ctx, cmdline, err)
	}

	exitCode, err := proc.Wait(ctx)
	if err != nil {
		return nil, c.commandError(parent, ctx, cmdline, err)
	}

	endTime := time.Now()
	duration := endTime.Sub(startTime)

	c.logger.Info("command executed",
		"command", cmdline,
		"exit_code", exitCode,
		"bytes", len(output),
		"truncated", truncated,
		"duration", duration,
	)

	if exitCode != 0 && c.config.FailOnNonZeroExit {
		return nil, fmt.Errorf("%w: %s exited with status %d", ErrSpawnFailed, cmdline, exitCode)
	}

	return &CommandResult{
		Command:   append([]string{name}, args...),
		Output:    output,
		ExitCode:  exitCode,
		Truncated: truncated,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  duration.String(),
	}, nil
}

// commandError classifies a failed command. parent is the caller's context
// and ctx the per-command one derived from it.
func (c *Checker) commandError(parent, ctx context.Context, cmdline string, err error) error {
	c.logger.Error("command failed", "command", cmdline, "error", err)

	switch {
	case environment.IsNotReady(err):
		return err
	case errors.Is(parent.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: caller deadline exceeded", ErrTimeout, cmdline)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %s after %s", ErrTimeout, cmdline, c.config.CommandTimeout)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s", ErrTimeout, cmdline)
	default:
		return fmt.Errorf("%w: %s: %v", ErrSpawnFailed, cmdline, err)
	}
}

type drained struct {
	text      string
	truncated bool
	err       error
}

// drain reads r until EOF, keeping at most limit bytes (limit <= 0 keeps
// everything). Bytes past the limit are read and discarded so the process
// can finish. The captured bytes are decoded as UTF-8 once complete.
func drain(ctx context.Context, r io.Reader, limit int64) (string, bool, error) {
	if r == nil {
		return "", false, nil
	}

	done := make(chan drained, 1)
	go func() {
		var buf bytes.Buffer
		truncated := false
		chunk := make([]byte, readChunkSize)

		for {
			n, err := r.Read(chunk)
			if n > 0 {
				data := chunk[:n]
				if limit > 0 {
					remaining := limit - int64(buf.Len())
					if int64(len(data)) > remaining {
						truncated = true
						if remaining < 0 {
							remaining = 0
						}
						data = data[:remaining]
					}
				}
				buf.Write(data)
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				done <- drained{err: err}
				return
			}
		}

		text := strings.ToValidUTF8(buf.String(), "\uFFFD")
		if truncated {
			text += fmt.Sprintf("\n[output truncated at %s]", humanize.IBytes(uint64(limit)))
		}
		done <- drained{text: text, truncated: truncated}
	}()

	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case res := <-done:
		return res.text, res.truncated, res.err
	}
}
