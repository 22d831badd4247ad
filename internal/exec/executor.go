// Package exec runs external tools (typecheckers, mutation runners) on
// the host with deadlines and bounded output capture.
package exec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"strings"
	"time"

	"codegov/internal/logging"
)

// Command describes one external invocation.
type Command struct {
	Binary           string
	Arguments        []string
	WorkingDirectory string
	Environment      map[string]string
	Stdin            string
	// Timeout overrides the executor default when positive.
	Timeout time.Duration
}

// Result captures the outcome of one invocation. A non-zero exit code is
// not an error at this layer; callers interpret it.
type Result struct {
	ExitCode   int
	Stdout     string
	Stderr     string
	Combined   string
	StartedAt  time.Time
	Duration   time.Duration
	Killed     bool
	KillReason string
	Truncated  bool
}

// Config bounds every invocation run through an executor.
type Config struct {
	DefaultTimeout time.Duration
	MaxOutputBytes int64
}

// DefaultConfig returns the standard bounds: 60s timeout, 10MB output.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: 60 * time.Second,
		MaxOutputBytes: 10 * 1024 * 1024,
	}
}

// Executor runs commands directly on the host. No sandboxing; the
// control plane trusts its configured tools.
type Executor struct {
	config Config
}

// New creates an executor with default bounds.
func New() *Executor {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates an executor with custom bounds.
func NewWithConfig(config Config) *Executor {
	return &Executor{config: config}
}

// Run executes the command under a deadline. The returned error covers
// infrastructure failures only (binary missing, start failure); timeout
// and non-zero exit are reported through the result.
func (e *Executor) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, fmt.Errorf("binary is required")
	}

	timeout := e.config.DefaultTimeout
	if cmd.Timeout > 0 {
		timeout = cmd.Timeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logging.ExecDebug("running %s %v (dir=%s, timeout=%s)",
		cmd.Binary, cmd.Arguments, cmd.WorkingDirectory, timeout)

	execCmd := osexec.CommandContext(execCtx, cmd.Binary, cmd.Arguments...)
	execCmd.Dir = cmd.WorkingDirectory
	execCmd.Env = buildEnvironment(cmd.Environment)
	if cmd.Stdin != "" {
		execCmd.Stdin = strings.NewReader(cmd.Stdin)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	stdout := &limitedWriter{w: &stdoutBuf, max: e.config.MaxOutputBytes}
	stderr := &limitedWriter{w: &stderrBuf, max: e.config.MaxOutputBytes}
	execCmd.Stdout = stdout
	execCmd.Stderr = stderr

	result := &Result{ExitCode: -1, StartedAt: time.Now()}
	err := execCmd.Run()
	result.Duration = time.Since(result.StartedAt)
	result.Stdout = stdoutBuf.String()
	result.Stderr = stderrBuf.String()
	result.Combined = result.Stdout
	if result.Stderr != "" {
		if result.Combined != "" {
			result.Combined += "\n"
		}
		result.Combined += result.Stderr
	}
	result.Truncated = stdout.truncated || stderr.truncated

	if err == nil {
		result.ExitCode = 0
		return result, nil
	}
	switch {
	case execCtx.Err() == context.DeadlineExceeded:
		result.Killed = true
		result.KillReason = fmt.Sprintf("timeout after %s", timeout)
		logging.ExecDebug("command killed (timeout): %s after %s", cmd.Binary, timeout)
		return result, nil
	case execCtx.Err() == context.Canceled:
		result.Killed = true
		result.KillReason = "context canceled"
		return result, nil
	}
	if exitErr, ok := err.(*osexec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return nil, fmt.Errorf("exec %s: %w", cmd.Binary, err)
}

// LookPath reports whether a binary is resolvable on PATH.
func LookPath(binary string) bool {
	_, err := osexec.LookPath(binary)
	return err == nil
}

func buildEnvironment(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

// limitedWriter caps captured output; overflow is discarded, not an
// error, so the child keeps running.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.written >= lw.max {
		lw.truncated = true
		return len(p), nil
	}
	remain := lw.max - lw.written
	if int64(len(p)) > remain {
		lw.truncated = true
		n, err := lw.w.Write(p[:remain])
		lw.written += int64(n)
		return len(p), err
	}
	n, err := lw.w.Write(p)
	lw.written += int64(n)
	return n, err
}
