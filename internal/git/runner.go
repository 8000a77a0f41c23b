package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

const defaultCommandTimeout = 5 * time.Minute

// Result is the captured outcome of a single process invocation. A nonzero
// ExitCode is data, not an error.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes an external command in a working directory. Implementations
// must only return an error when the process could not be run to completion
// (spawn failure, cancellation, timeout); exit status is reported in Result.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (Result, error)
}

// ShellRunner runs commands as child processes of the current process.
type ShellRunner struct {
	// Timeout bounds each invocation when the supplied context carries no
	// deadline. When zero, a default of 5 minutes is used. Negative disables it.
	Timeout time.Duration

	// Env is appended to the inherited environment of every command.
	Env []string

	Log *slog.Logger
}

// NewShellRunner returns a Runner backed by os/exec.
func NewShellRunner(log *slog.Logger) *ShellRunner {
	return &ShellRunner{Log: log}
}

func (r *ShellRunner) Run(ctx context.Context, dir, name string, args ...string) (Result, error) {
	runCtx, cancel := r.applyTimeout(ctx)
	defer cancel()

	start := time.Now()
	res, err := r.runOnce(runCtx, dir, name, args...)
	if r.Log != nil {
		r.Log.Debug("executed command",
			"command", strings.TrimSpace(name+" "+strings.Join(args, " ")),
			"dir", dir,
			"exit_code", res.ExitCode,
			"duration", time.Since(start),
			"error", err)
	}
	return res, err
}

func (r *ShellRunner) runOnce(ctx context.Context, dir, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	cmd.Env = append(cmd.Env, r.Env...)
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("start %s: %w", name, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var waitErr error
	select {
	case <-ctx.Done():
		terminateProcessGroup(cmd)
		<-done
		return Result{ExitCode: -1, Stdout: trimOutput(stdout.String()), Stderr: trimOutput(stderr.String())}, ctx.Err()
	case waitErr = <-done:
	}

	res := Result{
		Stdout: trimOutput(stdout.String()),
		Stderr: trimOutput(stderr.String()),
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			res.ExitCode = -1
			return res, fmt.Errorf("wait %s: %w", name, waitErr)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			res.ExitCode = -1
			return res, ctxErr
		}
		res.ExitCode = exitErr.ExitCode()
	}

	return res, nil
}

func (r *ShellRunner) applyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && !deadline.IsZero() {
		return ctx, func() {}
	}
	timeout := r.Timeout
	if timeout == 0 {
		timeout = defaultCommandTimeout
	}
	if timeout < 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func trimOutput(s string) string {
	return strings.TrimRight(s, " \t\r\n")
}
