// Package executil runs external security tools with bounded lifetimes and
// captures their output for structured results.
package executil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/crieger/scopegw/internal/log"
)

const (
	// maxOutputBytes caps captured stdout/stderr per stream.
	maxOutputBytes = 4 * 1024 * 1024

	// terminationGracePeriod is the time we wait after SIGTERM before SIGKILL.
	terminationGracePeriod = 5 * time.Second
)

// Result captures the outcome of one external process execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	Success  bool
	Err      error
}

// Run executes argv[0] with argv[1:] as arguments, bounded by timeout and by
// ctx cancellation. The process is never run through a shell. On timeout or
// cancellation the process receives SIGTERM, then SIGKILL after a grace
// period; the returned Result reports Success=false with Err describing why.
func Run(ctx context.Context, argv []string, timeout time.Duration) Result {
	logger := log.WithComponent("executil")
	start := time.Now()

	if len(argv) == 0 {
		return Result{ExitCode: -1, Err: fmt.Errorf("empty command")}
	}

	// Termination is managed explicitly rather than via CommandContext so the
	// child gets a SIGTERM grace window before SIGKILL.
	cmd := exec.Command(argv[0], argv[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("executing command", "command", argv[0], "timeout", timeout)

	if err := cmd.Start(); err != nil {
		return Result{
			ExitCode: -1,
			Duration: time.Since(start),
			Err:      fmt.Errorf("start process: %w", err),
		}
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var runErr error
	select {
	case err := <-waitErr:
		// A non-zero exit is a tool-level failure, not an execution error;
		// it is reported through ExitCode/Success.
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			runErr = err
		}
	case <-timer.C:
		terminate(cmd, waitErr, logger)
		runErr = fmt.Errorf("%s timed out after %v", argv[0], timeout)
	case <-ctx.Done():
		terminate(cmd, waitErr, logger)
		runErr = fmt.Errorf("%s cancelled: %w", argv[0], ctx.Err())
	}

	res := Result{
		Stdout:   truncate(stdout.String()),
		Stderr:   truncate(stderr.String()),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}
	if runErr != nil {
		res.Err = runErr
		res.Success = false
		return res
	}
	res.Success = res.ExitCode == 0
	return res
}

// terminate sends SIGTERM, waits the grace period, then SIGKILLs. It always
// waits for the process to be reaped before returning so cancellation is
// synchronous for callers.
func terminate(cmd *exec.Cmd, waitErr <-chan error, logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}) {
	if cmd.Process == nil {
		return
	}

	logger.Warn("terminating process", "pid", cmd.Process.Pid)
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		logger.Error("failed to send SIGTERM", "error", err)
	}

	grace := time.NewTimer(terminationGracePeriod)
	defer grace.Stop()

	select {
	case <-waitErr:
	case <-grace.C:
		logger.Warn("process did not exit after SIGTERM, sending SIGKILL")
		if err := cmd.Process.Kill(); err != nil {
			logger.Error("failed to send SIGKILL", "error", err)
		}
		<-waitErr
	}
}

func truncate(s string) string {
	if len(s) > maxOutputBytes {
		return s[:maxOutputBytes]
	}
	return s
}
