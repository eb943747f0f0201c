package executil

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunCapturesOutput(t *testing.T) {
	t.Parallel()

	res := Run(context.Background(), []string{"echo", "hello"}, 10*time.Second)
	if res.Err != nil {
		t.Fatalf("Run: %v", res.Err)
	}
	if !res.Success || res.ExitCode != 0 {
		t.Fatalf("expected success, got %+v", res)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Fatalf("unexpected stdout: %q", res.Stdout)
	}
	if res.Duration <= 0 {
		t.Fatal("duration not recorded")
	}
}

func TestRunNonZeroExit(t *testing.T) {
	t.Parallel()

	res := Run(context.Background(), []string{"false"}, 10*time.Second)
	if res.Err != nil {
		t.Fatalf("non-zero exit should not be an execution error: %v", res.Err)
	}
	if res.Success {
		t.Fatal("expected Success=false for non-zero exit")
	}
	if res.ExitCode == 0 {
		t.Fatal("expected non-zero exit code")
	}
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	t.Parallel()

	start := time.Now()
	res := Run(context.Background(), []string{"sleep", "60"}, 200*time.Millisecond)
	if res.Success {
		t.Fatal("expected failure on timeout")
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "timed out") {
		t.Fatalf("expected timeout error, got %v", res.Err)
	}
	// The process must be dead well before its natural 60s runtime.
	if time.Since(start) > 30*time.Second {
		t.Fatal("timeout did not terminate the process promptly")
	}
}

func TestRunContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	res := Run(ctx, []string{"sleep", "60"}, time.Minute)
	if res.Success {
		t.Fatal("expected failure on cancellation")
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "cancelled") {
		t.Fatalf("expected cancellation error, got %v", res.Err)
	}
}

func TestRunMissingBinary(t *testing.T) {
	t.Parallel()

	res := Run(context.Background(), []string{"definitely-not-a-real-binary-xyz"}, time.Second)
	if res.Err == nil {
		t.Fatal("expected start error for missing binary")
	}
	if res.Success {
		t.Fatal("expected Success=false")
	}
}

func TestRunEmptyCommand(t *testing.T) {
	t.Parallel()

	res := Run(context.Background(), nil, time.Second)
	if res.Err == nil {
		t.Fatal("expected error for empty command")
	}
}
