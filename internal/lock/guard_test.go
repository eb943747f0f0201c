package lock

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireRecordsOwnerPID(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "audit.pid")
	g, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(func() { _ = g.Release() })

	pid, err := OwnerPID(path)
	if err != nil {
		t.Fatalf("OwnerPID: %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("recorded pid = %d, want %d", pid, os.Getpid())
	}
}

func TestAcquireRejectsSecondInstance(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "audit.pid")
	g, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(func() { _ = g.Release() })

	// flock treats separately opened descriptors independently, so a second
	// Acquire conflicts even from the same process.
	_, err = Acquire(path)
	if !errors.Is(err, ErrHeld) {
		t.Fatalf("second Acquire err = %v, want ErrHeld", err)
	}
	if !strings.Contains(err.Error(), "pid") {
		t.Fatalf("held error should name the holder pid, got: %v", err)
	}
}

func TestReleaseRemovesLockFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "audit.pid")
	g, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := g.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("lock file should be removed after release, stat err = %v", err)
	}
	// Second release is a no-op.
	if err := g.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}

func TestOwnerPIDRejectsGarbage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "audit.pid")
	if err := os.WriteFile(path, []byte("not-a-pid\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OwnerPID(path); err == nil {
		t.Fatal("expected parse error for garbage lock file")
	}
}
