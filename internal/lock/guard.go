// Package lock guards against two gateway processes sharing one audit
// database and results directory. The gateway assumes it is the only writer
// of both, so a second instance must be refused at startup.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrHeld means another gateway process already holds the instance lock.
var ErrHeld = errors.New("gateway lock already held")

// Guard is the running gateway's instance lock. The underlying flock(2) is
// tied to the open descriptor, so the Guard must stay alive for the life of
// the process; the kernel drops the lock if the process dies.
type Guard struct {
	path string
	f    *os.File
}

// Acquire takes the exclusive instance lock at path and records the current
// PID in the lock file so `scopegw system status` can report which process
// is running. When another instance holds the lock the returned error wraps
// ErrHeld and names the holder's PID if it can be read.
func Acquire(path string) (*Guard, error) {
	if path == "" {
		return nil, fmt.Errorf("gateway lock path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open gateway lock: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if pid, perr := OwnerPID(path); perr == nil {
			return nil, fmt.Errorf("%w by pid %d", ErrHeld, pid)
		}
		return nil, ErrHeld
	}

	if err := stampOwner(f); err != nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
		return nil, err
	}

	return &Guard{path: path, f: f}, nil
}

// stampOwner replaces the lock file contents with the current PID.
func stampOwner(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate gateway lock: %w", err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		return fmt.Errorf("record gateway pid: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync gateway lock: %w", err)
	}
	return nil
}

// OwnerPID reports the PID recorded in the lock file at path. It does not
// check whether that process is still alive; the flock itself does that.
func OwnerPID(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("parse gateway lock %s: %w", path, err)
	}
	return pid, nil
}

// Path returns the lock file location.
func (g *Guard) Path() string { return g.path }

// Release drops the flock and removes the PID record so a status check run
// after shutdown reports the gateway as stopped. Safe to call twice.
func (g *Guard) Release() error {
	if g == nil || g.f == nil {
		return nil
	}
	_ = syscall.Flock(int(g.f.Fd()), syscall.LOCK_UN)
	err := g.f.Close()
	g.f = nil
	_ = os.Remove(g.path)
	return err
}
