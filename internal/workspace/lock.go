package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"git.home.luguber.info/inful/matrixci/internal/logfields"
)

// Lock is an exclusive advisory lock held on a named resource.
type Lock struct {
	fl *flock.Flock
}

// Unlock releases the lock.
func (l *Lock) Unlock() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}

// Path is the lock file location.
func (l *Lock) Path() string { return l.fl.Path() }

// AcquireLock blocks until it holds an exclusive lock on name under dir/locks or ctx ends.
func AcquireLock(ctx context.Context, dir, name string) (*Lock, error) {
	lockDir := filepath.Join(dir, "locks")
	if err := os.MkdirAll(lockDir, 0o750); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	path := filepath.Join(lockDir, safeName(name)+".lock")
	fl := flock.New(path)

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		slog.Info("Waiting for lock", logfields.Path(path))
		locked, err = fl.TryLockContext(ctx, 100*time.Millisecond)
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", path, err)
		}
		if !locked {
			return nil, fmt.Errorf("lock %s: not acquired", path)
		}
	}
	return &Lock{fl: fl}, nil
}

// TryAcquireLock takes the lock without waiting; ok is false when another holder exists.
func TryAcquireLock(dir, name string) (*Lock, bool, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, false, fmt.Errorf("create lock directory: %w", err)
	}
	fl := flock.New(filepath.Join(dir, safeName(name)+".lock"))
	ok, err := fl.TryLock()
	if err != nil || !ok {
		return nil, false, err
	}
	return &Lock{fl: fl}, true, nil
}

// Lock acquires an environment lock under the manager's base directory.
func (m *Manager) Lock(ctx context.Context, name string) (*Lock, error) {
	return AcquireLock(ctx, m.baseDir, name)
}
