package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	ragerrors "github.com/Aman-CERP/claimrag/internal/errors"
)

// LockFileName is created inside the data directory while a build runs.
const LockFileName = ".build.lock"

// BuildLock serializes index builds across processes sharing a data
// directory.
type BuildLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewBuildLock returns an unlocked lock on <dir>/.build.lock.
func NewBuildLock(dir string) *BuildLock {
	path := filepath.Join(dir, LockFileName)
	return &BuildLock{
		path:  path,
		flock: flock.New(path),
	}
}

// Lock blocks until the lock is held.
func (l *BuildLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire build lock: %w", err)
	}
	l.locked = true
	return nil
}

// TryLock takes the lock without blocking. When another process holds it
// the returned error has code ErrCodeIndexLocked.
func (l *BuildLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire build lock: %w", err)
	}
	if !acquired {
		return ragerrors.New(ragerrors.ErrCodeIndexLocked,
			"another process is building the index", nil).
			WithDetail("lock", l.path).
			WithSuggestion("wait for the other build to finish, or remove " + l.path + " if no build is running")
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. It is safe on an unlocked BuildLock.
func (l *BuildLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release build lock: %w", err)
	}
	return nil
}

func (l *BuildLock) Path() string { return l.path }

func (l *BuildLock) IsLocked() bool { return l.locked }
