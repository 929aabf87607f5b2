package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/continuity-tools/artifact-index/internal/errors"
)

// lockRetryDelay is how often a waiting batch re-checks the lock.
const lockRetryDelay = 200 * time.Millisecond

// BatchLock serializes batch runs against one embedded database across
// processes. The lock file is <db>.lock next to the database.
type BatchLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewBatchLock creates the lock for the database at dbPath.
func NewBatchLock(dbPath string) *BatchLock {
	lockPath := dbPath + ".lock"
	return &BatchLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// Lock blocks until the lock is held or ctx is done.
func (l *BatchLock) Lock(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return errors.New(errors.ErrCodeLockFailed, "failed to create lock directory", err).
			WithDetail("path", l.path)
	}

	ok, err := l.flock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return errors.New(errors.ErrCodeLockFailed, "failed to acquire batch lock", err).
			WithDetail("path", l.path)
	}
	if !ok {
		return errors.New(errors.ErrCodeLockFailed, "batch lock not acquired", ctx.Err()).
			WithDetail("path", l.path)
	}
	l.locked = true
	return nil
}

// TryLock acquires the lock without waiting.
func (l *BatchLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock. Unlocking an unheld lock is a no-op.
func (l *BatchLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *BatchLock) Path() string { return l.path }
