// pattern: Imperative Shell

// Package lock serializes descriptor mutations across peniche processes
// working on the same workspace.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockDir      = "target"
	lockFileName = ".peniche.lock"

	// DefaultWait bounds how long Acquire waits for another process.
	DefaultWait = 10 * time.Second
	retryDelay  = 50 * time.Millisecond
)

// ErrBusy indicates another process held the lock for the whole wait.
var ErrBusy = errors.New("workspace is locked by another peniche process")

// Lock is a held advisory lock on a workspace.
type Lock struct {
	fl *flock.Flock
}

// Path returns the lock file used for the workspace rooted at root.
func Path(root string) string {
	return filepath.Join(root, lockDir, lockFileName)
}

// Acquire takes the workspace lock, waiting up to wait for a concurrent
// holder to release it.
func Acquire(ctx context.Context, root string, wait time.Duration) (*Lock, error) {
	lockPath := Path(root)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	fl := flock.New(lockPath)
	locked, err := fl.TryLockContext(waitCtx, retryDelay)
	if locked {
		return &Lock{fl: fl}, nil
	}
	// The caller giving up is not contention.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("waiting for workspace lock: %w", ctxErr)
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	return nil, fmt.Errorf("%w (%s)", ErrBusy, lockPath)
}

// Release unlocks. The lock file is left in place for the next holder.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
