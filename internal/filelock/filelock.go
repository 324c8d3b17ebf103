// Package filelock provides cross-process advisory locking for files under
// the sandbox.
//
// Lock identity derives from the resource path: every locker of the same
// logical file contends on the same <path>.lock sidecar, regardless of which
// process it lives in. Locking is advisory: it serializes cooperating
// writers, it does not stop an unrelated process from ignoring it.
//
// Built on [github.com/gofrs/flock], which maps to flock(2) on Unix and
// LockFileEx on Windows.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// ErrTimeout indicates the lock could not be acquired within the caller's
// timeout. Retryable; callers must not treat it as fatal to the process.
var ErrTimeout = errors.New("lock acquisition timed out")

// retryInterval is the poll interval while waiting for a contended lock.
const retryInterval = 50 * time.Millisecond

// Lock is a held advisory lock. Release must be called on every exit path;
// it is idempotent, so a deferred Release alongside an explicit one is safe.
type Lock struct {
	fl        *flock.Flock
	exclusive bool

	once       sync.Once
	releaseErr error
}

// Acquire takes an advisory lock on the sidecar lock file for resource,
// blocking up to timeout. With exclusive false a shared (read) lock is taken
// instead. The lock file's parent directory is created if missing.
//
// Returns ErrTimeout (wrapped) when the lock stays contended past the
// timeout. The error never includes the resource's absolute path.
func Acquire(ctx context.Context, resource string, timeout time.Duration, exclusive bool) (*Lock, error) {
	lockPath := resource + ".lock"

	if dir := filepath.Dir(lockPath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating lock directory: %w", err)
		}
	}

	fl := flock.New(lockPath)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = fl.TryLockContext(ctx, retryInterval)
	} else {
		ok, err = fl.TryRLockContext(ctx, retryInterval)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %q contended for %s", ErrTimeout, filepath.Base(resource), timeout)
		}
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q contended for %s", ErrTimeout, filepath.Base(resource), timeout)
	}

	return &Lock{fl: fl, exclusive: exclusive}, nil
}

// Release unlocks and best-effort deletes the sidecar lock file. Safe to
// call more than once; only the first call does work.
func (l *Lock) Release() error {
	l.once.Do(func() {
		if err := l.fl.Unlock(); err != nil {
			l.releaseErr = fmt.Errorf("releasing lock: %w", err)
			return
		}
		// Best effort: another process may have re-acquired the sidecar
		// already, in which case the unlink harmlessly removes a file they
		// hold open, or fails. Either way the lock semantics are unaffected.
		_ = os.Remove(l.fl.Path())
	})
	return l.releaseErr
}

// Path returns the sidecar lock file path.
func (l *Lock) Path() string { return l.fl.Path() }

// Exclusive reports whether the lock was taken in exclusive (write) mode.
func (l *Lock) Exclusive() bool { return l.exclusive }
