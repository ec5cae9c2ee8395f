// Package lock provides exclusive, cross-process advisory file locks.
//
// Locks are held on a dedicated file and released when the holder calls
// Release or its process exits; the kernel drops the lock with the file
// descriptor, so a crashed holder never wedges other processes.
package lock

import (
	"os"
	"path/filepath"

	"github.com/arthur-debert/ozy/pkg/errors"
	"github.com/arthur-debert/ozy/pkg/logging"
)

// Lock is an exclusive lock on a file
type Lock struct {
	path string
	file *os.File
}

// Path returns the lock file path
func (l *Lock) Path() string {
	return l.path
}

// Acquire blocks until the exclusive lock on path is held
func Acquire(path string) (*Lock, error) {
	return AcquireNotify(path, nil)
}

// AcquireNotify is Acquire with a callback invoked once, before blocking,
// when another holder already has the lock.
//
// A holder may unlink the lock file, or its directory, before releasing.
// Whoever was waiting on the old file then holds a lock nobody else can
// see, so once held the lock is checked against what path names now and
// taken again on the current file when they differ.
func AcquireNotify(path string, onContended func()) (*Lock, error) {
	logger := logging.GetLogger("lock")
	notified := false
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			// the directory may have gone with the file
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, errors.Wrapf(err, errors.ErrLock, "failed to recreate lock directory for %s", path)
			}
		}
		f, err := openLockFile(path)
		if err != nil {
			return nil, err
		}

		held, err := tryLock(f, path)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		if !held {
			logger.Debug().Str("path", path).Msg("Lock is held elsewhere, waiting")
			if onContended != nil && !notified {
				onContended()
			}
			notified = true
			if err := blockingLock(f, path); err != nil {
				_ = f.Close()
				return nil, err
			}
		}

		linked, err := stillLinked(f, path)
		if err != nil {
			unlock(f)
			_ = f.Close()
			return nil, err
		}
		if linked {
			logger.Trace().Str("path", path).Msg("Lock acquired")
			return &Lock{path: path, file: f}, nil
		}
		logger.Debug().Str("path", path).Msg("Lock file was replaced while waiting, retrying")
		unlock(f)
		_ = f.Close()
	}
}

// Release unlocks and closes the lock file. Calling it more than once is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlock(l.file)
	err := l.file.Close()
	l.file = nil
	logger := logging.GetLogger("lock")
	logger.Trace().Str("path", l.path).Msg("Lock released")
	return err
}
