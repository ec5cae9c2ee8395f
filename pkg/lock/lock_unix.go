//go:build unix

package lock

import (
	stderrors "errors"
	"os"

	"github.com/arthur-debert/ozy/pkg/errors"
	"golang.org/x/sys/unix"
)

func openLockFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrLock, "failed to open lock file %s", path)
	}
	return f, nil
}

func tryLock(f *os.File, path string) (bool, error) {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == nil {
		return true, nil
	}
	if stderrors.Is(err, unix.EWOULDBLOCK) {
		return false, nil
	}
	return false, errors.Wrapf(err, errors.ErrLock, "failed to lock %s", path)
}

func blockingLock(f *os.File, path string) error {
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX)
		if err == nil {
			return nil
		}
		if stderrors.Is(err, unix.EINTR) {
			continue
		}
		return errors.Wrapf(err, errors.ErrLock, "failed to lock %s", path)
	}
}

func unlock(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
}

// stillLinked reports whether path still names the file f has open
func stillLinked(f *os.File, path string) (bool, error) {
	var held, onDisk unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &held); err != nil {
		return false, errors.Wrapf(err, errors.ErrLock, "failed to stat lock file %s", path)
	}
	if err := unix.Stat(path, &onDisk); err != nil {
		if stderrors.Is(err, unix.ENOENT) {
			return false, nil
		}
		return false, errors.Wrapf(err, errors.ErrLock, "failed to stat lock file %s", path)
	}
	return held.Dev == onDisk.Dev && held.Ino == onDisk.Ino, nil
}
