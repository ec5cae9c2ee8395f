//go:build !unix

package lock

import (
	"os"

	"github.com/arthur-debert/ozy/pkg/errors"
)

func openLockFile(path string) (*os.File, error) {
	return nil, errors.Newf(errors.ErrLock, "file locking is not supported on this platform (%s)", path)
}

func tryLock(*os.File, string) (bool, error) { return false, nil }

func blockingLock(*os.File, string) error { return nil }

func unlock(*os.File) {}

func stillLinked(*os.File, string) (bool, error) { return true, nil }
