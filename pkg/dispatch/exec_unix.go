//go:build unix

package dispatch

import (
	"golang.org/x/sys/unix"
)

// defaultExec replaces the process image. Locks held through O_CLOEXEC
// descriptors are released by the kernel at this point.
func defaultExec(path string, argv, env []string) error {
	return unix.Exec(path, argv, env)
}
