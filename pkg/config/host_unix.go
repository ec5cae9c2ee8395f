//go:build unix

package config

import "golang.org/x/sys/unix"

func unameMachine() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return ""
	}
	return unix.ByteSliceToString(uts.Machine[:])
}
