//go:build !unix

package dispatch

import (
	stderrors "errors"
	"os"
	"os/exec"
)

// defaultExec has no process replacement to lean on here, so it runs the
// child to completion and exits with its status.
func defaultExec(path string, argv, env []string) error {
	cmd := exec.Command(path, argv[1:]...)
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		os.Exit(exitErr.ExitCode())
	}
	if err != nil {
		return err
	}
	os.Exit(0)
	return nil
}
