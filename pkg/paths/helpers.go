package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/ozy/pkg/errors"
)

// GetHomeDirectory returns HOME, falling back to os.UserHomeDir.
func GetHomeDirectory() (string, error) {
	if home := os.Getenv(EnvHome); home != "" {
		return home, nil
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return home, nil
	}

	return "", errors.New(errors.ErrIO, "unable to determine home directory: HOME is unset")
}

// DeleteIfExists removes path whether it is a file, a symlink or a tree.
// A missing path is not an error.
func DeleteIfExists(path string) error {
	if _, err := os.Lstat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, errors.ErrIO, "while inspecting %s", path)
	}
	if err := os.RemoveAll(path); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while deleting %s", path)
	}
	return nil
}

// IsDir reports whether path resolves (following symlinks) to a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// PathListContains reports whether dir appears in a PATH-style list,
// comparing symlink-resolved absolute paths.
func PathListContains(pathList, dir string) bool {
	want := canonical(dir)
	for _, entry := range filepath.SplitList(pathList) {
		if entry == "" {
			continue
		}
		if canonical(entry) == want {
			return true
		}
	}
	return false
}

// PrependToPathList puts dir in front of pathList
func PrependToPathList(pathList, dir string) string {
	if pathList == "" {
		return dir
	}
	return dir + string(os.PathListSeparator) + pathList
}

func canonical(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		p = resolved
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return strings.TrimRight(filepath.Clean(p), string(os.PathSeparator))
}
