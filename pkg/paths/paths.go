// Package paths provides the single HOME-derived directory layout for ozy.
// It is computed once at startup and passed to every component that needs
// a location on disk, instead of each component re-deriving it.
package paths

import (
	"os"
	"path/filepath"

	"github.com/arthur-debert/ozy/pkg/errors"
)

// Environment variable names
const (
	// EnvHome is the standard home directory variable
	EnvHome = "HOME"

	// EnvPath is the executable search path
	EnvPath = "PATH"
)

// Directory and file names under the managed trees. These define the
// on-disk layout shared by every ozy binary on the host and are not
// user-configurable.
const (
	OzyDirName          = ".ozy"
	BinDirName          = "bin"
	CacheParentDirName  = ".cache"
	CacheDirName        = "ozy"
	InternalInstallName = "internal_install"

	BaseConfigFile    = "ozy.yaml"
	NewBaseConfigFile = "ozy.yaml.tmp"
	UserConfigFile    = "ozy.user.yaml"
	LocalConfigFile   = ".ozy.yaml"
	OzyLockFile       = "ozy.lock"
	LockSuffix        = ".lock"

	// BinaryName is the canonical name of the dispatcher inside BinDir
	BinaryName = "ozy"
)

// Paths provides the managed directory layout
type Paths interface {
	Home() string
	OzyDir() string
	BinDir() string
	OzyBinary() string
	AppLink(name string) string
	CacheDir() string
	InternalInstallDir() string
	BaseConfigPath() string
	NewBaseConfigPath() string
	UserConfigPath() string
	OzyLockPath() string
	AppCacheDir(app string) string
	InstallPath(app, version string) string
	InstallLockPath(app, version string) string
	StagingPath(app, version string) string
	EnsureDirs() error
	RemoveAll() error
}

type paths struct {
	home string
}

// New creates a Paths rooted at home. An empty home is discovered from
// the environment.
func New(home string) (Paths, error) {
	if home == "" {
		discovered, err := GetHomeDirectory()
		if err != nil {
			return nil, err
		}
		home = discovered
	}

	abs, err := filepath.Abs(home)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrIO, "failed to get absolute path for home %s", home)
	}
	return &paths{home: abs}, nil
}

func (p *paths) Home() string { return p.home }

// OzyDir is ~/.ozy, holding the configuration files and the bin directory
func (p *paths) OzyDir() string { return filepath.Join(p.home, OzyDirName) }

// BinDir is ~/.ozy/bin, the symlink farm
func (p *paths) BinDir() string { return filepath.Join(p.OzyDir(), BinDirName) }

// OzyBinary is the canonical location of the dispatcher binary
func (p *paths) OzyBinary() string { return filepath.Join(p.BinDir(), BinaryName) }

// AppLink is the farm entry for an app name
func (p *paths) AppLink(name string) string { return filepath.Join(p.BinDir(), name) }

// CacheDir is ~/.cache/ozy
func (p *paths) CacheDir() string {
	return filepath.Join(p.home, CacheParentDirName, CacheDirName)
}

func (p *paths) InternalInstallDir() string {
	return filepath.Join(p.CacheDir(), InternalInstallName)
}

func (p *paths) BaseConfigPath() string    { return filepath.Join(p.OzyDir(), BaseConfigFile) }
func (p *paths) NewBaseConfigPath() string { return filepath.Join(p.OzyDir(), NewBaseConfigFile) }
func (p *paths) UserConfigPath() string    { return filepath.Join(p.OzyDir(), UserConfigFile) }
func (p *paths) OzyLockPath() string       { return filepath.Join(p.OzyDir(), OzyLockFile) }

// AppCacheDir holds every published version of one app
func (p *paths) AppCacheDir(app string) string {
	return filepath.Join(p.CacheDir(), app)
}

// InstallPath is the published path for (app, version)
func (p *paths) InstallPath(app, version string) string {
	return filepath.Join(p.AppCacheDir(app), version)
}

// InstallLockPath sits next to the published path, never inside it
func (p *paths) InstallLockPath(app, version string) string {
	return filepath.Join(p.AppCacheDir(app), version+LockSuffix)
}

// StagingPath is deterministic per (app, version) so a crashed attempt's
// leftovers are found and discarded by the next one.
func (p *paths) StagingPath(app, version string) string {
	return filepath.Join(p.InternalInstallDir(), app, version)
}

// EnsureDirs creates the config, bin and cache directories
func (p *paths) EnsureDirs() error {
	for _, dir := range []string{p.OzyDir(), p.BinDir(), p.CacheDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, errors.ErrIO, "while creating %s", dir)
		}
	}
	return nil
}

// RemoveAll deletes the config tree and the cache tree
func (p *paths) RemoveAll() error {
	for _, dir := range []string{p.OzyDir(), p.CacheDir()} {
		if err := DeleteIfExists(dir); err != nil {
			return err
		}
	}
	return nil
}
