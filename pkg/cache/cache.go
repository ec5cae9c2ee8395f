// Package cache publishes app installs under ~/.cache/ozy.
//
// A published (name, version) directory is always complete: builds happen
// in a private staging directory under an exclusive file lock and only a
// successful build is moved (or linked) into place. Readers never lock.
package cache

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/arthur-debert/ozy/pkg/app"
	"github.com/arthur-debert/ozy/pkg/errors"
	"github.com/arthur-debert/ozy/pkg/installers"
	"github.com/arthur-debert/ozy/pkg/lock"
	"github.com/arthur-debert/ozy/pkg/logging"
	"github.com/arthur-debert/ozy/pkg/paths"
)

// BuildFunc fills dir with a usable install of d
type BuildFunc func(ctx context.Context, d *app.Descriptor, dir string) error

// Engine ensures apps are installed
type Engine struct {
	Paths paths.Paths
	Build BuildFunc
	// Stderr receives the contention notice
	Stderr io.Writer
}

// New returns an Engine that builds with runner
func New(p paths.Paths, runner *installers.Runner) *Engine {
	return &Engine{
		Paths: p,
		Build: func(ctx context.Context, d *app.Descriptor, dir string) error {
			return d.Build(ctx, runner, dir)
		},
		Stderr: os.Stderr,
	}
}

// IsInstalled reports whether d has a published install
func (e *Engine) IsInstalled(d *app.Descriptor) bool {
	return paths.IsDir(e.Paths.InstallPath(d.Name, d.Version))
}

// ExecutablePath is the absolute path of d's executable once published
func (e *Engine) ExecutablePath(d *app.Descriptor) string {
	return filepath.Join(e.Paths.InstallPath(d.Name, d.Version), d.ExecutablePath)
}

// EnsureInstalled returns once d is published, building it if needed. At
// most one build per (name, version) runs at a time across processes. A
// failed build removes every cached version of the app.
func (e *Engine) EnsureInstalled(ctx context.Context, d *app.Descriptor) error {
	if e.IsInstalled(d) {
		return nil
	}

	logger := logging.GetLogger("cache").With().
		Str("app", d.Name).
		Str("version", d.Version).
		Logger()

	appDir := e.Paths.AppCacheDir(d.Name)
	if err := os.MkdirAll(appDir, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while creating %s", appDir)
	}

	l, err := lock.AcquireNotify(e.Paths.InstallLockPath(d.Name, d.Version), func() {
		logger.Debug().Msg("Install lock is held elsewhere")
		_, _ = fmt.Fprintf(e.stderr(), "Waiting for concurrent install of %s v.%s to complete...\n", d.Name, d.Version)
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := l.Release(); err != nil {
			logger.Warn().Err(err).Msg("Failed to release install lock")
		}
	}()

	if e.IsInstalled(d) {
		logger.Debug().Msg("Installed by a concurrent process")
		return nil
	}

	if err := e.buildAndPublish(ctx, d); err != nil {
		logger.Debug().Err(err).Msg("Install failed, rolling back")
		if rerr := paths.DeleteIfExists(appDir); rerr != nil {
			logger.Warn().Err(rerr).Str("dir", appDir).Msg("Rollback failed")
		}
		if rerr := paths.DeleteIfExists(e.Paths.StagingPath(d.Name, d.Version)); rerr != nil {
			logger.Warn().Err(rerr).Msg("Failed to remove staging directory")
		}
		return errors.Wrapf(err, errors.GetErrorCode(err), "while installing %s v.%s", d.Name, d.Version).
			WithDetail("app", d.Name).
			WithDetail("version", d.Version)
	}

	logger.Info().Msg("Installed")
	return nil
}

func (e *Engine) buildAndPublish(ctx context.Context, d *app.Descriptor) error {
	staging := e.Paths.StagingPath(d.Name, d.Version)
	if err := paths.DeleteIfExists(staging); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(staging), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while creating %s", filepath.Dir(staging))
	}

	build := e.Build
	if build == nil {
		return errors.New(errors.ErrInternal, "cache engine has no build function")
	}
	if err := build(ctx, d, staging); err != nil {
		return err
	}
	if !paths.IsDir(staging) {
		return errors.Newf(errors.ErrInstall, "%s left no install directory", d.Installer.Describe())
	}

	published := e.Paths.InstallPath(d.Name, d.Version)
	// A dangling link from an earlier non-relocatable install may remain
	if err := paths.DeleteIfExists(published); err != nil {
		return err
	}

	if d.Relocatable {
		if err := os.Rename(staging, published); err != nil {
			return errors.Wrapf(err, errors.ErrIO, "while publishing %s", published)
		}
		return nil
	}
	if err := os.Symlink(staging, published); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while linking %s", published)
	}
	return nil
}

func (e *Engine) stderr() io.Writer {
	if e.Stderr == nil {
		return os.Stderr
	}
	return e.Stderr
}
