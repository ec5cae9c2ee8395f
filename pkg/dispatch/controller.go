// Package dispatch implements ozy's top-level flows: running an app,
// self-updating from the team config, maintaining the symlink farm and the
// bulk install/list/info operations behind the CLI.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/arthur-debert/ozy/pkg/app"
	"github.com/arthur-debert/ozy/pkg/cache"
	"github.com/arthur-debert/ozy/pkg/config"
	"github.com/arthur-debert/ozy/pkg/download"
	"github.com/arthur-debert/ozy/pkg/errors"
	"github.com/arthur-debert/ozy/pkg/installers"
	"github.com/arthur-debert/ozy/pkg/logging"
	"github.com/arthur-debert/ozy/pkg/paths"
)

// Fetcher downloads a URL to a local file
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// ExecFunc replaces the current process with path. It only returns on failure.
type ExecFunc func(path string, argv []string, env []string) error

// Controller wires the components together for one process
type Controller struct {
	Paths   paths.Paths
	Facts   config.HostFacts
	Engine  *cache.Engine
	Fetcher Fetcher
	// Version is the running dispatcher's own version
	Version string
	Exec    ExecFunc
	Stdout  io.Writer
	Stderr  io.Writer
	Cwd     string
	// Args is the process's original argv, replayed into a mandated update
	Args []string
	// Self is the path of the running dispatcher binary; empty skips relocation
	Self string
	// PathHadBinDir records whether PATH held the bin dir before startup
	PathHadBinDir bool
	Now           func() time.Time
}

// New returns a Controller for the real host
func New(p paths.Paths, version string) (*Controller, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrIO, "unable to determine the working directory")
	}
	self, err := os.Executable()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrIO, "unable to locate the running ozy binary")
	}

	return &Controller{
		Paths:   p,
		Facts:   config.DetectHostFacts(),
		Engine:  cache.New(p, installers.NewRunner()),
		Fetcher: download.Default,
		Version: version,
		Exec:    defaultExec,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Cwd:     cwd,
		Args:    os.Args,
		Self:    self,
		Now:     time.Now,
	}, nil
}

// LoadConfig loads the base config with the working directory's overrides
func (c *Controller) LoadConfig() (config.Config, error) {
	cfg, err := config.Load(c.Paths.BaseConfigPath(), c.Cwd)
	if err != nil {
		return nil, errors.Wrapf(err, errors.GetErrorCode(err), "while loading ozy config")
	}
	return cfg, nil
}

// ShouldUpdate reports whether ozy_update_every has elapsed since the base
// config was last written.
func (c *Controller) ShouldUpdate(cfg config.Config) bool {
	interval, ok := cfg.UpdateInterval()
	if !ok {
		return false
	}
	info, err := os.Stat(c.Paths.BaseConfigPath())
	if err != nil {
		return false
	}
	return c.now().Sub(info.ModTime()) >= interval
}

// Run installs name if needed and replaces this process with it. It only
// returns on failure.
func (c *Controller) Run(ctx context.Context, name string, args []string) error {
	logger := logging.GetLogger("dispatch").With().Str("app", name).Logger()

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if c.ShouldUpdate(cfg) {
		logger.Info().Msg("Team config is due for an update")
		if err := c.Update(ctx, ""); err != nil {
			// A mandated version that could not be run is terminal; any
			// other failure leaves the old config good enough to run with.
			if errors.GetErrorCode(err) == errors.ErrExec {
				return err
			}
			logger.Warn().Err(err).Msg("Update failed, continuing with the current config")
		} else if cfg, err = c.LoadConfig(); err != nil {
			return err
		}
	}

	d, err := app.Resolve(name, cfg, c.Facts)
	if err != nil {
		return errors.Wrapf(err, errors.GetErrorCode(err), "while attempting to find the app %s to run", name)
	}

	if err := c.Engine.EnsureInstalled(ctx, d); err != nil {
		return err
	}

	exe := c.Engine.ExecutablePath(d)
	logging.LogCommand(logger, exe, args)
	err = c.exec(exe, append([]string{exe}, args...), os.Environ())
	return errors.Wrapf(err, errors.ErrExec, "failed to execute process %s", exe).
		WithDetail("path", exe)
}

// Install ensures each named app is installed. Unknown or broken apps are
// errors here, unlike InstallAll.
func (c *Controller) Install(ctx context.Context, names []string) error {
	if err := c.Paths.EnsureDirs(); err != nil {
		return err
	}
	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	for _, name := range names {
		d, err := app.Resolve(name, cfg, c.Facts)
		if err != nil {
			return err
		}
		if err := c.Engine.EnsureInstalled(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// InstallAll ensures every resolvable app is installed, skipping apps whose
// config cannot be resolved.
func (c *Controller) InstallAll(ctx context.Context) error {
	if err := c.Paths.EnsureDirs(); err != nil {
		return err
	}
	descriptors, err := c.resolveAll()
	if err != nil {
		return err
	}

	for _, d := range descriptors {
		_, _ = fmt.Fprintf(c.Stderr, "Installing %s\n", d.Name)
		if err := c.Engine.EnsureInstalled(ctx, d); err != nil {
			return errors.Wrapf(err, errors.GetErrorCode(err), "while ensuring app %s is installed", d.Name)
		}
	}
	return nil
}

// List prints the name of every resolvable app
func (c *Controller) List() error {
	descriptors, err := c.resolveAll()
	if err != nil {
		return err
	}
	for _, d := range descriptors {
		_, _ = fmt.Fprintln(c.Stdout, d.Name)
	}
	return nil
}

// Clean removes the config and cache trees
func (c *Controller) Clean() error {
	return c.Paths.RemoveAll()
}

func (c *Controller) resolveAll() ([]*app.Descriptor, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, err
	}
	descriptors, skipped, err := app.ResolveAll(cfg, c.Facts)
	if err != nil {
		return nil, err
	}
	for _, s := range skipped {
		_, _ = fmt.Fprintf(c.Stderr, "Skipping incompatible app config for %s due to: %s\n", s.Name, s.Err)
	}
	return descriptors, nil
}

func (c *Controller) exec(path string, argv, env []string) error {
	logger := logging.GetLogger("dispatch")
	logger.Debug().Str("path", path).Strs("argv", argv).Msg("Replacing process")
	execFn := c.Exec
	if execFn == nil {
		execFn = defaultExec
	}
	if err := execFn(path, argv, env); err != nil {
		return err
	}
	return errors.New(errors.ErrInternal, "exec returned without replacing the process")
}

func (c *Controller) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}
