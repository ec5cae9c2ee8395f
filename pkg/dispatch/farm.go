package dispatch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/ozy/pkg/config"
	"github.com/arthur-debert/ozy/pkg/errors"
	"github.com/arthur-debert/ozy/pkg/logging"
	"github.com/arthur-debert/ozy/pkg/paths"
)

// Init saves url as the team config, downloads it as the base config and
// installs the binary and symlink farm.
func (c *Controller) Init(ctx context.Context, url string) error {
	if err := c.Paths.EnsureDirs(); err != nil {
		return err
	}
	if err := config.SaveUser(c.Paths.UserConfigPath(), config.UserConfig{URL: url}); err != nil {
		return err
	}
	if err := c.Fetcher.Fetch(ctx, url, c.Paths.BaseConfigPath()); err != nil {
		return errors.Wrapf(err, errors.GetErrorCode(err), "while fetching team config from %s", url)
	}
	return c.Sync()
}

// Sync moves the running binary into the bin directory if it lives
// elsewhere and links every configured app name to it.
func (c *Controller) Sync() error {
	if err := c.Paths.EnsureDirs(); err != nil {
		return err
	}
	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}
	return c.syncWith(cfg)
}

func (c *Controller) syncWith(cfg config.Config) error {
	if err := c.relocateSelf(); err != nil {
		return err
	}

	names, err := cfg.AppNames()
	if err != nil {
		return err
	}

	logger := logging.GetLogger("dispatch")
	target := c.Paths.OzyBinary()
	for _, name := range names {
		// argv0 dispatch reads any ozy-prefixed name as ozy itself
		if strings.HasPrefix(name, paths.BinaryName) || filepath.Base(name) != name {
			logger.Warn().Str("app", name).Msg("App name cannot be linked into the bin directory")
			continue
		}
		link := c.Paths.AppLink(name)
		if err := paths.DeleteIfExists(link); err != nil {
			return err
		}
		if err := os.Symlink(target, link); err != nil {
			return errors.Wrapf(err, errors.ErrIO, "while linking %s", link)
		}
		logger.Trace().Str("link", link).Msg("Linked app")
	}
	return nil
}

// relocateSelf moves the running binary to the canonical bin location. A
// rename is tried first; across filesystems the binary is copied instead.
func (c *Controller) relocateSelf() error {
	if c.Self == "" {
		return nil
	}
	want := c.Paths.OzyBinary()
	if sameFile(c.Self, want) {
		return nil
	}

	logger := logging.GetLogger("dispatch")
	logger.Info().Str("from", c.Self).Str("to", want).Msg("Moving ozy into its bin directory")
	if err := os.Rename(c.Self, want); err == nil {
		c.Self = want
		return nil
	}
	if err := copyExecutable(c.Self, want); err != nil {
		return err
	}
	if err := os.Remove(c.Self); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while removing %s", c.Self)
	}
	c.Self = want
	return nil
}

func sameFile(a, b string) bool {
	if a == b {
		return true
	}
	ia, err := os.Stat(a)
	if err != nil {
		return false
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ia, ib)
}

func copyExecutable(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while opening %s", src)
	}
	defer func() { _ = in.Close() }()

	tmp := dest + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while creating %s", tmp)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return errors.Wrapf(err, errors.ErrIO, "while copying %s", src)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, errors.ErrIO, "while writing %s", tmp)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while replacing %s", dest)
	}
	return nil
}
