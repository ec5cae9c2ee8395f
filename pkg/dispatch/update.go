package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/ozy/pkg/config"
	"github.com/arthur-debert/ozy/pkg/errors"
	"github.com/arthur-debert/ozy/pkg/lock"
	"github.com/arthur-debert/ozy/pkg/logging"
	"github.com/google/uuid"
	"golang.org/x/mod/semver"
)

// Update refreshes the base config from url, or from the saved team URL
// when url is empty. A team config demanding a newer ozy downloads that
// binary and re-executes into it with the original arguments; in that case
// Update only returns if the re-exec failed.
func (c *Controller) Update(ctx context.Context, url string) error {
	logger := logging.GetLogger("dispatch")
	done := logging.LogOperationStart(logger, "update")
	defer done()

	if err := c.Paths.EnsureDirs(); err != nil {
		return err
	}
	l, err := lock.AcquireNotify(c.Paths.OzyLockPath(), func() {
		_, _ = fmt.Fprintln(c.Stderr, "Waiting for a concurrent ozy update to complete...")
	})
	if err != nil {
		return err
	}
	defer func() { _ = l.Release() }()

	if url == "" {
		user, err := config.LoadUser(c.Paths.UserConfigPath(), c.Cwd)
		if err != nil {
			return err
		}
		url = user.URL
	}
	if url == "" {
		return errors.New(errors.ErrInvalidInput, "no team config URL is set: run 'ozy init <url>' or pass --url")
	}

	staged := c.Paths.NewBaseConfigPath()
	if err := c.Fetcher.Fetch(ctx, url, staged); err != nil {
		return errors.Wrapf(err, errors.GetErrorCode(err), "while fetching team config from %s", url)
	}
	remote, err := config.Load(staged, c.Cwd)
	if err != nil {
		return err
	}

	newer, remoteVersion, err := c.isNewer(remote)
	if err != nil {
		return err
	}
	if newer {
		err := c.reexecInto(ctx, remote, remoteVersion)
		return errors.Wrapf(err, errors.ErrExec, "mandated update to ozy %s failed", remoteVersion)
	}

	if err := os.Rename(staged, c.Paths.BaseConfigPath()); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while replacing %s", c.Paths.BaseConfigPath())
	}
	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}
	if err := c.syncWith(cfg); err != nil {
		return err
	}
	if err := config.SaveUser(c.Paths.UserConfigPath(), config.UserConfig{URL: url}); err != nil {
		return err
	}

	logger.Info().Str("url", url).Msg("Team config updated")
	return nil
}

// isNewer compares the team config's ozy_version with the running version
func (c *Controller) isNewer(remote config.Config) (bool, string, error) {
	logger := logging.GetLogger("dispatch")

	raw, ok := remote.String(config.KeyOzyVersion)
	if !ok {
		logger.Debug().Msg("Team config does not pin an ozy version")
		return false, "", nil
	}
	want := canonicalSemver(raw)
	if !semver.IsValid(want) {
		return false, raw, errors.Newf(errors.ErrSchema, "invalid ozy_version %s in the team config", raw)
	}
	have := canonicalSemver(c.Version)
	if !semver.IsValid(have) {
		logger.Warn().Str("version", c.Version).Msg("Running a non-release ozy build, skipping the version check")
		return false, raw, nil
	}
	return semver.Compare(want, have) > 0, strings.TrimPrefix(want, "v"), nil
}

func (c *Controller) reexecInto(ctx context.Context, remote config.Config, version string) error {
	_, _ = fmt.Fprintf(c.Stderr, "Ozy update to %s is mandated by your team config\n", version)

	tmpl, ok := remote.String(config.KeyOzyDownload)
	if !ok {
		return errors.New(errors.ErrSchema, "expected a string ozy_download in the team config")
	}
	slice := map[string]interface{}{
		config.KeyOzyDownload: tmpl,
		"version":             version,
	}
	config.Substitute(slice, c.Facts)
	binURL := slice[config.KeyOzyDownload].(string)
	_, _ = fmt.Fprintf(c.Stderr, "Downloading from %s\n", binURL)

	dest := filepath.Join(c.Paths.BinDir(), "ozy.tmp."+uuid.NewString())
	if err := c.Fetcher.Fetch(ctx, binURL, dest); err != nil {
		return errors.Wrapf(err, errors.GetErrorCode(err), "while downloading ozy %s", version)
	}
	if err := os.Chmod(dest, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while making %s executable", dest)
	}

	err := c.exec(dest, c.Args, os.Environ())
	return errors.Wrapf(err, errors.ErrExec, "failed to execute process %s", dest).
		WithDetail("path", dest)
}

func canonicalSemver(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}
