package installers

import (
	"context"
	"os"
	"path/filepath"

	"github.com/arthur-debert/ozy/pkg/errors"
	"github.com/arthur-debert/ozy/pkg/paths"
)

// condaCreate builds a fresh environment at envDir holding pkgs. The
// package cache is private to this call so concurrent installs of
// different apps never share a half-written cache.
func (r *Runner) condaCreate(ctx context.Context, p PackageEnv, envDir string, pkgs []string) error {
	if err := os.MkdirAll(filepath.Dir(envDir), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while creating %s", filepath.Dir(envDir))
	}
	// Some conda implementations refuse to create into an existing path
	if err := paths.DeleteIfExists(envDir); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while clearing %s", envDir)
	}

	pkgsDir, cleanup, err := r.scratchDir("ozy-conda-pkgs-")
	if err != nil {
		return err
	}
	defer cleanup()

	args := []string{"create", "-y", "-p", envDir}
	for _, ch := range p.Channels {
		args = append(args, "-c", ch)
	}
	args = append(args, pkgs...)

	env := append([]string{"CONDA_PKGS_DIRS=" + pkgsDir}, envPairs(p.Env)...)

	condaBin := p.CondaBin
	if condaBin == "" {
		condaBin = DefaultCondaBin
	}
	if err := r.runToStderr(r.command(ctx, "", condaBin, args, env)); err != nil {
		return errors.Wrap(err, errors.ErrInstall, "conda installation exited with error")
	}
	return nil
}

func (r *Runner) installConda(ctx context.Context, i *Conda, dir string) error {
	versioned := i.Package + "=" + i.Version
	if !i.PyInstaller {
		return r.condaCreate(ctx, i.PackageEnv, dir, []string{versioned})
	}

	if i.ExecutablePath == "" {
		return errors.Newf(errors.ErrSchema, "expected a string executable_path in config for %s", i.Name)
	}

	work, cleanup, err := r.scratchDir("ozy-conda-installer-")
	if err != nil {
		return err
	}
	defer cleanup()

	buildEnv := filepath.Join(work, "env")
	if err := r.condaCreate(ctx, i.PackageEnv, buildEnv, []string{versioned, "pyinstaller"}); err != nil {
		return err
	}

	distPath := filepath.Dir(filepath.Join(dir, i.ExecutablePath))
	if err := os.MkdirAll(distPath, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while creating %s", distPath)
	}
	args := []string{
		"--onefile",
		"--name", i.Name,
		"--distpath", distPath,
		filepath.Join(buildEnv, i.ExecutablePath),
	}
	// pyinstaller leaves its build tree and spec file in the working directory
	cmd := r.command(ctx, work, filepath.Join(buildEnv, "bin", "pyinstaller"), args, nil)
	return r.runToStderr(cmd)
}

func (r *Runner) installPip(ctx context.Context, i *Pip, dir string) error {
	if err := r.condaCreate(ctx, i.PackageEnv, dir, []string{"pip"}); err != nil {
		return err
	}
	pip := filepath.Join(dir, "bin", "pip")
	cmd := r.command(ctx, "", pip, []string{"install", i.Package + "==" + i.Version}, nil)
	if err := r.runToStderr(cmd); err != nil {
		return errors.Wrap(err, errors.ErrInstall, "pip installation exited with error")
	}
	return nil
}
