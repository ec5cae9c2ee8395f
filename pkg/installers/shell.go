package installers

import (
	"context"
	"os"
	"path/filepath"

	"github.com/arthur-debert/ozy/pkg/errors"
	"mvdan.cc/sh/v3/syntax"
)

// EnvInstallDir tells shell installers and post-install steps where to write
const EnvInstallDir = "INSTALL_DIR"

func (r *Runner) installShell(ctx context.Context, i *Shell, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while creating %s", dir)
	}
	script, cleanup, err := r.fetchToScratch(ctx, i.Download, "installer.sh")
	if err != nil {
		return err
	}
	defer cleanup()

	if err := checkScript(script); err != nil {
		return err
	}

	env := []string{EnvInstallDir + "=" + dir}
	if i.ExtraPath != "" {
		env = append(env, "PATH="+i.ExtraPath+string(os.PathListSeparator)+os.Getenv("PATH"))
	}

	shell := r.Shell
	if shell == "" {
		shell = DefaultShell
	}
	args := append([]string{script}, i.Args...)
	cmd := r.command(ctx, filepath.Dir(script), shell, args, env)
	return r.runStreamingLines(cmd)
}

// checkScript parses a downloaded installer so that a truncated or
// mistyped download fails before any of it runs.
func checkScript(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while opening %s", path)
	}
	defer func() { _ = f.Close() }()

	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	if _, err := parser.Parse(f, filepath.Base(path)); err != nil {
		return errors.Wrap(err, errors.ErrInstall, "installer script does not parse")
	}
	return nil
}
