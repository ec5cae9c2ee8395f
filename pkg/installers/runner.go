package installers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/arthur-debert/ozy/pkg/download"
	"github.com/arthur-debert/ozy/pkg/errors"
	"github.com/arthur-debert/ozy/pkg/logging"
)

// DefaultShell runs shell_install scripts
const DefaultShell = "/bin/bash"

// Fetcher retrieves a URL into a local file, verifying sha256Hex when set
type Fetcher interface {
	FetchVerified(ctx context.Context, url, dest, sha256Hex string) error
}

// Runner executes installers
type Runner struct {
	Fetcher Fetcher
	// Stderr receives announcements and every subprocess's output
	Stderr io.Writer
	// Stdin is handed to package managers, some of which misbehave without a terminal
	Stdin io.Reader
	// TempDir is the parent for scratch directories; empty means os.TempDir
	TempDir string
	// Shell interprets shell_install scripts
	Shell string
}

// NewRunner returns a Runner wired to the real network and terminal
func NewRunner() *Runner {
	return &Runner{
		Fetcher: download.Default,
		Stderr:  os.Stderr,
		Stdin:   os.Stdin,
		Shell:   DefaultShell,
	}
}

// Install runs inst against dir. Failures are reported as INSTALL errors
// naming the backend.
func (r *Runner) Install(ctx context.Context, inst Installer, dir string) error {
	logger := logging.GetLogger("installers")
	done := logging.LogOperationStart(logger, inst.Describe())
	defer done()

	_, _ = fmt.Fprintf(r.stderr(), "Running %s\n", inst.Describe())

	var err error
	switch i := inst.(type) {
	case *SingleFile:
		err = r.installSingleFile(ctx, i, dir)
	case *SingleBinaryZip:
		err = r.installSingleBinaryZip(ctx, i, dir)
	case *Tarball:
		err = r.installTarball(ctx, i, dir)
	case *Zip:
		err = r.installZip(ctx, i, dir)
	case *Shell:
		err = r.installShell(ctx, i, dir)
	case *Conda:
		err = r.installConda(ctx, i, dir)
	case *Pip:
		err = r.installPip(ctx, i, dir)
	default:
		err = errors.Newf(errors.ErrInternal, "no backend for installer kind %s", inst.Kind())
	}

	if err != nil {
		logger.Debug().Err(err).Str("dir", dir).Msg("Installer failed")
		return errors.Wrapf(err, errors.ErrInstall, "%s failed", inst.Describe()).
			WithDetail("kind", string(inst.Kind()))
	}
	return nil
}

func (r *Runner) stderr() io.Writer {
	if r.Stderr == nil {
		return os.Stderr
	}
	return r.Stderr
}

func (r *Runner) fetcher() Fetcher {
	if r.Fetcher == nil {
		return download.Default
	}
	return r.Fetcher
}

// scratchDir creates a private temp directory removed by the returned func
func (r *Runner) scratchDir(prefix string) (string, func(), error) {
	dir, err := os.MkdirTemp(r.TempDir, prefix)
	if err != nil {
		return "", func() {}, errors.Wrap(err, errors.ErrIO, "while creating a temp directory")
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

// fetchToScratch downloads d.URL into a new scratch directory as name
func (r *Runner) fetchToScratch(ctx context.Context, d Download, name string) (string, func(), error) {
	dir, cleanup, err := r.scratchDir("ozy-download-")
	if err != nil {
		return "", cleanup, err
	}
	path := filepath.Join(dir, name)
	if err := r.fetcher().FetchVerified(ctx, d.URL, path, d.SHA256); err != nil {
		cleanup()
		return "", func() {}, err
	}
	return path, cleanup, nil
}

func (r *Runner) installSingleFile(ctx context.Context, i *SingleFile, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while creating %s", dir)
	}
	dest := filepath.Join(dir, i.Name)
	if err := r.fetcher().FetchVerified(ctx, i.URL, dest, i.SHA256); err != nil {
		return err
	}
	if err := os.Chmod(dest, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while making %s executable", dest)
	}
	return nil
}

func (r *Runner) installSingleBinaryZip(ctx context.Context, i *SingleBinaryZip, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while creating %s", dir)
	}
	archive, cleanup, err := r.fetchToScratch(ctx, i.Download, "archive.zip")
	if err != nil {
		return err
	}
	defer cleanup()
	return extractSingleZipEntry(archive, filepath.Join(dir, i.Name))
}

func (r *Runner) installTarball(ctx context.Context, i *Tarball, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while creating %s", dir)
	}
	archive, cleanup, err := r.fetchToScratch(ctx, i.Download, "archive")
	if err != nil {
		return err
	}
	defer cleanup()
	return extractTarball(archive, dir)
}

func (r *Runner) installZip(ctx context.Context, i *Zip, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while creating %s", dir)
	}
	archive, cleanup, err := r.fetchToScratch(ctx, i.Download, "archive.zip")
	if err != nil {
		return err
	}
	defer cleanup()
	if err := extractZip(archive, dir); err != nil {
		return err
	}
	if i.ExecutablePath != "" {
		exe := filepath.Join(dir, i.ExecutablePath)
		if _, err := os.Stat(exe); err == nil {
			if err := os.Chmod(exe, 0755); err != nil {
				return errors.Wrapf(err, errors.ErrIO, "while making %s executable", exe)
			}
		}
	}
	return nil
}

// command builds a subprocess with extra environment entries appended to
// the inherited environment.
func (r *Runner) command(ctx context.Context, dir, name string, args []string, extraEnv []string) *exec.Cmd {
	logging.LogCommand(logging.GetLogger("installers"), name, args)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), extraEnv...)
	return cmd
}

// runToStderr runs cmd with stdout folded into stderr and stdin inherited
func (r *Runner) runToStderr(cmd *exec.Cmd) error {
	cmd.Stdout = r.stderr()
	cmd.Stderr = r.stderr()
	cmd.Stdin = r.Stdin
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, errors.ErrExec, "%s exited with error", filepath.Base(cmd.Path))
	}
	return nil
}

// runStreamingLines runs cmd with stdout and stderr merged and relayed to
// Stderr one line at a time.
func (r *Runner) runStreamingLines(cmd *exec.Cmd) error {
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	relayed := make(chan struct{})
	go func() {
		defer close(relayed)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			_, _ = fmt.Fprintln(r.stderr(), scanner.Text())
		}
		_, _ = io.Copy(io.Discard, pr)
	}()

	err := cmd.Run()
	_ = pw.Close()
	<-relayed

	if err != nil {
		return errors.Wrapf(err, errors.ErrExec, "%s exited with error", filepath.Base(cmd.Path))
	}
	return nil
}
