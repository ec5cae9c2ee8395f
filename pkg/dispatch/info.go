package dispatch

import (
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/arthur-debert/ozy/pkg/app"
	"github.com/arthur-debert/ozy/pkg/config"
	"github.com/arthur-debert/ozy/pkg/errors"
	"github.com/arthur-debert/ozy/pkg/style"
)

const unset = "(unset)"

// Info prints the team URL, the team config name and every resolvable app.
// A hint for adding the bin directory to PATH comes first when it was
// missing at startup.
func (c *Controller) Info() error {
	p := style.NewPrinter(c.Stdout, false)
	if !c.PathHadBinDir {
		c.printPathWarning(p)
	}

	user, err := config.LoadUser(c.Paths.UserConfigPath(), c.Cwd)
	if err != nil {
		return err
	}
	teamURL := user.URL
	if teamURL == "" {
		teamURL = unset
	}
	_, _ = fmt.Fprintf(c.Stdout, "%s %s\n", p.Heading.Render("Team URL:"), teamURL)

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}
	name, ok := cfg.Name()
	if !ok {
		name = unset
	}
	_, _ = fmt.Fprintf(c.Stdout, "%s %s\n", p.Heading.Render("Team config name:"), name)

	descriptors, skipped, err := app.ResolveAll(cfg, c.Facts)
	if err != nil {
		return err
	}
	for _, s := range skipped {
		_, _ = fmt.Fprintf(c.Stderr, "Skipping incompatible app config for %s due to: %s\n", s.Name, s.Err)
	}
	for _, d := range descriptors {
		_, _ = fmt.Fprintf(c.Stdout, "  %s\n", d)
	}
	return nil
}

func (c *Controller) printPathWarning(p *style.Printer) {
	bin := c.Paths.BinDir()
	w := c.Stdout

	_, _ = fmt.Fprintln(w, p.Rule(80))
	_, _ = fmt.Fprintln(w, p.Warning.Render(fmt.Sprintf("Please ensure '%s' is on your path", bin)))
	_, _ = fmt.Fprintln(w, "bash shell users:")
	_, _ = fmt.Fprintln(w, p.Code.Render(fmt.Sprintf(`  bash$ echo -e '# ozy support\nexport PATH=%s:$PATH' >> ~/.bashrc`, bin)))
	_, _ = fmt.Fprintln(w, "  then restart your shell sessions")
	_, _ = fmt.Fprintln(w, "zsh shell users:")
	_, _ = fmt.Fprintln(w, p.Code.Render(fmt.Sprintf(`  zsh$ # path+=(%s)\nexport PATH`, bin)))
	_, _ = fmt.Fprintln(w, "fish shell users:")
	_, _ = fmt.Fprintln(w, p.Code.Render(fmt.Sprintf("  fish$ set --universal fish_user_paths %s $fish_user_paths", bin)))
	_, _ = fmt.Fprintln(w, p.Rule(80))
}

// MakefileConfig returns a make assignment of varName to the bin directory
// after checking that each named app resolves and that PATH finds it
// through the farm rather than some other install.
func (c *Controller) MakefileConfig(varName string, names []string) (string, error) {
	if !c.PathHadBinDir {
		return "", errors.New(errors.ErrInvalidInput, "The Ozy bin directory must be in the PATH")
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	for _, name := range names {
		if _, err := app.Resolve(name, cfg, c.Facts); err != nil {
			return "", errors.Newf(errors.ErrNotFound, "Missing ozy app '%s'", name)
		}
		found, err := exec.LookPath(name)
		if err != nil {
			return "", errors.Newf(errors.ErrNotFound, "Missing ozy app '%s' - not found on PATH", name)
		}
		if !sameTarget(found, c.Paths.AppLink(name)) {
			return "", errors.Newf(errors.ErrInvalidInput,
				"'%s' found in PATH earlier than ozy: results could be inconsistent (found at %s)", name, found)
		}
	}
	return fmt.Sprintf("%s:=%s", varName, c.Paths.BinDir()), nil
}

// sameTarget compares two paths after resolving symlinks
func sameTarget(a, b string) bool {
	ra, err := filepath.EvalSymlinks(a)
	if err != nil {
		return false
	}
	rb, err := filepath.EvalSymlinks(b)
	if err != nil {
		return false
	}
	ra, _ = filepath.Abs(ra)
	rb, _ = filepath.Abs(rb)
	return ra == rb
}
