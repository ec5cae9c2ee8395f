package installers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/arthur-debert/ozy/pkg/errors"
	"mvdan.cc/sh/v3/shell"
)

// Step is one post-install command. Line is word-split when the step runs;
// Argv is used verbatim.
type Step struct {
	Line string
	Argv []string
}

func (s Step) String() string {
	if s.Argv != nil {
		return strings.Join(s.Argv, " ")
	}
	return s.Line
}

// ParsePostInstall reads an app's post_install value: a single command
// line, or a list whose items are command lines or argv lists.
func ParsePostInstall(app string, raw interface{}) ([]Step, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		step, err := lineStep(app, v)
		if err != nil {
			return nil, err
		}
		return []Step{step}, nil
	case []interface{}:
		steps := make([]Step, 0, len(v))
		for _, item := range v {
			switch it := item.(type) {
			case string:
				step, err := lineStep(app, it)
				if err != nil {
					return nil, err
				}
				steps = append(steps, step)
			case []interface{}:
				argv := make([]string, 0, len(it))
				for _, word := range it {
					s, ok := word.(string)
					if !ok {
						return nil, schemaError(app, "post_install", "a list of commands")
					}
					argv = append(argv, s)
				}
				if len(argv) == 0 {
					return nil, emptyStepError(app)
				}
				steps = append(steps, Step{Argv: argv})
			default:
				return nil, schemaError(app, "post_install", "a list of commands")
			}
		}
		return steps, nil
	}
	return nil, schemaError(app, "post_install", "a command or a list of commands")
}

func lineStep(app, line string) (Step, error) {
	words, err := shell.Fields(line, func(string) string { return "x" })
	if err != nil {
		return Step{}, errors.Wrapf(err, errors.ErrSchema, "invalid post_install command for %s", app)
	}
	if len(words) == 0 {
		return Step{}, emptyStepError(app)
	}
	return Step{Line: line}, nil
}

func emptyStepError(app string) error {
	return errors.Newf(errors.ErrSchema, "empty post_install command in config for %s", app).
		WithDetail("app", app)
}

// RunSteps runs each step in dir, in order, stopping at the first failure.
// Command lines see INSTALL_DIR expanded to dir.
func (r *Runner) RunSteps(ctx context.Context, dir string, steps []Step) error {
	env := func(name string) string {
		if name == EnvInstallDir {
			return dir
		}
		return os.Getenv(name)
	}

	for _, step := range steps {
		argv := step.Argv
		if argv == nil {
			words, err := shell.Fields(step.Line, env)
			if err != nil {
				return errors.Wrapf(err, errors.ErrInstall, "post install step '%s' is invalid", step.Line)
			}
			argv = words
		}
		_, _ = fmt.Fprintf(r.stderr(), "Running post install step '%s'\n", strings.Join(argv, " "))

		cmd := r.command(ctx, dir, argv[0], argv[1:], []string{EnvInstallDir + "=" + dir})
		if err := r.runToStderr(cmd); err != nil {
			return errors.Wrapf(err, errors.ErrInstall, "post install step '%s' failed", step.String()).
				WithDetail("dir", dir)
		}
	}
	return nil
}
