package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/ozy/internal/version"
	"github.com/arthur-debert/ozy/pkg/dispatch"
	"github.com/arthur-debert/ozy/pkg/logging"
	"github.com/arthur-debert/ozy/pkg/paths"
	"github.com/arthur-debert/ozy/pkg/style"
)

// Main runs ozy for argv and returns the process exit status. Invoked under
// any name not starting with "ozy" (a link in the bin directory), argv[0]
// names the app to run and the rest of argv is passed to it untouched.
func Main(argv []string) int {
	p, err := paths.New("")
	if err == nil {
		err = p.EnsureDirs()
	}
	if err != nil {
		return fail(os.Stderr, err)
	}

	hadBinDir := ensureBinDirOnPath(p)
	newController := func() (*dispatch.Controller, error) {
		c, err := dispatch.New(p, version.Version)
		if err != nil {
			return nil, err
		}
		c.Args = argv
		c.PathHadBinDir = hadBinDir
		return c, nil
	}

	if err := Dispatch(context.Background(), argv, newController); err != nil {
		return fail(os.Stderr, err)
	}
	return 0
}

// Dispatch routes argv by the name ozy was invoked under: the command tree
// for names starting with "ozy", otherwise a run of the app named argv[0].
func Dispatch(ctx context.Context, argv []string, newController ControllerFactory) error {
	invokedAs := filepath.Base(argv[0])
	if strings.HasPrefix(invokedAs, paths.BinaryName) {
		root := NewRootCmd(newController)
		root.SetArgs(argv[1:])
		return root.ExecuteContext(ctx)
	}
	logging.SetupLogger(0)
	return runAs(ctx, newController, invokedAs, argv[1:])
}

func runAs(ctx context.Context, newController ControllerFactory, name string, args []string) error {
	c, err := newController()
	if err != nil {
		return err
	}
	return c.Run(ctx, name, args)
}

// ensureBinDirOnPath prepends the bin directory to PATH for this process
// and its children, reporting whether it was already there.
func ensureBinDirOnPath(p paths.Paths) bool {
	current := os.Getenv(paths.EnvPath)
	if paths.PathListContains(current, p.BinDir()) {
		return true
	}
	_ = os.Setenv(paths.EnvPath, paths.PrependToPathList(current, p.BinDir()))
	return false
}

func fail(w io.Writer, err error) int {
	printer := style.NewPrinter(w, false)
	_, _ = fmt.Fprintln(w, printer.Error.Render(fmt.Sprintf(MsgErrorFormat, err)))
	return 1
}
