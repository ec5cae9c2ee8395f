package cli

import (
	"fmt"

	"github.com/arthur-debert/ozy/internal/version"
	"github.com/arthur-debert/ozy/pkg/dispatch"
	"github.com/arthur-debert/ozy/pkg/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// ControllerFactory builds the controller on first use, so help, version
// and completion never touch the managed directories.
type ControllerFactory func() (*dispatch.Controller, error)

// NewRootCmd creates and returns the root command
func NewRootCmd(newController ControllerFactory) *cobra.Command {
	var verbosity int

	rootCmd := &cobra.Command{
		Use:     "ozy",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		// root flags given before the subcommand are parsed here, which
		// leaves run's arguments untouched
		TraverseChildren: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		DisableAutoGenTag: true,
	}

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", MsgFlagVerbose)

	rootCmd.AddCommand(newCleanCmd(newController))
	rootCmd.AddCommand(newInstallCmd(newController))
	rootCmd.AddCommand(newInstallAllCmd(newController))
	rootCmd.AddCommand(newInitCmd(newController))
	rootCmd.AddCommand(newInfoCmd(newController))
	rootCmd.AddCommand(newListCmd(newController))
	rootCmd.AddCommand(newMakefileConfigCmd(newController))
	rootCmd.AddCommand(newRunCmd(newController))
	rootCmd.AddCommand(newUpdateCmd(newController))
	rootCmd.AddCommand(newSyncCmd(newController))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

// withController adapts a controller operation into a cobra RunE
func withController(newController ControllerFactory, fn func(cmd *cobra.Command, c *dispatch.Controller, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := newController()
		if err != nil {
			return err
		}
		c.Stdout = cmd.OutOrStdout()
		c.Stderr = cmd.ErrOrStderr()
		return fn(cmd, c, args)
	}
}

func newCleanCmd(newController ControllerFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: MsgCleanShort,
		Args:  cobra.NoArgs,
		RunE: withController(newController, func(_ *cobra.Command, c *dispatch.Controller, _ []string) error {
			return c.Clean()
		}),
	}
}

func newInstallCmd(newController ControllerFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "install <app>...",
		Short: MsgInstallShort,
		Args:  cobra.ArbitraryArgs,
		RunE: withController(newController, func(cmd *cobra.Command, c *dispatch.Controller, args []string) error {
			return c.Install(cmd.Context(), args)
		}),
	}
}

func newInstallAllCmd(newController ControllerFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "install-all",
		Short: MsgInstallAllShort,
		Args:  cobra.NoArgs,
		RunE: withController(newController, func(cmd *cobra.Command, c *dispatch.Controller, _ []string) error {
			return c.InstallAll(cmd.Context())
		}),
	}
}

func newInitCmd(newController ControllerFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "init <url>",
		Short: MsgInitShort,
		Args:  cobra.ExactArgs(1),
		RunE: withController(newController, func(cmd *cobra.Command, c *dispatch.Controller, args []string) error {
			if err := c.Init(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), MsgInitDoneFormat, c.Paths.BinDir())
			return nil
		}),
	}
}

func newInfoCmd(newController ControllerFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: MsgInfoShort,
		Args:  cobra.NoArgs,
		RunE: withController(newController, func(_ *cobra.Command, c *dispatch.Controller, _ []string) error {
			return c.Info()
		}),
	}
}

func newListCmd(newController ControllerFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: MsgListShort,
		Args:  cobra.NoArgs,
		RunE: withController(newController, func(_ *cobra.Command, c *dispatch.Controller, _ []string) error {
			return c.List()
		}),
	}
}

func newMakefileConfigCmd(newController ControllerFactory) *cobra.Command {
	return &cobra.Command{
		Use:     "makefile-config <var> <app>...",
		Short:   MsgMakefileConfigShort,
		Long:    MsgMakefileConfigLong,
		Example: MsgMakefileConfigExample,
		Args:    cobra.MinimumNArgs(1),
		RunE: withController(newController, func(cmd *cobra.Command, c *dispatch.Controller, args []string) error {
			out := cmd.OutOrStdout()
			line, err := c.MakefileConfig(args[0], args[1:])
			if err != nil {
				// make reports the failure; the command itself succeeds
				_, _ = fmt.Fprintf(out, MsgMakefileError, err)
				return nil
			}
			_, _ = fmt.Fprintln(out, line)
			return nil
		}),
	}
}

func newRunCmd(newController ControllerFactory) *cobra.Command {
	return &cobra.Command{
		Use:                "run <app> [args...]",
		Short:              MsgRunShort,
		Long:               MsgRunLong,
		Args:               cobra.MinimumNArgs(1),
		DisableFlagParsing: true,
		RunE: withController(newController, func(cmd *cobra.Command, c *dispatch.Controller, args []string) error {
			return c.Run(cmd.Context(), args[0], args[1:])
		}),
	}
}

func newUpdateCmd(newController ControllerFactory) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "update",
		Short: MsgUpdateShort,
		Args:  cobra.NoArgs,
		RunE: withController(newController, func(cmd *cobra.Command, c *dispatch.Controller, _ []string) error {
			return c.Update(cmd.Context(), url)
		}),
	}
	cmd.Flags().StringVarP(&url, "url", "u", "", MsgFlagURL)
	return cmd
}

func newSyncCmd(newController ControllerFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: MsgSyncShort,
		Long:  MsgSyncLong,
		Args:  cobra.NoArgs,
		RunE: withController(newController, func(_ *cobra.Command, c *dispatch.Controller, _ []string) error {
			return c.Sync()
		}),
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: MsgVersionShort,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, MsgVersionFormat, version.Version)
			if version.Commit != "" {
				_, _ = fmt.Fprintf(out, MsgCommitFormat, version.Commit)
			}
			if version.Date != "" {
				_, _ = fmt.Fprintf(out, MsgBuiltFormat, version.Date)
			}
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 MsgCompletionShort,
		Long:                  MsgCompletionLong,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}
