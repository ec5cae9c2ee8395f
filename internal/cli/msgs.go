package cli

// Short messages (one-liners)
const (
	// Command descriptions
	MsgRootShort           = "Installs and runs team-pinned versions of command line apps"
	MsgCleanShort          = "Cleans up the ozy-controlled directory"
	MsgInstallShort        = "Ensures the named applications are installed at their current prevailing versions"
	MsgInstallAllShort     = "Ensures all applications are installed at their current prevailing versions"
	MsgInitShort           = "Initialise and install ozy, with configuration from the given URL"
	MsgInfoShort           = "Print information about the installation and configuration"
	MsgListShort           = "List all the managed apps"
	MsgMakefileConfigShort = "Checks apps, and prints a single-line Makefile variable"
	MsgRunShort            = "Runs the given application"
	MsgUpdateShort         = "Update base configuration from the remote URL"
	MsgSyncShort           = "Synchronise any local changes"
	MsgVersionShort        = "Print version information"
	MsgCompletionShort     = "Generate shell completion script"

	// Flag descriptions
	MsgFlagVerbose = "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)"
	MsgFlagURL     = "Team config URL to update from instead of the saved one"

	// Output formats
	MsgVersionFormat  = "ozy version %s\n"
	MsgCommitFormat   = "Commit: %s\n"
	MsgBuiltFormat    = "Built:  %s\n"
	MsgMakefileError  = "$(error \"%s\")\n"
	MsgErrorFormat    = "Error: %v"
	MsgInitDoneFormat = "ozy is installed in %s\n"
)

// Long descriptions
const (
	MsgRootLong = `ozy keeps a team on the same versions of its command line tools.

A team config published at a URL names each app, its version and how to
install it. Every app gets a link in the ozy bin directory; running that link
installs the pinned version on first use and then hands over to it.`

	MsgMakefileConfigLong = `Use as an argument to $(eval). Errors are output as $(error) directives
to report in make.

The given variable is defined to be the ozy binary directory, so any app will be
$(VAR)/app_name. If undefined, you know ozy isn't installed.`

	MsgMakefileConfigExample = `  $ cat Makefile
  $(eval $(shell ozy makefile-config OZY_BIN_DIR terraform))
  ifndef OZY_BIN_DIR
  $(error please install ozy)
  endif

  install:
      $(OZY_BIN_DIR)/terraform apply`

	MsgSyncLong = `If you're defining new applications in local override files, use this to
ensure the relevant symlinks are created in your ozy bin directory.`

	MsgRunLong = `Installs the application at the version pinned by the team config if needed,
then replaces ozy with it. Invoking an app's link in the ozy bin directory
does the same thing.`

	MsgCompletionLong = `To load completions:

Bash:
  $ source <(ozy completion bash)

Zsh:
  $ ozy completion zsh > "${fpath[1]}/_ozy"

Fish:
  $ ozy completion fish | source

PowerShell:
  PS> ozy completion powershell | Out-String | Invoke-Expression`
)
