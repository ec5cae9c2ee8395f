package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra/doc"

	"github.com/arthur-debert/ozy/internal/cli"
	"github.com/arthur-debert/ozy/internal/version"
)

func main() {
	// the man page never runs a command, so no controller is needed
	rootCmd := cli.NewRootCmd(nil)

	header := &doc.GenManHeader{
		Title:   "OZY",
		Section: "1",
		Source:  "ozy " + version.Version,
		Manual:  "ozy manual",
	}

	err := doc.GenMan(rootCmd, header, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating man page: %v\n", err)
		os.Exit(1)
	}
}
