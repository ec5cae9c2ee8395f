package main

import (
	"os"

	"github.com/arthur-debert/ozy/internal/cli"
)

func main() {
	os.Exit(cli.Main(os.Args))
}
