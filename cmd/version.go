package main

import (
	"os"

	"github.com/urfave/cli/v2"

	docanchor "github.com/docanchor/docanchor"
)

func versionCmd(*cli.Context) error {
	docanchor.PrintVersion(os.Stdout)
	return nil
}
