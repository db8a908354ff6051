package main

import (
	"fmt"
	"os"

	"github.com/garrettallen/cardboards/cmd/boardctl/cli"
)

var version = "0.0.1-dev"

func main() {
	root := cli.NewRootCommand(version)

	root.AddCommand(cli.NewTreeCommand())
	root.AddCommand(cli.NewMigrateCommand())
	root.AddCommand(cli.NewTokenCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
