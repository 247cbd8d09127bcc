package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/smalyshev/TabulistBot/pkg/version"
)

const defaultConfigPath = "configs/tabulist.yaml"

func main() {
	if err := newRootCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "tabulist: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:    "tabulist",
		Usage:   "Keep wiki tabular data pages in sync with their SPARQL queries",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: defaultConfigPath, Usage: "path to the YAML config file"},
			&cli.BoolFlag{Name: "verbose", Usage: "log progress to stderr"},
		},
		Commands: []*cli.Command{
			ListCommand(),
			ShowCommand(),
			UpdateCommand(),
			UpdateAllCommand(),
			ServeCommand(),
			CheckCommand(),
			InitConfigCommand(),
		},
	}
}
