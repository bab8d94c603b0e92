package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/matrixci/cmd/matrixci/commands"
	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
	"git.home.luguber.info/inful/matrixci/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cli := &commands.CLI{}
	parser, err := kong.New(cli,
		kong.Name("matrixci"),
		kong.Description("Run a Python package's test matrix across interpreter versions and install channels."),
		kong.Vars{"version": version.Version},
		kong.UsageOnError(),
	)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return foundationerrors.ExitInternal
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return foundationerrors.ExitUsage
	}

	global := &commands.Global{Logger: slog.Default(), Stdout: os.Stdout}
	if err := kctx.Run(global, cli); err != nil {
		return foundationerrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
	return foundationerrors.ExitOK
}
