// Package commands implements the matrixci subcommands.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/matrixci/internal/config"
)

// Global carries state shared by every subcommand.
type Global struct {
	Logger *slog.Logger
	Stdout io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"matrixci.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run      RunCmd      `cmd:"" help:"Run the test matrix"`
	List     ListCmd     `cmd:"" help:"Print the expanded matrix, including excluded entries"`
	Plan     PlanCmd     `cmd:"" help:"Print the commands each stage would run"`
	Validate ValidateCmd `cmd:"" help:"Validate the configuration and requirement manifests"`
	Init     InitCmd     `cmd:"" help:"Write an example configuration file"`
	History  HistoryCmd  `cmd:"" help:"List past runs from the event history"`
	Daemon   DaemonCmd   `cmd:"" help:"Run the matrix on a schedule"`
}

// logLevel is shared by the default handler so a loaded config can lower or raise it.
var logLevel = new(slog.LevelVar)

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logLevel.Set(slog.LevelInfo)
	if c.Verbose {
		logLevel.Set(slog.LevelDebug)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return nil
}

// LoadConfig loads the configuration and applies its log level unless
// --verbose already raised it.
func (c *CLI) LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	if !c.Verbose {
		logLevel.Set(parseLevel(cfg.LogLevel))
	}
	return cfg, nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
