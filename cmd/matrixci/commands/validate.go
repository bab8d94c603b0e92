package commands

import (
	"fmt"

	"git.home.luguber.info/inful/matrixci/internal/build"
)

// ValidateCmd implements the 'validate' command.
type ValidateCmd struct{}

func (v *ValidateCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	m, err := build.Check(cfg)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.out(), "%s is valid: %d entries (%d runnable, %d excluded)\n",
		root.Config, len(m.Entries), len(m.Runnable()), len(m.Excluded()))
	return nil
}
