package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/matrixci/internal/build"
	"git.home.luguber.info/inful/matrixci/internal/pipeline"
)

// PlanCmd implements the 'plan' command.
type PlanCmd struct {
	Entry []string `short:"e" help:"Describe only these entry IDs (repeatable)"`
}

func (p *PlanCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	plans, err := build.Plan(context.Background(), cfg, p.Entry)
	if err != nil {
		return err
	}

	out := g.out()
	for i, ep := range plans {
		if i > 0 {
			_, _ = fmt.Fprintln(out)
		}
		if ep.Entry.Excluded {
			_, _ = fmt.Fprintf(out, "%s (excluded: %s)\n", ep.Entry.ID, ep.Entry.ExcludeReason)
			continue
		}
		_, _ = fmt.Fprintf(out, "%s\n", ep.Entry.ID)
		for _, sp := range ep.Stages {
			switch {
			case sp.Skipped:
				_, _ = fmt.Fprintf(out, "  %s: skipped\n", sp.Stage)
			case sp.Stage == pipeline.StageReport:
				_, _ = fmt.Fprintf(out, "  %s:\n    upload %s via %s\n", sp.Stage, cfg.Coverage.File, cfg.Coverage.Uploader)
			case len(sp.Commands) == 0:
				_, _ = fmt.Fprintf(out, "  %s: (nothing to run)\n", sp.Stage)
			default:
				_, _ = fmt.Fprintf(out, "  %s:\n", sp.Stage)
				for _, c := range sp.Commands {
					if c.Dir != "" {
						_, _ = fmt.Fprintf(out, "    (cd %s) %s\n", c.Dir, c.String())
					} else {
						_, _ = fmt.Fprintf(out, "    %s\n", c.String())
					}
				}
			}
		}
	}
	return nil
}
