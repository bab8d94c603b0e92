package pipeline

import (
	"context"

	"git.home.luguber.info/inful/matrixci/internal/matrix"
	"git.home.luguber.info/inful/matrixci/internal/shell"
)

// StagePlan lists the commands one stage would run.
type StagePlan struct {
	Stage    StageName
	Commands []shell.Command
	Skipped  bool
}

// Describe runs entry's stages against a recording executor and returns the
// commands each stage would execute. Nothing is executed.
func (d *Deps) Describe(ctx context.Context, entry matrix.Entry, workDir string) ([]StagePlan, error) {
	rec := shell.NewDryRunExecutor()
	dry := *d
	dry.Executor = rec
	dry.DryRun = true

	st := NewEntryState("plan", entry, workDir)
	var plans []StagePlan
	for _, def := range dry.EntryStages(entry) {
		if def.Fn == nil {
			plans = append(plans, StagePlan{Stage: def.Name, Skipped: true})
			continue
		}
		before := len(rec.Commands())
		if err := def.Fn(ctx, st); err != nil {
			return plans, err
		}
		plans = append(plans, StagePlan{Stage: def.Name, Commands: rec.Commands()[before:]})
	}
	return plans, nil
}
