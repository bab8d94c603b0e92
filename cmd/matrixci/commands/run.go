package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/matrixci/internal/build"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
	"git.home.luguber.info/inful/matrixci/internal/metrics"
	"git.home.luguber.info/inful/matrixci/internal/report"
)

// RunCmd implements the 'run' command.
type RunCmd struct {
	Entry         []string `short:"e" help:"Run only these entry IDs (repeatable)"`
	Parallel      int      `short:"p" help:"Maximum entries running at once (default: config parallel)"`
	DryRun        bool     `name:"dry-run" help:"Print commands instead of executing them"`
	Workspace     string   `help:"Workspace base directory (default: config workspace.dir)"`
	KeepWorkspace bool     `name:"keep-workspace" help:"Keep environments and logs even when the run passes"`
	History       string   `help:"Event history database (default: config history.path)"`
	MetricsFile   string   `name:"metrics-file" help:"Write Prometheus textfile metrics to this path"`
	Summary       string   `help:"Write a Markdown summary, or HTML when the path ends in .html"`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return r.run(ctx, g, root, build.NewService())
}

// run executes the matrix with svc; tests inject a service with fake collaborators.
func (r *RunCmd) run(ctx context.Context, g *Global, root *CLI, svc *build.DefaultService) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}

	rt, err := openBackend(cfg, r.History)
	if err != nil {
		return err
	}
	defer rt.Close()

	reg := metrics.NewRegistry()
	svc = svc.WithBus(rt.bus).WithRecorder(metrics.NewPrometheusRecorder(reg))

	out := g.out()
	res, err := svc.Run(ctx, build.Request{
		Config:        cfg,
		ConfigPath:    root.Config,
		EntryIDs:      r.Entry,
		Parallel:      r.Parallel,
		DryRun:        r.DryRun,
		Console:       out,
		WorkspaceDir:  r.Workspace,
		KeepWorkspace: r.KeepWorkspace,
	})
	if err != nil {
		return err
	}

	_, _ = fmt.Fprint(out, report.Terminal(res))

	if r.Summary != "" {
		if err := report.Write(r.Summary, res); err != nil {
			slog.Warn("Failed to write run summary", logfields.Path(r.Summary), logfields.Error(err))
		} else {
			slog.Info("Run summary written", logfields.Path(r.Summary))
		}
	}
	if r.MetricsFile != "" {
		if err := metrics.WriteTextfile(r.MetricsFile, reg); err != nil {
			slog.Warn("Failed to write metrics textfile", logfields.Error(err))
		}
	}
	if !res.Success && res.Workspace != "" {
		_, _ = fmt.Fprintf(out, "Stage logs kept in %s\n", res.Workspace)
	}
	return res.Err()
}
