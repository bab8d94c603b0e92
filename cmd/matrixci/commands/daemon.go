package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/matrixci/internal/build"
	"git.home.luguber.info/inful/matrixci/internal/daemon"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
	"git.home.luguber.info/inful/matrixci/internal/metrics"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	DataDir string `short:"d" name:"data-dir" help:"Data directory for the daemon lock, workspaces and history (default: config daemon.data_dir)"`
	Listen  string `help:"Address serving /metrics and /healthz (default: config daemon.listen)"`
	Now     bool   `help:"Start one run immediately"`
}

func (d *DaemonCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}

	rt, err := openBackend(cfg, "")
	if err != nil {
		return err
	}
	defer rt.Close()

	reg := metrics.NewRegistry()
	svc := build.NewService().
		WithBus(rt.bus).
		WithRecorder(metrics.NewPrometheusRecorder(reg))

	dmn, err := daemon.New(daemon.Options{
		ConfigPath: root.Config,
		Config:     cfg,
		Service:    svc,
		Registry:   reg,
		DataDir:    d.DataDir,
		Listen:     d.Listen,
		RunOnStart: d.Now,
		OnResult: func(res *build.RunResult, err error) {
			if err != nil || res == nil {
				return
			}
			if runErr := res.Err(); runErr != nil {
				slog.Warn("Scheduled run failed", logfields.RunID(res.RunID), logfields.Error(runErr))
			}
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("Starting daemon mode", logfields.Schedule(cfg.Daemon.Schedule))
	if err := dmn.Run(ctx); err != nil {
		return err
	}
	slog.Info("Daemon stopped successfully")
	return nil
}
