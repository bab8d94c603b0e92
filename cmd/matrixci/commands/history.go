package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"git.home.luguber.info/inful/matrixci/internal/eventstore"
	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit   int    `short:"n" help:"Number of runs to show (default: config history.limit)"`
	History string `help:"Event history database (default: config history.path)"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	path := historyPath(cfg, h.History)
	if path == "" {
		return foundationerrors.ConfigError("run history is disabled; set history.path").Build()
	}
	store, err := openStore(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	limit := h.Limit
	if limit <= 0 {
		limit = cfg.History.Limit
	}
	proj := eventstore.NewRunHistoryProjection(store, limit)
	if err := proj.Rebuild(context.Background()); err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryEventStore, "failed to read run history").
			WithContext("path", path).
			Build()
	}

	out := g.out()
	runs := proj.History(limit)
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "no runs recorded")
		return nil
	}
	_, _ = fmt.Fprintf(out, "%-36s %-8s %-20s %-9s %-15s %s\n", "RUN", "STATUS", "STARTED", "DURATION", "PASS/FAIL/EXCL", "FIRST FAILURE")
	for _, r := range runs {
		status := r.Status
		if r.DryRun {
			status += "*"
		}
		counts := fmt.Sprintf("%d/%d/%d", r.Passed, r.Failed, r.Excluded)
		_, _ = fmt.Fprintf(out, "%-36s %-8s %-20s %-9s %-15s %s\n",
			r.RunID, status, r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Duration.Round(time.Second), counts, strings.TrimSpace(r.FirstFailure))
	}
	return nil
}
