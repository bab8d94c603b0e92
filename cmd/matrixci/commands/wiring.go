package commands

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/eventstore"
	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
	"git.home.luguber.info/inful/matrixci/internal/notify"
	"git.home.luguber.info/inful/matrixci/internal/pipeline"
)

// backend bundles the optional event history and notifier behind a bus.
type backend struct {
	bus      *pipeline.Bus
	store    *eventstore.SQLiteStore
	notifier *notify.Notifier
}

// historyPath resolves the history database, preferring the flag value.
func historyPath(cfg *config.Config, flag string) string {
	if flag != "" {
		return flag
	}
	return cfg.ManifestPath(cfg.History.Path)
}

func openStore(path string) (*eventstore.SQLiteStore, error) {
	store, err := eventstore.NewSQLiteStore(path)
	if err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryEventStore, "failed to open run history").
			WithContext("path", path).
			Build()
	}
	return store, nil
}

// openBackend wires the bus. A NATS connection failure only disables
// notifications.
func openBackend(cfg *config.Config, history string) (*backend, error) {
	rt := &backend{}
	if path := historyPath(cfg, history); path != "" {
		store, err := openStore(path)
		if err != nil {
			return nil, err
		}
		rt.store = store
		rt.bus = pipeline.NewBusWithEventStore(store)
	} else {
		rt.bus = pipeline.NewBus()
	}
	rt.bus.SubscribeAll(logEvent)

	if cfg.Notify.NATSURL != "" {
		n, err := notify.Connect(cfg.Notify.NATSURL, cfg.Notify.Subject)
		if err != nil {
			slog.Warn("Run notifications disabled", logfields.Error(err))
		} else {
			rt.notifier = n
			for _, t := range notify.Types {
				rt.bus.Subscribe(t, n.Handle)
			}
		}
	}
	return rt, nil
}

func logEvent(ctx context.Context, e eventstore.Event) error {
	slog.DebugContext(ctx, "Event", logfields.RunID(e.RunID()), slog.String("type", e.Type()))
	return nil
}

func (rt *backend) Close() {
	if n := rt.bus.DeadLetters().Count(); n > 0 {
		slog.Warn("Some run events were not delivered", slog.Int("count", n))
	}
	if rt.notifier != nil {
		rt.notifier.Close()
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			slog.Warn("Failed to close run history", logfields.Error(err))
		}
	}
}
