package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/matrixci/internal/eventstore"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
)

// EventStore persists published events. *eventstore.SQLiteStore satisfies it.
type EventStore = eventstore.Appender

// Handler processes an event; return error to signal failure.
type Handler func(ctx context.Context, e eventstore.Event) error

// Bus is a simple synchronous pub/sub event bus. Publishing is safe from
// concurrent entries.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
	all         []Handler
	eventStore  EventStore // optional event store for persistence
	dlq         *DeadLetterQueue
}

func NewBus() *Bus {
	return &Bus{subscribers: map[string][]Handler{}, dlq: NewDeadLetterQueue()}
}

// NewBusWithEventStore creates a bus that persists events to the store.
func NewBusWithEventStore(store EventStore) *Bus {
	b := NewBus()
	b.eventStore = store
	return b
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.subscribers[eventType] = append(b.subscribers[eventType], h)
	b.mu.Unlock()
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.all = append(b.all, h)
	b.mu.Unlock()
}

// Publish persists e when a store is configured, then delivers it to all
// handlers. Persistence and handler failures are logged and dead-lettered;
// they never fail the run.
func (b *Bus) Publish(ctx context.Context, e eventstore.Event) {
	if b.eventStore != nil {
		if err := eventstore.AppendEvent(ctx, b.eventStore, e); err != nil {
			slog.Warn("Failed to persist event", logfields.RunID(e.RunID()), slog.String("event", e.Type()), logfields.Error(err))
			b.dlq.Enqueue(FailedEvent{Event: e, Error: err, Persist: true})
		}
	}

	b.mu.RLock()
	hs := append(append([]Handler(nil), b.subscribers[e.Type()]...), b.all...)
	b.mu.RUnlock()
	for _, h := range hs {
		if err := h(ctx, e); err != nil {
			slog.Warn("Event handler failed", logfields.RunID(e.RunID()), slog.String("event", e.Type()), logfields.Error(err))
			b.dlq.Enqueue(FailedEvent{Event: e, Error: err})
		}
	}
}

// DeadLetters exposes events that could not be persisted or handled.
func (b *Bus) DeadLetters() *DeadLetterQueue { return b.dlq }

// RetryPersist appends dead-lettered events to the store again and returns how
// many are still undelivered.
func (b *Bus) RetryPersist(ctx context.Context) int {
	if b.eventStore == nil {
		return b.dlq.Count()
	}
	pending := b.dlq.Drain()
	for _, fe := range pending {
		if !fe.Persist {
			b.dlq.Enqueue(fe)
			continue
		}
		e := fe.Event
		if err := eventstore.AppendEvent(ctx, b.eventStore, e); err != nil {
			fe.Error = err
			b.dlq.Enqueue(fe)
		}
	}
	return b.dlq.Count()
}
