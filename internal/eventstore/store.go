// Package eventstore persists matrix run lifecycle events and rebuilds run
// history from them.
package eventstore

import (
	"context"
	"time"
)

// Appender persists raw events.
type Appender interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, runID, eventType string, payload []byte, metadata map[string]string) error
}

// Store defines the interface for persisting and retrieving events.
type Store interface {
	Appender

	// GetByRunID retrieves all events for a specific run in append order.
	GetByRunID(ctx context.Context, runID string) ([]Event, error)

	// GetRange retrieves events within a time range.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Close closes the store and releases resources.
	Close() error
}

// AppendEvent stores a typed event.
func AppendEvent(ctx context.Context, store Appender, e Event) error {
	return store.Append(ctx, e.RunID(), e.Type(), e.Payload(), e.Metadata())
}
