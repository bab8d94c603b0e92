package pipeline

import (
	"sync"
	"time"

	"git.home.luguber.info/inful/matrixci/internal/eventstore"
)

// FailedEvent wraps an event with its error and timestamp for DLQ storage.
type FailedEvent struct {
	Event     eventstore.Event
	Error     error
	Timestamp time.Time
	// Persist is true when the store append failed, false for handler failures.
	Persist bool
}

// DeadLetterQueue stores events whose delivery failed.
type DeadLetterQueue struct {
	mu     sync.RWMutex
	failed []FailedEvent
}

// NewDeadLetterQueue creates a new DLQ.
func NewDeadLetterQueue() *DeadLetterQueue {
	return &DeadLetterQueue{}
}

// Enqueue adds a failed event to the queue.
func (dlq *DeadLetterQueue) Enqueue(fe FailedEvent) {
	if fe.Timestamp.IsZero() {
		fe.Timestamp = time.Now()
	}
	dlq.mu.Lock()
	dlq.failed = append(dlq.failed, fe)
	dlq.mu.Unlock()
}

// GetAll returns all failed events (for inspection/replay).
func (dlq *DeadLetterQueue) GetAll() []FailedEvent {
	dlq.mu.RLock()
	defer dlq.mu.RUnlock()
	result := make([]FailedEvent, len(dlq.failed))
	copy(result, dlq.failed)
	return result
}

// Drain removes and returns every queued event.
func (dlq *DeadLetterQueue) Drain() []FailedEvent {
	dlq.mu.Lock()
	defer dlq.mu.Unlock()
	out := dlq.failed
	dlq.failed = nil
	return out
}

// Count returns the number of failed events in the queue.
func (dlq *DeadLetterQueue) Count() int {
	dlq.mu.RLock()
	defer dlq.mu.RUnlock()
	return len(dlq.failed)
}
