// Package notify publishes run notifications to NATS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/matrixci/internal/eventstore"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
)

// publisher is the subset of *nats.Conn used here.
type publisher interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// Notification is the JSON document published for each event.
type Notification struct {
	RunID     string          `json:"run_id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Notifier forwards EntryCompleted and RunCompleted events to NATS.
type Notifier struct {
	conn    publisher
	subject string
}

// Connect dials the NATS server at url.
func Connect(url, subject string) (*Notifier, error) {
	conn, err := nats.Connect(url,
		nats.Name("matrixci"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("NATS notifier connected", slog.String("url", url), slog.String("subject", subject))
	return &Notifier{conn: conn, subject: subject}, nil
}

// Types lists the event types a Notifier publishes.
var Types = []string{eventstore.TypeEntryCompleted, eventstore.TypeRunCompleted}

// Subject returns the subject for an event type, e.g. matrixci.runs.entry_completed.
func (n *Notifier) Subject(eventType string) string {
	return n.subject + "." + snake(eventType)
}

// Handle publishes e. Failures are logged and returned so the bus can
// dead-letter them; they never fail a run.
func (n *Notifier) Handle(_ context.Context, e eventstore.Event) error {
	data, err := json.Marshal(Notification{
		RunID:     e.RunID(),
		Type:      e.Type(),
		Timestamp: e.Timestamp(),
		Data:      json.RawMessage(e.Payload()),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	subject := n.Subject(e.Type())
	if err := n.conn.Publish(subject, data); err != nil {
		slog.Warn("Failed to publish notification", logfields.RunID(e.RunID()), slog.String("subject", subject), logfields.Error(err))
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	slog.Debug("Published notification", logfields.RunID(e.RunID()), slog.String("subject", subject))
	return nil
}

// Close flushes pending messages and closes the connection.
func (n *Notifier) Close() {
	if err := n.conn.FlushTimeout(2 * time.Second); err != nil {
		slog.Warn("Failed to flush notifications", logfields.Error(err))
	}
	n.conn.Close()
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
