package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/matrixci/internal/foundation/errors"
)

// Event type names.
const (
	TypeRunStarted     = "RunStarted"
	TypeEntryStarted   = "EntryStarted"
	TypeStageCompleted = "StageCompleted"
	TypeEntryCompleted = "EntryCompleted"
	TypeRunCompleted   = "RunCompleted"
)

// RunStartedData is the payload of a RunStarted event.
type RunStartedData struct {
	ConfigPath string   `json:"config_path,omitempty"`
	Project    string   `json:"project"`
	Entries    []string `json:"entries"`
	Excluded   []string `json:"excluded,omitempty"`
	Commit     string   `json:"commit,omitempty"`
	Branch     string   `json:"branch,omitempty"`
	DryRun     bool     `json:"dry_run,omitempty"`
}

// EntryStartedData is the payload of an EntryStarted event.
type EntryStartedData struct {
	Entry        string `json:"entry"`
	Channel      string `json:"channel"`
	Python       string `json:"python"`
	ManifestHash string `json:"manifest_hash,omitempty"`
}

// StageCompletedData is the payload of a StageCompleted event.
type StageCompletedData struct {
	Entry      string `json:"entry"`
	Stage      string `json:"stage"`
	Result     string `json:"result"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
	LogPath    string `json:"log_path,omitempty"`
}

// EntryCompletedData is the payload of an EntryCompleted event.
type EntryCompletedData struct {
	Entry       string `json:"entry"`
	Channel     string `json:"channel"`
	Status      string `json:"status"`
	FailedStage string `json:"failed_stage,omitempty"`
	Error       string `json:"error,omitempty"`
	LogPath     string `json:"log_path,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
}

// RunCompletedData is the payload of a RunCompleted event.
type RunCompletedData struct {
	Success         bool   `json:"success"`
	Passed          int    `json:"passed"`
	Failed          int    `json:"failed"`
	Canceled        int    `json:"canceled"`
	Excluded        int    `json:"excluded"`
	AllowedFailures int    `json:"allowed_failures"`
	FirstFailure    string `json:"first_failure,omitempty"`
	DurationMS      int64  `json:"duration_ms"`
}

// NewEvent marshals data into an event of the given type.
func NewEvent(runID, eventType string, data any) (*BaseEvent, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal " + eventType + " payload").
			WithCause(err).
			WithContext("run_id", runID).
			Build()
	}
	return &BaseEvent{
		EventRunID:     runID,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   payload,
	}, nil
}

// NewRunStarted creates a RunStarted event.
func NewRunStarted(runID string, data RunStartedData) (*BaseEvent, error) {
	return NewEvent(runID, TypeRunStarted, data)
}

// NewEntryStarted creates an EntryStarted event.
func NewEntryStarted(runID string, data EntryStartedData) (*BaseEvent, error) {
	ev, err := NewEvent(runID, TypeEntryStarted, data)
	if err == nil {
		ev.EventMetadata = map[string]string{"entry": data.Entry}
	}
	return ev, err
}

// NewStageCompleted creates a StageCompleted event.
func NewStageCompleted(runID string, data StageCompletedData) (*BaseEvent, error) {
	ev, err := NewEvent(runID, TypeStageCompleted, data)
	if err == nil {
		ev.EventMetadata = map[string]string{"entry": data.Entry, "stage": data.Stage}
	}
	return ev, err
}

// NewEntryCompleted creates an EntryCompleted event.
func NewEntryCompleted(runID string, data EntryCompletedData) (*BaseEvent, error) {
	ev, err := NewEvent(runID, TypeEntryCompleted, data)
	if err == nil {
		ev.EventMetadata = map[string]string{"entry": data.Entry}
	}
	return ev, err
}

// NewRunCompleted creates a RunCompleted event.
func NewRunCompleted(runID string, data RunCompletedData) (*BaseEvent, error) {
	return NewEvent(runID, TypeRunCompleted, data)
}

// Decode unmarshals an event payload into out.
func Decode(e Event, out any) error {
	if err := json.Unmarshal(e.Payload(), out); err != nil {
		return errors.EventStoreError("failed to unmarshal " + e.Type() + " payload").
			WithCause(err).
			WithContext("run_id", e.RunID()).
			Build()
	}
	return nil
}
