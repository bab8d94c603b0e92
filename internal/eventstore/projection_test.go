package eventstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendTyped(t *testing.T, store Store, ev *BaseEvent, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NoError(t, AppendEvent(t.Context(), store, ev))
}

func TestRunHistoryProjection_Rebuild(t *testing.T) {
	store := newMemoryStore(t)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { clock = clock.Add(time.Second); return clock }

	ev, err := NewRunStarted("run-a", RunStartedData{
		Project:  "elephant",
		Entries:  []string{"py2.7-binary", "py3.6-source-mpi"},
		Excluded: []string{"py3.6-source-pinned"},
		Commit:   "abc123",
	})
	appendTyped(t, store, ev, err)
	ev, err = NewEntryStarted("run-a", EntryStartedData{Entry: "py2.7-binary", Channel: "binary", Python: "2.7"})
	appendTyped(t, store, ev, err)
	ev, err = NewEntryCompleted("run-a", EntryCompletedData{Entry: "py2.7-binary", Status: "passed"})
	appendTyped(t, store, ev, err)
	ev, err = NewEntryCompleted("run-a", EntryCompletedData{Entry: "py3.6-source-mpi", Status: "failed", FailedStage: "validate_capability"})
	appendTyped(t, store, ev, err)
	ev, err = NewRunCompleted("run-a", RunCompletedData{Success: false, FirstFailure: "py3.6-source-mpi", DurationMS: 1500})
	appendTyped(t, store, ev, err)

	ev, err = NewRunStarted("run-b", RunStartedData{Project: "elephant", Entries: []string{"py2.7-binary"}})
	appendTyped(t, store, ev, err)

	p := NewRunHistoryProjection(store, 10)
	require.NoError(t, p.Rebuild(t.Context()))

	history := p.History(0)
	require.Len(t, history, 2)
	assert.Equal(t, "run-b", history[0].RunID, "newest first")
	assert.Equal(t, RunStatusRunning, history[0].Status)

	a := history[1]
	assert.Equal(t, RunStatusFailed, a.Status)
	assert.Equal(t, 3, a.EntryCount)
	assert.Equal(t, 1, a.Passed)
	assert.Equal(t, 1, a.Failed)
	assert.Equal(t, 1, a.Excluded)
	assert.Equal(t, []string{"py3.6-source-mpi"}, a.FailedEntries)
	assert.Equal(t, "excluded", a.EntryStatuses["py3.6-source-pinned"])
	assert.Equal(t, 1500*time.Millisecond, a.Duration)
	assert.Equal(t, "abc123", a.Commit)
	require.NotNil(t, a.CompletedAt)

	assert.Len(t, p.History(1), 1)
}

func TestRunHistoryProjection_Apply(t *testing.T) {
	p := NewRunHistoryProjection(newMemoryStore(t), 0)
	ev, err := NewRunCompleted("run-x", RunCompletedData{Success: true})
	require.NoError(t, err)
	p.Apply(ev)

	s, ok := p.Get("run-x")
	require.True(t, ok)
	assert.Equal(t, RunStatusPassed, s.Status)

	_, ok = p.Get("missing")
	assert.False(t, ok)
}

func TestDecode_Invalid(t *testing.T) {
	err := Decode(&BaseEvent{EventType: TypeRunStarted, EventPayload: []byte("{")}, &RunStartedData{})
	require.Error(t, err)
}
