package eventstore

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

// Run status values in the history read model.
const (
	RunStatusRunning = "running"
	RunStatusPassed  = "passed"
	RunStatusFailed  = "failed"
)

// RunSummary is a read model summarizing one matrix run.
type RunSummary struct {
	RunID          string            `json:"run_id"`
	Project        string            `json:"project,omitempty"`
	Commit         string            `json:"commit,omitempty"`
	Status         string            `json:"status"`
	StartedAt      time.Time         `json:"started_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	Duration       time.Duration     `json:"duration,omitempty"`
	EntryCount     int               `json:"entry_count"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Excluded       int               `json:"excluded"`
	FailedEntries  []string          `json:"failed_entries,omitempty"`
	EntryStatuses  map[string]string `json:"entry_statuses,omitempty"`
	FirstFailure   string            `json:"first_failure,omitempty"`
	DryRun         bool              `json:"dry_run,omitempty"`
	CompletedCount int               `json:"completed_count"`
}

// RunHistoryProjection keeps an in-memory run history rebuilt from stored events.
type RunHistoryProjection struct {
	mu      sync.RWMutex
	store   Store
	runs    map[string]*RunSummary
	maxSize int
}

// NewRunHistoryProjection creates a projection backed by store.
func NewRunHistoryProjection(store Store, maxHistorySize int) *RunHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &RunHistoryProjection{
		store:   store,
		runs:    make(map[string]*RunSummary),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from every stored event.
func (p *RunHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs = make(map[string]*RunSummary)
	for _, event := range events {
		p.applyEventLocked(event)
	}
	return nil
}

// Apply processes a single event as it is emitted.
func (p *RunHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

func (p *RunHistoryProjection) applyEventLocked(event Event) {
	runID := event.RunID()
	if runID == "" {
		return
	}
	summary, exists := p.runs[runID]
	if !exists {
		summary = &RunSummary{
			RunID:         runID,
			Status:        RunStatusRunning,
			StartedAt:     event.Timestamp(),
			EntryStatuses: map[string]string{},
		}
		p.runs[runID] = summary
	}

	switch event.Type() {
	case TypeRunStarted:
		var data RunStartedData
		if Decode(event, &data) == nil {
			summary.StartedAt = event.Timestamp()
			summary.Project = data.Project
			summary.Commit = data.Commit
			summary.EntryCount = len(data.Entries) + len(data.Excluded)
			summary.Excluded = len(data.Excluded)
			summary.DryRun = data.DryRun
			for _, id := range data.Excluded {
				summary.EntryStatuses[id] = "excluded"
			}
		}
	case TypeEntryStarted:
		var data EntryStartedData
		if Decode(event, &data) == nil {
			summary.EntryStatuses[data.Entry] = "running"
		}
	case TypeEntryCompleted:
		var data EntryCompletedData
		if Decode(event, &data) == nil {
			summary.EntryStatuses[data.Entry] = data.Status
			summary.CompletedCount++
			switch data.Status {
			case "passed", "allowed_failure":
				summary.Passed++
			case "failed", "canceled":
				summary.Failed++
				summary.FailedEntries = append(summary.FailedEntries, data.Entry)
			}
		}
	case TypeRunCompleted:
		var data RunCompletedData
		if Decode(event, &data) == nil {
			ts := event.Timestamp()
			summary.CompletedAt = &ts
			summary.Duration = time.Duration(data.DurationMS) * time.Millisecond
			summary.FirstFailure = data.FirstFailure
			summary.Status = RunStatusFailed
			if data.Success {
				summary.Status = RunStatusPassed
			}
		}
	}
}

// History returns up to limit runs, newest first.
func (p *RunHistoryProjection) History(limit int) []RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]RunSummary, 0, len(p.runs))
	for _, s := range p.runs {
		cp := *s
		cp.FailedEntries = slices.Clone(s.FailedEntries)
		cp.EntryStatuses = maps.Clone(s.EntryStatuses)
		out = append(out, cp)
	}
	slices.SortFunc(out, func(a, b RunSummary) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(b.RunID, a.RunID)
	})
	if limit <= 0 || limit > p.maxSize {
		limit = p.maxSize
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Get returns the summary of one run.
func (p *RunHistoryProjection) Get(runID string) (RunSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.runs[runID]
	if !ok {
		return RunSummary{}, false
	}
	return *s, true
}
