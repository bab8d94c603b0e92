package build

import (
	"context"
	"fmt"
	"io"
	"time"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/git"
	"git.home.luguber.info/inful/matrixci/internal/matrix"
	"git.home.luguber.info/inful/matrixci/internal/pipeline"
)

// Service is the canonical interface for running a build matrix.
type Service interface {
	Run(ctx context.Context, req Request) (*RunResult, error)
}

// Request contains all inputs required to run a matrix.
type Request struct {
	Config *config.Config
	// ConfigPath is recorded in run events.
	ConfigPath string
	// EntryIDs restricts the run to these entries; empty runs all.
	EntryIDs []string
	// Parallel bounds concurrently running entries; <= 0 uses the config value.
	Parallel int
	DryRun   bool
	// Console receives live stage output when set.
	Console io.Writer
	// WorkspaceDir overrides workspace.dir.
	WorkspaceDir string
	// KeepWorkspace keeps the run directory even after a successful run.
	KeepWorkspace bool
}

// EntryStatus is the final status of one matrix entry.
type EntryStatus string

const (
	EntryPassed         EntryStatus = "passed"
	EntryFailed         EntryStatus = "failed"
	EntryCanceled       EntryStatus = "canceled"
	EntryExcluded       EntryStatus = "excluded"
	EntryAllowedFailure EntryStatus = "allowed_failure"
)

// EntryResult is the outcome of one matrix entry.
type EntryResult struct {
	Entry    matrix.Entry
	Status   EntryStatus
	Stages   []pipeline.StageOutcome
	Duration time.Duration
	WorkDir  string

	// FailedStage, Err and LogPath describe the first fatal or canceled stage.
	FailedStage pipeline.StageName
	Err         error
	LogPath     string

	CoverageLocation string
	// Warnings holds messages of stages that finished with a warning.
	Warnings []string
}

// Executed reports whether the entry was run at all.
func (r EntryResult) Executed() bool { return r.Status != EntryExcluded }

// RunResult is the outcome of a whole matrix run.
type RunResult struct {
	RunID     string
	Project   string
	Revision  git.Revision
	Workspace string
	DryRun    bool
	Start     time.Time
	End       time.Time
	Entries   []EntryResult
	// Success is true iff every executed entry without allow_failure passed.
	Success bool
}

// Duration is the wall time of the run.
func (r *RunResult) Duration() time.Duration { return r.End.Sub(r.Start) }

// Counts tallies entries per status.
func (r *RunResult) Counts() map[EntryStatus]int {
	out := map[EntryStatus]int{}
	for _, e := range r.Entries {
		out[e.Status]++
	}
	return out
}

// FirstFailure returns the first failed or canceled entry in matrix order.
func (r *RunResult) FirstFailure() (EntryResult, bool) {
	for _, e := range r.Entries {
		if e.Status == EntryFailed || e.Status == EntryCanceled {
			return e, true
		}
	}
	return EntryResult{}, false
}

// Err returns nil for a successful run, otherwise an error wrapping the first
// failing entry's cause so callers can classify it.
func (r *RunResult) Err() error {
	if r.Success {
		return nil
	}
	first, ok := r.FirstFailure()
	if !ok {
		return fmt.Errorf("run %s failed", r.RunID)
	}
	if first.LogPath != "" {
		return fmt.Errorf("entry %s failed at %s (log: %s): %w", first.Entry.ID, first.FailedStage, first.LogPath, first.Err)
	}
	return fmt.Errorf("entry %s failed at %s: %w", first.Entry.ID, first.FailedStage, first.Err)
}
