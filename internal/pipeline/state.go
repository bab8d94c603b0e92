package pipeline

import (
	"io"
	"time"

	"git.home.luguber.info/inful/matrixci/internal/matrix"
	"git.home.luguber.info/inful/matrixci/internal/provision"
)

// StageOutcome is the recorded result of one stage.
type StageOutcome struct {
	Stage    StageName
	Result   StageResult
	Duration time.Duration
	Error    *StageError
	LogPath  string
}

// EntryState is the mutable state of one entry's pipeline. It is owned by a
// single goroutine and never shared between entries.
type EntryState struct {
	RunID   string
	Entry   matrix.Entry
	WorkDir string
	// Env holds KEY=VALUE pairs applied to every command of the entry.
	Env []string

	Plan        *provision.Plan
	Environment provision.Environment
	// CoverageLocation is where the report stage uploaded the coverage file.
	CoverageLocation string

	Outcomes []StageOutcome

	// Out receives the output of the stage currently running.
	Out io.Writer
}

// NewEntryState creates the state for entry rooted at workDir.
func NewEntryState(runID string, entry matrix.Entry, workDir string) *EntryState {
	return &EntryState{
		RunID:   runID,
		Entry:   entry,
		WorkDir: workDir,
		Env:     entry.EnvList(),
		Out:     io.Discard,
	}
}

// Outcome returns the recorded outcome of stage.
func (st *EntryState) Outcome(stage StageName) (StageOutcome, bool) {
	for _, o := range st.Outcomes {
		if o.Stage == stage {
			return o, true
		}
	}
	return StageOutcome{}, false
}

// Failure returns the first fatal or canceled outcome.
func (st *EntryState) Failure() (StageOutcome, bool) {
	for _, o := range st.Outcomes {
		if o.Result == StageResultFatal || o.Result == StageResultCanceled {
			return o, true
		}
	}
	return StageOutcome{}, false
}

// Warnings returns every outcome that finished with a warning.
func (st *EntryState) Warnings() []StageOutcome {
	var out []StageOutcome
	for _, o := range st.Outcomes {
		if o.Result == StageResultWarning {
			out = append(out, o)
		}
	}
	return out
}
