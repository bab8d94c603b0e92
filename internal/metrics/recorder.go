package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
	ResultSkipped  ResultLabel = "skipped"
)

// Recorder defines observability hooks for runs, entries and stages.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveEntryDuration(channel string, d time.Duration)
	IncEntryOutcome(channel, outcome string) // passed|failed|canceled|excluded|allowed_failure
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(success bool)
	IncUploadRetry(uploader string)
	IncUploadFailure(uploader string)
	SetActiveEntries(n int)
}

// NoopRecorder is the Recorder used when metrics are not configured.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveEntryDuration(string, time.Duration) {}
func (NoopRecorder) IncEntryOutcome(string, string)             {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncRunOutcome(bool)                         {}
func (NoopRecorder) IncUploadRetry(string)                      {}
func (NoopRecorder) IncUploadFailure(string)                    {}
func (NoopRecorder) SetActiveEntries(int)                       {}
