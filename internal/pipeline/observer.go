package pipeline

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/matrixci/internal/eventstore"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
	"git.home.luguber.info/inful/matrixci/internal/metrics"
)

// Observer receives callbacks around stage execution.
type Observer interface {
	OnStageStart(ctx context.Context, st *EntryState, stage StageName)
	OnStageComplete(ctx context.Context, st *EntryState, outcome StageOutcome)
}

// NoopObserver is a no-op implementation.
type NoopObserver struct{}

func (NoopObserver) OnStageStart(context.Context, *EntryState, StageName)       {}
func (NoopObserver) OnStageComplete(context.Context, *EntryState, StageOutcome) {}

// RecorderObserver adapts metrics.Recorder into an Observer.
type RecorderObserver struct{ Recorder metrics.Recorder }

func (r RecorderObserver) OnStageStart(context.Context, *EntryState, StageName) {}

func (r RecorderObserver) OnStageComplete(_ context.Context, _ *EntryState, o StageOutcome) {
	if r.Recorder == nil {
		return
	}
	if o.Result != StageResultSkipped {
		r.Recorder.ObserveStageDuration(string(o.Stage), o.Duration)
	}
	r.Recorder.IncStageResult(string(o.Stage), metrics.ResultLabel(o.Result))
}

// Observers fans callbacks out to several observers in order.
type Observers []Observer

func (obs Observers) OnStageStart(ctx context.Context, st *EntryState, stage StageName) {
	for _, o := range obs {
		o.OnStageStart(ctx, st, stage)
	}
}

func (obs Observers) OnStageComplete(ctx context.Context, st *EntryState, outcome StageOutcome) {
	for _, o := range obs {
		o.OnStageComplete(ctx, st, outcome)
	}
}

// BusObserver publishes a StageCompleted event for every recorded outcome.
type BusObserver struct{ Bus *Bus }

func (b BusObserver) OnStageStart(context.Context, *EntryState, StageName) {}

func (b BusObserver) OnStageComplete(ctx context.Context, st *EntryState, o StageOutcome) {
	if b.Bus == nil {
		return
	}
	data := eventstore.StageCompletedData{
		Entry:      st.Entry.ID,
		Stage:      string(o.Stage),
		Result:     string(o.Result),
		DurationMS: o.Duration.Milliseconds(),
		LogPath:    o.LogPath,
	}
	if o.Error != nil {
		data.Error = o.Error.Error()
	}
	e, err := eventstore.NewStageCompleted(st.RunID, data)
	if err != nil {
		slog.Warn("Failed to build stage event", logfields.Entry(st.Entry.ID), logfields.Error(err))
		return
	}
	// events of a canceled entry must still be recorded
	b.Bus.Publish(context.WithoutCancel(ctx), e)
}
