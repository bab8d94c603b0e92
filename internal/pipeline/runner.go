package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/matrixci/internal/logfields"
	"git.home.luguber.info/inful/matrixci/internal/observability"
)

// LogOpener opens the log file for one stage of one entry and returns its path.
type LogOpener func(entryID string, stage StageName) (io.WriteCloser, string, error)

// Runner executes stage definitions for one entry at a time.
type Runner struct {
	// OpenLog opens per-stage log files; nil discards stage output.
	OpenLog LogOpener
	// Console, when set, also receives stage output prefixed with the entry ID.
	Console io.Writer
	// StageTimeout bounds each stage; zero means no limit.
	StageTimeout time.Duration
	Observer     Observer
}

// RunStages executes stages in order, recording timing and stopping on the
// first fatal or canceled stage. Stages after an abort are recorded as skipped.
func (r *Runner) RunStages(ctx context.Context, st *EntryState, stages []StageDef) error {
	observer := r.Observer
	if observer == nil {
		observer = NoopObserver{}
	}

	var abortErr error
	for _, def := range stages {
		if abortErr != nil || def.Fn == nil {
			out := StageOutcome{Stage: def.Name, Result: StageResultSkipped}
			st.Outcomes = append(st.Outcomes, out)
			observer.OnStageComplete(ctx, st, out)
			continue
		}

		select {
		case <-ctx.Done():
			se := NewCanceledStageError(def.Name, ctx.Err())
			out := StageOutcome{Stage: def.Name, Result: StageResultCanceled, Error: se}
			st.Outcomes = append(st.Outcomes, out)
			observer.OnStageComplete(ctx, st, out)
			abortErr = se
			continue
		default:
		}

		observer.OnStageStart(ctx, st, def.Name)
		out := r.runStage(ctx, st, def)
		st.Outcomes = append(st.Outcomes, out)
		observer.OnStageComplete(ctx, st, out)

		if out.Result == StageResultFatal || out.Result == StageResultCanceled {
			if out.Error != nil {
				abortErr = out.Error
			} else {
				abortErr = fmt.Errorf("stage %s aborted", def.Name)
			}
		}
	}
	return abortErr
}

func (r *Runner) runStage(ctx context.Context, st *EntryState, def StageDef) StageOutcome {
	stageCtx := observability.WithStage(ctx, string(def.Name))
	var cancel context.CancelFunc = func() {}
	if r.StageTimeout > 0 {
		stageCtx, cancel = context.WithTimeout(stageCtx, r.StageTimeout)
	}
	defer cancel()

	out, logPath, closeOut := r.stageOutput(st, def.Name)
	st.Out = out
	observability.DebugContext(stageCtx, "Stage started", logfields.Path(logPath))

	t0 := time.Now()
	err := def.Fn(stageCtx, st)
	dur := time.Since(t0)

	closeOut()
	st.Out = io.Discard

	if err != nil && r.StageTimeout > 0 && errors.Is(stageCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = NewFatalStageError(def.Name, fmt.Errorf("timed out after %s: %w", r.StageTimeout, err))
	}

	c := ClassifyStageResult(def.Name, err)
	outcome := StageOutcome{
		Stage:    def.Name,
		Result:   c.Result,
		Duration: dur,
		Error:    c.Error,
		LogPath:  logPath,
	}

	attrs := []slog.Attr{logfields.Status(string(c.Result)), logfields.Duration(dur)}
	switch c.Result {
	case StageResultSuccess:
		observability.InfoContext(stageCtx, "Stage completed", attrs...)
	case StageResultWarning:
		observability.WarnContext(stageCtx, "Stage completed with warning", append(attrs, logfields.Error(c.Error))...)
	default:
		observability.ErrorContext(stageCtx, "Stage failed", append(attrs, logfields.Error(c.Error), logfields.Path(logPath))...)
	}
	return outcome
}

// stageOutput builds the writer a stage logs to and a func releasing it.
func (r *Runner) stageOutput(st *EntryState, stage StageName) (io.Writer, string, func()) {
	var (
		writers []io.Writer
		closers []func()
		logPath string
	)
	if r.OpenLog != nil {
		f, path, err := r.OpenLog(st.Entry.ID, stage)
		if err != nil {
			slog.Warn("Failed to open stage log", logfields.Entry(st.Entry.ID), logfields.Stage(string(stage)), logfields.Error(err))
		} else {
			writers = append(writers, f)
			closers = append(closers, func() { _ = f.Close() })
			logPath = path
		}
	}
	if r.Console != nil {
		pw := newPrefixWriter(r.Console, fmt.Sprintf("[%s] ", st.Entry.ID))
		writers = append(writers, pw)
		closers = append(closers, func() { _ = pw.Flush() })
	}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	switch len(writers) {
	case 0:
		return io.Discard, logPath, closeAll
	case 1:
		return writers[0], logPath, closeAll
	default:
		return io.MultiWriter(writers...), logPath, closeAll
	}
}
