package pipeline

import (
	"context"
	"errors"

	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
)

// Classification is the normalized result of a stage error.
type Classification struct {
	Error  *StageError
	Result StageResult
	Abort  bool
}

// ClassifyStageResult converts a raw error returned by a stage.
func ClassifyStageResult(stage StageName, err error) Classification {
	if err == nil {
		return Classification{Result: StageResultSuccess}
	}

	var se *StageError
	if !errors.As(err, &se) {
		se = stageErrorFromClassified(stage, err)
	}

	switch se.Kind {
	case StageErrorWarning:
		return Classification{Error: se, Result: StageResultWarning}
	case StageErrorCanceled:
		return Classification{Error: se, Result: StageResultCanceled, Abort: true}
	default:
		return Classification{Error: se, Result: StageResultFatal, Abort: true}
	}
}

// stageErrorFromClassified derives a kind from the error's category and severity.
// Anything unrecognized is fatal.
func stageErrorFromClassified(stage StageName, err error) *StageError {
	if errors.Is(err, context.Canceled) || foundationerrors.HasCategory(err, foundationerrors.CategoryCanceled) {
		return NewCanceledStageError(stage, err)
	}
	if foundationerrors.HasSeverity(err, foundationerrors.SeverityWarning) {
		return NewWarnStageError(stage, err)
	}
	return NewFatalStageError(stage, err)
}
