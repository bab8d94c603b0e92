package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
)

func TestPipelineBuilder_AddIfKeepsSkippedStage(t *testing.T) {
	noop := func(context.Context, *EntryState) error { return nil }
	defs := NewPipeline().
		Add(StageProvision, noop).
		AddIf(false, StageValidateCapability, noop).
		AddIf(true, StageTest, noop).
		Build()

	assert.Len(t, defs, 3)
	assert.Equal(t, StageValidateCapability, defs[1].Name)
	assert.Nil(t, defs[1].Fn)
	assert.NotNil(t, defs[2].Fn)
}

func TestClassifyStageResult(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		want  StageResult
		abort bool
	}{
		{"nil", nil, StageResultSuccess, false},
		{"plain error", errors.New("boom"), StageResultFatal, true},
		{"warning stage error", NewWarnStageError(StageReport, errors.New("upload")), StageResultWarning, false},
		{"reporting error", foundationerrors.ReportingError("upload failed").Build(), StageResultWarning, false},
		{"provisioning error", foundationerrors.ProvisioningError("conda failed").Build(), StageResultFatal, true},
		{"context canceled", context.Canceled, StageResultCanceled, true},
		{"canceled category", foundationerrors.CanceledError("stop").Build(), StageResultCanceled, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ClassifyStageResult(StageTest, tt.err)
			assert.Equal(t, tt.want, c.Result)
			assert.Equal(t, tt.abort, c.Abort)
			if tt.err != nil {
				assert.NotNil(t, c.Error)
			}
		})
	}
}
