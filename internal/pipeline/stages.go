package pipeline

import (
	"context"
	"fmt"
)

// Stage is a discrete unit of work for one matrix entry.
type Stage func(ctx context.Context, st *EntryState) error

// StageName is a strongly-typed identifier for an entry stage.
type StageName string

// Canonical stage names in execution order.
const (
	StageBeforeInstall      StageName = "before_install"
	StageProvision          StageName = "provision"
	StageValidateCapability StageName = "validate_capability"
	StageBeforeScript       StageName = "before_script"
	StageTest               StageName = "test"
	StageReport             StageName = "report"
)

// StageNames lists every stage in execution order.
var StageNames = []StageName{
	StageBeforeInstall,
	StageProvision,
	StageValidateCapability,
	StageBeforeScript,
	StageTest,
	StageReport,
}

// StageErrorKind classifies the outcome of a stage.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Entry must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError is a structured error carrying kind and underlying cause.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// NewFatalStageError creates a new fatal stage error.
func NewFatalStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}

func NewWarnStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}

func NewCanceledStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

// StageResult captures the high-level outcome of a stage.
type StageResult string

const (
	StageResultSuccess  StageResult = "success"
	StageResultWarning  StageResult = "warning"
	StageResultFatal    StageResult = "fatal"
	StageResultCanceled StageResult = "canceled"
	StageResultSkipped  StageResult = "skipped"
)

// StageDef pairs a stage name with its executing function. A nil Fn marks a
// stage that is part of the sequence but disabled for this entry.
type StageDef struct {
	Name StageName
	Fn   Stage
}

// Pipeline is a fluent builder for ordered stage definitions.
type Pipeline struct{ Defs []StageDef }

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline { return &Pipeline{Defs: make([]StageDef, 0, len(StageNames))} }

// Add appends a stage unconditionally.
func (p *Pipeline) Add(name StageName, fn Stage) *Pipeline {
	p.Defs = append(p.Defs, StageDef{Name: name, Fn: fn})
	return p
}

// AddIf appends fn when cond is true; otherwise the stage is kept in the
// sequence and reported as skipped.
func (p *Pipeline) AddIf(cond bool, name StageName, fn Stage) *Pipeline {
	if !cond {
		fn = nil
	}
	return p.Add(name, fn)
}

// Build returns a copy of the stage definitions slice.
func (p *Pipeline) Build() []StageDef {
	out := make([]StageDef, len(p.Defs))
	copy(out, p.Defs)
	return out
}
