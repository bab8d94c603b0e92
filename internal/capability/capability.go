// Package capability checks that a provisioned environment exposes an optional
// compiled feature before tests run.
package capability

import (
	"context"
	"errors"
	"fmt"
	"io"

	"git.home.luguber.info/inful/matrixci/internal/config"
	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
	"git.home.luguber.info/inful/matrixci/internal/provision"
	"git.home.luguber.info/inful/matrixci/internal/shell"
)

// Validator runs the capability probe inside an environment.
type Validator struct {
	Module string
	Flag   string
}

// New returns a validator for cfg, or nil when no capability is configured.
func New(cfg *config.CapabilityConfig) *Validator {
	if cfg == nil {
		return nil
	}
	return &Validator{Module: cfg.Module, Flag: cfg.Flag}
}

// Script is the probe passed to the interpreter's -c flag.
func (v *Validator) Script() string {
	return fmt.Sprintf("import %s; assert %s.%s, '%s.%s is not available'", v.Module, v.Module, v.Flag, v.Module, v.Flag)
}

// Command builds the probe invocation for env.
func (v *Validator) Command(env provision.Environment) shell.Command {
	return env.Interpreter("-c", v.Script())
}

// Validate runs the probe. A nonzero exit is a fatal capability error.
func (v *Validator) Validate(ctx context.Context, executor shell.Executor, env provision.Environment, extraEnv []string, out io.Writer) error {
	cmd := v.Command(env).WithEnv(extraEnv...)
	err := executor.Run(ctx, cmd, out)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return foundationerrors.WrapError(err, foundationerrors.CategoryCanceled, "capability validation canceled").Build()
	}
	return foundationerrors.CapabilityError(fmt.Sprintf("required capability %s.%s is missing", v.Module, v.Flag)).
		WithCause(err).
		WithContext("module", v.Module).
		WithContext("flag", v.Flag).
		Build()
}
