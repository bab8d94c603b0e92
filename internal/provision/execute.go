package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
	"git.home.luguber.info/inful/matrixci/internal/shell"
)

// Execute runs every step of plan in order with env applied, stopping at the first failure.
func Execute(ctx context.Context, executor shell.Executor, plan *Plan, env []string, out io.Writer) error {
	for _, w := range plan.Warnings {
		slog.WarnContext(ctx, w, logfields.Channel(string(plan.Environment.Channel)))
	}
	for i, step := range plan.Steps {
		cmd := step.Command.WithEnv(env...)
		if out != nil {
			_, _ = fmt.Fprintf(out, "==> [%d/%d] %s\n", i+1, len(plan.Steps), step.Name)
		}
		if err := executor.Run(ctx, cmd, out); err != nil {
			return stepError(step, err)
		}
	}
	return nil
}

func stepError(step Step, err error) error {
	if errors.Is(err, context.Canceled) {
		return foundationerrors.WrapError(err, foundationerrors.CategoryCanceled, "provisioning canceled").
			WithContext("step", step.Name).
			Build()
	}
	b := foundationerrors.ProvisioningError(fmt.Sprintf("provisioning step %q failed", step.Name)).
		WithCause(err).
		WithContext("step", step.Name).
		WithContext("command", step.Command.String())
	var exitErr *shell.ExitError
	if errors.As(err, &exitErr) {
		b = b.WithContext("exit_code", exitErr.ExitCode)
	}
	return b.Build()
}
