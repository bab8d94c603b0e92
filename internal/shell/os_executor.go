package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"git.home.luguber.info/inful/matrixci/internal/logfields"
)

// OSExecutor runs commands as operating system processes.
type OSExecutor struct {
	// BaseEnv replaces os.Environ() as the starting environment when non-nil.
	BaseEnv []string
}

// NewOSExecutor creates an executor inheriting the process environment.
func NewOSExecutor() *OSExecutor { return &OSExecutor{} }

func (e *OSExecutor) Run(ctx context.Context, cmd Command, out io.Writer) error {
	if len(cmd.Argv) == 0 {
		return errors.New("empty command")
	}
	if out == nil {
		out = io.Discard
	}

	// #nosec G204 -- commands are assembled from the user's own configuration
	c := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	c.Dir = cmd.Dir
	base := e.BaseEnv
	if base == nil {
		base = os.Environ()
	}
	c.Env = append(append([]string{}, base...), cmd.Env...)
	c.Stdout = out
	c.Stderr = out

	slog.Debug("Executing command", logfields.Command(cmd.String()), logfields.Path(cmd.Dir))
	err := c.Run()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", cmd.Name(), ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Command: cmd, ExitCode: exitErr.ExitCode(), Err: err}
	}
	return fmt.Errorf("start %s: %w", cmd.Name(), err)
}
