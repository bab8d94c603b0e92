package shell

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// DryRunExecutor prints commands instead of running them and always succeeds.
type DryRunExecutor struct {
	mu       sync.Mutex
	commands []Command
}

// NewDryRunExecutor creates an empty dry-run executor.
func NewDryRunExecutor() *DryRunExecutor { return &DryRunExecutor{} }

func (d *DryRunExecutor) Run(_ context.Context, cmd Command, out io.Writer) error {
	d.mu.Lock()
	d.commands = append(d.commands, cmd)
	d.mu.Unlock()
	if out != nil {
		if cmd.Dir != "" {
			_, _ = fmt.Fprintf(out, "+ (cd %s) %s\n", cmd.Dir, cmd.String())
		} else {
			_, _ = fmt.Fprintf(out, "+ %s\n", cmd.String())
		}
	}
	return nil
}

// Commands returns the recorded commands in execution order.
func (d *DryRunExecutor) Commands() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Command(nil), d.commands...)
}
