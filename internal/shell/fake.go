package shell

import (
	"context"
	"io"
	"strings"
	"sync"
)

// FakeExecutor records commands and fails those whose rendered form contains a
// registered substring. It is intended for tests.
type FakeExecutor struct {
	mu       sync.Mutex
	commands []Command
	failures map[string]int
	outputs  map[string]string
}

// NewFakeExecutor creates a fake where every command succeeds.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{failures: map[string]int{}, outputs: map[string]string{}}
}

// FailOn makes commands containing substr exit with code.
func (f *FakeExecutor) FailOn(substr string, code int) *FakeExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[substr] = code
	return f
}

// Output makes commands containing substr print text.
func (f *FakeExecutor) Output(substr, text string) *FakeExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[substr] = text
	return f
}

func (f *FakeExecutor) Run(ctx context.Context, cmd Command, out io.Writer) error {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	rendered := cmd.String()
	var text string
	for substr, t := range f.outputs {
		if strings.Contains(rendered, substr) {
			text = t
		}
	}
	code := 0
	for substr, c := range f.failures {
		if strings.Contains(rendered, substr) {
			code = c
		}
	}
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if out != nil && text != "" {
		_, _ = io.WriteString(out, text)
	}
	if code != 0 {
		return &ExitError{Command: cmd, ExitCode: code}
	}
	return nil
}

// Commands returns every command seen so far.
func (f *FakeExecutor) Commands() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.commands...)
}

// Rendered returns the commands as strings.
func (f *FakeExecutor) Rendered() []string {
	cmds := f.Commands()
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.String()
	}
	return out
}
