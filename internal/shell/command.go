package shell

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Command describes one external process invocation.
type Command struct {
	Argv []string
	Dir  string
	Env  []string // KEY=VALUE pairs merged over the process environment
}

// ShellLine wraps a free-form script line so it runs through sh -c.
func ShellLine(line string) Command {
	return Command{Argv: []string{"sh", "-c", line}}
}

// WithDir returns a copy of c running in dir.
func (c Command) WithDir(dir string) Command {
	c.Dir = dir
	return c
}

// WithEnv returns a copy of c with extra environment entries appended.
func (c Command) WithEnv(env ...string) Command {
	merged := make([]string, 0, len(c.Env)+len(env))
	merged = append(merged, c.Env...)
	merged = append(merged, env...)
	c.Env = merged
	return c
}

// Name is the program being invoked.
func (c Command) Name() string {
	if len(c.Argv) == 0 {
		return ""
	}
	return c.Argv[0]
}

// String renders the argv with minimal quoting, for logs and plans.
func (c Command) String() string {
	parts := make([]string, len(c.Argv))
	for i, a := range c.Argv {
		if a == "" || strings.ContainsAny(a, " \t\"'$;&|<>*?") {
			parts[i] = fmt.Sprintf("%q", a)
			continue
		}
		parts[i] = a
	}
	return strings.Join(parts, " ")
}

// Executor runs commands, streaming combined output to out.
type Executor interface {
	Run(ctx context.Context, cmd Command, out io.Writer) error
}

// ExitError reports a command that ran but exited nonzero.
type ExitError struct {
	Command  Command
	ExitCode int
	Err      error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q exited with code %d", e.Command.String(), e.ExitCode)
}

func (e *ExitError) Unwrap() error { return e.Err }
