// Package testexec builds and runs the test suite invocation with coverage.
package testexec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"git.home.luguber.info/inful/matrixci/internal/config"
	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
	"git.home.luguber.info/inful/matrixci/internal/provision"
	"git.home.luguber.info/inful/matrixci/internal/shell"
)

// Executor assembles test commands for one configuration.
type Executor struct {
	tests   config.TestsConfig
	mpi     config.MPIConfig
	workDir string
}

// New creates a test executor running from the project directory.
func New(cfg *config.Config) *Executor {
	return &Executor{tests: cfg.Tests, mpi: cfg.MPI, workDir: cfg.Project.Dir}
}

// Command returns the test invocation for env; useMPI wraps it in the launcher.
// A non-empty coverageDir keeps coverage data out of the shared project directory
// so concurrent entries do not overwrite each other's reports.
func (e *Executor) Command(env provision.Environment, useMPI bool, coverageDir string) (shell.Command, error) {
	pkg := e.tests.CoveragePackage
	xmlReport := "--cov-report=xml"
	if coverageDir != "" {
		xmlReport += ":" + filepath.Join(coverageDir, "coverage.xml")
	}
	var cmd shell.Command
	switch e.tests.Runner {
	case config.RunnerNose:
		cmd = env.Module("nose", append([]string{"--with-coverage", "--cover-package=" + pkg}, e.tests.Args...)...)
	case config.RunnerPytest:
		cmd = env.Module("pytest", append([]string{"--cov=" + pkg, xmlReport}, e.tests.Args...)...)
	case config.RunnerUnittest:
		cmd = env.Module("coverage", append([]string{"run", "--source=" + pkg, "-m", "unittest", "discover"}, e.tests.Args...)...)
	default:
		return shell.Command{}, fmt.Errorf("unsupported test runner %q", e.tests.Runner)
	}
	if useMPI {
		if e.mpi.Procs != 1 {
			return shell.Command{}, fmt.Errorf("message-passing launcher supports a single process, got %d", e.mpi.Procs)
		}
		prefix := []string{e.mpi.Launcher, "-n", strconv.Itoa(e.mpi.Procs)}
		cmd.Argv = append(prefix, cmd.Argv...)
	}
	if coverageDir != "" {
		cmd = cmd.WithEnv("COVERAGE_FILE=" + filepath.Join(coverageDir, ".coverage"))
	}
	return cmd.WithDir(e.workDir), nil
}

// Run executes the tests. Any nonzero exit is a fatal test error.
func (e *Executor) Run(ctx context.Context, executor shell.Executor, env provision.Environment, useMPI bool, coverageDir string, extraEnv []string, out io.Writer) error {
	cmd, err := e.Command(env, useMPI, coverageDir)
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryConfig, "cannot build test command").Fatal().Build()
	}
	cmd = cmd.WithEnv(extraEnv...)
	if err := executor.Run(ctx, cmd, out); err != nil {
		if errors.Is(err, context.Canceled) {
			return foundationerrors.WrapError(err, foundationerrors.CategoryCanceled, "tests canceled").Build()
		}
		b := foundationerrors.TestError("test suite failed").
			WithCause(err).
			WithContext("runner", string(e.tests.Runner)).
			WithContext("command", cmd.String())
		var exitErr *shell.ExitError
		if errors.As(err, &exitErr) {
			b = b.WithContext("exit_code", exitErr.ExitCode)
		}
		return b.Build()
	}
	return nil
}
