package testexec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/matrixci/internal/config"
	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
	"git.home.luguber.info/inful/matrixci/internal/provision"
	"git.home.luguber.info/inful/matrixci/internal/shell"
)

func newConfig(t *testing.T, runner config.TestRunner) *config.Config {
	t.Helper()
	cfg := config.ExampleConfig()
	cfg.Project.Dir = "/src/elephant"
	cfg.Tests.Runner = runner
	require.NoError(t, config.ApplyDefaults(cfg))
	return cfg
}

func TestCommand_Runners(t *testing.T) {
	env := provision.SourceEnvironment("/ws/venv")
	tests := []struct {
		runner config.TestRunner
		want   string
	}{
		{config.RunnerNose, "/ws/venv/bin/python -m nose --with-coverage --cover-package=elephant"},
		{config.RunnerPytest, "/ws/venv/bin/python -m pytest --cov=elephant --cov-report=xml"},
		{config.RunnerUnittest, "/ws/venv/bin/python -m coverage run --source=elephant -m unittest discover"},
	}
	for _, tt := range tests {
		t.Run(string(tt.runner), func(t *testing.T) {
			cmd, err := New(newConfig(t, tt.runner)).Command(env, false, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.String())
			assert.Equal(t, "/src/elephant", cmd.Dir)
		})
	}
}

func TestCommand_MPIWrapsFullInvocation(t *testing.T) {
	env := provision.SourceEnvironment("/ws/venv")
	cmd, err := New(newConfig(t, config.RunnerNose)).Command(env, true, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"mpiexec", "-n", "1",
		"/ws/venv/bin/python", "-m", "nose", "--with-coverage", "--cover-package=elephant",
	}, cmd.Argv)
}

func TestCommand_MPIRejectsMultipleProcs(t *testing.T) {
	cfg := newConfig(t, config.RunnerNose)
	cfg.MPI.Procs = 2
	_, err := New(cfg).Command(provision.SourceEnvironment("/ws/venv"), true, "")
	require.Error(t, err)
}

func TestRun_Failure(t *testing.T) {
	fake := shell.NewFakeExecutor().FailOn("nose", 1)
	err := New(newConfig(t, config.RunnerNose)).Run(t.Context(), fake, provision.SourceEnvironment("/ws/venv"), false, "", nil, nil)
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryTest))
}

func TestRun_Success(t *testing.T) {
	fake := shell.NewFakeExecutor()
	err := New(newConfig(t, config.RunnerPytest)).Run(t.Context(), fake, provision.SourceEnvironment("/ws/venv"), false, "", []string{"A=1"}, nil)
	require.NoError(t, err)
	require.Len(t, fake.Commands(), 1)
	assert.Equal(t, []string{"A=1"}, fake.Commands()[0].Env)
}

func TestCommand_CoverageDir(t *testing.T) {
	env := provision.SourceEnvironment("/ws/venv")
	cmd, err := New(newConfig(t, config.RunnerPytest)).Command(env, false, "/ws/py3.6-source")
	require.NoError(t, err)
	assert.Contains(t, cmd.Argv, "--cov-report=xml:/ws/py3.6-source/coverage.xml")
	assert.Equal(t, []string{"COVERAGE_FILE=/ws/py3.6-source/.coverage"}, cmd.Env)
}
