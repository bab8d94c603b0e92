package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/matrixci/internal/build"
	"git.home.luguber.info/inful/matrixci/internal/config"
	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
	"git.home.luguber.info/inful/matrixci/internal/git"
)

type cliEnv struct {
	dir  string
	root *CLI
	out  *bytes.Buffer
	g    *Global
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "matrixci.yaml")
	require.NoError(t, config.Init(path, false))
	for name, content := range map[string]string{
		"requirements.txt":        "numpy>=1.8.2\nneo>=0.5.0\nscipy\n",
		"requirements-pinned.txt": "numpy==1.8.2\nneo==0.5.0\n",
		"requirements-extras.txt": "mpi4py\n",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}

	root := &CLI{Config: path}
	require.NoError(t, root.AfterApply())
	out := &bytes.Buffer{}
	return &cliEnv{dir: dir, root: root, out: out, g: &Global{Stdout: out}}
}

func TestInitCmd_RefusesOverwrite(t *testing.T) {
	env := newCLIEnv(t)
	err := (&InitCmd{}).Run(env.g, env.root)
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryConfig))

	require.NoError(t, (&InitCmd{Force: true}).Run(env.g, env.root))
	assert.Contains(t, env.out.String(), "initialized successfully")
}

func TestValidateCmd(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, (&ValidateCmd{}).Run(env.g, env.root))
	assert.Contains(t, env.out.String(), "8 entries (7 runnable, 1 excluded)")

	require.NoError(t, os.Remove(filepath.Join(env.dir, "requirements-pinned.txt")))
	err := (&ValidateCmd{}).Run(env.g, env.root)
	require.Error(t, err)
	assert.Equal(t, foundationerrors.ExitConfig, foundationerrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestValidateCmd_MissingConfig(t *testing.T) {
	env := newCLIEnv(t)
	env.root.Config = filepath.Join(env.dir, "nope.yaml")
	err := (&ValidateCmd{}).Run(env.g, env.root)
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryConfig))
}

func TestListCmd_ShowsExcludedReason(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, (&ListCmd{}).Run(env.g, env.root))

	out := env.out.String()
	assert.Contains(t, out, "py2.7-binary")
	assert.Contains(t, out, "py3.6-source-mpi")
	assert.Contains(t, out, "excluded: pinned install broken")
	assert.Contains(t, out, "8 entries, 1 excluded")
}

func TestPlanCmd_SingleEntry(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, (&PlanCmd{Entry: []string{"py3.6-source-mpi"}}).Run(env.g, env.root))

	out := env.out.String()
	assert.True(t, strings.HasPrefix(out, "py3.6-source-mpi\n"))
	assert.Contains(t, out, "  provision:\n")
	assert.Contains(t, out, "mpiexec -n 1")
	assert.Contains(t, out, "upload .coverage via http")
	assert.NotContains(t, out, "py2.7-binary")
}

func TestPlanCmd_UnknownEntry(t *testing.T) {
	env := newCLIEnv(t)
	err := (&PlanCmd{Entry: []string{"py9.9-binary"}}).Run(env.g, env.root)
	require.Error(t, err)
	assert.Equal(t, foundationerrors.ExitUsage, foundationerrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestRunCmd_DryRunWritesArtifactsAndHistory(t *testing.T) {
	env := newCLIEnv(t)
	summary := filepath.Join(env.dir, "out", "summary.html")
	metricsFile := filepath.Join(env.dir, "matrixci.prom")

	svc := build.NewService().
		WithRevisionReader(func(string) (git.Revision, error) { return git.Revision{}, nil }).
		WithRunIDGenerator(func() string { return "run-dry" })
	cmd := &RunCmd{DryRun: true, Summary: summary, MetricsFile: metricsFile}
	require.NoError(t, cmd.run(context.Background(), env.g, env.root, svc))

	out := env.out.String()
	assert.Contains(t, out, "+ (cd ")
	assert.Contains(t, out, "PASSED")

	html, err := os.ReadFile(summary)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<table>")

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "matrixci_run_duration_seconds")

	env.out.Reset()
	require.NoError(t, (&HistoryCmd{}).Run(env.g, env.root))
	hist := env.out.String()
	assert.Contains(t, hist, "run-dry")
	assert.Contains(t, hist, "passed*")
	assert.Contains(t, hist, "7/0/1")
}

func TestHistoryCmd_Empty(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, (&HistoryCmd{History: filepath.Join(env.dir, "empty.db")}).Run(env.g, env.root))
	assert.Contains(t, env.out.String(), "no runs recorded")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("debug").String())
	assert.Equal(t, "WARN", parseLevel("warn").String())
	assert.Equal(t, "INFO", parseLevel("bogus").String())
}
