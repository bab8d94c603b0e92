package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
	"git.home.luguber.info/inful/matrixci/internal/pipeline"
)

func TestPlan_DescribesEntryWithoutRunning(t *testing.T) {
	h := newHarness(t)

	plans, err := Plan(context.Background(), h.cfg, []string{"py3.6-source-mpi"})
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Empty(t, h.fake.Commands())

	byStage := map[pipeline.StageName][]string{}
	for _, sp := range plans[0].Stages {
		for _, c := range sp.Commands {
			byStage[sp.Stage] = append(byStage[sp.Stage], c.String())
		}
	}
	assert.Contains(t, strings.Join(byStage[pipeline.StageProvision], "\n"), "-m pip install")
	assert.Contains(t, strings.Join(byStage[pipeline.StageTest], "\n"), "mpiexec -n 1")
	assert.NotEmpty(t, byStage[pipeline.StageValidateCapability])
}

func TestPlan_ExcludedEntryHasNoStages(t *testing.T) {
	h := newHarness(t)
	plans, err := Plan(context.Background(), h.cfg, nil)
	require.NoError(t, err)
	require.Len(t, plans, 8)

	last := plans[7]
	assert.True(t, last.Entry.Excluded)
	assert.Empty(t, last.Stages)
}

func TestCheck_LoadsEveryManifest(t *testing.T) {
	h := newHarness(t)
	_, err := Check(h.cfg)
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryConfig))

	for _, name := range []string{"requirements-pinned.txt", "requirements-extras.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(h.cfg.Project.Dir, name), []byte("numpy==1.8.2\n"), 0o600))
	}
	m, err := Check(h.cfg)
	require.NoError(t, err)
	assert.Len(t, m.Entries, 8)
}
