package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/matrixci/internal/config"
	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
)

func exampleConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.ExampleConfig()
	require.NoError(t, config.ApplyDefaults(cfg))
	return cfg
}

func noEnv(string) (string, bool) { return "", false }

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestExpand_Example(t *testing.T) {
	m, err := ExpandWithLookup(exampleConfig(t), noEnv)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"py2.7-binary", "py2.7-source",
		"py3.5-binary", "py3.5-source",
		"py3.6-binary", "py3.6-source",
		"py3.6-source-mpi",
		"py3.6-source-pinned",
	}, ids(m.Entries))

	excluded := m.Excluded()
	require.Len(t, excluded, 1)
	assert.Equal(t, "py3.6-source-pinned", excluded[0].ID)
	assert.Contains(t, excluded[0].ExcludeReason, "upstream")
	assert.NotContains(t, ids(m.Runnable()), "py3.6-source-pinned")

	mpi, ok := m.Lookup("py3.6-source-mpi")
	require.True(t, ok)
	assert.True(t, mpi.MPI)
	assert.Equal(t, []string{"requirements-extras.txt"}, mpi.ExtraRequirements)
	assert.Equal(t, config.PostActionCoverageUpload, mpi.AfterSuccess)
	assert.Equal(t, "source", mpi.Env["DISTRIB"])
}

func TestExpand_ChannelFromEnv(t *testing.T) {
	cfg := exampleConfig(t)
	cfg.Matrix.Python = nil
	cfg.Matrix.Exclude = nil
	cfg.Matrix.Include = []config.EntryConfig{
		{Python: "3.6", Env: map[string]string{"DISTRIB": "conda"}},
		{Python: "2.7"},
	}

	m, err := ExpandWithLookup(cfg, func(k string) (string, bool) {
		if k == "DISTRIB" {
			return "pip", true
		}
		return "", false
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"py3.6-binary", "py2.7-source"}, ids(m.Entries))
}

func TestExpand_MissingChannel(t *testing.T) {
	cfg := exampleConfig(t)
	cfg.Matrix.Python = nil
	cfg.Matrix.Include = []config.EntryConfig{{Python: "3.6"}}

	_, err := ExpandWithLookup(cfg, noEnv)
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryConfig))
}

func TestExpand_Duplicate(t *testing.T) {
	cfg := exampleConfig(t)
	cfg.Matrix.Include = append(cfg.Matrix.Include, config.EntryConfig{Python: "2.7", Channel: config.ChannelBinary})

	_, err := ExpandWithLookup(cfg, noEnv)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate matrix entry py2.7-binary")
}

func TestExpand_EntriesDoNotShareState(t *testing.T) {
	cfg := exampleConfig(t)
	m, err := ExpandWithLookup(cfg, noEnv)
	require.NoError(t, err)

	e, _ := m.Lookup("py3.6-source-mpi")
	e.ExtraRequirements[0] = "mutated"
	assert.Equal(t, "requirements-extras.txt", cfg.Matrix.Include[0].ExtraRequirements[0])
}

func TestSelect(t *testing.T) {
	m, err := ExpandWithLookup(exampleConfig(t), noEnv)
	require.NoError(t, err)

	sel, err := m.Select([]string{"py3.6-source", "py2.7-binary"})
	require.NoError(t, err)
	assert.Equal(t, []string{"py2.7-binary", "py3.6-source"}, ids(sel.Entries))

	_, err = m.Select([]string{"py4.0-binary"})
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryValidation))

	all, err := m.Select(nil)
	require.NoError(t, err)
	assert.Len(t, all.Entries, len(m.Entries))
}

func TestEntryID(t *testing.T) {
	assert.Equal(t, "py3.6-source-pinned-mpi", EntryID("3.6", config.ChannelSource, true, true))
}

func TestEnvList(t *testing.T) {
	e := Entry{Env: map[string]string{"B": "2", "A": "1"}}
	assert.Equal(t, []string{"A=1", "B=2"}, e.EnvList())
}
