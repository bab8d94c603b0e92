package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/coverage"
	"git.home.luguber.info/inful/matrixci/internal/eventstore"
	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
	"git.home.luguber.info/inful/matrixci/internal/git"
	"git.home.luguber.info/inful/matrixci/internal/pipeline"
	"git.home.luguber.info/inful/matrixci/internal/shell"
)

type harness struct {
	cfg   *config.Config
	fake  *shell.FakeExecutor
	svc   *DefaultService
	store *eventstore.SQLiteStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("numpy>=1.8.2\nneo>=0.5.0\nscipy\n"), 0o600))

	cfg := config.ExampleConfig()
	cfg.Project.Dir = dir
	cfg.Workspace.Dir = filepath.Join(dir, ".matrixci")
	require.NoError(t, config.ApplyDefaults(cfg))

	store, err := eventstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	fake := shell.NewFakeExecutor()
	svc := NewService().
		WithExecutorFactory(func(bool) shell.Executor { return fake }).
		WithRevisionReader(func(string) (git.Revision, error) {
			return git.Revision{Commit: "0123456789abcdef", Branch: "master"}, nil
		}).
		WithUploaderFactory(func(c *config.Config, e shell.Executor) (coverage.Uploader, error) {
			return &coverage.CommandUploader{Argv: []string{"coveralls"}, Executor: e, Dir: c.Project.Dir}, nil
		}).
		WithBus(pipeline.NewBusWithEventStore(store)).
		WithRunIDGenerator(func() string { return "run-0001" })
	return &harness{cfg: cfg, fake: fake, svc: svc, store: store}
}

func statuses(r *RunResult) map[string]EntryStatus {
	out := map[string]EntryStatus{}
	for _, e := range r.Entries {
		out[e.Entry.ID] = e.Status
	}
	return out
}

func TestRun_ExampleMatrix(t *testing.T) {
	h := newHarness(t)
	res, err := h.svc.Run(context.Background(), Request{Config: h.cfg, Parallel: 3})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "run-0001", res.RunID)
	assert.Equal(t, "0123456789abcdef", res.Revision.Commit)
	require.Len(t, res.Entries, 8)
	assert.Equal(t, "py2.7-binary", res.Entries[0].Entry.ID)
	assert.Equal(t, "py3.6-source-pinned", res.Entries[7].Entry.ID)
	assert.Equal(t, EntryExcluded, res.Entries[7].Status)
	assert.Empty(t, res.Entries[7].Stages)

	for id, st := range statuses(res) {
		if id != "py3.6-source-pinned" {
			assert.Equal(t, EntryPassed, st, id)
		}
	}
	for _, c := range h.fake.Rendered() {
		assert.NotContains(t, c, "requirements-pinned.txt")
		assert.NotContains(t, c, "py3.6-source-pinned")
	}

	// the coverage report never appears under the fake executor, so the
	// upload warns without changing the entry outcome
	mpi := res.Entries[6]
	require.Equal(t, "py3.6-source-mpi", mpi.Entry.ID)
	assert.Equal(t, EntryPassed, mpi.Status)
	require.Len(t, mpi.Warnings, 1)
	assert.Contains(t, mpi.Warnings[0], "coverage report not found")
}

func TestRun_PersistsHistory(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Run(context.Background(), Request{Config: h.cfg})
	require.NoError(t, err)

	proj := eventstore.NewRunHistoryProjection(h.store, 10)
	require.NoError(t, proj.Rebuild(context.Background()))
	summary, ok := proj.Get("run-0001")
	require.True(t, ok)
	assert.Equal(t, eventstore.RunStatusPassed, summary.Status)
	assert.Equal(t, 8, summary.EntryCount)
	assert.Equal(t, 1, summary.Excluded)
	assert.Equal(t, 7, summary.Passed)
	assert.Equal(t, "excluded", summary.EntryStatuses["py3.6-source-pinned"])
}

func TestRun_FirstFailureInMatrixOrder(t *testing.T) {
	h := newHarness(t)
	h.fake.FailOn("python3.5 -m venv", 1)
	h.fake.FailOn("HAVE_FIM", 1)

	res, err := h.svc.Run(context.Background(), Request{Config: h.cfg, Parallel: 4})
	require.NoError(t, err)
	assert.False(t, res.Success)

	first, ok := res.FirstFailure()
	require.True(t, ok)
	assert.Equal(t, "py2.7-binary", first.Entry.ID)
	assert.Equal(t, pipeline.StageValidateCapability, first.FailedStage)
	assert.NotEmpty(t, first.LogPath)
	assert.True(t, foundationerrors.HasCategory(res.Err(), foundationerrors.CategoryCapability))

	py35 := statuses(res)["py3.5-source"]
	assert.Equal(t, EntryFailed, py35)
	for _, e := range res.Entries {
		if e.Entry.ID == "py3.5-source" {
			assert.Equal(t, pipeline.StageProvision, e.FailedStage)
			assert.True(t, foundationerrors.HasCategory(e.Err, foundationerrors.CategoryProvisioning))
		}
	}
}

func TestRun_AllowFailure(t *testing.T) {
	h := newHarness(t)
	h.cfg.Matrix.Include[0].AllowFailure = true
	h.fake.FailOn("mpiexec", 1)

	res, err := h.svc.Run(context.Background(), Request{Config: h.cfg, EntryIDs: []string{"py3.6-source-mpi"}})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, EntryAllowedFailure, res.Entries[0].Status)
	assert.Equal(t, pipeline.StageTest, res.Entries[0].FailedStage)
	assert.True(t, res.Success)
	assert.NoError(t, res.Err())
}

func TestRun_Canceled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := h.svc.Run(ctx, Request{Config: h.cfg, EntryIDs: []string{"py2.7-binary", "py2.7-source"}})
	require.NoError(t, err)
	assert.False(t, res.Success)
	for _, e := range res.Entries {
		assert.Equal(t, EntryCanceled, e.Status)
	}
	assert.Empty(t, h.fake.Commands())
	assert.True(t, IsCanceled(res.Err()))
}

func TestRun_UnknownEntry(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Run(context.Background(), Request{Config: h.cfg, EntryIDs: []string{"py9.9-binary"}})
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryValidation))
}

func TestRun_MissingManifest(t *testing.T) {
	h := newHarness(t)
	h.cfg.Manifest.Requirements = "missing.txt"
	_, err := h.svc.Run(context.Background(), Request{Config: h.cfg})
	require.Error(t, err)
}

func TestRun_DryRunCleansWorkspace(t *testing.T) {
	h := newHarness(t)
	svc := NewService().
		WithRevisionReader(func(string) (git.Revision, error) { return git.Revision{}, nil })
	var console strings.Builder
	res, err := svc.Run(context.Background(), Request{
		Config:   h.cfg,
		EntryIDs: []string{"py3.6-source-mpi"},
		DryRun:   true,
		Console:  &console,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, console.String(), "[py3.6-source-mpi] + ")
	assert.Contains(t, console.String(), "mpiexec -n 1")
	_, statErr := os.Stat(res.Workspace)
	assert.True(t, os.IsNotExist(statErr))
}
