package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T) (*git.Repository, *git.Worktree, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return repo, wt, dir
}

func commitFile(t *testing.T, wt *git.Worktree, dir, name string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("content\n"), 0o600))
	_, err := wt.Add(name)
	require.NoError(t, err)
	hash, err := wt.Commit("add "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "CI", Email: "ci@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func TestReadRevision_NoRepository(t *testing.T) {
	rev, err := ReadRevision(t.TempDir())
	require.NoError(t, err)
	assert.True(t, rev.Empty())
}

func TestReadRevision_NoCommits(t *testing.T) {
	_, _, dir := setupRepo(t)
	rev, err := ReadRevision(dir)
	require.NoError(t, err)
	assert.True(t, rev.Empty())
}

func TestReadRevision_CleanAndDirty(t *testing.T) {
	_, wt, dir := setupRepo(t)
	hash := commitFile(t, wt, dir, "setup.py")

	sub := filepath.Join(dir, "elephant")
	require.NoError(t, os.MkdirAll(sub, 0o750))

	rev, err := ReadRevision(sub)
	require.NoError(t, err)
	assert.Equal(t, hash, rev.Commit)
	assert.Equal(t, "master", rev.Branch)
	assert.Equal(t, "CI", rev.Author)
	assert.Equal(t, hash[:8], rev.Short())
	assert.False(t, rev.Dirty)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "setup.py"), []byte("changed\n"), 0o600))
	rev, err = ReadRevision(dir)
	require.NoError(t, err)
	assert.True(t, rev.Dirty)
}
