package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
)

func TestRun_ExitCodes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "matrixci.yaml")

	assert.Equal(t, foundationerrors.ExitUsage, run([]string{"frobnicate"}))
	assert.Equal(t, foundationerrors.ExitConfig, run([]string{"-c", path, "validate"}))
	assert.Equal(t, foundationerrors.ExitOK, run([]string{"-c", path, "init"}))
	assert.Equal(t, foundationerrors.ExitConfig, run([]string{"-c", path, "init"}))

	// Manifests are still missing.
	assert.Equal(t, foundationerrors.ExitConfig, run([]string{"-c", path, "validate"}))

	for _, name := range []string{"requirements.txt", "requirements-pinned.txt", "requirements-extras.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("numpy\n"), 0o600))
	}
	assert.Equal(t, foundationerrors.ExitOK, run([]string{"-c", path, "validate"}))
	assert.Equal(t, foundationerrors.ExitUsage, run([]string{"-c", path, "plan", "--entry", "py9.9-binary"}))
}
