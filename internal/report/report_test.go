package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/matrixci/internal/build"
	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/git"
	"git.home.luguber.info/inful/matrixci/internal/matrix"
	"git.home.luguber.info/inful/matrixci/internal/pipeline"
)

func sampleResult() *build.RunResult {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	passed := []pipeline.StageOutcome{
		{Stage: pipeline.StageBeforeInstall, Result: pipeline.StageResultSuccess},
		{Stage: pipeline.StageProvision, Result: pipeline.StageResultSuccess},
		{Stage: pipeline.StageValidateCapability, Result: pipeline.StageResultSuccess},
		{Stage: pipeline.StageBeforeScript, Result: pipeline.StageResultSuccess},
		{Stage: pipeline.StageTest, Result: pipeline.StageResultSuccess},
		{Stage: pipeline.StageReport, Result: pipeline.StageResultWarning},
	}
	failed := []pipeline.StageOutcome{
		{Stage: pipeline.StageBeforeInstall, Result: pipeline.StageResultSuccess},
		{Stage: pipeline.StageProvision, Result: pipeline.StageResultFatal},
		{Stage: pipeline.StageValidateCapability, Result: pipeline.StageResultSkipped},
	}
	return &build.RunResult{
		RunID:    "run-0001",
		Project:  "elephant",
		Revision: git.Revision{Commit: "0123456789abcdef", Branch: "master"},
		Start:    start,
		End:      start.Add(90 * time.Second),
		Entries: []build.EntryResult{
			{
				Entry:    matrix.Entry{ID: "py3.6-source-mpi", Channel: config.ChannelSource},
				Status:   build.EntryPassed,
				Stages:   passed,
				Warnings: []string{"coverage upload failed"},
			},
			{
				Entry:       matrix.Entry{ID: "py2.7-binary", Channel: config.ChannelBinary},
				Status:      build.EntryFailed,
				Stages:      failed,
				FailedStage: pipeline.StageProvision,
				Err:         errors.New("conda create failed"),
				LogPath:     "/ws/py2.7-binary/provision.log",
			},
			{
				Entry:  matrix.Entry{ID: "py3.6-source-pinned", Excluded: true, ExcludeReason: "broken | upstream"},
				Status: build.EntryExcluded,
			},
		},
		Success: false,
	}
}

func TestStageTitle(t *testing.T) {
	assert.Equal(t, "Validate Capability", StageTitle(pipeline.StageValidateCapability))
	assert.Equal(t, "Before Install", StageTitle(pipeline.StageBeforeInstall))
	assert.Equal(t, "Test", StageTitle(pipeline.StageTest))
}

func TestMarkdown(t *testing.T) {
	out := string(Markdown(sampleResult()))

	assert.Contains(t, out, "# elephant matrix run")
	assert.Contains(t, out, "- Revision: `01234567` (master)")
	assert.Contains(t, out, "- Result: **failed**")
	assert.Contains(t, out, "| Entry | Status | Before Install | Provision | Validate Capability | Before Script | Test | Report | Failing stage | Log |")
	assert.Contains(t, out, "| `py3.6-source-mpi` | passed | ok | ok | ok | ok | ok | warn |  |  |")
	assert.Contains(t, out, "| `py2.7-binary` | failed | ok | FAIL | - | - | - | - | Provision | `/ws/py2.7-binary/provision.log` |")
	assert.Contains(t, out, `excluded: broken \| upstream`)
	assert.Contains(t, out, "## Warnings")
	assert.Contains(t, out, "- `py3.6-source-mpi`: coverage upload failed")
}

func TestHTML_RendersTable(t *testing.T) {
	out, err := HTML(sampleResult())
	require.NoError(t, err)
	html := string(out)
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<th>Validate Capability</th>")
	assert.Contains(t, html, "<code>py2.7-binary</code>")
}

func TestWrite_PicksFormatByExtension(t *testing.T) {
	dir := t.TempDir()
	res := sampleResult()

	mdPath := filepath.Join(dir, "out", "summary.md")
	require.NoError(t, Write(mdPath, res))
	md, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(md), "# elephant"))

	htmlPath := filepath.Join(dir, "summary.HTML")
	require.NoError(t, Write(htmlPath, res))
	html, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<table>")
}

func TestTerminal(t *testing.T) {
	out := Terminal(sampleResult())
	assert.Contains(t, out, "elephant: 3 entries in 1m30s")
	assert.Contains(t, out, "py2.7-binary")
	assert.Contains(t, out, "Provision")
	assert.Contains(t, out, "/ws/py2.7-binary/provision.log")
	assert.Contains(t, out, "warning: coverage upload failed")
	assert.Contains(t, out, "FAILED")
}
