package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/matrixci/internal/build"
	"git.home.luguber.info/inful/matrixci/internal/pipeline"
)

var titler = cases.Title(language.English)

// StageTitle turns validate_capability into "Validate Capability".
func StageTitle(stage pipeline.StageName) string {
	return titler.String(strings.ReplaceAll(string(stage), "_", " "))
}

// stageCell is the short marker shown for one stage outcome.
func stageCell(r pipeline.StageResult) string {
	switch r {
	case pipeline.StageResultSuccess:
		return "ok"
	case pipeline.StageResultWarning:
		return "warn"
	case pipeline.StageResultFatal:
		return "FAIL"
	case pipeline.StageResultCanceled:
		return "canceled"
	default:
		return "-"
	}
}

func outcomeOf(e build.EntryResult, stage pipeline.StageName) pipeline.StageResult {
	for _, o := range e.Stages {
		if o.Stage == stage {
			return o.Result
		}
	}
	return pipeline.StageResultSkipped
}

// Markdown renders res as a Markdown document with one table row per entry.
func Markdown(res *build.RunResult) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s matrix run\n\n", res.Project)
	fmt.Fprintf(&b, "- Run: `%s`\n", res.RunID)
	if !res.Revision.Empty() {
		fmt.Fprintf(&b, "- Revision: `%s` (%s)\n", res.Revision.Short(), res.Revision.Branch)
	}
	fmt.Fprintf(&b, "- Started: %s\n", res.Start.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- Duration: %s\n", res.Duration().Round(time.Millisecond))
	result := "passed"
	if !res.Success {
		result = "failed"
	}
	if res.DryRun {
		result += " (dry run)"
	}
	fmt.Fprintf(&b, "- Result: **%s**\n\n", result)

	b.WriteString("| Entry | Status |")
	for _, s := range pipeline.StageNames {
		fmt.Fprintf(&b, " %s |", StageTitle(s))
	}
	b.WriteString(" Failing stage | Log |\n|---|---|")
	for range pipeline.StageNames {
		b.WriteString("---|")
	}
	b.WriteString("---|---|\n")

	for _, e := range res.Entries {
		status := string(e.Status)
		if e.Status == build.EntryExcluded && e.Entry.ExcludeReason != "" {
			status += ": " + escapeCell(e.Entry.ExcludeReason)
		}
		fmt.Fprintf(&b, "| `%s` | %s |", e.Entry.ID, status)
		for _, s := range pipeline.StageNames {
			if !e.Executed() {
				b.WriteString(" |")
				continue
			}
			fmt.Fprintf(&b, " %s |", stageCell(outcomeOf(e, s)))
		}
		failing, logPath := "", ""
		if e.FailedStage != "" {
			failing = StageTitle(e.FailedStage)
		}
		if e.LogPath != "" {
			logPath = "`" + e.LogPath + "`"
		}
		fmt.Fprintf(&b, " %s | %s |\n", failing, logPath)
	}

	var warnings []string
	for _, e := range res.Entries {
		for _, w := range e.Warnings {
			warnings = append(warnings, fmt.Sprintf("- `%s`: %s", e.Entry.ID, w))
		}
	}
	if len(warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		b.WriteString(strings.Join(warnings, "\n"))
		b.WriteString("\n")
	}
	return b.Bytes()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
