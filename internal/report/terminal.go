package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"git.home.luguber.info/inful/matrixci/internal/build"
)

var (
	colorPass  = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#aad94c"}
	colorFail  = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#f07178"}
	colorWarn  = lipgloss.AdaptiveColor{Light: "#ef6c00", Dark: "#ffb454"}
	colorMuted = lipgloss.AdaptiveColor{Light: "#6c7680", Dark: "#6c7680"}

	headerStyle = lipgloss.NewStyle().Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(colorPass)
	failStyle   = lipgloss.NewStyle().Foreground(colorFail).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(colorWarn)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	idStyle     = lipgloss.NewStyle().Width(24)
)

func statusStyle(s build.EntryStatus) lipgloss.Style {
	switch s {
	case build.EntryPassed:
		return passStyle
	case build.EntryFailed, build.EntryCanceled:
		return failStyle
	case build.EntryAllowedFailure:
		return warnStyle
	default:
		return mutedStyle
	}
}

// Terminal renders a compact styled summary for the console.
func Terminal(res *build.RunResult) string {
	var b strings.Builder
	title := fmt.Sprintf("%s: %d entries in %s", res.Project, len(res.Entries), res.Duration().Round(time.Millisecond))
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n")

	for _, e := range res.Entries {
		line := idStyle.Render(e.Entry.ID) + statusStyle(e.Status).Render(string(e.Status))
		switch {
		case e.Status == build.EntryExcluded:
			line += mutedStyle.Render("  " + e.Entry.ExcludeReason)
		case e.FailedStage != "":
			line += "  " + StageTitle(e.FailedStage)
			if e.LogPath != "" {
				line += mutedStyle.Render("  " + e.LogPath)
			}
		}
		b.WriteString(line)
		b.WriteString("\n")
		for _, w := range e.Warnings {
			b.WriteString(warnStyle.Render("    warning: " + w))
			b.WriteString("\n")
		}
	}

	verdict := passStyle.Render("PASSED")
	if !res.Success {
		verdict = failStyle.Render("FAILED")
	}
	b.WriteString(verdict)
	b.WriteString("\n")
	return b.String()
}
