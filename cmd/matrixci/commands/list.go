package commands

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/matrixci/internal/matrix"
)

// ListCmd implements the 'list' command.
type ListCmd struct{}

func (l *ListCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	m, err := matrix.Expand(cfg)
	if err != nil {
		return err
	}

	out := g.out()
	_, _ = fmt.Fprintf(out, "%-24s %-7s %-7s %s\n", "ENTRY", "PYTHON", "CHANNEL", "NOTES")
	for _, e := range m.Entries {
		_, _ = fmt.Fprintf(out, "%-24s %-7s %-7s %s\n", e.ID, e.Python, e.Channel, entryNotes(e))
	}
	_, _ = fmt.Fprintf(out, "\n%d entries, %d excluded\n", len(m.Entries), len(m.Excluded()))
	return nil
}

func entryNotes(e matrix.Entry) string {
	var notes []string
	if e.Pinned {
		notes = append(notes, "pinned")
	}
	if e.MPI {
		notes = append(notes, "mpi")
	}
	if len(e.ExtraRequirements) > 0 {
		notes = append(notes, "extras="+strings.Join(e.ExtraRequirements, ","))
	}
	if e.AfterSuccess != "" {
		notes = append(notes, string(e.AfterSuccess))
	}
	if e.AllowFailure {
		notes = append(notes, "allow_failure")
	}
	if e.Excluded {
		notes = append(notes, "excluded: "+e.ExcludeReason)
	}
	return strings.Join(notes, "; ")
}
