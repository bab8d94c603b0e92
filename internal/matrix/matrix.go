// Package matrix expands the configured build matrix into independent entries.
package matrix

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"git.home.luguber.info/inful/matrixci/internal/config"
	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
)

// Entry is one immutable matrix combination.
type Entry struct {
	ID                string
	Index             int
	Python            string
	Channel           config.Channel
	Env               map[string]string
	Pinned            bool
	ExtraRequirements []string
	MPI               bool
	BeforeInstall     []string
	BeforeScript      []string
	AfterSuccess      config.PostAction
	AllowFailure      bool

	// Excluded entries stay in the matrix for reporting but never execute.
	Excluded      bool
	ExcludeReason string
}

// Matrix is the ordered, expanded set of entries.
type Matrix struct {
	Entries []Entry
}

// LookupFunc resolves process environment variables.
type LookupFunc func(string) (string, bool)

// EntryID builds the stable identifier py<version>-<channel>[-pinned][-mpi].
func EntryID(python string, ch config.Channel, pinned, mpi bool) string {
	var b strings.Builder
	b.WriteString("py")
	b.WriteString(python)
	b.WriteString("-")
	b.WriteString(string(ch))
	if pinned {
		b.WriteString("-pinned")
	}
	if mpi {
		b.WriteString("-mpi")
	}
	return b.String()
}

// Expand builds the matrix from configuration using the process environment.
func Expand(cfg *config.Config) (*Matrix, error) {
	return ExpandWithLookup(cfg, os.LookupEnv)
}

// ExpandWithLookup builds the matrix: the python x channel product first, then includes.
// Entries matching an exclude rule are marked, never removed.
func ExpandWithLookup(cfg *config.Config, lookup LookupFunc) (*Matrix, error) {
	var raw []config.EntryConfig
	for _, py := range cfg.Matrix.Python {
		for _, ch := range cfg.Matrix.Channels {
			raw = append(raw, config.EntryConfig{Python: py, Channel: ch})
		}
	}
	raw = append(raw, cfg.Matrix.Include...)

	m := &Matrix{Entries: make([]Entry, 0, len(raw))}
	seen := make(map[string]bool, len(raw))
	for i, ec := range raw {
		ch, err := resolveChannel(ec, cfg.ResolveChannelEnv(), lookup)
		if err != nil {
			return nil, foundationerrors.ConfigError(err.Error()).
				WithContext("python", ec.Python).
				WithContext("position", i).
				Build()
		}
		e := Entry{
			Index:             i,
			Python:            ec.Python,
			Channel:           ch,
			Env:               maps.Clone(ec.Env),
			Pinned:            ec.Pinned,
			ExtraRequirements: slices.Clone(ec.ExtraRequirements),
			MPI:               ec.MPI,
			BeforeInstall:     slices.Clone(ec.BeforeInstall),
			BeforeScript:      slices.Clone(ec.BeforeScript),
			AfterSuccess:      ec.AfterSuccess,
			AllowFailure:      ec.AllowFailure,
		}
		if e.Env == nil {
			e.Env = make(map[string]string)
		}
		if _, ok := e.Env[cfg.ResolveChannelEnv()]; !ok {
			e.Env[cfg.ResolveChannelEnv()] = string(ch)
		}
		e.ID = EntryID(e.Python, e.Channel, e.Pinned, e.MPI)
		if seen[e.ID] {
			return nil, foundationerrors.ConfigError(fmt.Sprintf("duplicate matrix entry %s", e.ID)).
				WithContext("entry", e.ID).
				Build()
		}
		seen[e.ID] = true

		for _, rule := range cfg.Matrix.Exclude {
			if matches(rule, e) {
				e.Excluded = true
				e.ExcludeReason = rule.Reason
				break
			}
		}
		m.Entries = append(m.Entries, e)
	}
	return m, nil
}

// resolveChannel picks the entry's channel, falling back to the channel-selection
// variable in the entry env and then the process environment.
func resolveChannel(ec config.EntryConfig, channelEnv string, lookup LookupFunc) (config.Channel, error) {
	raw := string(ec.Channel)
	if raw == "" {
		if v, ok := ec.Env[channelEnv]; ok {
			raw = v
		} else if lookup != nil {
			if v, ok := lookup(channelEnv); ok {
				raw = v
			}
		}
	}
	if raw == "" {
		return "", fmt.Errorf("entry python=%s has no channel and %s is not set", ec.Python, channelEnv)
	}
	ch, err := config.ParseChannel(raw)
	if err != nil {
		return "", fmt.Errorf("entry python=%s: %w", ec.Python, err)
	}
	return ch, nil
}

func matches(rule config.ExcludeRule, e Entry) bool {
	if rule.Python != "" && rule.Python != e.Python {
		return false
	}
	if rule.Channel != "" && rule.Channel != e.Channel {
		return false
	}
	if rule.Pinned != nil && *rule.Pinned != e.Pinned {
		return false
	}
	if rule.MPI != nil && *rule.MPI != e.MPI {
		return false
	}
	return true
}

// Runnable returns the entries that will execute, in matrix order.
func (m *Matrix) Runnable() []Entry {
	out := make([]Entry, 0, len(m.Entries))
	for _, e := range m.Entries {
		if !e.Excluded {
			out = append(out, e)
		}
	}
	return out
}

// Excluded returns the explicitly skipped entries.
func (m *Matrix) Excluded() []Entry {
	var out []Entry
	for _, e := range m.Entries {
		if e.Excluded {
			out = append(out, e)
		}
	}
	return out
}

// Lookup returns the entry with the given ID.
func (m *Matrix) Lookup(id string) (Entry, bool) {
	for _, e := range m.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Select restricts the matrix to the given IDs, preserving matrix order.
// An empty selection keeps every entry. Unknown IDs are a validation error.
func (m *Matrix) Select(ids []string) (*Matrix, error) {
	if len(ids) == 0 {
		return m, nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := m.Lookup(id); !ok {
			return nil, foundationerrors.ValidationError(fmt.Sprintf("unknown matrix entry %q", id)).
				WithContext("entry", id).
				Build()
		}
		want[id] = true
	}
	out := &Matrix{}
	for _, e := range m.Entries {
		if want[e.ID] {
			out.Entries = append(out.Entries, e)
		}
	}
	return out, nil
}

// EnvList renders the entry env as sorted KEY=VALUE pairs.
func (e Entry) EnvList() []string {
	keys := slices.Sorted(maps.Keys(e.Env))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+e.Env[k])
	}
	return out
}
