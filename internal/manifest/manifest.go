// Package manifest parses dependency manifests in the source installer's requirements format.
package manifest

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"
)

// Requirement is a single dependency declaration.
type Requirement struct {
	Name string // normalized distribution name
	Spec string // declaration with markers and comments stripped, e.g. "numpy>=1.8.2"
	Line int
}

// Manifest is an ordered list of requirements loaded from one file.
type Manifest struct {
	Path         string
	Requirements []Requirement
	hash         string
}

var (
	nameSeparators = regexp.MustCompile(`[-_.]+`)
	namePattern    = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)`)
)

// NormalizeName lowercases a distribution name and collapses runs of -, _ and . to a single dash.
func NormalizeName(name string) string {
	return nameSeparators.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	// #nosec G304 -- manifest paths come from the user's configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	m.Path = path
	return m, nil
}

// Parse parses requirements content. Comments, blank lines, installer options
// and environment markers are dropped.
func Parse(data []byte) (*Manifest, error) {
	m := &Manifest{}
	seen := make(map[string]int)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(cutOptions(stripComment(scanner.Text())))
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		if i := strings.Index(line, ";"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}

		match := namePattern.FindStringSubmatch(line)
		if match == nil {
			return nil, fmt.Errorf("line %d: cannot parse requirement %q", lineNo, line)
		}
		name := NormalizeName(match[1])
		if prev, dup := seen[name]; dup {
			return nil, fmt.Errorf("line %d: %s already declared on line %d", lineNo, name, prev)
		}
		seen[name] = lineNo
		m.Requirements = append(m.Requirements, Requirement{
			Name: name,
			Spec: strings.Join(strings.Fields(line), ""),
			Line: lineNo,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	m.hash = hex.EncodeToString(sum[:])
	return m, nil
}

// stripComment drops a comment: a '#' at line start or after whitespace.
func stripComment(line string) string {
	for i, r := range line {
		if r == '#' && (i == 0 || unicode.IsSpace(rune(line[i-1]))) {
			return line[:i]
		}
	}
	return line
}

// cutOptions drops per-requirement installer options such as --hash.
func cutOptions(line string) string {
	for i := 1; i < len(line)-1; i++ {
		if line[i] == '-' && line[i+1] == '-' && unicode.IsSpace(rune(line[i-1])) {
			return line[:i]
		}
	}
	return line
}

// Hash returns the SHA-256 of the raw manifest content.
func (m *Manifest) Hash() string { return m.hash }

// Lookup finds a requirement by (unnormalized) name.
func (m *Manifest) Lookup(name string) (Requirement, bool) {
	n := NormalizeName(name)
	for _, r := range m.Requirements {
		if r.Name == n {
			return r, true
		}
	}
	return Requirement{}, false
}

// Partition splits requirements into those not forced elsewhere and those whose
// normalized name is a key of forced. Declaration order is preserved in both.
func (m *Manifest) Partition(forced map[string]bool) (bulk, overridden []Requirement) {
	for _, r := range m.Requirements {
		if forced[r.Name] {
			overridden = append(overridden, r)
			continue
		}
		bulk = append(bulk, r)
	}
	return bulk, overridden
}
