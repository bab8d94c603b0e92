package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/matrixci/internal/logfields"
)

// Manager handles timestamped run workspace directories.
type Manager struct {
	baseDir string
	runDir  string
	suffix  string
	now     func() time.Time
}

// NewManager creates a manager with ephemeral timestamped run directories.
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir, now: time.Now}
}

// NewRunManager creates an ephemeral manager whose run directory name also
// carries the start of runID, so concurrent runs never share a directory.
func NewRunManager(baseDir, runID string) *Manager {
	m := NewManager(baseDir)
	if len(runID) > 8 {
		runID = runID[:8]
	}
	m.suffix = safeName(runID)
	return m
}

// Create creates the run directory.
func (m *Manager) Create() error {
	name := "matrixci-" + m.now().Format("20060102-150405")
	if m.suffix != "" {
		name += "-" + m.suffix
	}
	runDir := filepath.Join(m.baseDir, name)
	if err := os.MkdirAll(runDir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}
	m.runDir = runDir
	slog.Info("Created workspace", logfields.Path(runDir))
	return nil
}

// GetPath returns the run directory.
func (m *Manager) GetPath() string { return m.runDir }

// Cleanup removes the run directory.
func (m *Manager) Cleanup() error {
	if m.runDir == "" {
		return nil
	}
	if err := os.RemoveAll(m.runDir); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}
	slog.Info("Cleaned up workspace", logfields.Path(m.runDir))
	m.runDir = ""
	return nil
}

// EntryDir creates and returns the directory for one matrix entry.
func (m *Manager) EntryDir(entryID string) (string, error) {
	if m.runDir == "" {
		return "", fmt.Errorf("workspace not created")
	}
	dir := filepath.Join(m.runDir, safeName(entryID))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create entry directory: %w", err)
	}
	return dir, nil
}

// StageLog opens (truncating) the log file <run>/<entry>/<stage>.log.
func (m *Manager) StageLog(entryID, stage string) (*os.File, string, error) {
	dir, err := m.EntryDir(entryID)
	if err != nil {
		return nil, "", err
	}
	path := filepath.Join(dir, safeName(stage)+".log")
	// #nosec G304 -- path is built from sanitized entry and stage names
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open stage log: %w", err)
	}
	return f, path, nil
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
