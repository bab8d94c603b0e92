package build

import (
	"context"
	"path/filepath"

	"git.home.luguber.info/inful/matrixci/internal/config"
	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
	"git.home.luguber.info/inful/matrixci/internal/manifest"
	"git.home.luguber.info/inful/matrixci/internal/matrix"
	"git.home.luguber.info/inful/matrixci/internal/pipeline"
	"git.home.luguber.info/inful/matrixci/internal/shell"
)

// Manifests holds the requirement manifests a run installs from.
type Manifests struct {
	Requirements *manifest.Manifest
	// Pinned is nil unless a runnable entry needs it.
	Pinned *manifest.Manifest
}

// LoadManifests reads the requirements manifest and, when any runnable entry
// in m is pinned, the pinned manifest.
func LoadManifests(cfg *config.Config, m *matrix.Matrix) (Manifests, error) {
	var out Manifests
	var err error
	if out.Requirements, err = loadManifest(cfg.ManifestPath(cfg.Manifest.Requirements)); err != nil {
		return out, err
	}
	for _, e := range m.Runnable() {
		if !e.Pinned {
			continue
		}
		if out.Pinned, err = loadManifest(cfg.ManifestPath(cfg.Manifest.Pinned)); err != nil {
			return out, err
		}
		break
	}
	return out, nil
}

func loadManifest(path string) (*manifest.Manifest, error) {
	mf, err := manifest.Load(path)
	if err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryConfig, "failed to load requirement manifest").
			WithContext("path", path).
			Build()
	}
	return mf, nil
}

// Check expands the matrix and loads every manifest the configuration
// references, including the pinned one and entry extras.
func Check(cfg *config.Config) (*matrix.Matrix, error) {
	m, err := matrix.Expand(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := loadManifest(cfg.ManifestPath(cfg.Manifest.Requirements)); err != nil {
		return nil, err
	}
	if cfg.Manifest.Pinned != "" {
		if _, err := loadManifest(cfg.ManifestPath(cfg.Manifest.Pinned)); err != nil {
			return nil, err
		}
	}
	seen := map[string]bool{}
	for _, e := range m.Entries {
		for _, extra := range e.ExtraRequirements {
			path := cfg.ManifestPath(extra)
			if seen[path] {
				continue
			}
			seen[path] = true
			if _, err := loadManifest(path); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// EntryPlan lists the commands every stage of one entry would run.
type EntryPlan struct {
	Entry  matrix.Entry
	Stages []pipeline.StagePlan
}

// Plan describes the commands each selected entry would run without executing
// anything. Excluded entries are returned with no stages.
func Plan(ctx context.Context, cfg *config.Config, entryIDs []string) ([]EntryPlan, error) {
	m, err := matrix.Expand(cfg)
	if err != nil {
		return nil, err
	}
	if m, err = m.Select(entryIDs); err != nil {
		return nil, err
	}
	mf, err := LoadManifests(cfg, m)
	if err != nil {
		return nil, err
	}
	deps := pipeline.NewDeps(cfg, shell.NewDryRunExecutor(), mf.Requirements, mf.Pinned)
	deps.DryRun = true

	base := cfg.ManifestPath(cfg.Workspace.Dir)
	plans := make([]EntryPlan, 0, len(m.Entries))
	for _, entry := range m.Entries {
		if entry.Excluded {
			plans = append(plans, EntryPlan{Entry: entry})
			continue
		}
		stages, err := deps.Describe(ctx, entry, filepath.Join(base, entry.ID))
		if err != nil {
			return nil, err
		}
		plans = append(plans, EntryPlan{Entry: entry, Stages: stages})
	}
	return plans, nil
}
