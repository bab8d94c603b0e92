package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/matrixci/internal/capability"
	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/coverage"
	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
	"git.home.luguber.info/inful/matrixci/internal/git"
	"git.home.luguber.info/inful/matrixci/internal/manifest"
	"git.home.luguber.info/inful/matrixci/internal/matrix"
	"git.home.luguber.info/inful/matrixci/internal/provision"
	"git.home.luguber.info/inful/matrixci/internal/shell"
	"git.home.luguber.info/inful/matrixci/internal/testexec"
)

// Deps are the collaborators shared by every entry of a run. They are read-only
// once a run starts.
type Deps struct {
	Config   *config.Config
	Executor shell.Executor
	// Requirements is the main manifest; Pinned is used by pinned entries.
	Requirements *manifest.Manifest
	Pinned       *manifest.Manifest
	Capability   *capability.Validator
	Tests        *testexec.Executor
	// Reporter is nil when uploads are unavailable.
	Reporter *coverage.Reporter
	Revision git.Revision
	// DryRun replaces the upload with a printed description.
	DryRun bool
}

// NewDeps wires the default collaborators for cfg.
func NewDeps(cfg *config.Config, executor shell.Executor, requirements, pinned *manifest.Manifest) *Deps {
	return &Deps{
		Config:       cfg,
		Executor:     executor,
		Requirements: requirements,
		Pinned:       pinned,
		Capability:   capability.New(cfg.Capability),
		Tests:        testexec.New(cfg),
	}
}

// EntryStages builds the ordered stage sequence for entry.
func (d *Deps) EntryStages(entry matrix.Entry) []StageDef {
	upload := entry.AfterSuccess == config.PostActionCoverageUpload && (d.Reporter != nil || d.DryRun)
	return NewPipeline().
		Add(StageBeforeInstall, d.beforeInstall).
		Add(StageProvision, d.provision).
		AddIf(d.Capability != nil, StageValidateCapability, d.validateCapability).
		Add(StageBeforeScript, d.beforeScript).
		Add(StageTest, d.test).
		AddIf(upload, StageReport, d.report).
		Build()
}

// ProvisionRequest assembles the provisioning request for entry.
func (d *Deps) ProvisionRequest(entry matrix.Entry, workDir string) (provision.Request, error) {
	cfg := d.Config
	req := provision.Request{
		Entry:        entry,
		Config:       cfg,
		Manifest:     d.Requirements,
		ManifestPath: cfg.ManifestPath(cfg.Manifest.Requirements),
		WorkDir:      workDir,
	}
	if entry.Pinned {
		if d.Pinned == nil {
			return req, foundationerrors.ConfigError("pinned entry requires manifest.pinned").
				WithContext("entry", entry.ID).
				Build()
		}
		req.Manifest = d.Pinned
		req.ManifestPath = cfg.ManifestPath(cfg.Manifest.Pinned)
	}
	for _, extra := range entry.ExtraRequirements {
		req.ExtraRequirements = append(req.ExtraRequirements, cfg.ManifestPath(extra))
	}
	return req, nil
}

// PlanEntry returns the install plan for entry without executing anything.
func (d *Deps) PlanEntry(entry matrix.Entry, workDir string) (*provision.Plan, error) {
	req, err := d.ProvisionRequest(entry, workDir)
	if err != nil {
		return nil, err
	}
	return provision.BuildPlan(req)
}

func (d *Deps) beforeInstall(ctx context.Context, st *EntryState) error {
	lines := append(append([]string(nil), d.Config.BeforeInstall...), st.Entry.BeforeInstall...)
	for _, line := range lines {
		cmd := shell.ShellLine(line).WithDir(d.Config.Project.Dir).WithEnv(st.Env...)
		if err := d.Executor.Run(ctx, cmd, st.Out); err != nil {
			return hookError(err, foundationerrors.CategoryProvisioning, "before_install", line)
		}
	}
	return nil
}

func (d *Deps) provision(ctx context.Context, st *EntryState) error {
	plan, err := d.PlanEntry(st.Entry, st.WorkDir)
	if err != nil {
		return err
	}
	st.Plan = plan
	st.Environment = plan.Environment
	return provision.Execute(ctx, d.Executor, plan, st.Env, st.Out)
}

func (d *Deps) validateCapability(ctx context.Context, st *EntryState) error {
	return d.Capability.Validate(ctx, d.Executor, st.Environment, st.Env, st.Out)
}

func (d *Deps) beforeScript(ctx context.Context, st *EntryState) error {
	lines := append(append([]string(nil), d.Config.BeforeScript...), st.Entry.BeforeScript...)
	for _, line := range lines {
		cmd := st.Environment.Shell(line).WithDir(d.Config.Project.Dir).WithEnv(st.Env...)
		if err := d.Executor.Run(ctx, cmd, st.Out); err != nil {
			return hookError(err, foundationerrors.CategoryTest, "before_script", line)
		}
	}
	return nil
}

func (d *Deps) test(ctx context.Context, st *EntryState) error {
	return d.Tests.Run(ctx, d.Executor, st.Environment, st.Entry.MPI, st.WorkDir, st.Env, st.Out)
}

// CoverageFile is where the test stage leaves the entry's coverage report.
func (d *Deps) CoverageFile(workDir string) string {
	return filepath.Join(workDir, filepath.Base(d.Config.Coverage.File))
}

func (d *Deps) report(ctx context.Context, st *EntryState) error {
	file := d.CoverageFile(st.WorkDir)
	if d.DryRun {
		_, _ = fmt.Fprintf(st.Out, "+ upload %s via %s\n", file, d.Config.Coverage.Uploader)
		return nil
	}
	loc, err := d.Reporter.Report(ctx, coverage.Request{
		RunID:       st.RunID,
		EntryID:     st.Entry.ID,
		File:        file,
		Environment: st.Environment,
		Env:         st.Env,
		Revision:    d.Revision,
		Out:         st.Out,
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return NewCanceledStageError(StageReport, err)
		}
		return NewWarnStageError(StageReport, err)
	}
	st.CoverageLocation = loc
	_, _ = fmt.Fprintf(st.Out, "coverage uploaded to %s\n", loc)
	return nil
}

func hookError(err error, category foundationerrors.ErrorCategory, hook, line string) error {
	if errors.Is(err, context.Canceled) {
		return foundationerrors.WrapError(err, foundationerrors.CategoryCanceled, hook+" canceled").Build()
	}
	b := foundationerrors.WrapError(err, category, hook+" command failed").
		Fatal().
		WithContext("hook", hook).
		WithContext("command", line)
	var exitErr *shell.ExitError
	if errors.As(err, &exitErr) {
		b = b.WithContext("exit_code", exitErr.ExitCode)
	}
	return b.Build()
}
