package build

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/coverage"
	"git.home.luguber.info/inful/matrixci/internal/eventstore"
	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
	"git.home.luguber.info/inful/matrixci/internal/git"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
	"git.home.luguber.info/inful/matrixci/internal/matrix"
	"git.home.luguber.info/inful/matrixci/internal/metrics"
	"git.home.luguber.info/inful/matrixci/internal/observability"
	"git.home.luguber.info/inful/matrixci/internal/pipeline"
	"git.home.luguber.info/inful/matrixci/internal/provision"
	"git.home.luguber.info/inful/matrixci/internal/retry"
	"git.home.luguber.info/inful/matrixci/internal/shell"
	"git.home.luguber.info/inful/matrixci/internal/workspace"
)

// ExecutorFactory returns the executor for a run.
type ExecutorFactory func(dryRun bool) shell.Executor

// RevisionReader reports the source revision of the project directory.
type RevisionReader func(dir string) (git.Revision, error)

// DefaultService is the standard implementation of Service.
type DefaultService struct {
	// Optional dependencies that can be injected
	executorFactory  ExecutorFactory
	workspaceFactory func(baseDir, runID string) *workspace.Manager
	revisionReader   RevisionReader
	uploaderFactory  func(cfg *config.Config, executor shell.Executor) (coverage.Uploader, error)
	recorder         metrics.Recorder
	bus              *pipeline.Bus
	newRunID         func() string
	now              func() time.Time
}

// NewService creates a DefaultService with default factories.
func NewService() *DefaultService {
	return &DefaultService{
		executorFactory: func(dryRun bool) shell.Executor {
			if dryRun {
				return shell.NewDryRunExecutor()
			}
			return shell.NewOSExecutor()
		},
		workspaceFactory: workspace.NewRunManager,
		revisionReader:   git.ReadRevision,
		uploaderFactory:  coverage.NewUploader,
		recorder:         metrics.NoopRecorder{},
		bus:              pipeline.NewBus(),
		newRunID:         func() string { return uuid.NewString() },
		now:              time.Now,
	}
}

// WithExecutorFactory allows injecting a custom executor (for testing).
func (s *DefaultService) WithExecutorFactory(f ExecutorFactory) *DefaultService {
	s.executorFactory = f
	return s
}

// WithWorkspaceFactory allows injecting a custom workspace factory (for testing).
func (s *DefaultService) WithWorkspaceFactory(f func(baseDir, runID string) *workspace.Manager) *DefaultService {
	s.workspaceFactory = f
	return s
}

// WithRevisionReader replaces the go-git revision lookup.
func (s *DefaultService) WithRevisionReader(r RevisionReader) *DefaultService {
	s.revisionReader = r
	return s
}

// WithUploaderFactory replaces the coverage uploader constructor.
func (s *DefaultService) WithUploaderFactory(f func(*config.Config, shell.Executor) (coverage.Uploader, error)) *DefaultService {
	s.uploaderFactory = f
	return s
}

// WithRecorder injects a metrics recorder.
func (s *DefaultService) WithRecorder(r metrics.Recorder) *DefaultService {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	s.recorder = r
	return s
}

// WithBus injects the event bus run events are published on.
func (s *DefaultService) WithBus(b *pipeline.Bus) *DefaultService {
	if b != nil {
		s.bus = b
	}
	return s
}

// WithRunIDGenerator overrides the UUID run ID generator.
func (s *DefaultService) WithRunIDGenerator(f func() string) *DefaultService {
	s.newRunID = f
	return s
}

// Run expands the matrix and runs every selected, non-excluded entry.
// The returned error is reserved for problems that prevent the run from
// starting; entry failures are reported through RunResult.
func (s *DefaultService) Run(ctx context.Context, req Request) (*RunResult, error) {
	cfg := req.Config
	if cfg == nil {
		return nil, foundationerrors.ConfigError("config required").Build()
	}

	runID := s.newRunID()
	ctx = observability.WithRunID(ctx, runID)
	result := &RunResult{RunID: runID, Project: cfg.Project.Name, DryRun: req.DryRun, Start: s.now()}

	m, err := matrix.Expand(cfg)
	if err != nil {
		return nil, err
	}
	m, err = m.Select(req.EntryIDs)
	if err != nil {
		return nil, err
	}

	deps, err := s.prepareDeps(ctx, cfg, m, req)
	if err != nil {
		return nil, err
	}
	result.Revision = deps.Revision

	baseDir := req.WorkspaceDir
	if baseDir == "" {
		baseDir = cfg.ManifestPath(cfg.Workspace.Dir)
	}
	ws := s.workspaceFactory(baseDir, runID)
	if err := ws.Create(); err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "failed to create workspace").
			WithContext("path", baseDir).
			Build()
	}
	result.Workspace = ws.GetPath()

	s.publishRunStarted(ctx, result, req, m)
	observability.InfoContext(ctx, "Run started",
		slog.Int("entries", len(m.Runnable())),
		slog.Int("excluded", len(m.Excluded())),
		slog.Bool("dry_run", req.DryRun))

	parallel := req.Parallel
	if parallel <= 0 {
		parallel = cfg.Parallel
	}
	result.Entries = s.runEntries(ctx, m, deps, ws, req, runID, parallel, cfg)

	result.End = s.now()
	result.Success = deriveSuccess(result.Entries)
	s.recorder.ObserveRunDuration(result.Duration())
	s.recorder.IncRunOutcome(result.Success)
	s.publishRunCompleted(ctx, result)

	if n := s.bus.RetryPersist(context.WithoutCancel(ctx)); n > 0 {
		observability.WarnContext(ctx, "Some run events could not be delivered", slog.Int("undelivered", n))
	}

	if result.Success && !req.KeepWorkspace && !cfg.Workspace.Keep {
		if err := ws.Cleanup(); err != nil {
			observability.WarnContext(ctx, "Workspace cleanup failed", logfields.Error(err))
		}
	}

	observability.InfoContext(ctx, "Run completed",
		slog.Bool("success", result.Success),
		logfields.Duration(result.Duration()))
	return result, nil
}

// prepareDeps loads manifests and wires the per-run collaborators.
func (s *DefaultService) prepareDeps(ctx context.Context, cfg *config.Config, m *matrix.Matrix, req Request) (*pipeline.Deps, error) {
	mf, err := LoadManifests(cfg, m)
	if err != nil {
		return nil, err
	}

	executor := s.executorFactory(req.DryRun)
	deps := pipeline.NewDeps(cfg, executor, mf.Requirements, mf.Pinned)
	deps.DryRun = req.DryRun

	if rev, err := s.revisionReader(cfg.Project.Dir); err != nil {
		observability.WarnContext(ctx, "Could not read source revision", logfields.Error(err))
	} else {
		deps.Revision = rev
	}

	if !req.DryRun {
		uploader, err := s.uploaderFactory(cfg, executor)
		if err != nil {
			observability.WarnContext(ctx, "Coverage uploads disabled", logfields.Error(err))
		} else {
			deps.Reporter = coverage.NewReporter(uploader, retry.FromConfig(cfg.Coverage.Retry), s.recorder)
		}
	}
	return deps, nil
}

// runEntries runs runnable entries on at most parallel workers and returns
// results in matrix order.
func (s *DefaultService) runEntries(ctx context.Context, m *matrix.Matrix, deps *pipeline.Deps, ws *workspace.Manager, req Request, runID string, parallel int, cfg *config.Config) []EntryResult {
	if parallel < 1 {
		parallel = 1
	}
	results := make([]EntryResult, len(m.Entries))

	var console io.Writer
	if req.Console != nil {
		console = pipeline.NewSyncWriter(req.Console)
	}
	runner := &pipeline.Runner{
		OpenLog: func(entryID string, stage pipeline.StageName) (io.WriteCloser, string, error) {
			return ws.StageLog(entryID, string(stage))
		},
		Console:      console,
		StageTimeout: stageTimeout(cfg),
		Observer: pipeline.Observers{
			pipeline.RecorderObserver{Recorder: s.recorder},
			pipeline.BusObserver{Bus: s.bus},
		},
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		active int
	)
	sem := make(chan struct{}, parallel)
	for i, entry := range m.Entries {
		if entry.Excluded {
			observability.InfoContext(ctx, "Entry excluded", logfields.Entry(entry.ID), slog.String("reason", entry.ExcludeReason))
			results[i] = EntryResult{Entry: entry, Status: EntryExcluded}
			s.recorder.IncEntryOutcome(string(entry.Channel), string(EntryExcluded))
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, entry matrix.Entry) {
			defer wg.Done()
			defer func() { <-sem }()

			mu.Lock()
			active++
			s.recorder.SetActiveEntries(active)
			mu.Unlock()

			results[i] = s.runEntry(ctx, runner, deps, ws, runID, entry)

			mu.Lock()
			active--
			s.recorder.SetActiveEntries(active)
			mu.Unlock()
		}(i, entry)
	}
	wg.Wait()
	return results
}

func (s *DefaultService) runEntry(ctx context.Context, runner *pipeline.Runner, deps *pipeline.Deps, ws *workspace.Manager, runID string, entry matrix.Entry) EntryResult {
	ctx = observability.WithEntry(ctx, entry.ID)
	start := s.now()

	workDir, err := ws.EntryDir(entry.ID)
	if err != nil {
		return s.finishEntry(ctx, runID, EntryResult{
			Entry:       entry,
			Status:      EntryFailed,
			FailedStage: pipeline.StageBeforeInstall,
			Err:         foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "failed to create entry directory").Build(),
		}, start)
	}

	if ctx.Err() == nil {
		lock, err := ws.Lock(ctx, lockName(deps.Config, entry))
		if err != nil && ctx.Err() == nil {
			observability.WarnContext(ctx, "Running without environment lock", logfields.Error(err))
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				observability.WarnContext(ctx, "Failed to release environment lock", logfields.Error(err))
			}
		}()
	}

	s.publish(ctx, func() (*eventstore.BaseEvent, error) {
		data := eventstore.EntryStartedData{Entry: entry.ID, Channel: string(entry.Channel), Python: entry.Python}
		if deps.Requirements != nil {
			data.ManifestHash = deps.Requirements.Hash()
		}
		return eventstore.NewEntryStarted(runID, data)
	})
	observability.InfoContext(ctx, "Entry started", logfields.Channel(string(entry.Channel)), logfields.Python(entry.Python))

	st := pipeline.NewEntryState(runID, entry, workDir)
	_ = runner.RunStages(ctx, st, deps.EntryStages(entry))

	res := EntryResult{
		Entry:            entry,
		Status:           EntryPassed,
		Stages:           st.Outcomes,
		WorkDir:          workDir,
		CoverageLocation: st.CoverageLocation,
	}
	for _, w := range st.Warnings() {
		res.Warnings = append(res.Warnings, w.Error.Error())
	}
	if failure, failed := st.Failure(); failed {
		res.FailedStage = failure.Stage
		res.LogPath = failure.LogPath
		res.Err = failure.Error
		switch {
		case failure.Result == pipeline.StageResultCanceled:
			res.Status = EntryCanceled
		case entry.AllowFailure:
			res.Status = EntryAllowedFailure
		default:
			res.Status = EntryFailed
		}
	}
	return s.finishEntry(ctx, runID, res, start)
}

func (s *DefaultService) finishEntry(ctx context.Context, runID string, res EntryResult, start time.Time) EntryResult {
	res.Duration = s.now().Sub(start)
	channel := string(res.Entry.Channel)
	s.recorder.ObserveEntryDuration(channel, res.Duration)
	s.recorder.IncEntryOutcome(channel, string(res.Status))

	data := eventstore.EntryCompletedData{
		Entry:       res.Entry.ID,
		Channel:     channel,
		Status:      string(res.Status),
		FailedStage: string(res.FailedStage),
		LogPath:     res.LogPath,
		DurationMS:  res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		data.Error = res.Err.Error()
	}
	s.publish(ctx, func() (*eventstore.BaseEvent, error) { return eventstore.NewEntryCompleted(runID, data) })

	attrs := []slog.Attr{logfields.Status(string(res.Status)), logfields.Duration(res.Duration)}
	switch res.Status {
	case EntryPassed:
		observability.InfoContext(ctx, "Entry passed", attrs...)
	case EntryAllowedFailure:
		observability.WarnContext(ctx, "Entry failed (allowed)", append(attrs, logfields.Stage(string(res.FailedStage)), logfields.Error(res.Err))...)
	default:
		observability.ErrorContext(ctx, "Entry did not pass", append(attrs, logfields.Stage(string(res.FailedStage)), logfields.Path(res.LogPath), logfields.Error(res.Err))...)
	}
	return res
}

func (s *DefaultService) publishRunStarted(ctx context.Context, result *RunResult, req Request, m *matrix.Matrix) {
	data := eventstore.RunStartedData{
		ConfigPath: req.ConfigPath,
		Project:    result.Project,
		Commit:     result.Revision.Commit,
		Branch:     result.Revision.Branch,
		DryRun:     req.DryRun,
	}
	for _, e := range m.Runnable() {
		data.Entries = append(data.Entries, e.ID)
	}
	for _, e := range m.Excluded() {
		data.Excluded = append(data.Excluded, e.ID)
	}
	s.publish(ctx, func() (*eventstore.BaseEvent, error) { return eventstore.NewRunStarted(result.RunID, data) })
}

func (s *DefaultService) publishRunCompleted(ctx context.Context, result *RunResult) {
	counts := result.Counts()
	data := eventstore.RunCompletedData{
		Success:         result.Success,
		Passed:          counts[EntryPassed],
		Failed:          counts[EntryFailed],
		Canceled:        counts[EntryCanceled],
		Excluded:        counts[EntryExcluded],
		AllowedFailures: counts[EntryAllowedFailure],
		DurationMS:      result.Duration().Milliseconds(),
	}
	if first, ok := result.FirstFailure(); ok {
		data.FirstFailure = first.Entry.ID
	}
	s.publish(ctx, func() (*eventstore.BaseEvent, error) { return eventstore.NewRunCompleted(result.RunID, data) })
}

// publish builds and publishes an event; events survive run cancellation.
func (s *DefaultService) publish(ctx context.Context, build func() (*eventstore.BaseEvent, error)) {
	e, err := build()
	if err != nil {
		observability.WarnContext(ctx, "Failed to build event", logfields.Error(err))
		return
	}
	s.bus.Publish(context.WithoutCancel(ctx), e)
}

// lockName identifies the environment an entry provisions.
func lockName(cfg *config.Config, entry matrix.Entry) string {
	if entry.Channel == config.ChannelBinary {
		return provision.EnvName(cfg, entry.ID)
	}
	return cfg.Project.Name + "-" + entry.ID
}

func stageTimeout(cfg *config.Config) time.Duration {
	if cfg.Timeouts.Stage == "" {
		return 0
	}
	d, err := time.ParseDuration(cfg.Timeouts.Stage)
	if err != nil {
		return 0
	}
	return d
}

func deriveSuccess(entries []EntryResult) bool {
	for _, e := range entries {
		if e.Status == EntryFailed || e.Status == EntryCanceled {
			return false
		}
	}
	return true
}

// IsCanceled reports whether err stems from cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || foundationerrors.HasCategory(err, foundationerrors.CategoryCanceled)
}
