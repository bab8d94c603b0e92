package daemon

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/matrixci/internal/build"
	"git.home.luguber.info/inful/matrixci/internal/config"
	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
	"git.home.luguber.info/inful/matrixci/internal/workspace"
)

const lockName = "daemon"

// Options configures a Daemon.
type Options struct {
	ConfigPath string
	Config     *config.Config
	Service    build.Service
	Registry   *prom.Registry

	// DataDir and Listen override the values in Config.Daemon when set.
	DataDir string
	Listen  string

	ReloadDebounce time.Duration
	// RunOnStart triggers one run immediately instead of waiting for the schedule.
	RunOnStart bool
	// OnResult is called after every scheduled run.
	OnResult func(*build.RunResult, error)
}

// Daemon runs the matrix on a schedule.
type Daemon struct {
	opts Options

	mu      sync.RWMutex
	cfg     *config.Config
	lastRun *RunStatus

	running   atomic.Bool
	runs      atomic.Int64
	startTime time.Time

	lock      *workspace.Lock
	scheduler *Scheduler
	watcher   *ConfigWatcher
	server    *http.Server
	addr      string
	runCtx    context.Context
}

// New validates opts and prepares a daemon. Nothing runs until Run.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Service == nil {
		return nil, foundationerrors.InternalError("daemon requires a configuration and a build service").Build()
	}
	if opts.DataDir == "" {
		opts.DataDir = opts.Config.ManifestPath(opts.Config.Daemon.DataDir)
	}
	if opts.Listen == "" {
		opts.Listen = opts.Config.Daemon.Listen
	}
	sched, err := NewScheduler()
	if err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryDaemon, "failed to create scheduler").Build()
	}
	return &Daemon{opts: opts, cfg: opts.Config, scheduler: sched}, nil
}

// Config returns the active configuration.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Addr is the bound HTTP address once Run has started.
func (d *Daemon) Addr() string { return d.addr }

// Run blocks until ctx is canceled. It takes the data-dir lock, starts the
// scheduler, the config watcher and the HTTP listener.
func (d *Daemon) Run(ctx context.Context) error {
	lock, ok, err := workspace.TryAcquireLock(d.opts.DataDir, lockName)
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryDaemon, "failed to lock data directory").
			WithContext("data_dir", d.opts.DataDir).
			Build()
	}
	if !ok {
		return foundationerrors.DaemonError("another daemon is already running on this data directory").
			WithContext("data_dir", d.opts.DataDir).
			Build()
	}
	d.lock = lock
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			slog.Warn("Failed to release daemon lock", logfields.Error(err))
		}
	}()

	d.startTime = time.Now()
	d.runCtx = ctx

	if err := d.startHTTP(); err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryDaemon, "failed to start HTTP server").Build()
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := d.stopHTTP(shutdownCtx); err != nil {
			slog.Warn("HTTP server shutdown failed", logfields.Error(err))
		}
	}()

	if d.opts.ConfigPath != "" {
		w, err := NewConfigWatcher(d.opts.ConfigPath, d.opts.ReloadDebounce, d.ReloadConfig)
		if err != nil {
			return foundationerrors.WrapError(err, foundationerrors.CategoryDaemon, "failed to create config watcher").Build()
		}
		if err := w.Start(ctx); err != nil {
			w.Stop()
			return foundationerrors.WrapError(err, foundationerrors.CategoryDaemon, "failed to start config watcher").Build()
		}
		d.watcher = w
		defer w.Stop()
	}

	if err := d.scheduler.Schedule(d.Config().Daemon.Schedule, d.tick); err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryDaemon, "failed to schedule matrix run").Build()
	}
	d.scheduler.Start()
	defer func() {
		if err := d.scheduler.Stop(); err != nil {
			slog.Warn("Scheduler shutdown failed", logfields.Error(err))
		}
	}()

	slog.Info("Daemon started",
		logfields.Path(d.opts.DataDir),
		logfields.Schedule(d.scheduler.Current()))

	if d.opts.RunOnStart {
		go d.tick()
	}

	<-ctx.Done()
	slog.Info("Daemon stopping")
	return nil
}

// ReloadConfig swaps in cfg and reschedules when the schedule changed.
// The new configuration takes effect at the next run.
func (d *Daemon) ReloadConfig(_ context.Context, cfg *config.Config) error {
	d.mu.Lock()
	prev := d.cfg
	d.cfg = cfg
	d.mu.Unlock()

	if prev != nil && prev.Daemon.Listen != cfg.Daemon.Listen {
		slog.Warn("daemon.listen changed; restart the daemon to apply it")
	}
	if prev == nil || prev.Daemon.Schedule != cfg.Daemon.Schedule {
		return d.scheduler.Schedule(cfg.Daemon.Schedule, d.tick)
	}
	return nil
}

// tick is the scheduled task.
func (d *Daemon) tick() {
	ctx := d.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := d.RunOnce(ctx)
	switch {
	case err == nil:
	case build.IsCanceled(err):
		slog.Info("Scheduled matrix run canceled")
	default:
		slog.Error("Scheduled matrix run failed", logfields.Error(err))
	}
}

// RunOnce runs the whole matrix with the active configuration. A run already
// in progress makes it return immediately with nil results.
func (d *Daemon) RunOnce(ctx context.Context) (*build.RunResult, error) {
	if !d.running.CompareAndSwap(false, true) {
		slog.Warn("Matrix run already in progress; skipping")
		return nil, nil
	}
	defer d.running.Store(false)

	cfg := d.Config()
	started := time.Now()
	res, err := d.opts.Service.Run(ctx, build.Request{
		Config:        cfg,
		ConfigPath:    d.opts.ConfigPath,
		Parallel:      cfg.Parallel,
		WorkspaceDir:  filepath.Join(d.opts.DataDir, "workspace"),
		KeepWorkspace: cfg.Workspace.Keep,
	})
	d.runs.Add(1)

	status := &RunStatus{Started: started}
	if res != nil {
		status.RunID = res.RunID
		status.Success = res.Success
		status.Duration = res.Duration().Round(time.Millisecond).String()
		if runErr := res.Err(); runErr != nil {
			status.Error = runErr.Error()
		}
	}
	if err != nil {
		status.Success = false
		status.Error = err.Error()
	}
	d.mu.Lock()
	d.lastRun = status
	d.mu.Unlock()

	if d.opts.OnResult != nil {
		d.opts.OnResult(res, err)
	}
	return res, err
}
