package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/matrixci/internal/build"
	"git.home.luguber.info/inful/matrixci/internal/config"
	foundationerrors "git.home.luguber.info/inful/matrixci/internal/foundation/errors"
	"git.home.luguber.info/inful/matrixci/internal/metrics"
	"git.home.luguber.info/inful/matrixci/internal/workspace"
)

type fakeService struct {
	mu       sync.Mutex
	requests []build.Request
	success  bool
	err      error
}

func (f *fakeService) Run(_ context.Context, req build.Request) (*build.RunResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	start := time.Now()
	return &build.RunResult{
		RunID:   "run-0001",
		Project: req.Config.Project.Name,
		Start:   start,
		End:     start.Add(time.Second),
		Success: f.success,
	}, f.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.ExampleConfig()
	cfg.Project.Dir = t.TempDir()
	require.NoError(t, config.ApplyDefaults(cfg))
	return cfg
}

func newTestDaemon(t *testing.T, svc build.Service) *Daemon {
	t.Helper()
	d, err := New(Options{
		Config:   testConfig(t),
		Service:  svc,
		Registry: metrics.NewRegistry(),
		DataDir:  t.TempDir(),
		Listen:   "127.0.0.1:0",
	})
	require.NoError(t, err)
	return d
}

func TestJobDefinition(t *testing.T) {
	for _, schedule := range []string{"30m", "0 3 * * *", "0 0 3 * * *"} {
		_, err := jobDefinition(schedule)
		require.NoError(t, err, schedule)
	}
	_, err := jobDefinition("every day")
	require.Error(t, err)
	_, err = jobDefinition("-5m")
	require.Error(t, err)
}

func TestScheduler_ReplacesJob(t *testing.T) {
	s, err := NewScheduler()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	require.NoError(t, s.Schedule("1h", func() {}))
	first := s.jobID
	require.NoError(t, s.Schedule("0 3 * * *", func() {}))

	assert.Equal(t, "0 3 * * *", s.Current())
	assert.NotEqual(t, first, s.jobID)
	assert.Len(t, s.scheduler.Jobs(), 1)

	require.Error(t, s.Schedule("bogus", func() {}))
	assert.Equal(t, "0 3 * * *", s.Current())
}

func TestNew_RequiresService(t *testing.T) {
	_, err := New(Options{Config: testConfig(t)})
	require.Error(t, err)
}

func TestNew_DefaultsFromConfig(t *testing.T) {
	cfg := testConfig(t)
	d, err := New(Options{Config: cfg, Service: &fakeService{}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Project.Dir, ".matrixci-daemon"), d.opts.DataDir)
	assert.Equal(t, ":9464", d.opts.Listen)
}

func TestRunOnce_RecordsStatus(t *testing.T) {
	svc := &fakeService{success: true}
	d := newTestDaemon(t, svc)

	var seen *build.RunResult
	d.opts.OnResult = func(res *build.RunResult, _ error) { seen = res }

	res, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Same(t, res, seen)

	require.Len(t, svc.requests, 1)
	req := svc.requests[0]
	assert.Equal(t, filepath.Join(d.opts.DataDir, "workspace"), req.WorkspaceDir)
	assert.Equal(t, d.Config().Parallel, req.Parallel)

	h := d.Health()
	assert.Equal(t, HealthStatusHealthy, h.Status)
	assert.Equal(t, int64(1), h.Runs)
	require.NotNil(t, h.LastRun)
	assert.Equal(t, "run-0001", h.LastRun.RunID)
	assert.True(t, h.LastRun.Success)
}

func TestRunOnce_FailureDegradesHealth(t *testing.T) {
	svc := &fakeService{err: errors.New("workspace unavailable")}
	d := newTestDaemon(t, svc)

	_, err := d.RunOnce(context.Background())
	require.Error(t, err)

	h := d.Health()
	assert.Equal(t, HealthStatusDegraded, h.Status)
	require.NotNil(t, h.LastRun)
	assert.Equal(t, "workspace unavailable", h.LastRun.Error)
}

func TestRunOnce_SkipsWhileRunning(t *testing.T) {
	svc := &fakeService{success: true}
	d := newTestDaemon(t, svc)
	d.running.Store(true)

	res, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Empty(t, svc.requests)
}

func TestHandler_HealthAndMetrics(t *testing.T) {
	d := newTestDaemon(t, &fakeService{success: true})
	d.startTime = time.Now()
	srv := httptest.NewServer(d.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var h HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, HealthStatusHealthy, h.Status)
	assert.Nil(t, h.LastRun)

	mresp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer mresp.Body.Close()
	assert.Equal(t, http.StatusOK, mresp.StatusCode)

	presp, err := http.Post(srv.URL+"/healthz", "text/plain", nil)
	require.NoError(t, err)
	defer presp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, presp.StatusCode)
}

func TestRun_RefusesSecondDaemon(t *testing.T) {
	d := newTestDaemon(t, &fakeService{})

	held, ok, err := workspace.TryAcquireLock(d.opts.DataDir, lockName)
	require.NoError(t, err)
	require.True(t, ok)
	t.Cleanup(func() { _ = held.Unlock() })

	err = d.Run(context.Background())
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryDaemon))
}

func TestRun_StopsOnCancel(t *testing.T) {
	d := newTestDaemon(t, &fakeService{success: true})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return d.scheduler.Current() != "" }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop")
	}

	lock, ok, err := workspace.TryAcquireLock(d.opts.DataDir, lockName)
	require.NoError(t, err)
	assert.True(t, ok, "lock released after shutdown")
	_ = lock.Unlock()
}

func TestReloadConfig_Reschedules(t *testing.T) {
	d := newTestDaemon(t, &fakeService{})
	require.NoError(t, d.scheduler.Schedule(d.Config().Daemon.Schedule, func() {}))
	t.Cleanup(func() { _ = d.scheduler.Stop() })

	next := testConfig(t)
	next.Daemon.Schedule = "15m"
	require.NoError(t, d.ReloadConfig(context.Background(), next))

	assert.Same(t, next, d.Config())
	assert.Equal(t, "15m", d.scheduler.Current())
}

func TestConfigWatcher_PerformReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "matrixci.yaml")
	require.NoError(t, config.Init(path, false))

	var applied *config.Config
	w, err := NewConfigWatcher(path, time.Millisecond, func(_ context.Context, cfg *config.Config) error {
		applied = cfg
		return nil
	})
	require.NoError(t, err)
	t.Cleanup(w.Stop)

	require.NoError(t, w.performReload(context.Background()))
	require.NotNil(t, applied)
	assert.Equal(t, "elephant", applied.Project.Name)

	applied = nil
	require.NoError(t, os.WriteFile(path, []byte("project: [broken\n"), 0o600))
	require.Error(t, w.performReload(context.Background()))
	assert.Nil(t, applied)
}

func TestConfigWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "matrixci.yaml")
	require.NoError(t, config.Init(path, false))

	reloaded := make(chan *config.Config, 4)
	w, err := NewConfigWatcher(path, 20*time.Millisecond, func(_ context.Context, cfg *config.Config) error {
		reloaded <- cfg
		return nil
	})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		w.Stop()
	})
	require.NoError(t, w.Start(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(data, []byte("parallel: 3\n")...), 0o600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 3, cfg.Parallel)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestMiddleware_RecoversPanics(t *testing.T) {
	h := withMiddleware(slog.Default(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}
