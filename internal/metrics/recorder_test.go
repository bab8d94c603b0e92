package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("provision", time.Second)
	r.IncStageResult("provision", ResultSuccess)
	r.IncEntryOutcome("binary", "passed")
	r.IncRunOutcome(true)
	r.SetActiveEntries(2)
}

func TestPrometheusRecorder_Counts(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewPrometheusRecorder(reg)

	r.IncStageResult("test", ResultFatal)
	r.IncStageResult("test", ResultFatal)
	r.IncEntryOutcome("source", "failed")
	r.IncUploadFailure("http")
	r.IncUploadRetry("http")
	r.IncRunOutcome(false)
	r.ObserveStageDuration("provision", 3*time.Second)
	r.SetActiveEntries(1)

	values := gather(t, reg)
	assert.InDelta(t, 2, values["matrixci_stage_results_total"], 0)
	assert.InDelta(t, 1, values["matrixci_entry_outcomes_total"], 0)
	assert.InDelta(t, 1, values["matrixci_coverage_upload_failures_total"], 0)
	assert.InDelta(t, 1, values["matrixci_run_outcomes_total"], 0)
	assert.InDelta(t, 1, values["matrixci_active_entries"], 0)
}

// gather sums counter and gauge values per metric family.
func gather(t *testing.T, reg *prom.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]float64, len(families))
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				out[mf.GetName()] += c.GetValue()
			}
			if g := m.GetGauge(); g != nil {
				out[mf.GetName()] += g.GetValue()
			}
		}
	}
	return out
}

func TestPrometheusRecorder_NilSafe(t *testing.T) {
	var r *PrometheusRecorder
	r.IncStageResult("test", ResultFatal)
	r.ObserveRunDuration(time.Second)
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncRunOutcome(true)

	srv := httptest.NewServer(HTTPHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `matrixci_run_outcomes_total{outcome="success"} 1`)
}

func TestWriteTextfile(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncEntryOutcome("binary", "passed")

	path := filepath.Join(t.TempDir(), "matrixci.prom")
	require.NoError(t, WriteTextfile(path, reg))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `matrixci_entry_outcomes_total{channel="binary",outcome="passed"} 1`)
}
