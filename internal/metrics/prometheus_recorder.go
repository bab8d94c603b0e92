package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "matrixci"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration  *prom.HistogramVec
	stageResults   *prom.CounterVec
	entryDuration  *prom.HistogramVec
	entryOutcomes  *prom.CounterVec
	runDuration    prom.Histogram
	runOutcomes    *prom.CounterVec
	uploadRetries  *prom.CounterVec
	uploadFailures *prom.CounterVec
	activeEntries  prom.Gauge
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	installBuckets := []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual entry stages",
			Buckets:   installBuckets,
		}, []string{"stage"}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		entryDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "entry_duration_seconds",
			Help:      "Duration of a complete matrix entry pipeline",
			Buckets:   installBuckets,
		}, []string{"channel"}),
		entryOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "entry_outcomes_total",
			Help:      "Matrix entry outcomes by channel and final status",
		}, []string{"channel", "outcome"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total matrix run duration",
			Buckets:   installBuckets,
		}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Matrix run outcomes",
		}, []string{"outcome"}),
		uploadRetries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "coverage_upload_retries_total",
			Help:      "Coverage upload retries by uploader",
		}, []string{"uploader"}),
		uploadFailures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "coverage_upload_failures_total",
			Help:      "Coverage uploads that failed after all retries",
		}, []string{"uploader"}),
		activeEntries: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "active_entries",
			Help:      "Matrix entries currently executing",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.stageResults, pr.entryDuration, pr.entryOutcomes,
		pr.runDuration, pr.runOutcomes, pr.uploadRetries, pr.uploadFailures, pr.activeEntries)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveEntryDuration(channel string, d time.Duration) {
	if p == nil {
		return
	}
	p.entryDuration.WithLabelValues(channel).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncEntryOutcome(channel, outcome string) {
	if p == nil {
		return
	}
	p.entryOutcomes.WithLabelValues(channel, outcome).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(success bool) {
	if p == nil {
		return
	}
	outcome := "failed"
	if success {
		outcome = "success"
	}
	p.runOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncUploadRetry(uploader string) {
	if p == nil {
		return
	}
	p.uploadRetries.WithLabelValues(uploader).Inc()
}

func (p *PrometheusRecorder) IncUploadFailure(uploader string) {
	if p == nil {
		return
	}
	p.uploadFailures.WithLabelValues(uploader).Inc()
}

func (p *PrometheusRecorder) SetActiveEntries(n int) {
	if p == nil {
		return
	}
	p.activeEntries.Set(float64(n))
}
