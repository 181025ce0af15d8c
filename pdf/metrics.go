package pdf

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the compression pipeline. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	BytesSavedTotal prometheus.Counter

	ProcessRunsTotal *prometheus.CounterVec
	ProcessDuration  prometheus.Histogram

	ReclaimTotal       *prometheus.CounterVec
	SweepOrphansTotal  prometheus.Counter
	SweepLeftoverTotal prometheus.Counter
}

// NewMetrics creates and registers the metrics on the default registry.
//
// sync.Once guards registration so repeated construction (tests, multiple
// compressors) does not panic on duplicate collectors.
//
// Metrics:
//   - pdfcompress_requests_total{outcome}
//   - pdfcompress_request_duration_seconds
//   - pdfcompress_bytes_saved_total
//   - pdfcompress_process_runs_total{outcome}
//   - pdfcompress_process_duration_seconds
//   - pdfcompress_reclaim_total{result}
//   - pdfcompress_sweep_orphans_total
//   - pdfcompress_sweep_leftover_total
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pdfcompress_requests_total",
					Help: "Total number of compression requests by outcome",
				},
				[]string{"outcome"},
			),
			RequestDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "pdfcompress_request_duration_seconds",
					Help:    "Duration of compression requests in seconds",
					Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
				},
			),
			BytesSavedTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "pdfcompress_bytes_saved_total",
					Help: "Total bytes saved by accepted compressions",
				},
			),
			ProcessRunsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pdfcompress_process_runs_total",
					Help: "Total number of external tool runs by outcome",
				},
				[]string{"outcome"}, // "ok", "failed", "timeout", "spawn_error"
			),
			ProcessDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "pdfcompress_process_duration_seconds",
					Help:    "Duration of external tool runs in seconds",
					Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 180, 300},
				},
			),
			ReclaimTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "pdfcompress_reclaim_total",
					Help: "Total number of working files reclaimed by result",
				},
				[]string{"result"}, // "deleted", "renamed", "abandoned"
			),
			SweepOrphansTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "pdfcompress_sweep_orphans_total",
					Help: "Total number of orphaned working files found by sweeps",
				},
			),
			SweepLeftoverTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "pdfcompress_sweep_leftover_total",
					Help: "Total number of orphaned working files sweeps could not reclaim",
				},
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) observeRequest(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
	m.RequestDuration.Observe(d.Seconds())
}

func (m *Metrics) observeSaved(bytes int64) {
	if m == nil || bytes <= 0 {
		return
	}
	m.BytesSavedTotal.Add(float64(bytes))
}

func (m *Metrics) observeRun(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProcessRunsTotal.WithLabelValues(outcome).Inc()
	m.ProcessDuration.Observe(d.Seconds())
}

func (m *Metrics) observeReclaim(result string) {
	if m == nil {
		return
	}
	m.ReclaimTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) observeSweep(report *SweepReport) {
	if m == nil {
		return
	}
	m.SweepOrphansTotal.Add(float64(report.Orphans))
	m.SweepLeftoverTotal.Add(float64(report.Leftover))
}
