// Package metrics exposes Prometheus instrumentation for reconciliation work.
//
// Every Metrics value owns its registry, so several engines (and tests) can
// coexist in one process without duplicate-registration panics.
//
// Metrics:
//   - recon_jobs_total{status,strategy} - reconciliation jobs recorded
//   - recon_operation_duration_seconds{operation} - engine call latency
//   - recon_records_total{stage} - records seen at each pipeline stage
//   - recon_match_score - histogram of accepted match scores
//   - recon_batch_rejected_total{operation} - batches refused for size
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline stages counted by RecordsTotal.
const (
	StageInput        = "input"
	StageDeduplicated = "deduplicated"
	StageOutput       = "output"
)

// Metrics holds the engine's collectors.
type Metrics struct {
	registry *prometheus.Registry

	JobsTotal         *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	RecordsTotal      *prometheus.CounterVec
	MatchScore        prometheus.Histogram
	BatchRejected     *prometheus.CounterVec
}

// New creates a Metrics with its own registry, including the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		JobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recon_jobs_total",
				Help: "Total number of reconciliation jobs recorded",
			},
			[]string{"status", "strategy"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recon_operation_duration_seconds",
				Help:    "Duration of engine operations in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 9), // 1ms to ~65s
			},
			[]string{"operation"},
		),
		RecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recon_records_total",
				Help: "Total number of records seen at each pipeline stage",
			},
			[]string{"stage"},
		),
		MatchScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "recon_match_score",
				Help:    "Similarity scores of accepted matches",
				Buckets: []float64{0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 1},
			},
		),
		BatchRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recon_batch_rejected_total",
				Help: "Total number of batches rejected for exceeding the size ceiling",
			},
			[]string{"operation"},
		),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveOperation records how long an operation took.
func (m *Metrics) ObserveOperation(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordJob counts a stored job.
func (m *Metrics) RecordJob(status, strategy string) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(status, strategy).Inc()
}

// AddRecords counts records at a pipeline stage.
func (m *Metrics) AddRecords(stage string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsTotal.WithLabelValues(stage).Add(float64(n))
}

// ObserveScores records accepted match scores.
func (m *Metrics) ObserveScores(scores ...float64) {
	if m == nil {
		return
	}
	for _, s := range scores {
		m.MatchScore.Observe(s)
	}
}

// RejectBatch counts a batch refused for size.
func (m *Metrics) RejectBatch(operation string) {
	if m == nil {
		return
	}
	m.BatchRejected.WithLabelValues(operation).Inc()
}

// RegisterGaugeFunc exposes a value computed at scrape time.
func (m *Metrics) RegisterGaugeFunc(name, help string, fn func() float64) {
	if m == nil {
		return
	}
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn)
}
