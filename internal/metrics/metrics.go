// Package metrics exposes Prometheus counters for extraction runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the extraction counters. A nil *Metrics is a no-op.
type Metrics struct {
	RunsTotal         *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	CandidatesTotal   *prometheus.CounterVec
	ResultsTotal      *prometheus.CounterVec
	BackfillRequested prometheus.Counter
	BackfillAccepted  prometheus.Counter
}

// New registers the metrics on reg. Use prometheus.DefaultRegisterer to
// expose them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kpi_runs_total",
			Help: "Extraction runs by final status.",
		}, []string{"status"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kpi_run_duration_seconds",
			Help:    "Wall time of one extraction run.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		CandidatesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kpi_candidates_total",
			Help: "Normalized candidates produced, by source.",
		}, []string{"source"}),
		ResultsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kpi_results_total",
			Help: "Final KPI results, by status.",
		}, []string{"status"}),
		BackfillRequested: f.NewCounter(prometheus.CounterOpts{
			Name: "kpi_backfill_requested_total",
			Help: "KPIs sent to the language-model oracle.",
		}),
		BackfillAccepted: f.NewCounter(prometheus.CounterOpts{
			Name: "kpi_backfill_accepted_total",
			Help: "Oracle answers accepted into results.",
		}),
	}
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(d.Seconds())
}

// AddCandidate counts one normalized candidate.
func (m *Metrics) AddCandidate(source string) {
	if m == nil {
		return
	}
	m.CandidatesTotal.WithLabelValues(source).Inc()
}

// AddResult counts one final KPI result.
func (m *Metrics) AddResult(status string) {
	if m == nil {
		return
	}
	m.ResultsTotal.WithLabelValues(status).Inc()
}

// AddBackfill counts oracle requests and accepted answers.
func (m *Metrics) AddBackfill(requested, accepted int) {
	if m == nil {
		return
	}
	m.BackfillRequested.Add(float64(requested))
	m.BackfillAccepted.Add(float64(accepted))
}
