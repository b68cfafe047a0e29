// Package telemetry exposes Prometheus metrics for history writes and
// regression verdicts.
//
// Metrics live in their own registry. A CI job writes them once to a
// node-exporter textfile (WriteTextfile); the dashboard serves them live on
// /metrics (Handler).
package telemetry

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/benchtrail/benchtrail/internal/benchmark/regression"
	"github.com/benchtrail/benchtrail/internal/history"
)

// Append results recorded in benchtrail_appends_total.
const (
	ResultAppended  = "appended"
	ResultDuplicate = "duplicate"
	ResultFailed    = "failed"
)

// Metrics represents the collection of benchtrail metrics
type Metrics struct {
	registry *prometheus.Registry

	AppendsTotal       *prometheus.CounterVec
	CASConflictsTotal  prometheus.Counter
	VerdictsTotal      *prometheus.CounterVec
	StoreDuration      *prometheus.HistogramVec
	StoreErrorsTotal   *prometheus.CounterVec
	LastAppendUnixTime *prometheus.GaugeVec
}

var _ history.Observer = (*Metrics)(nil)

// NewMetrics creates and registers all metrics in a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.AppendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benchtrail_appends_total",
			Help: "Benchmark runs submitted for append, by group and result",
		},
		[]string{"group", "result"},
	)

	m.CASConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "benchtrail_cas_conflicts_total",
			Help: "Compare-and-swap writes lost to a concurrent writer",
		},
	)

	m.VerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benchtrail_verdicts_total",
			Help: "Regression verdicts issued, by kind",
		},
		[]string{"verdict"},
	)

	m.StoreDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "benchtrail_store_duration_seconds",
			Help:    "Duration of history medium calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	m.StoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benchtrail_store_errors_total",
			Help: "Failed history medium calls, by op",
		},
		[]string{"op"},
	)

	m.LastAppendUnixTime = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "benchtrail_last_append_timestamp_seconds",
			Help: "Unix time of the last successful append, by group",
		},
		[]string{"group"},
	)

	m.registry.MustRegister(
		m.AppendsTotal,
		m.CASConflictsTotal,
		m.VerdictsTotal,
		m.StoreDuration,
		m.StoreErrorsTotal,
		m.LastAppendUnixTime,
	)
	return m
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveStoreCall records one medium call. Revision conflicts are not
// errors; they are counted by ObserveConflict.
func (m *Metrics) ObserveStoreCall(op string, d time.Duration, err error) {
	m.StoreDuration.WithLabelValues(op).Observe(d.Seconds())
	if err != nil && !errors.Is(err, history.ErrRevisionConflict) {
		m.StoreErrorsTotal.WithLabelValues(op).Inc()
	}
}

// ObserveConflict records a lost compare-and-swap.
func (m *Metrics) ObserveConflict(string) {
	m.CASConflictsTotal.Inc()
}

// RecordAppend records the outcome of an append.
func (m *Metrics) RecordAppend(group string, res history.AppendResult, err error, at time.Time) {
	switch {
	case err != nil:
		m.AppendsTotal.WithLabelValues(group, ResultFailed).Inc()
	case res.Duplicate:
		m.AppendsTotal.WithLabelValues(group, ResultDuplicate).Inc()
	default:
		m.AppendsTotal.WithLabelValues(group, ResultAppended).Inc()
		m.LastAppendUnixTime.WithLabelValues(group).Set(float64(at.Unix()))
	}
}

// RecordResult counts the verdicts of one detection.
func (m *Metrics) RecordResult(r *regression.Result) {
	for _, v := range r.Verdicts {
		m.VerdictsTotal.WithLabelValues(v.Kind.String()).Inc()
	}
	if n := len(r.Review); n > 0 {
		m.VerdictsTotal.WithLabelValues("review").Add(float64(n))
	}
}

// WriteTextfile writes all metrics in the text exposition format for the
// node-exporter textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Handler serves the metrics over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
