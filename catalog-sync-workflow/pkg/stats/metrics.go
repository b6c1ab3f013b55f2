package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "catalog_sync"

	MetricRunsTotal        = "runs_total"
	MetricFilesTotal       = "files_total"
	MetricRecordsCommitted = "records_committed_total"
	MetricMalformedLines   = "malformed_lines_total"
	MetricStoreErrors      = "store_errors_total"
	MetricRunDuration      = "run_duration_seconds"
	MetricCursorOffset     = "cursor_offset_bytes"
)

// Metrics are the import counters exported on /metrics. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	runs             *prometheus.CounterVec
	files            *prometheus.CounterVec
	recordsCommitted prometheus.Counter
	malformedLines   prometheus.Counter
	storeErrors      *prometheus.CounterVec
	runDuration      prometheus.Histogram
	cursorOffset     *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricRunsTotal,
			Help:      "Import runs by final state.",
		}, []string{"state"}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricFilesTotal,
			Help:      "Manifest files by outcome.",
		}, []string{"outcome"}),
		recordsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricRecordsCommitted,
			Help:      "Catalog records written by import runs.",
		}),
		malformedLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricMalformedLines,
			Help:      "Lines dropped because they could not be sanitized.",
		}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricStoreErrors,
			Help:      "Failed store writes by store.",
		}, []string{"store"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      MetricRunDuration,
			Help:      "Wall time of import runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}),
		cursorOffset: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      MetricCursorOffset,
			Help:      "Committed byte cursor per source file.",
		}, []string{"source"}),
	}

	reg.MustRegister(m.runs, m.files, m.recordsCommitted, m.malformedLines,
		m.storeErrors, m.runDuration, m.cursorOffset)
	return m
}

func (m *Metrics) RunFinished(state string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(state).Inc()
	m.runDuration.Observe(d.Seconds())
}

func (m *Metrics) FileFinished(outcome string) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Committed(source string, records int, offset int64) {
	if m == nil {
		return
	}
	m.recordsCommitted.Add(float64(records))
	m.cursorOffset.WithLabelValues(source).Set(float64(offset))
}

func (m *Metrics) Malformed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.malformedLines.Add(float64(n))
}

// StoreError counts a failed write; store is "history" or "catalog".
func (m *Metrics) StoreError(store string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(store).Inc()
}
