// Package metrics exposes Prometheus collectors for the upload pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "modzart"

// Upload outcomes.
const (
	OutcomeStored   = "stored"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics exposes Prometheus collectors that report pipeline activity.
type Metrics struct {
	uploads       *prometheus.CounterVec
	scanVerdicts  *prometheus.CounterVec
	scanDuration  prometheus.Histogram
	compensations *prometheus.CounterVec
	downloads     prometheus.Counter
	queueDepth    prometheus.Gauge
}

// MustNew constructs Metrics and registers them with reg. Any registration
// error panics, mirroring the promauto helpers.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "total",
			Help:      "Uploads by final outcome.",
		}, []string{"outcome"}),
		scanVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "verdicts_total",
			Help:      "Malware scan verdicts.",
		}, []string{"verdict"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Time from submission to verdict.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "compensations_total",
			Help:      "Compensating deletes of stored objects.",
		}, []string{"result"}),
		downloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Download links issued.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "queue_depth",
			Help:      "Async uploads waiting for a worker.",
		}),
	}
	reg.MustRegister(m.uploads, m.scanVerdicts, m.scanDuration, m.compensations, m.downloads, m.queueDepth)
	return m
}

func (m *Metrics) UploadOutcome(outcome string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome).Inc()
}

// ScanFinished records a verdict and the time the scan took.
func (m *Metrics) ScanFinished(verdict string, d time.Duration) {
	if m == nil {
		return
	}
	m.scanVerdicts.WithLabelValues(verdict).Inc()
	m.scanDuration.Observe(d.Seconds())
}

// Compensation records a compensating delete; ok is false when the delete
// itself failed and an object may be orphaned.
func (m *Metrics) Compensation(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.compensations.WithLabelValues(result).Inc()
}

func (m *Metrics) Download() {
	if m == nil {
		return
	}
	m.downloads.Inc()
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
