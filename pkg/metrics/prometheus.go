package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signalsAccepted *prometheus.CounterVec
	signalsRejected *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	riskScore       *prometheus.GaugeVec
	latency         *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		signalsAccepted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lanerisk_signals_accepted_total",
				Help: "Total number of signals accepted into the engine",
			},
			[]string{"source", "factor"},
		),
		signalsRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lanerisk_signals_rejected_total",
				Help: "Total number of signals rejected at validation",
			},
			[]string{"reason"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lanerisk_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		riskScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lanerisk_risk_score",
				Help: "Last calibrated risk probability per entity",
			},
			[]string{"entity"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lanerisk_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordSignalAccepted records a signal admitted into the engine.
func (r *Recorder) RecordSignalAccepted(source, factor string) {
	r.signalsAccepted.WithLabelValues(source, factor).Inc()
}

// RecordSignalRejected records a signal dropped at validation.
func (r *Recorder) RecordSignalRejected(reason string) {
	r.signalsRejected.WithLabelValues(reason).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordRiskScore records the latest calibrated probability for an entity.
func (r *Recorder) RecordRiskScore(entity string, p float64) {
	r.riskScore.WithLabelValues(entity).Set(p)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
