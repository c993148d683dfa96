package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	AdapterLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lanerisk",
			Subsystem: "adapters",
			Name:      "latency_seconds",
			Help:      "Latency of outbound adapter calls (similarity, modelstore)",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	AdapterErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lanerisk",
			Subsystem: "adapters",
			Name:      "errors_total",
			Help:      "Errors by outbound adapter endpoint",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(AdapterLatency, AdapterErrors)
	})
}
