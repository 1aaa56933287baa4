package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReportsReceived counts inbound reports by kind and outcome
	ReportsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fuelguard_collector_reports_total",
			Help: "Total number of telemetry reports received",
		},
		[]string{"kind", "status"},
	)

	// HandleLatency measures time spent handling a single report
	HandleLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fuelguard_collector_handle_latency_seconds",
			Help:    "Latency of report handling in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	// BatchesEmitted counts full site batches published downstream
	BatchesEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fuelguard_collector_batches_total",
			Help: "Total number of site batches published",
		},
		[]string{"status"},
	)

	BufferEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fuelguard_collector_buffer_evictions_total",
			Help: "Samples evicted from full site buffers",
		},
	)
)
