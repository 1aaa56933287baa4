package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchesProcessed counts site batches by outcome
	BatchesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fuelguard_processor_batches_total",
			Help: "Total number of site batches processed",
		},
		[]string{"status"},
	)

	// ProcessingLatency measures time to analyze and sink one site batch
	ProcessingLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fuelguard_processor_latency_seconds",
			Help:    "Batch processing latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
	)

	// Readings counts classified readings by category
	Readings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fuelguard_processor_readings_total",
			Help: "Total number of classified readings",
		},
		[]string{"category"},
	)

	AlertTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fuelguard_processor_alert_transitions_total",
			Help: "Alert open and close transitions",
		},
		[]string{"category", "transition"},
	)

	OutliersFlagged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fuelguard_processor_outliers_total",
			Help: "Readings whose cumulative change scored as an outlier",
		},
	)

	SignificantChanges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fuelguard_processor_significant_changes_total",
			Help: "Readings whose cumulative change reached the litre change threshold",
		},
	)

	// SinkErrors counts rejected writes per sink
	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fuelguard_processor_sink_errors_total",
			Help: "Total number of failed sink writes",
		},
		[]string{"sink"},
	)

	DailyRowsFlushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fuelguard_processor_daily_rows_total",
			Help: "Daily aggregate rows flushed by outcome",
		},
		[]string{"status"},
	)

	DailyLateDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fuelguard_processor_daily_late_samples_dropped_total",
			Help: "Readings dropped because their day is past the grace horizon",
		},
	)
)
