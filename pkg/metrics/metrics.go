// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memoryd_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memoryd_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RecordsStored tracks conversation records persisted, by content type.
	RecordsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memoryd_records_stored_total",
			Help: "Conversation records persisted",
		},
		[]string{"content_type"},
	)

	// Detections tracks memory-reference detection outcomes.
	Detections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memoryd_detections_total",
			Help: "Memory reference detection outcomes",
		},
		[]string{"outcome"},
	)

	// ContextBuildDuration tracks context assembly duration.
	ContextBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "memoryd_context_build_seconds",
			Help:    "Context block assembly duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// ContextRecordsSelected tracks how many records each context build used.
	ContextRecordsSelected = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "memoryd_context_records_selected",
			Help:    "Records selected per context build",
			Buckets: []float64{0, 1, 2, 3, 5, 7, 10},
		},
	)

	// StorageErrors tracks persistence failures.
	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memoryd_storage_errors_total",
			Help: "Record and snapshot persistence failures",
		},
		[]string{"operation"},
	)

	// CorruptRecordsSkipped tracks unparseable files skipped on read.
	CorruptRecordsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "memoryd_corrupt_records_skipped_total",
			Help: "Record files that failed to parse and were skipped",
		},
	)

	// SnapshotReloads tracks index snapshot reloads, by trigger.
	SnapshotReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memoryd_snapshot_reloads_total",
			Help: "Index snapshot reloads",
		},
		[]string{"trigger"},
	)

	// GeneratorDuration tracks external generator call duration.
	GeneratorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memoryd_generator_duration_seconds",
			Help:    "External generator call duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"provider", "status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordDetection records a detection outcome.
func RecordDetection(referenced bool) {
	outcome := "miss"
	if referenced {
		outcome = "hit"
	}
	Detections.WithLabelValues(outcome).Inc()
}

// RecordContextBuild records metrics for one context assembly.
func RecordContextBuild(duration float64, selected int) {
	ContextBuildDuration.Observe(duration)
	ContextRecordsSelected.Observe(float64(selected))
}
