package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Worker metrics
var (
	// Job outcomes by type
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cdn",
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Total jobs handled, by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	// Job handling duration
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cdn",
			Subsystem: "worker",
			Name:      "job_duration_seconds",
			Help:      "Job handler duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"type"},
	)

	// Claim attempts
	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cdn",
			Subsystem: "worker",
			Name:      "claims_total",
			Help:      "Total job claim attempts, by result",
		},
		[]string{"result"},
	)

	// Queue message dispositions
	QueueMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cdn",
			Subsystem: "worker",
			Name:      "queue_messages_total",
			Help:      "Total queue messages received, by disposition",
		},
		[]string{"disposition"},
	)

	// Database operation duration
	DBDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cdn",
			Subsystem: "worker",
			Name:      "db_duration_seconds",
			Help:      "Database operation duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation"},
	)

	// Object storage operations
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cdn",
			Subsystem: "worker",
			Name:      "storage_operations_total",
			Help:      "Total object storage operations",
		},
		[]string{"operation", "status"},
	)

	// Purged file records
	PurgedFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cdn",
			Subsystem: "worker",
			Name:      "purged_files_total",
			Help:      "Total file records hard-deleted by the purger",
		},
		[]string{"reason"},
	)
)

// ObserveDB times a ledger operation and records its duration.
func ObserveDB(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	DBDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	return err
}

// RecordJob records a handled job and its duration.
func RecordJob(jobType, outcome string, durationSec float64) {
	JobsTotal.WithLabelValues(jobType, outcome).Inc()
	JobDuration.WithLabelValues(jobType).Observe(durationSec)
}

// RecordClaim records a claim attempt result.
func RecordClaim(result string) {
	ClaimsTotal.WithLabelValues(result).Inc()
}

// RecordQueueMessage records what became of a received message.
func RecordQueueMessage(disposition string) {
	QueueMessagesTotal.WithLabelValues(disposition).Inc()
}

// RecordStorageOperation records an object storage call.
func RecordStorageOperation(operation, status string) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordPurged records hard-deleted file rows.
func RecordPurged(reason string, count int) {
	if count > 0 {
		PurgedFilesTotal.WithLabelValues(reason).Add(float64(count))
	}
}
