package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notesy_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notesy_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	MediaOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notesy_media_operations_total",
			Help: "Media store operations by kind and result",
		},
		[]string{"operation", "result"}, // upload|delete, ok|error
	)

	MediaOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notesy_media_operation_duration_seconds",
			Help:    "Media store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	MediaBytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notesy_media_uploaded_bytes_total",
			Help: "Bytes written to the media store after normalization",
		},
	)

	CleanupJobsEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notesy_media_cleanup_jobs_enqueued_total",
			Help: "Media deletions deferred to the retry queue",
		},
	)
)

func RecordAPIRequest(method, route, status string, d time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func RecordMediaOperation(op string, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	MediaOperations.WithLabelValues(op, result).Inc()
	MediaOperationDuration.WithLabelValues(op).Observe(d.Seconds())
}
