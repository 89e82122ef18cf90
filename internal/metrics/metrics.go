// Package metrics exposes the engine's Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// JobsTotal counts finished jobs by status (succeeded, failed, skipped) and
	// failure kind.
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etl_jobs_total",
		Help: "Jobs processed, by outcome and error kind",
	}, []string{"status", "kind"})

	RowsLoaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etl_rows_loaded_total",
		Help: "Rows written to target tables",
	})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "etl_job_duration_seconds",
		Help:    "Wall time of a job from guard check to tracker write",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
	}, []string{"status"})

	// AmbiguousCredentials counts credential lookups resolved by the
	// first-by-id fallback.
	AmbiguousCredentials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etl_ambiguous_credentials_total",
		Help: "Credential lookups that matched several records without a role decision",
	}, []string{"db_type"})

	BatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etl_batches_total",
		Help: "Batch runs by trigger",
	}, []string{"trigger"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
