package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dublate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dublate_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Voice profile metrics
	SampleUploadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dublate_voice_sample_uploads_total",
			Help: "Total number of voice training sample uploads",
		},
	)

	ProfilesTrainedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dublate_voice_profiles_trained_total",
			Help: "Total number of voice profiles marked trained",
		},
	)

	// Run metrics
	RunsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dublate_runs_created_total",
			Help: "Total number of dubbing runs created",
		},
	)

	RunsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dublate_runs_completed_total",
			Help: "Total number of finished dubbing runs",
		},
		[]string{"status"},
	)

	RunsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dublate_runs_in_progress",
			Help: "Number of runs currently being processed",
		},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dublate_run_duration_seconds",
			Help:    "End-to-end run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		},
	)

	// Pipeline stage metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dublate_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"stage"},
	)

	SegmentFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dublate_segment_failures_total",
			Help: "Total number of per-segment stage failures",
		},
		[]string{"stage"},
	)

	// Translation metrics
	TranslationCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dublate_translation_cache_hits_total",
			Help: "Total number of translation cache hits",
		},
	)

	TranslationCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dublate_translation_cache_misses_total",
			Help: "Total number of translation cache misses",
		},
	)
)

// RecordStageDuration observes one pipeline stage timing.
func RecordStageDuration(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordSegmentFailure counts one per-segment failure at a stage.
func RecordSegmentFailure(stage string) {
	SegmentFailuresTotal.WithLabelValues(stage).Inc()
}

// RecordRunCompleted counts one finished run and its duration.
func RecordRunCompleted(status string, d time.Duration) {
	RunsCompletedTotal.WithLabelValues(status).Inc()
	RunDuration.Observe(d.Seconds())
}
