package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Webhook metrics
	WebhookRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_webhook_requests_total",
			Help: "Total number of webhook requests by response status",
		},
		[]string{"status"},
	)

	WebhookBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "etl_webhook_bytes_total",
			Help: "Total bytes of webhook payloads received",
		},
	)

	// Scheduled run metrics
	ControlRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_control_runs_total",
			Help: "Total number of scheduled control invocations by result",
		},
		[]string{"result"},
	)

	// Normalization metrics
	NormalizationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "etl_normalization_duration_seconds",
			Help:    "Duration of CAD payload normalization in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	NormalizationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "etl_normalization_errors_total",
			Help: "Total number of payloads rejected as malformed",
		},
	)

	// Submission metrics
	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_submissions_total",
			Help: "Total number of feature collection submissions by backend and result",
		},
		[]string{"backend", "result"},
	)

	SubmissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "etl_submission_duration_seconds",
			Help:    "Duration of feature collection submissions in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	FeaturesSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "etl_features_submitted_total",
			Help: "Total number of features handed to the downstream pipeline",
		},
	)

	// Deduplication metrics
	DuplicatesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "etl_duplicates_dropped_total",
			Help: "Total number of features dropped as redelivered duplicates",
		},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"webhook"},
	)

	// Dead letter metrics
	DLQWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etl_dlq_writes_total",
			Help: "Total number of payloads written to the dead letter queue",
		},
		[]string{"reason"},
	)
)
