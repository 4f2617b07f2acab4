package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TranscriptionJobs counts finished jobs by result (success, retry, placeholder).
	TranscriptionJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcription_job_total",
			Help: "Total number of transcription jobs by final result",
		},
		[]string{"result"},
	)

	// TranscriptionDuration tracks wall-clock duration of transcription attempts.
	TranscriptionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transcription_duration_ms",
			Help:    "Transcription attempt duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 12),
		},
	)

	// TranscriptionRetries counts re-enqueued attempts per classified failure kind.
	TranscriptionRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcription_retry_total",
			Help: "Total number of transcription retries by error kind",
		},
		[]string{"error_kind"},
	)

	// PlaceholderExports counts permanent failures resolved with a placeholder document.
	PlaceholderExports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placeholder_export_total",
			Help: "Total number of placeholder exports by error kind",
		},
		[]string{"error_kind"},
	)

	// ModelLoadDuration tracks how long the speech-to-text model takes to load.
	ModelLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "model_load_duration_ms",
			Help:    "Speech-to-text model load duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10),
		},
	)

	// ProcessMemoryUsage publishes the most recent RSS sample from the resource monitor.
	ProcessMemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "process_memory_usage_mb",
			Help: "Process resident set size in megabytes",
		},
	)
)

// Job result label values for TranscriptionJobs.
const (
	ResultSuccess     = "success"
	ResultRetry       = "retry"
	ResultPlaceholder = "placeholder"
)
