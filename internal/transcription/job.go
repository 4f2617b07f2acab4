package transcription

import "time"

// JobStatus is the in-memory lifecycle of one queued job. The ledger's
// capture status is the durable record; job status exists for the queue
// snapshot and tests only.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job is one unit of transcription work tied to a capture.
type Job struct {
	CaptureID string
	AudioPath string
	// Attempt starts at 1 and increments on each retriable re-enqueue.
	Attempt     int
	Status      JobStatus
	QueuedAt    time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// Outcome is the resolved result of running one job.
type Outcome struct {
	Success    bool
	Transcript string
	DurationMs int64
	ErrorKind  ErrorKind
	// ShouldRetry asks the queue to re-enqueue the job at the tail with
	// Attempt+1. Mutually exclusive with PlaceholderExported.
	ShouldRetry bool
	// PlaceholderExported marks a terminal permanent failure.
	PlaceholderExported bool
	// Aborted marks a job interrupted by shutdown; no terminal ledger state
	// was written and startup recovery will re-queue the capture.
	Aborted bool
}

// Totals accumulates queue counters since process start.
type Totals struct {
	Enqueued  uint64
	Completed uint64
	Failed    uint64
	Retried   uint64
}

// QueueStatus is a side-effect-free snapshot of the queue.
type QueueStatus struct {
	Processing       bool
	Depth            int
	CurrentCaptureID string
	Totals           Totals
}
