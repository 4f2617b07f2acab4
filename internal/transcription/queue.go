package transcription

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"capturebridge/internal/logging"
)

// ErrBackpressure is returned by Enqueue when the queue already holds the
// configured maximum of pending jobs. Callers drop or defer the capture;
// the queue never blocks admission.
var ErrBackpressure = errors.New("transcription queue full")

// runner resolves one job. Satisfied by *Worker.
type runner interface {
	Run(ctx context.Context, job *Job) Outcome
}

// Queue is a strictly sequential FIFO job queue. At most one drain
// goroutine exists at a time; it is started by the Enqueue that finds the
// queue idle and exits when the queue empties. Retries re-enter at the
// tail, behind everything queued in the meantime.
type Queue struct {
	worker   runner
	maxDepth int
	logger   *slog.Logger

	mu         sync.Mutex
	pending    []*Job
	processing bool
	current    *Job
	totals     Totals
	started    bool
	runCtx     context.Context
	cancel     context.CancelFunc

	wg sync.WaitGroup
}

func NewQueue(worker runner, maxDepth int, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = logging.NewNop()
	}
	if maxDepth <= 0 {
		maxDepth = 1
	}
	return &Queue{
		worker:   worker,
		maxDepth: maxDepth,
		logger:   logger.With(logging.FieldComponent, "queue"),
	}
}

// Start makes the queue runnable and drains anything enqueued before it.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.runCtx, q.cancel = context.WithCancel(ctx)
	trigger := len(q.pending) > 0 && !q.processing
	if trigger {
		q.processing = true
	}
	runCtx := q.runCtx
	q.mu.Unlock()
	if trigger {
		q.spawnDrain(runCtx)
	}
}

// Stop cancels the run context and waits for the in-flight job to settle.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	cancel := q.cancel
	q.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	q.wg.Wait()
}

// Enqueue admits a capture for transcription. It returns ErrBackpressure
// when the pending depth is at the maximum and never blocks.
func (q *Queue) Enqueue(captureID, audioPath string) (*Job, error) {
	q.mu.Lock()
	if len(q.pending) >= q.maxDepth {
		q.mu.Unlock()
		q.logger.Warn("rejecting capture, queue at capacity",
			logging.FieldCaptureID, captureID,
			"depth", q.maxDepth,
		)
		return nil, ErrBackpressure
	}
	job := &Job{
		CaptureID: captureID,
		AudioPath: audioPath,
		Attempt:   1,
		Status:    JobQueued,
		QueuedAt:  time.Now(),
	}
	q.pending = append(q.pending, job)
	q.totals.Enqueued++
	trigger := q.started && !q.processing
	if trigger {
		q.processing = true
	}
	runCtx := q.runCtx
	q.mu.Unlock()

	q.logger.Debug("capture enqueued", logging.FieldCaptureID, captureID)
	if trigger {
		q.spawnDrain(runCtx)
	}
	return job, nil
}

func (q *Queue) spawnDrain(ctx context.Context) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.drain(ctx)
	}()
}

// drain processes pending jobs one at a time until the queue is empty or
// the context is cancelled. It holds the processing flag for its whole
// lifetime, which is what keeps concurrent Enqueues from starting a
// second drain.
func (q *Queue) drain(ctx context.Context) {
	for {
		q.mu.Lock()
		if ctx.Err() != nil || len(q.pending) == 0 {
			q.processing = false
			q.current = nil
			q.mu.Unlock()
			return
		}
		job := q.pending[0]
		q.pending = q.pending[1:]
		job.Status = JobProcessing
		job.StartedAt = time.Now()
		q.current = job
		q.mu.Unlock()

		outcome := q.worker.Run(ctx, job)

		q.mu.Lock()
		job.CompletedAt = time.Now()
		switch {
		case outcome.Success:
			job.Status = JobCompleted
			q.totals.Completed++
		case outcome.Aborted:
			job.Status = JobFailed
		default:
			job.Status = JobFailed
			q.totals.Failed++
		}
		if outcome.ShouldRetry {
			// Retries bypass the depth check so a full queue cannot
			// strand a capture mid-resolution.
			retry := &Job{
				CaptureID: job.CaptureID,
				AudioPath: job.AudioPath,
				Attempt:   job.Attempt + 1,
				Status:    JobQueued,
				QueuedAt:  time.Now(),
			}
			q.pending = append(q.pending, retry)
			q.totals.Retried++
		}
		q.current = nil
		q.mu.Unlock()
	}
}

// Status returns a point-in-time snapshot without side effects.
func (q *Queue) Status() QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	st := QueueStatus{
		Processing: q.processing,
		Depth:      len(q.pending),
		Totals:     q.totals,
	}
	if q.current != nil {
		st.CurrentCaptureID = q.current.CaptureID
	}
	return st
}

// Wait blocks until the queue is idle and empty or ctx expires. Test and
// shutdown helper; polling keeps it independent of drain internals.
func (q *Queue) Wait(ctx context.Context) error {
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		q.mu.Lock()
		idle := !q.processing && len(q.pending) == 0
		q.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}
