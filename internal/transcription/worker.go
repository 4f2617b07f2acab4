package transcription

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"capturebridge/internal/escalation"
	"capturebridge/internal/ledger"
	"capturebridge/internal/logging"
	"capturebridge/internal/memwatch"
	"capturebridge/internal/metrics"
	"capturebridge/internal/placeholder"
	"capturebridge/internal/scratch"
	"capturebridge/internal/services"
	"capturebridge/internal/services/whisper"
)

// model is the slice of whisper.Handle the worker needs. Narrowed to an
// interface so worker tests can substitute a scripted transcriber.
type model interface {
	Ensure(ctx context.Context) error
	Transcribe(ctx context.Context, audioPath string, opts whisper.Options) (whisper.Result, error)
}

// WorkerConfig carries the tuning knobs the worker reads per attempt.
type WorkerConfig struct {
	// TimeoutBase is the fixed head room added to every attempt budget.
	TimeoutBase time.Duration
	// TimeoutCap bounds the size-scaled portion of the budget.
	TimeoutCap time.Duration
	// BytesPerSecond estimates audio duration from file size.
	BytesPerSecond int64
	// MemoryCeilingBytes aborts an attempt when resident memory crosses it.
	MemoryCeilingBytes int64
	// Language is passed through to the model.
	Language string
}

// Worker resolves one job at a time: check the source, stage a scratch
// copy, run the model under a budget, and settle the outcome in the ledger.
type Worker struct {
	cfg         WorkerConfig
	store       *ledger.Store
	scratch     *scratch.Manager
	model       model
	exporter    placeholder.Exporter
	escalations *escalation.Log
	monitor     *memwatch.Monitor
	logger      *slog.Logger

	// memCheckInterval is how often a running attempt consults the monitor.
	memCheckInterval time.Duration
}

func NewWorker(cfg WorkerConfig, store *ledger.Store, scratchMgr *scratch.Manager, mdl model, exporter placeholder.Exporter, escalations *escalation.Log, monitor *memwatch.Monitor, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Worker{
		cfg:              cfg,
		store:            store,
		scratch:          scratchMgr,
		model:            mdl,
		exporter:         exporter,
		escalations:      escalations,
		monitor:          monitor,
		logger:           logger.With(logging.FieldComponent, "worker"),
		memCheckInterval: time.Second,
	}
}

// Run executes job and settles its capture in the ledger. It returns the
// resolved Outcome; the queue decides re-enqueueing from it. Run never
// returns an error: every failure mode resolves to a ledger state.
func (w *Worker) Run(ctx context.Context, job *Job) Outcome {
	logger := w.logger.With(
		logging.FieldCaptureID, job.CaptureID,
		logging.FieldAttempt, job.Attempt,
	)
	ctx = services.WithCaptureID(ctx, job.CaptureID)
	ctx = services.WithAttempt(ctx, job.Attempt)

	if err := w.store.MarkTranscribing(ctx, job.CaptureID); err != nil {
		// Most often ErrInvalidTransition from a capture that already
		// reached a terminal status; the job is stale, not failed.
		logger.Warn("skipping job, capture not in a runnable status", logging.FieldError, err)
		return Outcome{ErrorKind: KindUnknown}
	}

	start := time.Now()
	text, err := w.attempt(ctx, job, logger)
	elapsed := time.Since(start)
	metrics.TranscriptionDuration.Observe(float64(elapsed.Milliseconds()))

	if err == nil {
		return w.settleSuccess(ctx, job, logger, text, elapsed)
	}
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		// Shutdown, not a transcription failure. Leave the capture in
		// transcribing; startup recovery resets and re-queues it.
		logger.Info("attempt aborted by shutdown")
		return Outcome{Aborted: true}
	}
	return w.settleFailure(ctx, job, logger, err, elapsed)
}

func (w *Worker) settleSuccess(ctx context.Context, job *Job, logger *slog.Logger, text string, elapsed time.Duration) Outcome {
	fingerprint := fingerprintText(text)
	if err := w.store.SetTranscribed(ctx, job.CaptureID, text, fingerprint, elapsed.Milliseconds()); err != nil {
		logger.Error("persisting transcript failed", logging.FieldError, err)
		return Outcome{ErrorKind: KindUnknown}
	}
	metrics.TranscriptionJobs.WithLabelValues(metrics.ResultSuccess).Inc()
	logger.Info("transcription complete",
		logging.FieldDurationMS, elapsed.Milliseconds(),
		"chars", len(text),
	)
	return Outcome{Success: true, Transcript: text, DurationMs: elapsed.Milliseconds()}
}

func (w *Worker) settleFailure(ctx context.Context, job *Job, logger *slog.Logger, attemptErr error, elapsed time.Duration) Outcome {
	kind := Classify(attemptErr, w.monitor.Latest(), w.cfg.MemoryCeilingBytes)
	policy := PolicyFor(kind)
	logger = logger.With(logging.FieldErrorKind, string(kind))

	if policy.Retriable && job.Attempt < policy.MaxAttempts {
		if err := w.store.SetTranscriptionFailed(ctx, job.CaptureID, string(kind), attemptErr.Error(), job.Attempt); err != nil {
			logger.Error("recording retriable failure failed", logging.FieldError, err)
		}
		metrics.TranscriptionJobs.WithLabelValues(metrics.ResultRetry).Inc()
		metrics.TranscriptionRetries.WithLabelValues(string(kind)).Inc()
		logger.Warn("attempt failed, retrying at queue tail",
			logging.FieldError, attemptErr,
			"max_attempts", policy.MaxAttempts,
		)
		return Outcome{ErrorKind: kind, ShouldRetry: true}
	}

	// Permanent failure: exactly one terminal ledger write, then exactly
	// one placeholder export for the capture.
	if err := w.store.SetExportedPlaceholder(ctx, job.CaptureID, string(kind), attemptErr.Error(), job.Attempt); err != nil {
		logger.Error("recording permanent failure failed", logging.FieldError, err)
		return Outcome{ErrorKind: kind}
	}
	capture, err := w.store.GetByID(ctx, job.CaptureID)
	if err != nil || capture == nil {
		logger.Error("loading capture for placeholder export failed", logging.FieldError, err)
		capture = &ledger.Capture{ID: job.CaptureID, SourcePath: job.AudioPath, Attempts: job.Attempt}
	}
	if err := w.exporter.Export(ctx, capture, string(kind), attemptErr.Error(), job.Attempt); err != nil {
		logger.Error("placeholder export failed", logging.FieldError, err)
	}
	metrics.TranscriptionJobs.WithLabelValues(metrics.ResultPlaceholder).Inc()
	metrics.PlaceholderExports.WithLabelValues(string(kind)).Inc()

	if w.escalations != nil && (policy.Escalate || policy.Retriable) {
		rec := escalation.Record{
			CaptureID:  job.CaptureID,
			SourcePath: job.AudioPath,
			ErrorKind:  string(kind),
			Reason:     attemptErr.Error(),
			Attempts:   job.Attempt,
		}
		if err := w.escalations.Append(rec); err != nil {
			logger.Error("writing escalation record failed", logging.FieldError, err)
		}
	}
	logger.Error("transcription failed permanently, placeholder exported",
		logging.FieldError, attemptErr,
		logging.FieldDurationMS, elapsed.Milliseconds(),
		"attempts", job.Attempt,
	)
	return Outcome{ErrorKind: kind, PlaceholderExported: true}
}

// attempt runs the mechanical pipeline for one try and returns the
// transcript text. Errors carry services sentinel markers for Classify.
func (w *Worker) attempt(ctx context.Context, job *Job, logger *slog.Logger) (string, error) {
	if err := checkSource(job.AudioPath); err != nil {
		return "", err
	}

	artifact, err := w.scratch.Acquire(job.CaptureID, job.AudioPath)
	if err != nil {
		return "", err
	}
	defer artifact.Remove()

	if err := w.model.Ensure(ctx); err != nil {
		return "", err
	}

	budget := w.budgetFor(artifact.Size)
	logger.Debug("starting model attempt",
		"audio_bytes", artifact.Size,
		"budget", budget.String(),
	)
	return w.transcribeWithBudget(ctx, artifact, budget, logger)
}

// transcribeWithBudget races the model call against the attempt budget and
// the memory ceiling. An abandoned call writes its late result into a
// buffered channel nobody reads again, so it cannot alter settled state.
func (w *Worker) transcribeWithBudget(ctx context.Context, artifact *scratch.Artifact, budget time.Duration, logger *slog.Logger) (string, error) {
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type modelResult struct {
		res whisper.Result
		err error
	}
	resultCh := make(chan modelResult, 1)
	go func() {
		res, err := w.model.Transcribe(attemptCtx, artifact.Path, whisper.Options{Language: w.cfg.Language})
		resultCh <- modelResult{res: res, err: err}
	}()

	timer := time.NewTimer(budget)
	defer timer.Stop()
	memTick := time.NewTicker(w.memCheckInterval)
	defer memTick.Stop()

	for {
		select {
		case r := <-resultCh:
			if r.err != nil {
				return "", r.err
			}
			return r.res.Text, nil
		case <-timer.C:
			cancel()
			w.settleAfterAbandon(ctx, logger)
			return "", services.Wrap(services.ErrTimeout, "worker", "transcribe",
				fmt.Sprintf("attempt exceeded %s budget", budget), nil)
		case <-memTick.C:
			if w.monitor != nil && w.monitor.IsOverCeiling(w.cfg.MemoryCeilingBytes) {
				cancel()
				reading := w.monitor.Latest()
				return "", services.Wrap(services.ErrTransient, "worker", "transcribe",
					fmt.Sprintf("resident memory %.0f MB over ceiling", reading.MB()), nil)
			}
		case <-ctx.Done():
			cancel()
			return "", ctx.Err()
		}
	}
}

// settleAfterAbandon waits for one fresh memory sample taken after the
// abandoned model call was cancelled, so the next job starts from a
// post-release reading rather than a stale peak.
func (w *Worker) settleAfterAbandon(ctx context.Context, logger *slog.Logger) {
	if w.monitor == nil {
		return
	}
	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := w.monitor.AwaitFreshSample(waitCtx, w.monitor.Generation()); err != nil {
		logger.Warn("no fresh memory sample after abandoned attempt", logging.FieldError, err)
	}
}

// budgetFor computes the attempt budget: a fixed base plus twice the
// estimated audio duration, with the scaled portion capped.
func (w *Worker) budgetFor(audioBytes int64) time.Duration {
	bps := w.cfg.BytesPerSecond
	if bps <= 0 {
		bps = 1
	}
	estimated := time.Duration(audioBytes/bps) * time.Second
	scaled := 2 * estimated
	if scaled > w.cfg.TimeoutCap {
		scaled = w.cfg.TimeoutCap
	}
	return w.cfg.TimeoutBase + scaled
}

func checkSource(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return services.Wrap(services.ErrNotFound, "worker", "check source", "audio file missing", err)
		}
		return services.Wrap(services.ErrUnreadable, "worker", "check source", "audio file stat failed", err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrUnreadable, "worker", "check source", "audio path is a directory", nil)
	}
	f, err := os.Open(path)
	if err != nil {
		return services.Wrap(services.ErrUnreadable, "worker", "check source", "audio file not readable", err)
	}
	return f.Close()
}

func fingerprintText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
