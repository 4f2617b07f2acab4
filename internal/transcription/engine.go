package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"capturebridge/internal/config"
	"capturebridge/internal/escalation"
	"capturebridge/internal/ledger"
	"capturebridge/internal/logging"
	"capturebridge/internal/memwatch"
	"capturebridge/internal/placeholder"
	"capturebridge/internal/scratch"
	"capturebridge/internal/services/whisper"
)

// EscalationFile is the JSONL escalation log name under the data directory.
const EscalationFile = "escalations.jsonl"

// Engine wires the queue, worker, memory monitor, and their dependencies
// into one start/stoppable unit. The daemon owns exactly one Engine.
type Engine struct {
	queue       *Queue
	worker      *Worker
	monitor     *memwatch.Monitor
	store       *ledger.Store
	model       *whisper.Handle
	scratch     *scratch.Manager
	escalations *escalation.Log
	logger      *slog.Logger
}

// NewEngine assembles an engine from configuration and an open ledger.
// The model is constructed but not loaded; the first job pays the load.
func NewEngine(cfg *config.Config, store *ledger.Store, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	escalations, err := escalation.Open(filepath.Join(cfg.Paths.DataDir, EscalationFile))
	if err != nil {
		return nil, fmt.Errorf("open escalation log: %w", err)
	}

	service := whisper.NewService(whisper.Config{
		Binary:      cfg.Whisper.Binary,
		ModelPath:   cfg.Whisper.ModelPath,
		Model:       cfg.Whisper.Model,
		Language:    cfg.Whisper.Language,
		CUDAEnabled: cfg.Whisper.CUDAEnabled,
		Threads:     cfg.Whisper.Threads,
	})
	handle := whisper.NewHandle(service, logger)

	monitor := memwatch.New(time.Duration(cfg.Transcription.MemorySampleInterval)*time.Second, logger)
	scratchMgr := scratch.NewManager(cfg.Paths.ScratchDir, logger)
	exporter := placeholder.NewFileExporter(cfg.Paths.ExportDir)

	workerCfg := WorkerConfig{
		TimeoutBase:        time.Duration(cfg.Transcription.TimeoutBaseSeconds) * time.Second,
		TimeoutCap:         time.Duration(cfg.Transcription.TimeoutCapSeconds) * time.Second,
		BytesPerSecond:     int64(cfg.Transcription.AudioBytesPerSecond),
		MemoryCeilingBytes: int64(cfg.Transcription.MemoryCeilingMB) * 1024 * 1024,
		Language:           cfg.Whisper.Language,
	}
	worker := NewWorker(workerCfg, store, scratchMgr, handle, exporter, escalations, monitor, logger)
	queue := NewQueue(worker, cfg.Transcription.QueueMaxDepth, logger)

	return &Engine{
		queue:       queue,
		worker:      worker,
		monitor:     monitor,
		store:       store,
		model:       handle,
		scratch:     scratchMgr,
		escalations: escalations,
		logger:      logger.With(logging.FieldComponent, "engine"),
	}, nil
}

// Start begins memory sampling, recovers interrupted work from the ledger,
// and makes the queue runnable.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.scratch.Sweep(); err != nil {
		e.logger.Warn("scratch sweep failed", logging.FieldError, err)
	}
	e.monitor.Start(ctx)
	e.queue.Start(ctx)
	if err := e.Resume(ctx); err != nil {
		return fmt.Errorf("resume pending captures: %w", err)
	}
	return nil
}

// Stop drains the in-flight job, then releases the monitor, model, and
// escalation log.
func (e *Engine) Stop() {
	e.queue.Stop()
	e.monitor.Stop()
	e.model.Close()
	if err := e.escalations.Close(); err != nil {
		e.logger.Warn("closing escalation log", logging.FieldError, err)
	}
}

// Resume rebuilds the queue from the ledger after a restart. Captures left
// in transcribing by a crash are reset to discovered first, then every
// discovered and retriable-failed capture re-enters in creation order.
// Their retry budgets restart; the in-memory attempt count does not
// survive a process restart.
func (e *Engine) Resume(ctx context.Context) error {
	reset, err := e.store.ResetStuckTranscribing(ctx)
	if err != nil {
		return err
	}
	if reset > 0 {
		e.logger.Info("reset captures stuck in transcribing", "count", reset)
	}

	captures, err := e.store.ListByStatus(ctx, ledger.StatusDiscovered, ledger.StatusTranscriptionFailed)
	if err != nil {
		return err
	}
	requeued := 0
	for _, capture := range captures {
		if _, err := e.queue.Enqueue(capture.ID, capture.SourcePath); err != nil {
			e.logger.Warn("capture not re-enqueued",
				logging.FieldCaptureID, capture.ID,
				logging.FieldError, err,
			)
			continue
		}
		requeued++
	}
	if requeued > 0 {
		e.logger.Info("re-enqueued pending captures", "count", requeued)
	}
	return nil
}

// Submit registers a new capture in the ledger and enqueues it. On
// backpressure the capture stays in discovered for the next restart or
// resume pass to pick up.
func (e *Engine) Submit(ctx context.Context, sourcePath string) (*ledger.Capture, error) {
	capture, err := e.store.NewCapture(ctx, sourcePath)
	if err != nil {
		return nil, err
	}
	log := logging.WithContext(ctx, e.logger)
	if _, err := e.queue.Enqueue(capture.ID, capture.SourcePath); err != nil {
		log.Warn("capture registered but not queued",
			logging.FieldCaptureID, capture.ID,
			logging.FieldError, err,
		)
		return capture, err
	}
	log.Info("capture queued",
		logging.FieldCaptureID, capture.ID,
		"source_path", capture.SourcePath,
	)
	return capture, nil
}

// EnqueueCapture admits an already-registered capture.
func (e *Engine) EnqueueCapture(capture *ledger.Capture) error {
	_, err := e.queue.Enqueue(capture.ID, capture.SourcePath)
	return err
}

// Status reports the queue snapshot.
func (e *Engine) Status() QueueStatus {
	return e.queue.Status()
}

// ModelLoaded reports whether the transcription model finished loading.
func (e *Engine) ModelLoaded() bool {
	return e.model.Loaded()
}

// MemoryReading returns the most recent resource monitor sample.
func (e *Engine) MemoryReading() memwatch.Reading {
	return e.monitor.Latest()
}
