package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"capturebridge/internal/config"
	"capturebridge/internal/ledger"
	"capturebridge/internal/logging"
	"capturebridge/internal/logs"
	"capturebridge/internal/memwatch"
	"capturebridge/internal/preflight"
	"capturebridge/internal/transcription"
)

// Daemon owns the transcription engine and the local HTTP API for the
// lifetime of the process.
type Daemon struct {
	cfg    *config.Config
	store  *ledger.Store
	engine *transcription.Engine
	logger *slog.Logger
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	startedAt time.Time
}

// Status is a point-in-time snapshot of daemon health for the status API.
type Status struct {
	Running       bool                 `json:"running"`
	PID           int                  `json:"pid"`
	UptimeSeconds int64                `json:"uptime_seconds"`
	LedgerPath    string               `json:"ledger_path"`
	ModelLoaded   bool                 `json:"model_loaded"`
	MemoryMB      float64              `json:"memory_mb"`
	Queue         QueueView            `json:"queue"`
	Ledger        ledger.HealthSummary `json:"ledger"`
}

// QueueView is the JSON shape of the queue snapshot.
type QueueView struct {
	Processing       bool   `json:"processing"`
	Depth            int    `json:"depth"`
	CurrentCaptureID string `json:"current_capture_id,omitempty"`
	Enqueued         uint64 `json:"enqueued"`
	Completed        uint64 `json:"completed"`
	Failed           uint64 `json:"failed"`
	Retried          uint64 `json:"retried"`
}

// New assembles a daemon around an engine and an open ledger.
func New(cfg *config.Config, store *ledger.Store, engine *transcription.Engine, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := filepath.Join(cfg.Paths.DataDir, "capturebridged.lock")
	d := &Daemon{
		cfg:      cfg,
		store:    store,
		engine:   engine,
		logger:   logger.With(logging.FieldComponent, "daemon"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start runs preflight checks, starts the engine (which resumes pending
// captures from the ledger), and brings up the HTTP API. Failed preflight
// checks are logged but not fatal; each affected capture fails with a
// classified error instead.
func (d *Daemon) Start(ctx context.Context) error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another capturebridge daemon instance is already running")
	}
	d.startedAt = time.Now()

	for _, check := range preflight.Failed(preflight.RunAll(d.cfg)) {
		d.logger.Warn("preflight check failed",
			"check", check.Name,
			"detail", check.Detail,
		)
	}

	if err := d.engine.Start(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("start engine: %w", err)
	}
	if d.api != nil {
		if err := d.api.start(ctx); err != nil {
			d.engine.Stop()
			_ = d.lock.Unlock()
			return err
		}
	}
	go logs.RunSweeper(ctx, d.cfg.Paths.LogDir, d.cfg.Logging.RetentionDays, d.logger)
	d.logger.Info("daemon started", "pid", os.Getpid())
	return nil
}

// Stop shuts the API down first so status readers cannot observe a
// half-stopped engine, then drains the engine.
func (d *Daemon) Stop() {
	if d.api != nil {
		d.api.stop()
	}
	d.engine.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.FieldError, err)
	}
	d.logger.Info("daemon stopped")
}

// Status reports the current daemon snapshot.
func (d *Daemon) Status(ctx context.Context) Status {
	queueStatus := d.engine.Status()
	health, err := d.store.Health(ctx)
	if err != nil {
		d.logger.Warn("ledger health query failed", logging.FieldError, err)
	}
	reading := d.engine.MemoryReading()
	return Status{
		Running:       true,
		PID:           os.Getpid(),
		UptimeSeconds: int64(time.Since(d.startedAt).Seconds()),
		LedgerPath:    d.store.Path(),
		ModelLoaded:   d.engine.ModelLoaded(),
		MemoryMB:      reading.MB(),
		Queue:         queueView(queueStatus),
		Ledger:        health,
	}
}

// Healthy reports whether the ledger responds. The engine being between
// jobs is normal and not a health signal.
func (d *Daemon) Healthy(ctx context.Context) error {
	_, err := d.store.Health(ctx)
	return err
}

// Submit registers a new capture and offers it to the queue.
func (d *Daemon) Submit(ctx context.Context, sourcePath string) (*ledger.Capture, error) {
	return d.engine.Submit(ctx, sourcePath)
}

// MemoryReading exposes the latest resource monitor sample.
func (d *Daemon) MemoryReading() memwatch.Reading {
	return d.engine.MemoryReading()
}

func queueView(st transcription.QueueStatus) QueueView {
	return QueueView{
		Processing:       st.Processing,
		Depth:            st.Depth,
		CurrentCaptureID: st.CurrentCaptureID,
		Enqueued:         st.Totals.Enqueued,
		Completed:        st.Totals.Completed,
		Failed:           st.Totals.Failed,
		Retried:          st.Totals.Retried,
	}
}
