package whisper

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"capturebridge/internal/logging"
	"capturebridge/internal/metrics"
)

// Handle owns the process-wide model adapter. The model loads lazily on
// first use; concurrent requesters await the same in-flight load instead of
// triggering a second one. The handle lives until explicit shutdown.
type Handle struct {
	transcriber Transcriber
	logger      *slog.Logger

	group  singleflight.Group
	loaded atomic.Bool
}

// NewHandle wraps transcriber with lazy, deduplicated loading.
func NewHandle(transcriber Transcriber, logger *slog.Logger) *Handle {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handle{
		transcriber: transcriber,
		logger:      logger.With(logging.String(logging.FieldComponent, "whisper")),
	}
}

// Ensure loads the model if it has not been loaded yet. A failed load leaves
// the handle unloaded so the next attempt retries.
func (h *Handle) Ensure(ctx context.Context) error {
	if h.loaded.Load() {
		return nil
	}
	_, err, _ := h.group.Do("load", func() (any, error) {
		if h.loaded.Load() {
			return nil, nil
		}
		start := time.Now()
		if err := h.transcriber.Load(ctx); err != nil {
			return nil, err
		}
		elapsed := time.Since(start)
		metrics.ModelLoadDuration.Observe(float64(elapsed.Milliseconds()))
		h.logger.Info("model loaded", logging.Duration("load_duration", elapsed))
		h.loaded.Store(true)
		return nil, nil
	})
	return err
}

// Loaded reports whether the model has been loaded.
func (h *Handle) Loaded() bool {
	return h.loaded.Load()
}

// Transcribe ensures the model is loaded and runs one transcription.
func (h *Handle) Transcribe(ctx context.Context, audioPath string, opts Options) (Result, error) {
	if err := h.Ensure(ctx); err != nil {
		return Result{}, err
	}
	return h.transcriber.Transcribe(ctx, audioPath, opts)
}

// Close releases the handle at process shutdown.
func (h *Handle) Close() {
	h.loaded.Store(false)
}
