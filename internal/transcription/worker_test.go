package transcription

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"capturebridge/internal/escalation"
	"capturebridge/internal/ledger"
	"capturebridge/internal/memwatch"
	"capturebridge/internal/placeholder"
	"capturebridge/internal/scratch"
	"capturebridge/internal/services"
	"capturebridge/internal/services/whisper"
)

type fakeModel struct {
	ensureErr  error
	transcribe func(ctx context.Context, audioPath string, opts whisper.Options) (whisper.Result, error)
	loads      atomic.Int32
}

func (f *fakeModel) Ensure(_ context.Context) error {
	f.loads.Add(1)
	return f.ensureErr
}

func (f *fakeModel) Transcribe(ctx context.Context, audioPath string, opts whisper.Options) (whisper.Result, error) {
	if f.transcribe != nil {
		return f.transcribe(ctx, audioPath, opts)
	}
	return whisper.Result{Text: "hello world"}, nil
}

type exportCall struct {
	captureID string
	errorKind string
	attempts  int
}

type recordingExporter struct {
	mu    sync.Mutex
	calls []exportCall
	err   error
}

func (r *recordingExporter) Export(_ context.Context, capture *ledger.Capture, errorKind, _ string, attempts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, exportCall{captureID: capture.ID, errorKind: errorKind, attempts: attempts})
	return r.err
}

func (r *recordingExporter) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

var _ placeholder.Exporter = (*recordingExporter)(nil)

type workerFixture struct {
	worker      *Worker
	store       *ledger.Store
	exporter    *recordingExporter
	escalations *escalation.Log
	scratchDir  string
	rss         atomic.Int64
}

func newWorkerFixture(t *testing.T, mdl model, cfg WorkerConfig) *workerFixture {
	t.Helper()
	tmp := t.TempDir()

	store, err := ledger.OpenPath(filepath.Join(tmp, "ledger.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	f := &workerFixture{store: store}
	f.rss.Store(256 << 20)

	monitor := memwatch.New(5*time.Millisecond, nil, memwatch.WithReader(func() (int64, error) {
		return f.rss.Load(), nil
	}))
	monitor.Start(context.Background())
	t.Cleanup(monitor.Stop)

	f.scratchDir = filepath.Join(tmp, "scratch")
	if err := os.MkdirAll(f.scratchDir, 0o755); err != nil {
		t.Fatalf("create scratch dir: %v", err)
	}

	escalations, err := escalation.Open(filepath.Join(tmp, "escalations.jsonl"))
	if err != nil {
		t.Fatalf("open escalation log: %v", err)
	}
	t.Cleanup(func() { _ = escalations.Close() })
	f.escalations = escalations

	if cfg.TimeoutBase == 0 {
		cfg.TimeoutBase = 5 * time.Second
	}
	if cfg.TimeoutCap == 0 {
		cfg.TimeoutCap = 240 * time.Second
	}
	if cfg.BytesPerSecond == 0 {
		cfg.BytesPerSecond = 32000
	}
	if cfg.MemoryCeilingBytes == 0 {
		cfg.MemoryCeilingBytes = 3072 << 20
	}

	f.exporter = &recordingExporter{}
	f.worker = NewWorker(cfg, store, scratch.NewManager(f.scratchDir, nil), mdl, f.exporter, escalations, monitor, nil)
	f.worker.memCheckInterval = 5 * time.Millisecond
	return f
}

func (f *workerFixture) seedCapture(t *testing.T, sourcePath string) *ledger.Capture {
	t.Helper()
	capture, err := f.store.NewCapture(context.Background(), sourcePath)
	if err != nil {
		t.Fatalf("seed capture: %v", err)
	}
	return capture
}

func (f *workerFixture) captureStatus(t *testing.T, id string) ledger.Status {
	t.Helper()
	capture, err := f.store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load capture: %v", err)
	}
	if capture == nil {
		t.Fatalf("capture %s vanished", id)
	}
	return capture.Status
}

func writeAudio(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("RIFF fake audio payload"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func TestWorkerSuccessPersistsTranscript(t *testing.T) {
	f := newWorkerFixture(t, &fakeModel{}, WorkerConfig{})
	audio := writeAudio(t, t.TempDir(), "note.wav")
	capture := f.seedCapture(t, audio)

	outcome := f.worker.Run(context.Background(), &Job{CaptureID: capture.ID, AudioPath: audio, Attempt: 1})
	if !outcome.Success {
		t.Fatalf("outcome = %+v, want success", outcome)
	}
	if outcome.Transcript != "hello world" {
		t.Fatalf("transcript = %q", outcome.Transcript)
	}

	stored, err := f.store.GetByID(context.Background(), capture.ID)
	if err != nil || stored == nil {
		t.Fatalf("load capture: %v", err)
	}
	if stored.Status != ledger.StatusTranscribed {
		t.Fatalf("status = %s, want %s", stored.Status, ledger.StatusTranscribed)
	}
	if stored.RawContent != "hello world" {
		t.Fatalf("raw content = %q", stored.RawContent)
	}
	if stored.ContentFingerprint != fingerprintText("hello world") {
		t.Fatalf("fingerprint = %q, want sha256 of transcript", stored.ContentFingerprint)
	}
	if f.exporter.callCount() != 0 {
		t.Fatal("placeholder exported on success")
	}
}

func TestWorkerMissingSourceResolvesImmediately(t *testing.T) {
	f := newWorkerFixture(t, &fakeModel{}, WorkerConfig{})
	capture := f.seedCapture(t, "/nowhere/gone.wav")

	outcome := f.worker.Run(context.Background(), &Job{CaptureID: capture.ID, AudioPath: "/nowhere/gone.wav", Attempt: 1})
	if outcome.ShouldRetry {
		t.Fatal("missing file must not retry")
	}
	if !outcome.PlaceholderExported {
		t.Fatalf("outcome = %+v, want placeholder export", outcome)
	}
	if outcome.ErrorKind != KindFileNotFound {
		t.Fatalf("error kind = %s, want %s", outcome.ErrorKind, KindFileNotFound)
	}
	if got := f.captureStatus(t, capture.ID); got != ledger.StatusExportedPlaceholder {
		t.Fatalf("status = %s, want %s", got, ledger.StatusExportedPlaceholder)
	}
	if f.exporter.callCount() != 1 {
		t.Fatalf("export calls = %d, want 1", f.exporter.callCount())
	}

	records, err := f.escalations.ReadAll()
	if err != nil {
		t.Fatalf("read escalations: %v", err)
	}
	if len(records) != 1 || records[0].ErrorKind != string(KindFileNotFound) {
		t.Fatalf("escalation records = %+v, want one FILE_NOT_FOUND", records)
	}
}

func TestWorkerTimeoutRetriesThenPlaceholder(t *testing.T) {
	mdl := &fakeModel{transcribe: func(ctx context.Context, _ string, _ whisper.Options) (whisper.Result, error) {
		<-ctx.Done()
		return whisper.Result{}, ctx.Err()
	}}
	f := newWorkerFixture(t, mdl, WorkerConfig{
		TimeoutBase:    30 * time.Millisecond,
		TimeoutCap:     time.Millisecond,
		BytesPerSecond: 1 << 40,
	})
	audio := writeAudio(t, t.TempDir(), "slow.wav")
	capture := f.seedCapture(t, audio)

	first := f.worker.Run(context.Background(), &Job{CaptureID: capture.ID, AudioPath: audio, Attempt: 1})
	if !first.ShouldRetry || first.ErrorKind != KindTimeout {
		t.Fatalf("first outcome = %+v, want timeout retry", first)
	}
	if got := f.captureStatus(t, capture.ID); got != ledger.StatusTranscriptionFailed {
		t.Fatalf("status after first attempt = %s, want %s", got, ledger.StatusTranscriptionFailed)
	}
	if f.exporter.callCount() != 0 {
		t.Fatal("placeholder exported before attempt budget exhausted")
	}

	second := f.worker.Run(context.Background(), &Job{CaptureID: capture.ID, AudioPath: audio, Attempt: 2})
	if second.ShouldRetry {
		t.Fatal("attempt budget exhausted, must not retry again")
	}
	if !second.PlaceholderExported || second.ErrorKind != KindTimeout {
		t.Fatalf("second outcome = %+v, want timeout placeholder", second)
	}
	if got := f.captureStatus(t, capture.ID); got != ledger.StatusExportedPlaceholder {
		t.Fatalf("final status = %s, want %s", got, ledger.StatusExportedPlaceholder)
	}
	if f.exporter.callCount() != 1 {
		t.Fatalf("export calls = %d, want exactly 1", f.exporter.callCount())
	}

	records, err := f.escalations.ReadAll()
	if err != nil {
		t.Fatalf("read escalations: %v", err)
	}
	if len(records) != 1 || records[0].Attempts != 2 {
		t.Fatalf("escalation records = %+v, want one with attempts=2", records)
	}
}

func TestWorkerMemoryCeilingAbortsAttempt(t *testing.T) {
	mdl := &fakeModel{transcribe: func(ctx context.Context, _ string, _ whisper.Options) (whisper.Result, error) {
		<-ctx.Done()
		return whisper.Result{}, ctx.Err()
	}}
	f := newWorkerFixture(t, mdl, WorkerConfig{MemoryCeilingBytes: 1 << 30})
	audio := writeAudio(t, t.TempDir(), "big.wav")
	capture := f.seedCapture(t, audio)

	f.rss.Store(2 << 30)
	outcome := f.worker.Run(context.Background(), &Job{CaptureID: capture.ID, AudioPath: audio, Attempt: 1})
	if outcome.ErrorKind != KindOOM {
		t.Fatalf("error kind = %s, want %s", outcome.ErrorKind, KindOOM)
	}
	if outcome.ShouldRetry {
		t.Fatal("memory abort must not retry")
	}
	if !outcome.PlaceholderExported {
		t.Fatalf("outcome = %+v, want placeholder export", outcome)
	}
	if got := f.captureStatus(t, capture.ID); got != ledger.StatusExportedPlaceholder {
		t.Fatalf("status = %s, want %s", got, ledger.StatusExportedPlaceholder)
	}
}

func TestWorkerCorruptAudioPlaceholder(t *testing.T) {
	mdl := &fakeModel{transcribe: func(_ context.Context, _ string, _ whisper.Options) (whisper.Result, error) {
		return whisper.Result{}, services.Wrap(services.ErrCorruptAudio, "whisper", "transcribe", "failed to decode audio", nil)
	}}
	f := newWorkerFixture(t, mdl, WorkerConfig{})
	audio := writeAudio(t, t.TempDir(), "corrupt.wav")
	capture := f.seedCapture(t, audio)

	outcome := f.worker.Run(context.Background(), &Job{CaptureID: capture.ID, AudioPath: audio, Attempt: 1})
	if outcome.ErrorKind != KindCorruptAudio || !outcome.PlaceholderExported || outcome.ShouldRetry {
		t.Fatalf("outcome = %+v, want immediate CORRUPT_AUDIO placeholder", outcome)
	}
	if f.exporter.callCount() != 1 {
		t.Fatalf("export calls = %d, want 1", f.exporter.callCount())
	}
}

func TestWorkerModelLoadFailure(t *testing.T) {
	mdl := &fakeModel{ensureErr: services.Wrap(services.ErrModelLoad, "whisper", "load", "model file missing", nil)}
	f := newWorkerFixture(t, mdl, WorkerConfig{})
	audio := writeAudio(t, t.TempDir(), "note.wav")
	capture := f.seedCapture(t, audio)

	outcome := f.worker.Run(context.Background(), &Job{CaptureID: capture.ID, AudioPath: audio, Attempt: 1})
	if outcome.ErrorKind != KindModelLoadFailure || !outcome.PlaceholderExported {
		t.Fatalf("outcome = %+v, want MODEL_LOAD_FAILURE placeholder", outcome)
	}
}

func TestWorkerSkipsSettledCapture(t *testing.T) {
	f := newWorkerFixture(t, &fakeModel{}, WorkerConfig{})
	capture := f.seedCapture(t, "/nowhere/gone.wav")
	job := &Job{CaptureID: capture.ID, AudioPath: "/nowhere/gone.wav", Attempt: 1}

	first := f.worker.Run(context.Background(), job)
	if !first.PlaceholderExported {
		t.Fatalf("first outcome = %+v, want placeholder", first)
	}

	// A stale duplicate job must not touch the settled capture again.
	second := f.worker.Run(context.Background(), job)
	if second.Success || second.ShouldRetry || second.PlaceholderExported {
		t.Fatalf("second outcome = %+v, want inert skip", second)
	}
	if f.exporter.callCount() != 1 {
		t.Fatalf("export calls = %d, want exactly 1", f.exporter.callCount())
	}
}

func TestWorkerCleansScratchOnEveryPath(t *testing.T) {
	mdl := &fakeModel{transcribe: func(_ context.Context, _ string, _ whisper.Options) (whisper.Result, error) {
		return whisper.Result{}, services.Wrap(services.ErrTranscription, "whisper", "transcribe", "exit status 1", nil)
	}}
	f := newWorkerFixture(t, mdl, WorkerConfig{})
	dir := t.TempDir()

	success := f.seedCapture(t, writeAudio(t, dir, "ok.wav"))
	okModel := &fakeModel{}
	f.worker.model = okModel
	f.worker.Run(context.Background(), &Job{CaptureID: success.ID, AudioPath: success.SourcePath, Attempt: 1})

	f.worker.model = mdl
	failed := f.seedCapture(t, writeAudio(t, dir, "bad.wav"))
	f.worker.Run(context.Background(), &Job{CaptureID: failed.ID, AudioPath: failed.SourcePath, Attempt: 1})
	f.worker.Run(context.Background(), &Job{CaptureID: failed.ID, AudioPath: failed.SourcePath, Attempt: 2})

	entries, err := os.ReadDir(f.scratchDir)
	if err != nil {
		t.Fatalf("read scratch dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("scratch dir holds %d leftover files", len(entries))
	}
}

func TestWorkerShutdownLeavesCaptureRecoverable(t *testing.T) {
	mdl := &fakeModel{transcribe: func(ctx context.Context, _ string, _ whisper.Options) (whisper.Result, error) {
		<-ctx.Done()
		return whisper.Result{}, ctx.Err()
	}}
	f := newWorkerFixture(t, mdl, WorkerConfig{})
	audio := writeAudio(t, t.TempDir(), "note.wav")
	capture := f.seedCapture(t, audio)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	outcome := f.worker.Run(ctx, &Job{CaptureID: capture.ID, AudioPath: audio, Attempt: 1})
	if !outcome.Aborted {
		t.Fatalf("outcome = %+v, want aborted", outcome)
	}
	if outcome.PlaceholderExported || outcome.ShouldRetry {
		t.Fatalf("shutdown must not settle the capture: %+v", outcome)
	}
	// Left in transcribing on purpose; startup recovery resets and re-queues.
	if got := f.captureStatus(t, capture.ID); got != ledger.StatusTranscribing {
		t.Fatalf("status = %s, want %s", got, ledger.StatusTranscribing)
	}
}

func TestBudgetForScalesWithSizeAndCaps(t *testing.T) {
	w := &Worker{cfg: WorkerConfig{
		TimeoutBase:    30 * time.Second,
		TimeoutCap:     240 * time.Second,
		BytesPerSecond: 32000,
	}}
	tests := []struct {
		name  string
		bytes int64
		want  time.Duration
	}{
		{"one minute of audio", 60 * 32000, 30*time.Second + 120*time.Second},
		{"tiny clip", 3200, 30 * time.Second},
		{"long recording hits cap", 3600 * 32000, 30*time.Second + 240*time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.budgetFor(tt.bytes); got != tt.want {
				t.Fatalf("budgetFor(%d) = %s, want %s", tt.bytes, got, tt.want)
			}
		})
	}
}
