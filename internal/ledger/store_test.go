package ledger_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"capturebridge/internal/ledger"
)

func openStore(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.OpenPath(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewCaptureStartsDiscovered(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	capture, err := store.NewCapture(ctx, "/captures/memo-001.wav")
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}
	if capture.Status != ledger.StatusDiscovered {
		t.Errorf("status = %s, want discovered", capture.Status)
	}
	if capture.ID == "" {
		t.Error("capture ID should be populated")
	}
	if capture.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", capture.Attempts)
	}
}

func TestSuccessPath(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	capture, err := store.NewCapture(ctx, "/captures/memo-002.wav")
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}

	if err := store.MarkTranscribing(ctx, capture.ID); err != nil {
		t.Fatalf("MarkTranscribing: %v", err)
	}
	if err := store.SetTranscribed(ctx, capture.ID, "hello world", "abc123", 1500); err != nil {
		t.Fatalf("SetTranscribed: %v", err)
	}

	got, err := store.GetByID(ctx, capture.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != ledger.StatusTranscribed {
		t.Errorf("status = %s, want transcribed", got.Status)
	}
	if got.RawContent != "hello world" {
		t.Errorf("raw content = %q", got.RawContent)
	}
	if got.ContentFingerprint != "abc123" {
		t.Errorf("fingerprint = %q", got.ContentFingerprint)
	}
	if got.DurationMs != 1500 {
		t.Errorf("duration = %d", got.DurationMs)
	}
}

func TestRetryThenPlaceholderPath(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	capture, err := store.NewCapture(ctx, "/captures/memo-003.wav")
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}

	if err := store.MarkTranscribing(ctx, capture.ID); err != nil {
		t.Fatalf("MarkTranscribing: %v", err)
	}
	if err := store.SetTranscriptionFailed(ctx, capture.ID, "TIMEOUT", "attempt exceeded budget", 1); err != nil {
		t.Fatalf("SetTranscriptionFailed: %v", err)
	}
	// Retry re-enters transcribing from transcription_failed.
	if err := store.MarkTranscribing(ctx, capture.ID); err != nil {
		t.Fatalf("MarkTranscribing retry: %v", err)
	}
	if err := store.SetExportedPlaceholder(ctx, capture.ID, "TIMEOUT", "attempts exhausted", 2); err != nil {
		t.Fatalf("SetExportedPlaceholder: %v", err)
	}

	got, err := store.GetByID(ctx, capture.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != ledger.StatusExportedPlaceholder {
		t.Errorf("status = %s, want exported_placeholder", got.Status)
	}
	if got.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", got.Attempts)
	}
	if got.ErrorKind != "TIMEOUT" {
		t.Errorf("error kind = %q", got.ErrorKind)
	}
}

func TestTerminalStatusesRejectTransitions(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	capture, err := store.NewCapture(ctx, "/captures/memo-004.wav")
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}
	if err := store.MarkTranscribing(ctx, capture.ID); err != nil {
		t.Fatalf("MarkTranscribing: %v", err)
	}
	if err := store.SetTranscribed(ctx, capture.ID, "done", "fp", 10); err != nil {
		t.Fatalf("SetTranscribed: %v", err)
	}

	if err := store.MarkTranscribing(ctx, capture.ID); !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Errorf("MarkTranscribing on terminal capture: err = %v, want ErrInvalidTransition", err)
	}
	if err := store.SetExportedPlaceholder(ctx, capture.ID, "UNKNOWN", "late failure", 1); !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Errorf("SetExportedPlaceholder on terminal capture: err = %v, want ErrInvalidTransition", err)
	}
}

func TestSetTranscribedRequiresTranscribing(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	capture, err := store.NewCapture(ctx, "/captures/memo-005.wav")
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}
	if err := store.SetTranscribed(ctx, capture.ID, "text", "fp", 1); !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Errorf("SetTranscribed from discovered: err = %v, want ErrInvalidTransition", err)
	}
}

func TestResetStuckTranscribing(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	first, err := store.NewCapture(ctx, "/captures/memo-006.wav")
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}
	if err := store.MarkTranscribing(ctx, first.ID); err != nil {
		t.Fatalf("MarkTranscribing: %v", err)
	}

	count, err := store.ResetStuckTranscribing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckTranscribing: %v", err)
	}
	if count != 1 {
		t.Errorf("reset count = %d, want 1", count)
	}
	got, err := store.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != ledger.StatusDiscovered {
		t.Errorf("status after reset = %s, want discovered", got.Status)
	}
}

func TestListByStatusOrdersByCreation(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		capture, err := store.NewCapture(ctx, "/captures/ordered.wav")
		if err != nil {
			t.Fatalf("NewCapture: %v", err)
		}
		ids = append(ids, capture.ID)
	}

	captures, err := store.ListByStatus(ctx, ledger.StatusDiscovered)
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(captures) != 3 {
		t.Fatalf("len = %d, want 3", len(captures))
	}
	for i, capture := range captures {
		if capture.ID != ids[i] {
			t.Errorf("position %d: got %s, want %s", i, capture.ID, ids[i])
		}
	}
}

func TestHealthSummary(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	a, _ := store.NewCapture(ctx, "/captures/a.wav")
	if _, err := store.NewCapture(ctx, "/captures/b.wav"); err != nil {
		t.Fatalf("NewCapture: %v", err)
	}
	if err := store.MarkTranscribing(ctx, a.ID); err != nil {
		t.Fatalf("MarkTranscribing: %v", err)
	}
	if err := store.SetTranscribed(ctx, a.ID, "text", "fp", 5); err != nil {
		t.Fatalf("SetTranscribed: %v", err)
	}

	summary, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if summary.Total != 2 || summary.Discovered != 1 || summary.Transcribed != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestParseStatus(t *testing.T) {
	cases := []struct {
		in   string
		want ledger.Status
		ok   bool
	}{
		{"discovered", ledger.StatusDiscovered, true},
		{" Transcribed ", ledger.StatusTranscribed, true},
		{"exported_placeholder", ledger.StatusExportedPlaceholder, true},
		{"bogus", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ledger.ParseStatus(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseStatus(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
