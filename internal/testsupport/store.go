package testsupport

import (
	"context"
	"testing"

	"capturebridge/internal/config"
	"capturebridge/internal/ledger"
)

// MustOpenLedger opens a ledger.Store for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// NewCapture registers a capture for tests using the provided store.
func NewCapture(t testing.TB, store *ledger.Store, sourcePath string) *ledger.Capture {
	t.Helper()

	capture, err := store.NewCapture(context.Background(), sourcePath)
	if err != nil {
		t.Fatalf("store.NewCapture: %v", err)
	}
	return capture
}
