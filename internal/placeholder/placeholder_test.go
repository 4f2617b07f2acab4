package placeholder_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"capturebridge/internal/ledger"
	"capturebridge/internal/placeholder"
)

func TestExportWritesLabeledDocument(t *testing.T) {
	dir := t.TempDir()
	exporter := placeholder.NewFileExporter(dir)
	exporter.WithClock(func() time.Time {
		return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	})

	capture := &ledger.Capture{
		ID:         "cap-010",
		SourcePath: "/captures/standup-notes.wav",
	}
	err := exporter.Export(context.Background(), capture, "FILE_NOT_FOUND", "audio file missing at transcription time", 1)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	data, err := os.ReadFile(exporter.PathFor("cap-010"))
	if err != nil {
		t.Fatalf("read placeholder: %v", err)
	}
	doc := string(data)

	for _, want := range []string{
		"# Transcription Unavailable: File Not Found",
		"`cap-010`",
		"`/captures/standup-notes.wav`",
		"`FILE_NOT_FOUND`",
		"**Attempts**: 1",
		"2026-03-01T09:30:00Z",
		"> audio file missing at transcription time",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("placeholder missing %q:\n%s", want, doc)
		}
	}
}

func TestExportRequiresCapture(t *testing.T) {
	exporter := placeholder.NewFileExporter(t.TempDir())
	if err := exporter.Export(context.Background(), nil, "UNKNOWN", "", 0); err == nil {
		t.Fatal("expected error for nil capture")
	}
}

func TestExportEmptyKindHeading(t *testing.T) {
	dir := t.TempDir()
	exporter := placeholder.NewFileExporter(dir)
	capture := &ledger.Capture{ID: "cap-011"}
	if err := exporter.Export(context.Background(), capture, "", "", 2); err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := os.ReadFile(exporter.PathFor("cap-011"))
	if err != nil {
		t.Fatalf("read placeholder: %v", err)
	}
	if !strings.Contains(string(data), "Unknown Failure") {
		t.Errorf("empty kind should render Unknown Failure heading:\n%s", data)
	}
}
