package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"capturebridge/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckWhisperBinary_Missing(t *testing.T) {
	result := CheckWhisperBinary("definitely-not-a-real-binary-name")
	if result.Passed {
		t.Fatal("expected failure for unresolvable binary")
	}
}

func TestCheckWhisperBinary_NotConfigured(t *testing.T) {
	result := CheckWhisperBinary("  ")
	if result.Passed {
		t.Fatal("expected failure for empty binary")
	}
}

func TestCheckModelFile_OK(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.bin")
	if err := os.WriteFile(path, []byte("weights"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckModelFile(path)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckModelFile_Missing(t *testing.T) {
	result := CheckModelFile(filepath.Join(t.TempDir(), "nope.bin"))
	if result.Passed {
		t.Fatal("expected failure for missing model")
	}
}

func TestCheckScratchSpace_OK(t *testing.T) {
	result := CheckScratchSpace(t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReportsFailures(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(tmp, "data")
	cfg.Paths.LogDir = filepath.Join(tmp, "logs")
	cfg.Paths.ScratchDir = filepath.Join(tmp, "scratch")
	cfg.Paths.ExportDir = ""
	cfg.Whisper.ModelPath = filepath.Join(tmp, "missing-model.bin")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	results := RunAll(&cfg)
	failed := Failed(results)
	// Directories pass; the model file is missing and (on most test hosts)
	// the whisper binary is not installed.
	foundModel := false
	for _, r := range failed {
		if r.Name == "Whisper model" {
			foundModel = true
		}
		if r.Name == "Data directory" || r.Name == "Log directory" || r.Name == "Scratch directory" {
			t.Errorf("directory check %q failed unexpectedly: %s", r.Name, r.Detail)
		}
	}
	if !foundModel {
		t.Fatal("expected the missing model file to fail its check")
	}
}
