package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"capturebridge/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatalf("expected missing config file, got exists=true for %s", resolved)
	}
	if cfg.Transcription.QueueMaxDepth != 256 {
		t.Errorf("QueueMaxDepth = %d, want 256", cfg.Transcription.QueueMaxDepth)
	}
	if cfg.Transcription.TimeoutBaseSeconds != 30 {
		t.Errorf("TimeoutBaseSeconds = %d, want 30", cfg.Transcription.TimeoutBaseSeconds)
	}
	if cfg.Transcription.MemoryCeilingMB != 3072 {
		t.Errorf("MemoryCeilingMB = %d, want 3072", cfg.Transcription.MemoryCeilingMB)
	}
	if cfg.Whisper.Binary != "whisper-cli" {
		t.Errorf("Whisper.Binary = %q, want whisper-cli", cfg.Whisper.Binary)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"
scratch_dir = "` + filepath.Join(dir, "scratch") + `"
export_dir = "` + filepath.Join(dir, "vault") + `"

[whisper]
language = " EN "

[transcription]
queue_max_depth = 8

[logging]
format = "bogus"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be detected")
	}
	if cfg.Transcription.QueueMaxDepth != 8 {
		t.Errorf("QueueMaxDepth = %d, want 8", cfg.Transcription.QueueMaxDepth)
	}
	if cfg.Whisper.Language != "en" {
		t.Errorf("Language = %q, want en", cfg.Whisper.Language)
	}
	if cfg.Logging.Format != "auto" {
		t.Errorf("Format = %q, want auto fallback", cfg.Logging.Format)
	}
}

func TestValidateRejectsInvertedTimeouts(t *testing.T) {
	cfg := config.Default()
	cfg.Transcription.TimeoutBaseSeconds = 300
	cfg.Transcription.TimeoutCapSeconds = 60
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "timeout_cap_seconds") {
		t.Errorf("error %q does not mention timeout_cap_seconds", err)
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(config.SampleConfig()), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
}
