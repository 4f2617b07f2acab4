package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"capturebridge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfgVal.Paths.ExportDir = filepath.Join(base, "export")
	cfgVal.Paths.APIBind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithQueueDepth overrides the queue admission limit on the test config.
func WithQueueDepth(depth int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcription.QueueMaxDepth = depth
	}
}

// WithTimeouts overrides the attempt budget components, in seconds.
func WithTimeouts(base, cap int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcription.TimeoutBaseSeconds = base
		b.cfg.Transcription.TimeoutCapSeconds = cap
	}
}

// WithStubbedWhisper writes a stub whisper binary and model file and points
// the config at them. The stub emits an empty transcription JSON next to
// the requested output prefix.
func WithStubbedWhisper() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\n" +
			"out=\"\"\n" +
			"while [ $# -gt 0 ]; do\n" +
			"  if [ \"$1\" = \"-of\" ]; then out=\"$2\"; shift; fi\n" +
			"  shift\n" +
			"done\n" +
			"[ -n \"$out\" ] && printf '{\"transcription\":[{\"text\":\"stub transcript\"}]}' > \"$out.json\"\n" +
			"exit 0\n")
		target := filepath.Join(binDir, "whisper-cli")
		if err := os.WriteFile(target, script, 0o755); err != nil {
			b.t.Fatalf("write whisper stub: %v", err)
		}

		modelPath := filepath.Join(b.baseDir, "model.bin")
		if err := os.WriteFile(modelPath, []byte("stub weights"), 0o644); err != nil {
			b.t.Fatalf("write model stub: %v", err)
		}
		b.cfg.Whisper.Binary = target
		b.cfg.Whisper.ModelPath = modelPath
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
