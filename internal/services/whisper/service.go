package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"capturebridge/internal/services"
)

// Result contains the outcome of one transcription call.
type Result struct {
	// Text is the plain text transcript.
	Text string
	// DurationMs is the wall-clock model runtime.
	DurationMs int64
}

// Options tune a single transcription call.
type Options struct {
	// Language overrides the service-level language hint when set.
	Language string
}

// Transcriber is the model adapter contract the transcription engine
// consumes. Load failures and transcription failures carry distinguishable
// markers (services.ErrModelLoad vs services.ErrTranscription and friends).
type Transcriber interface {
	Load(ctx context.Context) error
	Transcribe(ctx context.Context, audioPath string, opts Options) (Result, error)
}

// Service provides transcription via the whisper.cpp CLI.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewService creates a whisper service with the given configuration.
func NewService(cfg Config) *Service {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.ModelPath != "" {
		return filepath.Base(s.cfg.ModelPath)
	}
	return s.cfg.Model
}

// Load verifies the binary and model file are usable. whisper.cpp loads the
// model per invocation, so this is the cheapest check that still surfaces
// load problems before the first capture is attempted.
func (s *Service) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return services.Wrap(services.ErrModelLoad, "whisper", "load", "context done", err)
	}
	if _, err := exec.LookPath(s.cfg.Binary); err != nil {
		return services.Wrap(services.ErrModelLoad, "whisper", "load",
			fmt.Sprintf("binary %q not found", s.cfg.Binary), err)
	}
	if s.cfg.ModelPath != "" {
		if _, err := os.Stat(s.cfg.ModelPath); err != nil {
			return services.Wrap(services.ErrModelLoad, "whisper", "load",
				fmt.Sprintf("model file %q", s.cfg.ModelPath), err)
		}
	}
	return nil
}

// Transcribe runs the model against audioPath and returns the transcript.
// The audio should be a scratch copy; whisper-cli writes its JSON transcript
// next to it.
func (s *Service) Transcribe(ctx context.Context, audioPath string, opts Options) (Result, error) {
	var result Result

	if audioPath == "" {
		return result, services.Wrap(services.ErrTranscription, "whisper", "transcribe", "audio path required", nil)
	}

	outPrefix := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	args := s.buildArgs(audioPath, outPrefix, opts)

	start := time.Now()
	output, err := s.run(ctx, s.cfg.Binary, args...)
	result.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		return result, classifyRunError(err, output)
	}

	jsonPath := outPrefix + ".json"
	defer os.Remove(jsonPath)

	text, err := loadTranscriptText(jsonPath)
	if err != nil {
		return result, services.Wrap(services.ErrTranscription, "whisper", "transcribe", "read transcript output", err)
	}
	result.Text = text
	return result, nil
}

func (s *Service) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return output, nil
}

func (s *Service) buildArgs(audioPath, outPrefix string, opts Options) []string {
	args := make([]string, 0, 16)

	if s.cfg.ModelPath != "" {
		args = append(args, "-m", s.cfg.ModelPath)
	} else {
		args = append(args, "-m", s.cfg.Model)
	}

	language := opts.Language
	if language == "" {
		language = s.cfg.Language
	}
	if language != "" {
		args = append(args, "-l", language)
	}

	if s.cfg.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(s.cfg.Threads))
	}
	if !s.cfg.CUDAEnabled {
		args = append(args, "--no-gpu")
	}

	args = append(args, outputJSONFlag, noPrintsFlag, "-of", outPrefix, "-f", audioPath)
	return args
}

// classifyRunError tags a failed model invocation so the engine can tell
// malformed input apart from generic model errors.
func classifyRunError(err error, output []byte) error {
	combined := strings.ToLower(err.Error() + " " + string(output))
	for _, marker := range []string{
		"failed to read",
		"failed to decode",
		"failed to open",
		"invalid wav",
		"unsupported audio",
		"not a valid",
	} {
		if strings.Contains(combined, marker) {
			return services.Wrap(services.ErrCorruptAudio, "whisper", "transcribe", "model rejected input", err)
		}
	}
	return services.Wrap(services.ErrTranscription, "whisper", "transcribe", "model run failed", err)
}

// segment is one transcribed span from whisper.cpp JSON output.
type segment struct {
	Text string `json:"text"`
}

type whisperPayload struct {
	Transcription []segment `json:"transcription"`
}

func loadTranscriptText(jsonPath string) (string, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return "", err
	}
	var payload whisperPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("parse whisper json: %w", err)
	}
	parts := make([]string, 0, len(payload.Transcription))
	for _, seg := range payload.Transcription {
		if trimmed := strings.TrimSpace(seg.Text); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " "), nil
}
