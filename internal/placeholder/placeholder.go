package placeholder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"capturebridge/internal/ledger"
)

// Exporter produces a fallback document when transcription permanently
// fails. Implementations must be safe to call once per terminal failure.
type Exporter interface {
	Export(ctx context.Context, capture *ledger.Capture, errorKind, reason string, attempts int) error
}

// FileExporter writes placeholder markdown documents into the note vault's
// export directory so a failed capture never disappears silently.
type FileExporter struct {
	dir   string
	clock func() time.Time
}

// NewFileExporter constructs a FileExporter rooted at dir.
func NewFileExporter(dir string) *FileExporter {
	return &FileExporter{dir: dir, clock: time.Now}
}

// WithClock overrides the timestamp source (for testing).
func (e *FileExporter) WithClock(clock func() time.Time) {
	e.clock = clock
}

var titleCaser = cases.Title(language.English)

// Export writes a labeled markdown document carrying the failure reason,
// attempt count, and timestamp.
func (e *FileExporter) Export(_ context.Context, capture *ledger.Capture, errorKind, reason string, attempts int) error {
	if capture == nil {
		return fmt.Errorf("capture is required")
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("ensure export dir: %w", err)
	}

	now := e.clock().UTC()
	doc := buildDocument(capture, errorKind, reason, attempts, now)
	path := e.PathFor(capture.ID)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write placeholder: %w", err)
	}
	return nil
}

// PathFor returns the placeholder document location for a capture.
func (e *FileExporter) PathFor(captureID string) string {
	return filepath.Join(e.dir, captureID+"-transcription-failed.md")
}

func buildDocument(capture *ledger.Capture, errorKind, reason string, attempts int, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Transcription Unavailable: %s\n\n", headingFor(errorKind))
	b.WriteString("This capture could not be transcribed. The original audio is preserved;\n")
	b.WriteString("listen to it directly or retry transcription manually.\n\n")
	fmt.Fprintf(&b, "- **Capture**: `%s`\n", capture.ID)
	if capture.SourcePath != "" {
		fmt.Fprintf(&b, "- **Audio**: `%s`\n", capture.SourcePath)
	}
	fmt.Fprintf(&b, "- **Failure**: `%s`\n", errorKind)
	fmt.Fprintf(&b, "- **Attempts**: %d\n", attempts)
	fmt.Fprintf(&b, "- **Failed at**: %s\n", now.Format(time.RFC3339))
	if reason = strings.TrimSpace(reason); reason != "" {
		fmt.Fprintf(&b, "\n> %s\n", reason)
	}
	return b.String()
}

func headingFor(errorKind string) string {
	cleaned := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(errorKind)), "_", " ")
	if cleaned == "" {
		return "Unknown Failure"
	}
	return titleCaser.String(cleaned)
}
