package logs

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"capturebridge/internal/logging"
)

// sweepInterval is how often the background retention pass runs.
const sweepInterval = 6 * time.Hour

// Sweep removes log files in dir older than retentionDays. Files that do
// not look like capturebridge logs are left alone. It returns the number
// of files removed.
func Sweep(dir string, retentionDays int, logger *slog.Logger) (int, error) {
	if retentionDays <= 0 || strings.TrimSpace(dir) == "" {
		return 0, nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !isLogFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			logger.Warn("removing expired log file failed",
				"path", path,
				logging.FieldError, err,
			)
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("removed expired log files", "count", removed, "retention_days", retentionDays)
	}
	return removed, nil
}

// RunSweeper runs Sweep immediately and then on a fixed interval until the
// context is cancelled.
func RunSweeper(ctx context.Context, dir string, retentionDays int, logger *slog.Logger) {
	if retentionDays <= 0 {
		return
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	sweep := func() {
		if _, err := Sweep(dir, retentionDays, logger); err != nil {
			logger.Warn("log retention sweep failed", logging.FieldError, err)
		}
	}
	sweep()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

func isLogFile(name string) bool {
	return strings.HasPrefix(name, "capturebridge") &&
		(strings.HasSuffix(name, ".log") || strings.HasSuffix(name, ".log.gz"))
}
