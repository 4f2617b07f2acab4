package scratch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"capturebridge/internal/fileutil"
	"capturebridge/internal/logging"
)

// freeSpaceFactor is how many multiples of the source size must be free on
// the scratch filesystem before a copy is attempted.
const freeSpaceFactor = 2

// Manager creates per-job scratch copies of capture audio and guarantees
// their removal on every exit path.
type Manager struct {
	dir    string
	logger *slog.Logger

	statfs func(path string) (free uint64, err error)
}

// NewManager constructs a Manager rooted at dir.
func NewManager(dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		dir:    dir,
		logger: logger.With(logging.String(logging.FieldComponent, "scratch")),
		statfs: freeBytes,
	}
}

// WithStatfs sets a custom free-space probe (for testing).
func (m *Manager) WithStatfs(fn func(path string) (uint64, error)) {
	m.statfs = fn
}

// Artifact is a scratch copy exclusively owned by one in-flight job.
type Artifact struct {
	Path    string
	Size    int64
	manager *Manager
	removed bool
}

// Acquire copies the source audio into the scratch directory for the given
// capture. The original file is never touched. Fails when the scratch
// filesystem does not have freeSpaceFactor times the source size available.
func (m *Manager) Acquire(captureID, sourcePath string) (*Artifact, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure scratch dir: %w", err)
	}

	free, err := m.statfs(m.dir)
	if err != nil {
		return nil, fmt.Errorf("check scratch free space: %w", err)
	}
	needed := uint64(info.Size()) * freeSpaceFactor
	if free < needed {
		return nil, fmt.Errorf("scratch space low: %d bytes free, need %d", free, needed)
	}

	dest := filepath.Join(m.dir, captureID+filepath.Ext(sourcePath))
	if err := fileutil.CopyFileVerified(sourcePath, dest); err != nil {
		return nil, fmt.Errorf("copy to scratch: %w", err)
	}

	return &Artifact{Path: dest, Size: info.Size(), manager: m}, nil
}

// Remove deletes the scratch copy. Best-effort: failures are logged, not
// returned, so cleanup never masks the job outcome. Safe to call twice.
func (a *Artifact) Remove() {
	if a == nil || a.removed {
		return
	}
	a.removed = true
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		a.manager.logger.Warn("scratch artifact removal failed",
			logging.String("path", a.Path),
			logging.Error(err),
		)
	}
}

// Sweep removes leftover scratch files from previous runs.
func (m *Manager) Sweep() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read scratch dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(m.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			m.logger.Warn("scratch sweep failed", logging.String("path", path), logging.Error(err))
		}
	}
	return nil
}

func freeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
