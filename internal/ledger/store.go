package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"capturebridge/internal/config"
)

// ErrInvalidTransition indicates a status write the state machine forbids.
var ErrInvalidTransition = errors.New("invalid status transition")

// Store manages capture persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "ledger.db"))
}

// OpenPath opens the ledger database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// NewCapture inserts a capture in the discovered state and returns it.
func (s *Store) NewCapture(ctx context.Context, sourcePath string) (*Capture, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO captures (id, source_path, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		id,
		sourcePath,
		StatusDiscovered,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert capture: %w", err)
	}

	return s.GetByID(ctx, id)
}

const captureColumns = `id, source_path, status, raw_content, content_fingerprint,
    error_kind, error_message, attempts, duration_ms, created_at, updated_at`

// GetByID fetches a capture by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Capture, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+captureColumns+` FROM captures WHERE id = ?`, id)
	capture, err := scanCapture(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get capture: %w", err)
	}
	return capture, nil
}

// ListByStatus returns captures matching any of the given statuses ordered by
// creation time (or all captures when no status is provided).
func (s *Store) ListByStatus(ctx context.Context, statuses ...Status) ([]*Capture, error) {
	query := `SELECT ` + captureColumns + ` FROM captures`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := ""
		for i, status := range statuses {
			if i > 0 {
				placeholders += ", "
			}
			placeholders += "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + placeholders + `)`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}
	defer rows.Close()

	var captures []*Capture
	for rows.Next() {
		capture, err := scanCapture(rows)
		if err != nil {
			return nil, err
		}
		captures = append(captures, capture)
	}
	return captures, rows.Err()
}

// MarkTranscribing moves a capture into the transcribing state. Legal from
// discovered and transcription_failed (retry) only.
func (s *Store) MarkTranscribing(ctx context.Context, id string) error {
	return s.guardedTransition(ctx, id, StatusTranscribing,
		`UPDATE captures SET status = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusTranscribing, timestamp(), id, StatusDiscovered, StatusTranscriptionFailed)
}

// SetTranscribed records a successful transcription. Legal from transcribing only.
func (s *Store) SetTranscribed(ctx context.Context, id, text, fingerprint string, durationMs int64) error {
	return s.guardedTransition(ctx, id, StatusTranscribed,
		`UPDATE captures
         SET status = ?, raw_content = ?, content_fingerprint = ?, duration_ms = ?,
             error_kind = NULL, error_message = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusTranscribed, text, fingerprint, durationMs, timestamp(), id, StatusTranscribing)
}

// SetTranscriptionFailed records an interim retriable failure. Legal from
// transcribing only.
func (s *Store) SetTranscriptionFailed(ctx context.Context, id, errorKind, message string, attempts int) error {
	return s.guardedTransition(ctx, id, StatusTranscriptionFailed,
		`UPDATE captures
         SET status = ?, error_kind = ?, error_message = ?, attempts = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusTranscriptionFailed, errorKind, message, attempts, timestamp(), id, StatusTranscribing)
}

// SetExportedPlaceholder records a terminal permanent failure. Legal from
// transcribing and transcription_failed.
func (s *Store) SetExportedPlaceholder(ctx context.Context, id, errorKind, message string, attempts int) error {
	return s.guardedTransition(ctx, id, StatusExportedPlaceholder,
		`UPDATE captures
         SET status = ?, error_kind = ?, error_message = ?, attempts = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusExportedPlaceholder, errorKind, message, attempts, timestamp(), id,
		StatusTranscribing, StatusTranscriptionFailed)
}

// ResetStuckTranscribing returns captures left in transcribing by a crashed
// process back to discovered so they are re-queued on startup.
func (s *Store) ResetStuckTranscribing(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE captures SET status = ?, updated_at = ? WHERE status = ?`,
		StatusDiscovered,
		timestamp(),
		StatusTranscribing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck captures: %w", err)
	}
	return res.RowsAffected()
}

// Health returns aggregated capture counts per lifecycle state.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM captures GROUP BY status`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("query health: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, fmt.Errorf("scan health row: %w", err)
		}
		summary.Total += count
		switch status {
		case StatusDiscovered:
			summary.Discovered = count
		case StatusTranscribing:
			summary.Transcribing = count
		case StatusTranscribed:
			summary.Transcribed = count
		case StatusTranscriptionFailed:
			summary.Failed = count
		case StatusExportedPlaceholder:
			summary.Placeholder = count
		}
	}
	return summary, rows.Err()
}

func (s *Store) guardedTransition(ctx context.Context, id string, next Status, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition to %s: %w", next, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition to %s: rows affected: %w", next, err)
	}
	if affected == 0 {
		capture, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return fmt.Errorf("%w: capture %s to %s (current status unknown: %v)", ErrInvalidTransition, id, next, getErr)
		}
		if capture == nil {
			return fmt.Errorf("%w: capture %s not found", ErrInvalidTransition, id)
		}
		return fmt.Errorf("%w: capture %s %s -> %s", ErrInvalidTransition, id, capture.Status, next)
	}
	return nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCapture(row rowScanner) (*Capture, error) {
	var (
		capture     Capture
		rawContent  sql.NullString
		fingerprint sql.NullString
		errorKind   sql.NullString
		errorMsg    sql.NullString
		createdAt   string
		updatedAt   string
	)
	err := row.Scan(
		&capture.ID,
		&capture.SourcePath,
		&capture.Status,
		&rawContent,
		&fingerprint,
		&errorKind,
		&errorMsg,
		&capture.Attempts,
		&capture.DurationMs,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	capture.RawContent = rawContent.String
	capture.ContentFingerprint = fingerprint.String
	capture.ErrorKind = errorKind.String
	capture.ErrorMessage = errorMsg.String
	if ts, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
		capture.CreatedAt = ts
	}
	if ts, parseErr := time.Parse(time.RFC3339Nano, updatedAt); parseErr == nil {
		capture.UpdatedAt = ts
	}
	return &capture, nil
}
