package escalation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Record is one escalated failure, durable for operator review. Escalations
// are distinct from metrics and ordinary logs: they mark captures that ended
// in a placeholder and may warrant manual intervention.
type Record struct {
	CaptureID  string    `json:"capture_id"`
	SourcePath string    `json:"source_path,omitempty"`
	ErrorKind  string    `json:"error_kind"`
	Reason     string    `json:"reason"`
	Attempts   int       `json:"attempts"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Log appends escalation records to a JSONL file.
type Log struct {
	path string
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// Open creates (or appends to) the escalation journal at path.
func Open(path string) (*Log, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("escalation log path required")
	}
	if dir := filepath.Dir(trimmed); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure escalation dir: %w", err)
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open escalation log %s: %w", trimmed, err)
	}
	return &Log{path: trimmed, file: file, enc: json.NewEncoder(file)}, nil
}

// Append writes one record and syncs it to disk so escalations survive a
// crash immediately after the write.
func (l *Log) Append(record Record) error {
	if l == nil {
		return nil
	}
	if record.OccurredAt.IsZero() {
		record.OccurredAt = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enc.Encode(record); err != nil {
		return fmt.Errorf("append escalation: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync escalation log: %w", err)
	}
	return nil
}

// ReadAll returns every record in the journal, oldest first.
func (l *Log) ReadAll() ([]Record, error) {
	if l == nil {
		return nil, nil
	}
	file, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open escalation log: %w", err)
	}
	defer file.Close()

	var records []Record
	decoder := json.NewDecoder(file)
	for {
		var record Record
		if err := decoder.Decode(&record); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return records, fmt.Errorf("decode escalation record: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
