package ledger

import (
	"strings"
	"time"
)

// Status represents the transcription lifecycle of a capture.
type Status string

const (
	StatusDiscovered          Status = "discovered"
	StatusTranscribing        Status = "transcribing"
	StatusTranscribed         Status = "transcribed"
	StatusTranscriptionFailed Status = "transcription_failed"
	StatusExportedPlaceholder Status = "exported_placeholder"
)

var allStatuses = []Status{
	StatusDiscovered,
	StatusTranscribing,
	StatusTranscribed,
	StatusTranscriptionFailed,
	StatusExportedPlaceholder,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// allowedTransitions encodes the capture status state machine. Terminal
// statuses have no outgoing edges; there is no path back from them.
var allowedTransitions = map[Status][]Status{
	StatusDiscovered:          {StatusTranscribing},
	StatusTranscribing:        {StatusTranscribed, StatusTranscriptionFailed, StatusExportedPlaceholder},
	StatusTranscriptionFailed: {StatusTranscribing, StatusExportedPlaceholder},
}

// Capture represents a capture record persisted in SQLite. The transcription
// engine owns only the status, transcript, and failure fields; everything
// else belongs to the upstream capture system.
type Capture struct {
	ID                 string
	SourcePath         string
	Status             Status
	RawContent         string
	ContentFingerprint string
	ErrorKind          string
	ErrorMessage       string
	Attempts           int
	DurationMs         int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HealthSummary describes aggregated capture counts per key lifecycle states.
type HealthSummary struct {
	Total        int `json:"total"`
	Discovered   int `json:"discovered"`
	Transcribing int `json:"transcribing"`
	Transcribed  int `json:"transcribed"`
	Failed       int `json:"transcription_failed"`
	Placeholder  int `json:"exported_placeholder"`
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status admits no further transcription attempt.
func (s Status) IsTerminal() bool {
	return s == StatusTranscribed || s == StatusExportedPlaceholder
}

// CanTransitionTo reports whether the state machine permits moving to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the capture has reached a terminal status.
func (c Capture) IsTerminal() bool {
	return c.Status.IsTerminal()
}
