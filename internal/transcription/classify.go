package transcription

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"capturebridge/internal/memwatch"
	"capturebridge/internal/services"
)

// ErrorKind is the classified failure category of a transcription attempt.
// Kinds drive the failure policy table and are recorded in the ledger and
// the escalation log.
type ErrorKind string

const (
	KindFileNotFound     ErrorKind = "FILE_NOT_FOUND"
	KindFileUnreadable   ErrorKind = "FILE_UNREADABLE"
	KindOOM              ErrorKind = "OOM"
	KindTimeout          ErrorKind = "TIMEOUT"
	KindCorruptAudio     ErrorKind = "CORRUPT_AUDIO"
	KindModelLoadFailure ErrorKind = "MODEL_LOAD_FAILURE"
	KindWhisperError     ErrorKind = "WHISPER_ERROR"
	KindUnknown          ErrorKind = "UNKNOWN"
)

// Classify maps an attempt error to an ErrorKind. Classification is total:
// every non-nil error maps to exactly one kind, with UNKNOWN as the floor.
//
// Precedence: source-file errors first (the attempt never started), then
// memory pressure (a process near the ceiling makes timeout and subprocess
// errors unreliable signals), then timeout, then the model error taxonomy.
func Classify(err error, reading memwatch.Reading, ceilingBytes int64) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	switch {
	case errors.Is(err, services.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err):
		return KindFileNotFound
	case errors.Is(err, services.ErrUnreadable) || errors.Is(err, fs.ErrPermission):
		return KindFileUnreadable
	case memwatch.OverCeiling(reading, ceilingBytes):
		return KindOOM
	case errors.Is(err, services.ErrTimeout) || errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, services.ErrCorruptAudio):
		return KindCorruptAudio
	case errors.Is(err, services.ErrModelLoad):
		return KindModelLoadFailure
	case errors.Is(err, services.ErrTranscription):
		return KindWhisperError
	default:
		return KindUnknown
	}
}
