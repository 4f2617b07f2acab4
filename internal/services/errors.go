package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers used to tag failures for later classification. The
// transcription engine's classifier inspects these with errors.Is, so wrap
// them rather than comparing strings.
var (
	ErrNotFound      = errors.New("source not found")
	ErrUnreadable    = errors.New("source unreadable")
	ErrCorruptAudio  = errors.New("corrupt audio")
	ErrModelLoad     = errors.New("model load failure")
	ErrTranscription = errors.New("transcription failure")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
