// Package memwatch observes process memory while transcription jobs run.
//
// The monitor samples RSS from /proc on a fixed interval and exposes the
// latest reading lock-free. It never terminates anything itself; the
// transcription worker consumes readings to abort attempts that breach the
// configured ceiling, and the error classifier uses them to distinguish OOM
// from generic model crashes.
package memwatch
