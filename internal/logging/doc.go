// Package logging builds the slog loggers used across capturebridge.
//
// Two handlers are provided: a compact console format for interactive use and
// a JSON format for log files and machine consumption. The "auto" format
// picks between them based on whether stdout is a terminal. Field name
// constants keep attribute keys uniform across components, and WithContext
// stamps loggers with capture/attempt identifiers carried in a context.
package logging
