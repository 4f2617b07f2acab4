// Package whisper wraps the locally hosted whisper.cpp speech-to-text model.
//
// Service shells out to whisper-cli and parses its JSON transcript output.
// Handle adds the process-wide lifecycle the engine needs: one lazy load
// shared across jobs, deduplicated with singleflight, released only at
// shutdown. Failures are tagged with services markers so the engine's
// classifier can tell load failures, corrupt input, and generic model errors
// apart.
package whisper
