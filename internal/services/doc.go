// Package services defines shared utilities consumed by the transcription
// engine and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp capture IDs, attempt numbers, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that tag failures so the
//     engine's classifier can map them to a failure kind with errors.Is.
//
// Use these helpers when wiring new collaborators so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
