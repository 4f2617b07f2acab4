// Package daemon composes the transcription engine, the ledger, and the
// loopback HTTP API into the long-running capturebridge process.
//
// The daemon starts the engine (which resumes interrupted work from the
// ledger), runs advisory preflight checks, and exposes /healthz, /status,
// /captures, and Prometheus /metrics on the configured bind address.
package daemon
