// Package preflight provides readiness checks for the filesystem paths
// and local tooling the transcription daemon depends on.
//
// The daemon runs RunAll once at startup and logs every failed check.
// Failures are advisory rather than fatal: a missing model surfaces per
// capture as a classified failure, which keeps the ledger authoritative.
package preflight
