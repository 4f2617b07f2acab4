// Package placeholder writes fallback documents for captures whose
// transcription permanently failed, preserving traceability in the vault.
package placeholder
