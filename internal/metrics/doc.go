// Package metrics declares the prometheus instruments emitted by the
// transcription engine. Transport is the daemon's /metrics endpoint; nothing
// here pushes anywhere.
package metrics
