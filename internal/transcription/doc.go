// Package transcription implements the strictly sequential job engine
// that turns captured audio into ledger-recorded transcripts.
//
// A single FIFO queue admits captures with backpressure; one worker at a
// time runs the pipeline (source check, scratch staging, lazy model load,
// budgeted model call) and settles every job in the ledger. Failures are
// classified into kinds, and a fixed policy table decides between a
// tail-of-queue retry and a placeholder export with an escalation record.
package transcription
