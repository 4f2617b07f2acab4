// Package ledger persists capture records in SQLite and enforces the
// transcription status state machine.
//
// The Store manages database connections, schema initialization, health
// queries, stuck-capture recovery, and guarded status transitions. The
// transcription engine is the only writer of the status field; transitions
// that the state machine forbids fail with ErrInvalidTransition instead of
// silently overwriting a terminal status.
//
// The database is the durable record of a capture's transcription outcome;
// the in-memory job queue is rebuilt from it on restart. Schema changes bump
// the version in schema.go; users delete the database to adopt a new schema.
package ledger
