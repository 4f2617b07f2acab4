// Package logs enforces the configured retention window on the daemon's
// log directory.
package logs
