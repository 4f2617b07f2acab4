// Package escalation keeps a durable journal of permanently failed captures.
package escalation
