// Package state keeps per-user conversation sessions in memory.
// Sessions carry an arbitrary value and expire after a period of inactivity.
package state
