package state

import "time"

// Session is the stored value for one user plus its last activity time.
type Session[T any] struct {
	Value   T
	Touched time.Time
}

// expired reports whether s has been idle longer than ttl at now.
// A non-positive ttl disables expiry.
func (s Session[T]) expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.Touched) > ttl
}
