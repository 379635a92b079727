package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/taskbot/core/logger"
)

// Store is an in-memory session store keyed by Telegram user id.
type Store[T any] struct {
	mu       sync.RWMutex
	sessions map[int64]Session[T]
	ttl      time.Duration
	now      func() time.Time
}

// NewStore returns an empty store whose sessions expire after ttl of inactivity.
func NewStore[T any](ttl time.Duration) *Store[T] {
	return &Store[T]{
		sessions: make(map[int64]Session[T]),
		ttl:      ttl,
		now:      time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *Store[T]) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Get returns the live session value for userID.
// An expired session is reported as absent.
func (s *Store[T]) Get(userID int64) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	if !ok || sess.expired(s.now(), s.ttl) {
		var zero T
		return zero, false
	}
	return sess.Value, true
}

// Put stores value for userID and refreshes its activity time.
func (s *Store[T]) Put(userID int64, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = Session[T]{Value: value, Touched: s.now()}
}

// Clear removes the session for userID.
func (s *Store[T]) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// InProgress reports whether userID has a live session.
func (s *Store[T]) InProgress(userID int64) bool {
	_, ok := s.Get(userID)
	return ok
}

// Len returns the number of stored sessions, expired ones included.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep drops every expired session and returns how many were removed.
func (s *Store[T]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if sess.expired(now, s.ttl) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps expired sessions every interval until ctx is done.
func (s *Store[T]) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Debug(ctx, "tg", "session.sweep",
					slog.String("status", "ok"),
					slog.Int("expired", n),
					slog.Int("remaining", s.Len()),
				)
			}
		}
	}
}
