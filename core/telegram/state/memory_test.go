package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestStoreExpiresIdleSessions(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}
	s := NewStore[string](30 * time.Minute)
	s.SetClock(clock.now)

	s.Put(1, "awaiting_name")
	clock.advance(10 * time.Minute)
	v, ok := s.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "awaiting_name", v)

	clock.advance(25 * time.Minute)
	assert.False(t, s.InProgress(1), "session idle for 35m must be treated as idle")
	assert.Equal(t, 1, s.Len())

	assert.Equal(t, 1, s.Sweep())
	assert.Zero(t, s.Len())
}

func TestStorePutRefreshesActivity(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}
	s := NewStore[int](time.Minute)
	s.SetClock(clock.now)

	s.Put(7, 1)
	clock.advance(50 * time.Second)
	s.Put(7, 2)
	clock.advance(50 * time.Second)

	v, ok := s.Get(7)
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Zero(t, s.Sweep())
}

func TestStoreClearAndNoExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}
	s := NewStore[string](0)
	s.SetClock(clock.now)

	s.Put(1, "x")
	clock.advance(24 * time.Hour)
	assert.True(t, s.InProgress(1))

	s.Clear(1)
	_, ok := s.Get(1)
	assert.False(t, ok)
}
