package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/m3rciful/taskbot/core/logger"
)

// Persister loads and saves the whole task document.
// Save must replace the stored document atomically.
type Persister interface {
	Load(ctx context.Context) (Document, error)
	Save(ctx context.Context, doc Document) error
	Name() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithGraceDays sets how many days past due a task survives before purge.
func WithGraceDays(days int) Option {
	return func(s *Store) {
		if days >= 0 {
			s.graceDays = days
		}
	}
}

// WithLocation sets the zone that legacy last_reminder values without an
// offset were written in. The default is UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// Store holds all user records in memory and writes through to a Persister
// after every mutation. All methods are safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	users     map[int64]*UserRecord
	persister Persister
	now       func() time.Time
	graceDays int
	loc       *time.Location
	degraded  bool
}

// Open loads the document from p and returns a ready store.
func Open(ctx context.Context, p Persister, opts ...Option) (*Store, error) {
	s := &Store{
		users:     make(map[int64]*UserRecord),
		persister: p,
		now:       time.Now,
		graceDays: 1,
		loc:       time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}

	doc, err := p.Load(ctx)
	if err != nil {
		return nil, &Error{Kind: KindPersistence, Op: "load", Err: err}
	}
	for id, rec := range doc {
		rec := rec.Clone()
		rec.settle(s.loc)
		rec.rebuildCategories()
		s.users[id] = &rec
	}

	logger.LogEvent(ctx, logger.Store, slog.LevelInfo, "store.load",
		slog.String("status", "ok"),
		slog.String("backend", p.Name()),
		slog.Int("users", len(s.users)),
	)
	return s, nil
}

// GraceDays returns the configured purge grace.
func (s *Store) GraceDays() int { return s.graceDays }

// GetOrCreate returns a copy of the user's record, creating an empty one in memory if needed.
func (s *Store) GetOrCreate(userID int64) UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordLocked(userID).Clone()
}

// Record returns a copy of the user's record without creating it.
func (s *Store) Record(userID int64) (UserRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return UserRecord{}, false
	}
	return rec.Clone(), true
}

// Users returns all known user ids in ascending order.
func (s *Store) Users() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.users))
}

// Degraded reports whether the last write failed.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// AddTask appends a task and records its category.
func (s *Store) AddTask(ctx context.Context, userID int64, name, category string, due Date) error {
	return s.mutate(ctx, "add_task", userID, func(rec *UserRecord) (bool, error) {
		if due.IsZero() {
			return false, validation("add_task", "due date is required")
		}
		rec.Tasks = append(rec.Tasks, Task{Name: name, Category: category, DueDate: due})
		rec.Categories.Add(category)
		return true, nil
	})
}

// DeleteTask removes the task at index.
func (s *Store) DeleteTask(ctx context.Context, userID int64, index int) (Task, error) {
	var removed Task
	err := s.mutate(ctx, "delete_task", userID, func(rec *UserRecord) (bool, error) {
		if index < 0 || index >= len(rec.Tasks) {
			return false, notFound("delete_task", index)
		}
		removed = rec.removeAt(index)
		return true, nil
	})
	return removed, err
}

// DeleteMatching removes the task at index only if it still equals expected.
// A menu built before a purge or another deletion therefore cannot remove the wrong task.
func (s *Store) DeleteMatching(ctx context.Context, userID int64, index int, expected Task) (Task, error) {
	var removed Task
	err := s.mutate(ctx, "delete_task", userID, func(rec *UserRecord) (bool, error) {
		if index < 0 || index >= len(rec.Tasks) || rec.Tasks[index] != expected {
			return false, notFound("delete_task", index)
		}
		removed = rec.removeAt(index)
		return true, nil
	})
	return removed, err
}

// PurgeOverdue drops tasks more than the grace period past their due date
// relative to today and returns how many were removed.
func (s *Store) PurgeOverdue(ctx context.Context, userID int64, today Date) (int, error) {
	purged := 0
	err := s.mutate(ctx, "purge_overdue", userID, func(rec *UserRecord) (bool, error) {
		kept := rec.Tasks[:0:0]
		for _, t := range rec.Tasks {
			if today.DaysSince(t.DueDate) > s.graceDays {
				purged++
				continue
			}
			kept = append(kept, t)
		}
		if purged == 0 {
			return false, nil
		}
		rec.Tasks = kept
		rec.rebuildCategories()
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}

// SetFrequency stores the user's reminder cadence.
func (s *Store) SetFrequency(ctx context.Context, userID int64, freq Frequency) error {
	if _, err := ParseFrequency(string(freq)); err != nil {
		return err
	}
	return s.mutate(ctx, "set_frequency", userID, func(rec *UserRecord) (bool, error) {
		rec.Frequency = freq
		return true, nil
	})
}

// SetLastReminder records when the last digest was delivered.
func (s *Store) SetLastReminder(ctx context.Context, userID int64, ts time.Time) error {
	return s.mutate(ctx, "set_last_reminder", userID, func(rec *UserRecord) (bool, error) {
		rec.LastReminder = ts
		return true, nil
	})
}

func (s *Store) recordLocked(userID int64) *UserRecord {
	rec, ok := s.users[userID]
	if !ok {
		rec = newRecord(s.now())
		s.users[userID] = rec
	}
	return rec
}

// mutate applies fn to the user's record and persists the document.
// On a failed write the record is restored to its previous value.
func (s *Store) mutate(ctx context.Context, op string, userID int64, fn func(*UserRecord) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.recordLocked(userID)
	backup := rec.Clone()

	changed, err := fn(rec)
	if err != nil || !changed {
		return err
	}
	if err := s.persistLocked(ctx, op, userID); err != nil {
		*rec = backup
		return err
	}
	return nil
}

func (s *Store) persistLocked(ctx context.Context, op string, userID int64) error {
	doc := make(Document, len(s.users))
	for id, rec := range s.users {
		doc[id] = rec.Clone()
	}

	start := time.Now()
	if err := s.persister.Save(ctx, doc); err != nil {
		s.degraded = true
		perr := &Error{Kind: KindPersistence, Op: op, Err: fmt.Errorf("save %s: %w", s.persister.Name(), err)}
		logger.LogEvent(ctx, logger.Store, slog.LevelError, "store.persist",
			slog.String("status", "fail"),
			slog.String("op", op),
			slog.Int64("user_id", userID),
			slog.String("code", perr.Code()),
			slog.String("err", err.Error()),
		)
		return perr
	}

	if s.degraded {
		logger.LogEvent(ctx, logger.Store, slog.LevelInfo, "store.recovered",
			slog.String("status", "ok"),
			slog.String("op", op),
		)
	}
	s.degraded = false
	logger.LogEvent(ctx, logger.Store, slog.LevelDebug, "store.persist",
		slog.String("status", "ok"),
		slog.String("op", op),
		slog.Int64("user_id", userID),
		slog.Int("users", len(doc)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (r *UserRecord) removeAt(index int) Task {
	removed := r.Tasks[index]
	r.Tasks = slices.Delete(r.Tasks, index, index+1)
	r.pruneCategory(removed.Category)
	return removed
}
