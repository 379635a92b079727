// Package reminder purges overdue tasks and sends reminder digests.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/m3rciful/taskbot/core/logger"
	"github.com/m3rciful/taskbot/internal/digest"
	"github.com/m3rciful/taskbot/internal/tasks"
)

// Notifier delivers a plain-text message to a user.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// Summary describes one reminder run.
type Summary struct {
	Users    int
	Purged   int
	Digests  int
	Failures int
	Duration time.Duration
}

// Reminder processes every user in the store once per Run.
type Reminder struct {
	store    *tasks.Store
	notifier Notifier
	loc      *time.Location
	now      func() time.Time

	// running serialises scheduled and manual runs.
	running sync.Mutex
}

// New returns a Reminder. loc decides which calendar day "today" is.
func New(store *tasks.Store, notifier Notifier, loc *time.Location) *Reminder {
	if loc == nil {
		loc = time.UTC
	}
	return &Reminder{store: store, notifier: notifier, loc: loc, now: time.Now}
}

// SetClock replaces the time source. Intended for tests.
func (r *Reminder) SetClock(now func() time.Time) { r.now = now }

// Run purges and reminds every known user in ascending id order.
// A failure for one user is logged and counted but never stops the batch.
func (r *Reminder) Run(ctx context.Context) Summary {
	r.running.Lock()
	defer r.running.Unlock()

	start := time.Now()
	// Cadence is compared at the scheduler's minute resolution.
	now := r.now().In(r.loc).Truncate(time.Minute)
	today := tasks.DateOf(now)

	var sum Summary
	for _, userID := range r.store.Users() {
		if ctx.Err() != nil {
			break
		}
		sum.Users++
		purged, sent, err := r.remindUser(logger.WithUser(ctx, userID), userID, now, today)
		sum.Purged += purged
		if sent {
			sum.Digests++
		}
		if err != nil {
			sum.Failures++
		}
	}
	sum.Duration = time.Since(start)

	status := "ok"
	if sum.Failures > 0 {
		status = "fail"
	}
	logger.LogEvent(ctx, logger.Reminder, slog.LevelInfo, "reminder.run",
		slog.String("status", status),
		slog.String("today", today.String()),
		slog.Int("users", sum.Users),
		slog.Int("purged", sum.Purged),
		slog.Int("digests", sum.Digests),
		slog.Int("failures", sum.Failures),
		slog.Duration("duration", sum.Duration),
	)
	return sum
}

// due reports whether the user's cadence has elapsed at now. Stored times
// are compared at minute resolution too, for records written with seconds.
func due(rec tasks.UserRecord, now time.Time) bool {
	return now.Sub(rec.LastReminder.Truncate(time.Minute)) >= rec.Frequency.Interval()
}

func (r *Reminder) remindUser(ctx context.Context, userID int64, now time.Time, today tasks.Date) (purged int, sent bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
			logger.LogEvent(ctx, logger.Reminder, slog.LevelError, "reminder.panic",
				slog.String("status", "fail"),
				slog.Int64("user_id", userID),
				slog.Any("err", p),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	purged, err = r.store.PurgeOverdue(ctx, userID, today)
	if err != nil {
		r.logFailure(ctx, userID, "purge", err)
		return 0, false, err
	}

	var failed error
	if notice := digest.PurgeNotice(purged); notice != "" {
		if err := r.deliver(ctx, userID, notice); err != nil {
			r.logFailure(ctx, userID, "purge_notice", err)
			failed = err
		}
	}

	rec, ok := r.store.Record(userID)
	if !ok || len(rec.Tasks) == 0 || !due(rec, now) {
		return purged, false, failed
	}

	if err := r.deliver(ctx, userID, digest.Tasks(digest.Reminder, rec.Tasks)); err != nil {
		r.logFailure(ctx, userID, "digest", err)
		return purged, false, err
	}
	if err := r.store.SetLastReminder(ctx, userID, now); err != nil {
		r.logFailure(ctx, userID, "last_reminder", err)
		return purged, true, err
	}

	logger.LogEvent(ctx, logger.Reminder, slog.LevelDebug, "reminder.sent",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.Int("tasks", len(rec.Tasks)),
		slog.String("frequency", string(rec.Frequency)),
	)
	return purged, true, failed
}

func (r *Reminder) deliver(ctx context.Context, userID int64, text string) error {
	if err := r.notifier.Notify(ctx, userID, text); err != nil {
		return &tasks.Error{Kind: tasks.KindDelivery, Op: "notify", Err: err}
	}
	return nil
}

func (r *Reminder) logFailure(ctx context.Context, userID int64, stage string, err error) {
	attrs := []slog.Attr{
		slog.String("status", "fail"),
		slog.Int64("user_id", userID),
		slog.String("stage", stage),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	}
	var e *tasks.Error
	if errors.As(err, &e) {
		attrs = append(attrs, slog.String("code", e.Code()))
	}
	logger.LogEvent(ctx, logger.Reminder, slog.LevelError, "reminder.user", attrs...)
}
