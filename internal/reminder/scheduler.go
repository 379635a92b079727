package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/m3rciful/taskbot/core/logger"
)

// DefaultTime is the daily trigger used when none is configured.
const DefaultTime = "09:00"

// Scheduler fires a Reminder run once a day at a wall-clock time.
type Scheduler struct {
	cron     *cron.Cron
	reminder *Reminder
	entry    cron.EntryID
	spec     string
}

// NewScheduler schedules r daily at "HH:MM" in loc.
func NewScheduler(r *Reminder, at string, loc *time.Location) (*Scheduler, error) {
	hour, minute, err := ParseClock(at)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}

	cl := cronLogger{log: logger.Reminder}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	s := &Scheduler{cron: c, reminder: r, spec: fmt.Sprintf("%d %d * * *", minute, hour)}
	s.entry, err = c.AddFunc(s.spec, s.fire)
	if err != nil {
		return nil, fmt.Errorf("schedule reminder %q: %w", s.spec, err)
	}
	return s, nil
}

func (s *Scheduler) fire() {
	ctx := logger.WithRID(context.Background(), "reminder:"+strconv.FormatInt(time.Now().Unix(), 10))
	s.reminder.Run(ctx)
}

// Start launches the cron goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.LogEvent(context.Background(), logger.Reminder, slog.LevelInfo, "scheduler.start",
		slog.String("status", "ok"),
		slog.String("spec", s.spec),
		slog.Time("next", s.Next()),
	)
}

// Next returns the next planned run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Stop prevents new runs and waits for a running one to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ParseClock parses "HH:MM" in 24-hour form.
func ParseClock(s string) (int, int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = DefaultTime
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid reminder time %q: use HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}

// cronLogger adapts the component logger to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, append([]any{"event", "cron." + strings.ReplaceAll(msg, " ", "_")}, keysAndValues...)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append([]any{"event", "cron.error", "status", "fail", "err", err}, keysAndValues...)...)
}
