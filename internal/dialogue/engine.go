// Package dialogue implements the chat flows for creating and deleting tasks
// and choosing a reminder frequency. It knows nothing about Telegram: input
// arrives as commands, free text and button choices, output is a list of replies.
package dialogue

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/m3rciful/taskbot/core/logger"
	"github.com/m3rciful/taskbot/core/telegram/state"
	"github.com/m3rciful/taskbot/internal/digest"
	"github.com/m3rciful/taskbot/internal/tasks"
)

// Sessions is the per-user flow storage used by the engine.
type Sessions = state.Store[Flow]

// Options tunes user-facing texts.
type Options struct {
	// ReminderTime is shown after a frequency change, e.g. "9:00 AM (UTC+8)".
	ReminderTime string
}

var knownCommands = map[string]bool{
	"start": true, "help": true, "new": true, "list": true, "tasklist": true,
	"delete": true, "frequency": true, "categories": true, "cancel": true,
}

// Engine drives conversations against a task store.
type Engine struct {
	store    *tasks.Store
	sessions *Sessions
	opts     Options

	// mu serialises updates so a user's flow cannot be advanced twice at once.
	mu  sync.Mutex
	seq atomic.Uint64
}

// New returns an engine bound to store and sessions.
func New(store *tasks.Store, sessions *Sessions, opts Options) *Engine {
	if opts.ReminderTime == "" {
		opts.ReminderTime = defaultReminderTime
	}
	return &Engine{store: store, sessions: sessions, opts: opts}
}

// InProgress reports whether userID is inside a flow.
func (e *Engine) InProgress(userID int64) bool {
	return e.sessions.InProgress(userID)
}

// Command handles a slash command. Any known command aborts the current flow.
func (e *Engine) Command(ctx context.Context, userID int64, name string) ([]Reply, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	name = normalizeCommand(name)
	if !knownCommands[name] {
		return []Reply{textReply(msgUnknownCommand)}, nil
	}
	aborted := e.abort(ctx, userID, name)

	switch name {
	case "start", "help":
		e.store.GetOrCreate(userID)
		return []Reply{textReply(msgWelcome)}, nil
	case "new":
		return e.startCreate(ctx, userID), nil
	case "list", "tasklist":
		return []Reply{textReply(digest.List(e.store.GetOrCreate(userID)))}, nil
	case "delete":
		return e.startDelete(ctx, userID), nil
	case "frequency":
		return e.startFrequency(ctx, userID), nil
	case "categories":
		return []Reply{textReply(digest.Categories(e.store.GetOrCreate(userID)))}, nil
	case "cancel":
		if aborted {
			return []Reply{textReply(msgCancelled)}, nil
		}
		return []Reply{textReply(msgNothingToCancel)}, nil
	}
	return []Reply{textReply(msgUnknownCommand)}, nil
}

// Text handles a free-text message.
func (e *Engine) Text(ctx context.Context, userID int64, text string) ([]Reply, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	flow, ok := e.sessions.Get(userID)
	if !ok {
		return []Reply{textReply(msgIdle)}, nil
	}

	switch f := flow.(type) {
	case CreateFlow:
		switch f.Stage {
		case StepAwaitingName, StepAwaitingCategory:
			return e.onName(ctx, userID, f, text), nil
		case StepAwaitingDueDate:
			return e.onDueDate(ctx, userID, f, text)
		}
	case DeleteFlow, FrequencyFlow:
		return []Reply{textReply(msgUseButtons)}, nil
	}
	e.sessions.Clear(userID)
	return []Reply{textReply(msgIdle)}, nil
}

// Choice handles an inline button press.
func (e *Engine) Choice(ctx context.Context, userID int64, action, payload string) ([]Reply, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	flow, ok := e.sessions.Get(userID)
	id, value, valid := parseMenuPayload(payload)
	if !ok || !valid || flow.menuID() != id {
		e.logFlow(ctx, slog.LevelDebug, "flow.stale", userID, flow,
			slog.String("action", action),
			slog.String("outcome", "expired"),
		)
		return []Reply{textReply(msgMenuExpired)}, nil
	}

	switch f := flow.(type) {
	case CreateFlow:
		if f.Stage != StepAwaitingCategory {
			break
		}
		switch action {
		case ActionCategory:
			idx, err := strconv.Atoi(value)
			if err != nil || idx < 0 || idx >= len(f.Categories) {
				break
			}
			f.Category = f.Categories[idx]
			f.Stage = StepAwaitingDueDate
			e.advance(ctx, userID, f)
			return []Reply{textReply(msgAskDueDate)}, nil
		case ActionNewCategory:
			f.AwaitingCategoryName = true
			f.Stage = StepAwaitingName
			e.advance(ctx, userID, f)
			return []Reply{textReply(msgAskNewCategory)}, nil
		}
	case DeleteFlow:
		if action == ActionDelete {
			return e.onDelete(ctx, userID, f, value)
		}
	case FrequencyFlow:
		if action == ActionFrequency {
			return e.onFrequency(ctx, userID, f, value)
		}
	}

	e.logFlow(ctx, slog.LevelDebug, "flow.stale", userID, flow,
		slog.String("action", action),
		slog.String("outcome", "expired"),
	)
	return []Reply{textReply(msgMenuExpired)}, nil
}

func (e *Engine) startCreate(ctx context.Context, userID int64) []Reply {
	e.store.GetOrCreate(userID)
	f := CreateFlow{ID: e.nextID(), Stage: StepAwaitingName}
	e.begin(ctx, userID, f)
	return []Reply{textReply(msgAskName)}
}

func (e *Engine) startDelete(ctx context.Context, userID int64) []Reply {
	rec := e.store.GetOrCreate(userID)
	if len(rec.Tasks) == 0 {
		return []Reply{textReply(msgNothingToDelete)}
	}

	f := DeleteFlow{ID: e.nextID(), Snapshot: rec.Tasks}
	buttons := make([]Button, len(rec.Tasks))
	for i, t := range rec.Tasks {
		buttons[i] = Button{
			Text:    t.Name + " (" + t.Category + ")",
			Action:  ActionDelete,
			Payload: menuPayload(f.ID, strconv.Itoa(i)),
		}
	}
	e.begin(ctx, userID, f)
	return []Reply{{Text: msgAskDelete, Buttons: buttons}}
}

func (e *Engine) startFrequency(ctx context.Context, userID int64) []Reply {
	e.store.GetOrCreate(userID)
	f := FrequencyFlow{ID: e.nextID()}
	buttons := make([]Button, len(tasks.Frequencies))
	for i, freq := range tasks.Frequencies {
		buttons[i] = Button{
			Text:    freq.Label(),
			Action:  ActionFrequency,
			Payload: menuPayload(f.ID, string(freq)),
		}
	}
	e.begin(ctx, userID, f)
	return []Reply{{Text: msgAskFrequency, Buttons: buttons}}
}

// onName handles text while a name or a new category name is expected.
func (e *Engine) onName(ctx context.Context, userID int64, f CreateFlow, text string) []Reply {
	text = strings.TrimSpace(text)
	if text == "" {
		if f.AwaitingCategoryName {
			return []Reply{textReply(msgAskNewCategory)}
		}
		return []Reply{textReply(msgEmptyName)}
	}

	if f.AwaitingCategoryName {
		f.Category = text
		f.AwaitingCategoryName = false
		f.Stage = StepAwaitingDueDate
		e.advance(ctx, userID, f)
		return []Reply{textReply(msgAskDueDate)}
	}

	rec := e.store.GetOrCreate(userID)
	f.Name = text
	f.Categories = rec.Categories.Sorted()
	f.Stage = StepAwaitingCategory

	buttons := make([]Button, 0, len(f.Categories)+1)
	for i, c := range f.Categories {
		buttons = append(buttons, Button{Text: c, Action: ActionCategory, Payload: menuPayload(f.ID, strconv.Itoa(i))})
	}
	buttons = append(buttons, Button{Text: msgNewCategoryBtn, Action: ActionNewCategory, Payload: menuPayload(f.ID, "new")})

	e.advance(ctx, userID, f)
	return []Reply{{Text: msgAskCategory, Buttons: buttons}}
}

func (e *Engine) onDueDate(ctx context.Context, userID int64, f CreateFlow, text string) ([]Reply, error) {
	e.sessions.Clear(userID)

	due, err := tasks.ParseDate(text)
	if err != nil {
		e.logFlow(ctx, slog.LevelInfo, "flow.end", userID, f,
			slog.String("status", "fail"),
			slog.String("reason", "invalid_date"),
		)
		return []Reply{textReply(msgInvalidDate)}, err
	}

	if err := e.store.AddTask(ctx, userID, f.Name, f.Category, due); err != nil {
		e.logFlow(ctx, slog.LevelWarn, "flow.end", userID, f,
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return []Reply{textReply(msgSaveFailed)}, err
	}

	e.logFlow(ctx, slog.LevelInfo, "flow.end", userID, f, slog.String("status", "ok"))
	return []Reply{textReply(msgTaskCreated, f.Name, f.Category, due)}, nil
}

func (e *Engine) onDelete(ctx context.Context, userID int64, f DeleteFlow, value string) ([]Reply, error) {
	e.sessions.Clear(userID)

	idx, convErr := strconv.Atoi(value)
	// The zero Task never matches a stored one, so a bad index fails as not found.
	var expected tasks.Task
	if convErr == nil && idx >= 0 && idx < len(f.Snapshot) {
		expected = f.Snapshot[idx]
	}

	removed, err := e.store.DeleteMatching(ctx, userID, idx, expected)
	switch {
	case tasks.IsKind(err, tasks.KindNotFound):
		e.logFlow(ctx, slog.LevelInfo, "flow.end", userID, f,
			slog.String("status", "fail"),
			slog.String("reason", "not_found"),
			slog.Int("index", idx),
		)
		return []Reply{textReply(msgTaskGone)}, err
	case err != nil:
		return []Reply{textReply(msgSaveFailed)}, err
	}

	e.logFlow(ctx, slog.LevelInfo, "flow.end", userID, f, slog.String("status", "ok"))
	return []Reply{textReply(msgDeleted, removed.Name)}, nil
}

func (e *Engine) onFrequency(ctx context.Context, userID int64, f FrequencyFlow, value string) ([]Reply, error) {
	freq, err := tasks.ParseFrequency(value)
	if err != nil {
		return []Reply{textReply(msgMenuExpired)}, nil
	}
	e.sessions.Clear(userID)

	if err := e.store.SetFrequency(ctx, userID, freq); err != nil {
		return []Reply{textReply(msgSaveFailed)}, err
	}
	e.logFlow(ctx, slog.LevelInfo, "flow.end", userID, f,
		slog.String("status", "ok"),
		slog.String("frequency", string(freq)),
	)
	return []Reply{textReply(msgFrequencySet, freq.Label(), e.opts.ReminderTime)}, nil
}

func (e *Engine) nextID() uint64 { return e.seq.Add(1) }

func (e *Engine) begin(ctx context.Context, userID int64, f Flow) {
	e.sessions.Put(userID, f)
	e.logFlow(ctx, slog.LevelDebug, "flow.start", userID, f)
}

func (e *Engine) advance(ctx context.Context, userID int64, f Flow) {
	e.sessions.Put(userID, f)
	e.logFlow(ctx, slog.LevelDebug, "flow.step", userID, f)
}

// abort drops the active flow, if any, and reports whether there was one.
func (e *Engine) abort(ctx context.Context, userID int64, command string) bool {
	flow, ok := e.sessions.Get(userID)
	e.sessions.Clear(userID)
	if !ok {
		return false
	}
	e.logFlow(ctx, slog.LevelInfo, "flow.abort", userID, flow,
		slog.String("status", "ok"),
		slog.String("outcome", "cancelled"),
		slog.String("command", command),
	)
	return true
}

func (e *Engine) logFlow(ctx context.Context, level slog.Level, event string, userID int64, f Flow, attrs ...slog.Attr) {
	base := []slog.Attr{slog.Int64("user_id", userID)}
	if f != nil {
		base = append(base, slog.String("flow", f.Kind()), slog.String("step", f.Step().String()))
	}
	logger.LogEvent(ctx, logger.Dialogue, level, event, append(base, attrs...)...)
}

// normalizeCommand strips the slash, a "@botname" suffix and any arguments.
func normalizeCommand(name string) string {
	name = strings.TrimSpace(name)
	if fields := strings.Fields(name); len(fields) > 0 {
		name = fields[0]
	}
	name = strings.TrimPrefix(name, "/")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name)
}

// IsUserError reports whether err is a user mistake rather than a system failure.
func IsUserError(err error) bool {
	kind := tasks.KindOf(err)
	return kind == tasks.KindValidation || kind == tasks.KindNotFound
}
