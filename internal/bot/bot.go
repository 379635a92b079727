// Package bot binds the dialogue engine and the reminder to Telegram updates.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/m3rciful/taskbot/core/logger"
	tg "github.com/m3rciful/taskbot/core/telegram"
	"github.com/m3rciful/taskbot/core/telegram/callbacks"
	"github.com/m3rciful/taskbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/taskbot/core/telegram/helpers"
	"github.com/m3rciful/taskbot/core/telegram/keyboard"
	"github.com/m3rciful/taskbot/internal/dialogue"
	"github.com/m3rciful/taskbot/internal/reminder"

	tele "gopkg.in/telebot.v4"
)

// Runner runs one reminder pass. *reminder.Reminder satisfies it.
type Runner interface {
	Run(ctx context.Context) reminder.Summary
}

// userStripes is the number of locks updates are serialised on, keyed by user id.
const userStripes = 64

// Handlers adapts Telegram updates to engine calls and sends the replies.
// Updates from one user are handled one at a time, so replies are queued in
// the order the engine produced them.
type Handlers struct {
	engine   *dialogue.Engine
	reminder Runner
	users    [userStripes]sync.Mutex
}

// New returns handlers for engine. r may be nil, which disables /remind_now.
func New(engine *dialogue.Engine, r Runner) *Handlers {
	return &Handlers{engine: engine, reminder: r}
}

type commandSpec struct {
	name        string
	description string
	aliases     []string
}

var userCommands = []commandSpec{
	{name: "/start", description: "Show the welcome message"},
	{name: "/help", description: "List available commands"},
	{name: "/new", description: "Create a new task"},
	{name: "/list", description: "List all your tasks", aliases: []string{"/tasklist"}},
	{name: "/delete", description: "Delete a task"},
	{name: "/frequency", description: "Set reminder frequency"},
	{name: "/categories", description: "Show your categories"},
	{name: "/cancel", description: "Cancel the current action"},
}

var choiceActions = []string{
	dialogue.ActionCategory,
	dialogue.ActionNewCategory,
	dialogue.ActionDelete,
	dialogue.ActionFrequency,
}

// Register adds the bot's commands, callbacks and text fallback to reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	for _, spec := range userCommands {
		err := reg.RegisterCommand(spec.name, commands.Command{
			Handler:     h.command(spec.name),
			Description: spec.description,
			Aliases:     spec.aliases,
		})
		if err != nil {
			return err
		}
	}
	if h.reminder != nil {
		err := reg.RegisterCommand("/remind_now", commands.Command{
			Handler:     h.remindNow,
			Description: "Run the reminder pass now",
			AdminOnly:   true,
			Hidden:      true,
		})
		if err != nil {
			return err
		}
	}
	for _, action := range choiceActions {
		if err := reg.RegisterCallback(action, h.choice); err != nil {
			return err
		}
	}
	reg.SetTextFallback(h.HandleText)
	return nil
}

// InProgress reports whether the user is inside a conversation flow.
func (h *Handlers) InProgress(userID int64) bool {
	return h.engine.InProgress(userID)
}

// HandleText feeds free text to the engine. Text that looks like a command
// but reached here is unregistered and goes through Command, which leaves
// the current flow intact.
func (h *Handlers) HandleText(c tele.Context) error {
	return h.turn(c, func(ctx context.Context, uid int64) ([]dialogue.Reply, error) {
		text := c.Text()
		if strings.HasPrefix(strings.TrimSpace(text), "/") {
			return h.engine.Command(ctx, uid, text)
		}
		return h.engine.Text(ctx, uid, text)
	})
}

func (h *Handlers) command(name string) tele.HandlerFunc {
	return func(c tele.Context) error {
		return h.turn(c, func(ctx context.Context, uid int64) ([]dialogue.Reply, error) {
			return h.engine.Command(ctx, uid, name)
		})
	}
}

func (h *Handlers) choice(c tele.Context) error {
	return h.turn(c, func(ctx context.Context, uid int64) ([]dialogue.Reply, error) {
		action, payload := callbacks.Parse(c.Callback())
		return h.engine.Choice(ctx, uid, action, payload)
	})
}

// turn runs step and sends its replies while holding the sender's lock.
func (h *Handlers) turn(c tele.Context, step func(ctx context.Context, uid int64) ([]dialogue.Reply, error)) error {
	uid, ok := senderID(c)
	if !ok {
		return nil
	}
	mu := &h.users[uint64(uid)%userStripes]
	mu.Lock()
	defer mu.Unlock()

	ctx := tghelpers.BuildContext(c)
	replies, err := step(ctx, uid)
	return h.respond(ctx, c, replies, err)
}

func (h *Handlers) remindNow(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	sum := h.reminder.Run(ctx)
	return tghelpers.SendText(c, fmt.Sprintf(
		"Reminder pass finished: %d users, %d digests, %d purged, %d failures.",
		sum.Users, sum.Digests, sum.Purged, sum.Failures,
	), nil)
}

// respond sends every reply, then reports err unless it is a user mistake
// the replies already explained.
func (h *Handlers) respond(ctx context.Context, c tele.Context, replies []dialogue.Reply, err error) error {
	for _, r := range replies {
		if sendErr := tghelpers.SendText(c, r.Text, markup(r.Buttons)); sendErr != nil {
			return sendErr
		}
	}
	if err != nil && dialogue.IsUserError(err) {
		logger.LogEvent(ctx, logger.Dialogue, slog.LevelDebug, "flow.user_error",
			slog.String("status", "ok"),
			slog.String("err", err.Error()),
		)
		return nil
	}
	return err
}

func markup(buttons []dialogue.Button) *tele.ReplyMarkup {
	if len(buttons) == 0 {
		return nil
	}
	btns := make([]keyboard.InlineBtn, len(buttons))
	for i, b := range buttons {
		btns[i] = keyboard.InlineBtn{Text: b.Text, Unique: b.Action, Data: b.Payload}
	}
	return keyboard.InlineButtons(btns)
}

func senderID(c tele.Context) (int64, bool) {
	if u := c.Sender(); u != nil {
		return u.ID, true
	}
	return 0, false
}
