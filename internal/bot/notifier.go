package bot

import (
	"context"
	"errors"
	"sync"

	"github.com/m3rciful/taskbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// ErrNotBound is returned by Notify before the notifier has a bot.
var ErrNotBound = errors.New("notifier: no bot bound")

// MessageSender is the part of *tele.Bot used for unsolicited messages.
type MessageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Notifier delivers reminder digests as plain-text private messages.
// It implements reminder.Notifier.
type Notifier struct {
	mu         sync.RWMutex
	bot        MessageSender
	dispatcher *sender.Dispatcher
}

// NewNotifier returns a notifier sending through bot. When d is non-nil each
// message goes through its retry policy. bot may be nil and bound later.
func NewNotifier(bot MessageSender, d *sender.Dispatcher) *Notifier {
	return &Notifier{bot: bot, dispatcher: d}
}

// Bind sets the bot and dispatcher once the Telegram runtime exists.
func (n *Notifier) Bind(bot MessageSender, d *sender.Dispatcher) {
	n.mu.Lock()
	n.bot, n.dispatcher = bot, d
	n.mu.Unlock()
}

// Notify sends text to the private chat of userID and waits for the result.
func (n *Notifier) Notify(ctx context.Context, userID int64, text string) error {
	n.mu.RLock()
	bot, d := n.bot, n.dispatcher
	n.mu.RUnlock()
	if bot == nil {
		return ErrNotBound
	}

	send := func() error {
		_, err := bot.Send(tele.ChatID(userID), text)
		return err
	}
	if d == nil {
		return send()
	}
	return d.Do(ctx, "send.reminder", "sendMessage", send)
}
