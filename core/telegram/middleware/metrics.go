package middleware

import (
	"sync"

	tele "gopkg.in/telebot.v4"
)

const countersKey = "reply_counters"

// replyCounters tallies what a handler sent back for the update.
// Sends may complete on dispatcher workers, hence the mutex.
type replyCounters struct {
	mu       sync.Mutex
	messages int
	keyboard bool
}

func (r *replyCounters) add(opts []interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages++
	r.keyboard = r.keyboard || withMarkup(opts)
}

func withMarkup(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.ReplyMarkup:
			return v != nil
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		}
	}
	return false
}

// countingContext counts successful Send, Reply and Edit calls.
type countingContext struct {
	tele.Context
	n *replyCounters
}

func (c countingContext) Send(what interface{}, opts ...interface{}) error {
	return c.count(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what interface{}, opts ...interface{}) error {
	return c.count(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what interface{}, opts ...interface{}) error {
	return c.count(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) count(err error, opts []interface{}) error {
	if err == nil {
		c.n.add(opts)
	}
	return err
}

// MessageMetricsMiddleware counts the replies a handler produces; see GetCounters.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		n := &replyCounters{}
		c.Set(countersKey, n)
		return next(countingContext{Context: c, n: n})
	}
}

// GetCounters returns how many messages were sent for the update and whether
// any of them carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	n, ok := c.Get(countersKey).(*replyCounters)
	if !ok || n == nil {
		return 0, false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.messages, n.keyboard
}
