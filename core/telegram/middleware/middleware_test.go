package middleware

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func newContext(t *testing.T, upd tele.Update) tele.Context {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true, Synchronous: true})
	require.NoError(t, err)
	return b.NewContext(upd)
}

func message(updateID int, userID int64, text string) tele.Update {
	return tele.Update{ID: updateID, Message: &tele.Message{
		Text:   text,
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
	}}
}

func TestRateLimitDropsBurst(t *testing.T) {
	calls, limited := 0, 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	h := mw(func(tele.Context) error { calls++; return nil })

	require.NoError(t, h(newContext(t, message(1, 5, "hi"))))
	require.NoError(t, h(newContext(t, message(2, 5, "again"))))
	require.NoError(t, h(newContext(t, message(3, 6, "other user"))))

	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, limited)
}

func TestRateLimitExcludesCallbacks(t *testing.T) {
	calls := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Exclude:  map[string]struct{}{"callback": {}},
	})
	h := mw(func(tele.Context) error { calls++; return nil })

	cb := tele.Update{ID: 1, Callback: &tele.Callback{Sender: &tele.User{ID: 5}, Data: "\fdel|1:0"}}
	require.NoError(t, h(newContext(t, cb)))
	require.NoError(t, h(newContext(t, cb)))
	assert.Equal(t, 2, calls)
}

func TestAdminOnly(t *testing.T) {
	rejected := 0
	mw := AdminOnlyMiddleware(AdminOptions{AdminID: 42, OnReject: func(tele.Context) error { rejected++; return nil }})
	ran := 0
	h := mw(func(tele.Context) error { ran++; return nil })

	require.NoError(t, h(newContext(t, message(1, 7, "/remind_now"))))
	require.NoError(t, h(newContext(t, message(2, 42, "/remind_now"))))
	assert.Equal(t, 1, ran)
	assert.Equal(t, 1, rejected)
}

func TestRecoverTurnsPanicIntoError(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	err := h(newContext(t, message(1, 7, "x")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	sentinel := errors.New("plain")
	h = RecoverMiddleware(func(tele.Context) error { return sentinel })
	assert.ErrorIs(t, h(newContext(t, message(2, 7, "x"))), sentinel)
}

func TestLoggerMiddlewareSetsRID(t *testing.T) {
	c := newContext(t, message(77, 9, "/list"))
	var rid string
	h := LoggerMiddleware(func(c tele.Context) error {
		rid, _ = c.Get("rid").(string)
		return nil
	})
	require.NoError(t, h(c))
	assert.NotEmpty(t, rid)
}

type sinkContext struct {
	tele.Context
	fail bool
}

func (s sinkContext) Send(interface{}, ...interface{}) error {
	if s.fail {
		return errors.New("send failed")
	}
	return nil
}

func TestMessageMetricsCountsReplies(t *testing.T) {
	base := newContext(t, message(1, 5, "/list"))
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		require.NoError(t, c.Send("one"))
		return c.Send("two", &tele.ReplyMarkup{})
	})
	require.NoError(t, h(sinkContext{Context: base}))

	msgs, kb := GetCounters(base)
	assert.Equal(t, 2, msgs)
	assert.True(t, kb)

	failing := newContext(t, message(2, 5, "/list"))
	h = MessageMetricsMiddleware(func(c tele.Context) error { return c.Send("x") })
	require.Error(t, h(sinkContext{Context: failing, fail: true}))
	msgs, kb = GetCounters(failing)
	assert.Zero(t, msgs)
	assert.False(t, kb)
}
