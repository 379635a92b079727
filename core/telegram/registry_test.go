package telegram

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/taskbot/core/config"
	"github.com/m3rciful/taskbot/core/telegram/commands"
)

func noop(tele.Context) error { return nil }

func TestRegisterCommandValidation(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/new", commands.Command{Handler: noop, Description: "New task"}))

	assert.Error(t, reg.RegisterCommand("new", commands.Command{Handler: noop, Description: "x"}))
	assert.Error(t, reg.RegisterCommand("/empty", commands.Command{Handler: noop}))
	assert.Error(t, reg.RegisterCommand("/new", commands.Command{Handler: noop, Description: "again"}))
	assert.Len(t, reg.Commands(), 1)
}

func TestLookupCommandNormalizes(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/list", commands.Command{
		Handler: noop, Description: "List", Aliases: []string{"/tasklist"},
	}))

	for _, in := range []string{"/list", "list", "/LIST@taskbot", "/tasklist extra", "tasklist"} {
		key, _, ok := reg.LookupCommand(in)
		assert.True(t, ok, in)
		assert.Equal(t, "/list", key, in)
	}
	_, _, ok := reg.LookupCommand("/delete")
	assert.False(t, ok)
}

type fakeBotAPI struct {
	got []tele.Command
	err error
}

func (f *fakeBotAPI) SetCommands(opts ...interface{}) error {
	for _, o := range opts {
		if cmds, ok := o.([]tele.Command); ok {
			f.got = cmds
		}
	}
	return f.err
}

func TestInitBotCommandsPublishesVisibleOnly(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/new", commands.Command{Handler: noop, Description: "New"}))
	require.NoError(t, reg.RegisterCommand("/cancel", commands.Command{Handler: noop, Description: "Cancel"}))
	require.NoError(t, reg.RegisterCommand("/remind_now", commands.Command{Handler: noop, Description: "Run", AdminOnly: true}))
	require.NoError(t, reg.RegisterCommand("/debug", commands.Command{Handler: noop, Description: "Debug", Hidden: true}))

	api := &fakeBotAPI{}
	require.NoError(t, InitBotCommands(api, reg))
	assert.Equal(t, []tele.Command{
		{Text: "cancel", Description: "Cancel"},
		{Text: "new", Description: "New"},
	}, api.got)

	api.err = errors.New("forbidden")
	assert.Error(t, InitBotCommands(api, reg))
}

func TestCallbackRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("del", noop))
	require.NoError(t, reg.RegisterCallback("cat", noop))
	assert.Error(t, reg.RegisterCallback("del", noop))
	assert.Error(t, reg.RegisterCallback("", noop))

	_, ok := reg.GetCallback("del")
	assert.True(t, ok)
	assert.Equal(t, []string{"cat", "del"}, reg.ListCallbacks())
	assert.NotNil(t, reg.CallbackNotFound())
}

func TestBuildPoller(t *testing.T) {
	p := BuildPoller(PollerOptions{RunMode: "WEBHOOK", Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://x"}})
	wh, ok := p.(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", wh.Listen)

	lp, ok := BuildPoller(PollerOptions{RunMode: coreconfig.RunModeLongpoll}).(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, defaultLongPollTimeout, lp.Timeout)

	lp = BuildPoller(PollerOptions{LongPollTimeoutSeconds: 25}).(*tele.LongPoller)
	assert.Equal(t, 25*time.Second, lp.Timeout)
}

func TestDefaultMiddlewares(t *testing.T) {
	names := func(mws []Middleware) []string {
		out := make([]string, len(mws))
		for i, m := range mws {
			out[i] = m.Name
		}
		return out
	}
	assert.Equal(t, []string{"recover", "logger", "metrics"}, names(DefaultMiddlewares(nil, nil)))

	cfg := &coreconfig.Config{RateLimit: coreconfig.RateLimitConfig{IntervalMS: 300}}
	assert.Equal(t, []string{"recover", "rate_limit", "logger", "metrics"}, names(DefaultMiddlewares(cfg, nil)))
}

func TestDispatcherOptionsFrom(t *testing.T) {
	opts := DispatcherOptionsFrom(coreconfig.SenderConfig{QueueSize: 8, Workers: 2, MaxRetries: 1, RetryBackoff: time.Second})
	assert.Equal(t, 8, opts.QueueSize)
	assert.Equal(t, 2, opts.Workers)
	assert.Equal(t, 1, opts.MaxRetries)
	assert.Equal(t, time.Second, opts.RetryBackoff)
}
