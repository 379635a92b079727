package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/taskbot/core/bootstrap"
	"github.com/m3rciful/taskbot/internal/config"
	"github.com/m3rciful/taskbot/internal/tasks"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Telegram.Token = "123:abc"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, config.Normalize(cfg))
	return cfg
}

func noInfra(bootstrap.Options) (*bootstrap.Result, error) { return &bootstrap.Result{}, nil }

type recordingSender struct {
	mu   sync.Mutex
	sent map[string]string
}

func (r *recordingSender) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent[to.Recipient()] = what.(string)
	return &tele.Message{}, nil
}

func TestNewUsesFileBackendAndRoutes(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, Options{Bootstrap: noInfra})
	require.NoError(t, err)
	defer a.Close()

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	assert.Same(t, cfg.CoreConfig(), opts.Config)
	assert.NotEmpty(t, opts.Middlewares)
	assert.NotNil(t, opts.OnStart)

	endpoints := map[any]bool{}
	for _, r := range opts.Routes {
		endpoints[r.Endpoint] = true
	}
	for _, want := range []any{"/new", "/list", "/tasklist", "/delete", "/frequency", "/cancel", "/remind_now", tele.OnCallback, tele.OnText} {
		assert.True(t, endpoints[want], "missing route %v", want)
	}
}

func TestPostgresWithoutDatabaseFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = config.BackendPostgres

	var got bootstrap.Options
	_, err := New(context.Background(), cfg, Options{Bootstrap: func(o bootstrap.Options) (*bootstrap.Result, error) {
		got = o
		return &bootstrap.Result{}, nil
	}})
	require.Error(t, err)
	require.NotNil(t, got.Database)
}

func TestRemindWithSendsDueDigest(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, Options{Bootstrap: noInfra})
	require.NoError(t, err)

	ctx := context.Background()
	due, err := tasks.ParseDate(time.Now().In(cfg.Reminder.Location()).AddDate(0, 0, 3).Format("2006-01-02"))
	require.NoError(t, err)
	require.NoError(t, a.Store().AddTask(ctx, 5, "Report", "Work", due))
	require.NoError(t, a.Store().SetLastReminder(ctx, 5, time.Now().Add(-25*time.Hour)))

	s := &recordingSender{sent: map[string]string{}}
	sum, err := a.RemindWith(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Digests)
	assert.Contains(t, s.sent["5"], "Report")
}
