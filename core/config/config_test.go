package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeYAML(t, "telegram:\n  token: abc\nrate_limit:\n  exclude_updates: [\" Callback \"]\n"))
	require.NoError(t, err)
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, DefaultSessionIdleTimeout, cfg.Session.IdleTimeout)
	assert.Equal(t, []string{UpdateCallback}, cfg.RateLimit.ExcludeUpdates)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("SESSION_IDLE_TIMEOUT", "5m")
	cfg, err := Load(writeYAML(t, "telegram:\n  token: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, 5*time.Minute, cfg.Session.IdleTimeout)
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]Config{
		"no token":     {},
		"bad mode":     {Telegram: TelegramConfig{Token: "t", RunMode: "carrier-pigeon"}},
		"webhook url":  {Telegram: TelegramConfig{Token: "t", RunMode: "webhook"}},
		"webhook port": {Telegram: TelegramConfig{Token: "t", RunMode: "webhook"}, Webhook: WebhookConfig{URL: "https://x", Listen: "0.0.0.0"}},
		"exclude":      {Telegram: TelegramConfig{Token: "t"}, RateLimit: RateLimitConfig{ExcludeUpdates: []string{"inline"}}},
		"idle":         {Telegram: TelegramConfig{Token: "t"}, Session: SessionConfig{IdleTimeout: -time.Second}},
		"retries":      {Telegram: TelegramConfig{Token: "t"}, Sender: SenderConfig{MaxRetries: -1}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, Normalize(&cfg))
		})
	}
	assert.Error(t, Normalize(nil))
}

func TestNormalizeWebhook(t *testing.T) {
	cfg := Config{
		Telegram: TelegramConfig{Token: "t", RunMode: " WebHook "},
		Webhook:  WebhookConfig{URL: "https://bot.example", Listen: "0.0.0.0", Port: 8443},
	}
	require.NoError(t, Normalize(&cfg))
	assert.Equal(t, RunModeWebhook, cfg.Telegram.RunMode)
}
