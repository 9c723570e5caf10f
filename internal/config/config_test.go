package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/rosterbot/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.False(t, cfg.WebBoard)
	assert.Equal(t, StorageSQLite, cfg.Storage)
	assert.Equal(t, 2*time.Second, cfg.LockTimeout)
	assert.False(t, cfg.OneSessionPerDay)

	at, err := cfg.AutopostAt()
	require.NoError(t, err)
	assert.Equal(t, model.NewClockTime(19, 0), at)

	policy, err := cfg.SchedulePolicy()
	require.NoError(t, err)
	assert.Len(t, policy.Weekday, 2)
	assert.Len(t, policy.Weekend, 3)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ROSTER_STORAGE", "redis")
	t.Setenv("ROSTER_REDIS_URL", "redis://cache:6379/2")
	t.Setenv("ROSTER_ADMIN_IDS", "tg-1, tg-2,")
	t.Setenv("ROSTER_ONE_SESSION_PER_DAY", "true")
	t.Setenv("ROSTER_LOCK_TIMEOUT", "500ms")
	t.Setenv("ROSTER_TZ", "Europe/Madrid")
	t.Setenv("ROSTER_WEEKDAY_SLOTS", "18:00-20:00/8")
	t.Setenv("ROSTER_CHAT_ID", "chat-42")
	t.Setenv("ROSTER_WEB_BOARD", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.WebBoard)

	assert.Equal(t, "redis://cache:6379/2", cfg.RedisConfig().URL)
	assert.Equal(t, []model.ExternalID{"tg-1", "tg-2"}, cfg.AuthConfig().AdminIDs)

	policy := cfg.EnginePolicy()
	assert.True(t, policy.OneSessionPerDay)
	assert.Equal(t, 500*time.Millisecond, policy.LockTimeout)

	slots, err := cfg.SchedulePolicy()
	require.NoError(t, err)
	require.Len(t, slots.Weekday, 1)
	assert.Equal(t, "18:00-20:00/8", slots.Weekday[0].String())
	assert.Len(t, slots.Weekend, 3)

	runner, err := cfg.RunnerConfig()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Madrid", runner.Location.String())
	assert.Equal(t, "chat-42", runner.ChatID)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown storage", "ROSTER_STORAGE", "postgres"},
		{"bad port", "ROSTER_HTTP_PORT", "http"},
		{"bad timezone", "ROSTER_TZ", "Mars/Olympus"},
		{"bad autopost time", "ROSTER_AUTOPOST_TIME", "7pm"},
		{"bad slots", "ROSTER_WEEKEND_SLOTS", "12:00-10:00"},
		{"bad log level", "ROSTER_LOG_LEVEL", "loud"},
		{"zero lock timeout", "ROSTER_LOCK_TIMEOUT", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogLevel: "debug", LogFormat: "text"}
	cfg.NewLogger(&buf).Debug("hello")
	assert.Contains(t, buf.String(), "msg=hello")

	buf.Reset()
	cfg = &Config{LogLevel: "warn", LogFormat: "json"}
	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
