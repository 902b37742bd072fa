package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "0 0 * * *", cfg.SweepSchedule)
	assert.Equal(t, 90*24*time.Hour, cfg.InactivityThreshold())
	assert.Equal(t, 15*24*time.Hour, cfg.DeletionNoticeDelay())
	assert.Equal(t, 5*time.Second, cfg.TaskPollInterval)
	assert.Equal(t, 3, cfg.StoreMaxRetries)
	assert.Equal(t, "ledger_notifications", cfg.NotifyExchange)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DB_USER", "ledger")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "ledger")
	t.Setenv("INACTIVITY_DAYS", "30")
	t.Setenv("IS_PROD", "true")
	t.Setenv("TASK_POLL_INTERVAL", "250ms")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.AppPort)
	assert.True(t, cfg.IsProd)
	assert.Equal(t, 30*24*time.Hour, cfg.InactivityThreshold())
	assert.Equal(t, 250*time.Millisecond, cfg.TaskPollInterval)
	assert.Equal(t, "ledger:pw@tcp(127.0.0.1:3306)/ledger?parseTime=true", cfg.DSN())
}
