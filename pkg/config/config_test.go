package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSchedulerDefaults(t *testing.T) {
	t.Setenv("SCHEDULER_TICK_MINUTES", "")
	t.Setenv("SCHEDULER_LOCK_TTL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Scheduler.TickMinutes)
	assert.Equal(t, 14, cfg.Scheduler.ApprovalHorizonDays)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.LockTTL)
	assert.Equal(t, " (Rescheduled)", cfg.Scheduler.RescheduledSuffix)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
}

func TestLoadSchedulerOverrides(t *testing.T) {
	t.Setenv("SCHEDULER_TICK_MINUTES", "15")
	t.Setenv("SCHEDULER_MIN_NOTICE_DAYS", "3")
	t.Setenv("SCHEDULER_LOCK_WAIT", "250ms")
	t.Setenv("ENABLE_EVENTS", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.Scheduler.TickMinutes)
	assert.Equal(t, 3, cfg.Scheduler.MinNoticeDays)
	assert.Equal(t, 250*time.Millisecond, cfg.Scheduler.LockWait)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestParseDurationFallsBack(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
}

func TestPositiveOr(t *testing.T) {
	assert.Equal(t, 7, positiveOr(0, 7))
	assert.Equal(t, 7, positiveOr(-1, 7))
	assert.Equal(t, 3, positiveOr(3, 7))
}
