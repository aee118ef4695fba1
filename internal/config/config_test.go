package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, 15*time.Minute, cfg.SLA.SweepInterval)
	assert.Equal(t, time.Hour, cfg.SLA.AutoCloseInterval)
	assert.Equal(t, 24*time.Hour, cfg.SLA.WarningAfter)
	assert.Equal(t, 48*time.Hour, cfg.SLA.CloseAfter)
	assert.Equal(t, 3, cfg.Intake.RateLimit)
	assert.Equal(t, []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		cfg.Calendar.WorkDays)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SLA_SWEEP_INTERVAL", "30s")
	t.Setenv("BUSINESS_HOLIDAYS", "2025-01-01, 2025-12-25")
	t.Setenv("BUSINESS_WORK_DAYS", "0,6")
	t.Setenv("AUTH_OPERATORS", "alice:dev-master:$2a$10$abcdefghijklmnopqrstuv")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.SLA.SweepInterval)
	assert.Equal(t, []string{"2025-01-01", "2025-12-25"}, cfg.Calendar.Holidays)
	assert.Equal(t, []time.Weekday{time.Sunday, time.Saturday}, cfg.Calendar.WorkDays)
	require.Len(t, cfg.Auth.Operators, 1)
	assert.Equal(t, "alice", cfg.Auth.Operators[0].Name)
	assert.Equal(t, "dev-master", cfg.Auth.Operators[0].Role)
}

func TestLoad_RejectsCloseBeforeWarning(t *testing.T) {
	t.Setenv("AUTO_CLOSE_WARNING_AFTER", "48h")
	t.Setenv("AUTO_CLOSE_AFTER", "24h")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTO_CLOSE_AFTER")
}

func TestValidate_StoreDriverNeedsConnection(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_DSN")

	t.Setenv("STORE_DRIVER", "cassandra")
	_, err = Load()
	require.Error(t, err)
}

func TestLoad_RejectsBadWorkDay(t *testing.T) {
	t.Setenv("BUSINESS_WORK_DAYS", "1,9")
	_, err := Load()
	require.Error(t, err)
}
