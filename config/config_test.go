package config_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worktrack/balance"
	"github.com/warp/worktrack/config"
	"github.com/warp/worktrack/core"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := config.FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "SK", cfg.HolidayCountry)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, time.Hour, cfg.MissingCheckInterval)
	assert.Equal(t, 4, cfg.CopyWorkers)
	assert.Len(t, cfg.CORSOrigins, 2)

	rules, err := cfg.BalanceRules()
	require.NoError(t, err)
	assert.True(t, rules.StandardHours.Equal(decimal.NewFromInt(7)))
	assert.Equal(t, core.NewClock(22, 0), rules.NightStart)
	assert.Equal(t, balance.HolidayReduceUnlessScheduled, rules.HolidayPolicy)
}

func TestFromEnv_Overrides(t *testing.T) {
	// GIVEN: environment variables for several keys
	// WHEN: the config is loaded
	// THEN: they override the defaults and decode to their Go types

	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("STANDARD_WORK_HOURS", "7.5")
	t.Setenv("NIGHT_START", "21:00")
	t.Setenv("HOLIDAY_POLICY", "credit")
	t.Setenv("SPLIT_AT_MIDNIGHT", "true")
	t.Setenv("STORE_TIMEOUT", "250ms")
	t.Setenv("BREAKER_FAILURES", "9")

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.True(t, cfg.SplitAtMidnight)

	rules, err := cfg.BalanceRules()
	require.NoError(t, err)
	assert.True(t, rules.StandardHours.Equal(decimal.RequireFromString("7.5")))
	assert.Equal(t, core.NewClock(21, 0), rules.NightStart)
	assert.Equal(t, balance.HolidayCredit, rules.HolidayPolicy)
	assert.True(t, rules.SplitAtMidnight)

	b := cfg.Breaker()
	assert.Equal(t, 250*time.Millisecond, b.Timeout)
	assert.Equal(t, uint32(9), b.Failures)
}

func TestFromEnv_RejectsBadRules(t *testing.T) {
	tests := []struct {
		key, value, field string
	}{
		{"STANDARD_WORK_HOURS", "zero", "STANDARD_WORK_HOURS"},
		{"STANDARD_WORK_HOURS", "-1", "STANDARD_WORK_HOURS"},
		{"NIGHT_END", "6", "NIGHT_END"},
		{"HOLIDAY_POLICY", "ignore", "holiday_policy"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := config.FromEnv()
			var ve *core.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}
