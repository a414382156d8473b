package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worktrack/core"
)

func TestNewYearMonth_Validates(t *testing.T) {
	for _, m := range []int{0, 13, -1} {
		_, err := core.NewYearMonth(2025, m)
		var ve *core.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "month", ve.Field)
	}

	ym, err := core.NewYearMonth(2025, 12)
	require.NoError(t, err)
	assert.Equal(t, "2025-12", ym.String())
}

func TestYearMonth_Arithmetic(t *testing.T) {
	jan := core.YearMonth{Year: 2025, Month: time.January}

	assert.Equal(t, core.YearMonth{Year: 2024, Month: time.December}, jan.Prev())
	assert.Equal(t, jan, jan.Prev().Next())
	assert.True(t, jan.Prev().Before(jan))
	assert.Equal(t, 31, jan.Days())
	assert.Equal(t, 28, core.YearMonth{Year: 2025, Month: time.February}.Days())
	assert.Equal(t, 29, core.YearMonth{Year: 2024, Month: time.February}.Days())
}

func TestYearMonth_DayOf(t *testing.T) {
	apr := core.YearMonth{Year: 2025, Month: time.April}

	d, ok := apr.DayOf(30)
	require.True(t, ok)
	assert.Equal(t, "2025-04-30", d.String())

	_, ok = apr.DayOf(31)
	assert.False(t, ok)
	assert.True(t, apr.Contains(d))
}
