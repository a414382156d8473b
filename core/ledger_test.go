package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worktrack/core"
	"github.com/warp/worktrack/core/store"
)

func month(y int, m time.Month) core.YearMonth { return core.YearMonth{Year: y, Month: m} }

// countingDiff returns a fixed diff per month and counts calls.
type countingDiff struct {
	perMonth decimal.Decimal
	calls    int
}

func (c *countingDiff) diff(context.Context, core.YearMonth) (decimal.Decimal, error) {
	c.calls++
	return c.perMonth, nil
}

func TestLedger_OpeningChainsForward(t *testing.T) {
	// GIVEN: seed in January with 5h initial and +2h every month
	// WHEN: asking for the opening of April
	// THEN: 5 + 3*2 = 11, and Jan..Mar are cached

	ctx := context.Background()
	mem := store.NewMemory()
	ledger := core.NewLedger(mem)
	seed := core.Seed{Start: month(2025, time.January), HasStart: true, Initial: decimal.NewFromInt(5)}
	d := &countingDiff{perMonth: decimal.NewFromInt(2)}

	opening, err := ledger.Opening(ctx, 1, month(2025, time.April), seed, d.diff)
	require.NoError(t, err)
	assert.True(t, opening.Equal(decimal.NewFromInt(11)), "got %s", opening)
	assert.Equal(t, 3, d.calls)

	cached, ok, err := mem.LatestBalance(ctx, 1, month(2025, time.April))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, month(2025, time.March), cached.Month)
	assert.True(t, cached.Total.Equal(opening))
}

func TestLedger_ResumesFromCache(t *testing.T) {
	ctx := context.Background()
	ledger := core.NewLedger(store.NewMemory())
	seed := core.Seed{Start: month(2025, time.January), HasStart: true}
	d := &countingDiff{perMonth: decimal.NewFromInt(1)}

	_, err := ledger.Opening(ctx, 1, month(2025, time.April), seed, d.diff)
	require.NoError(t, err)
	d.calls = 0

	opening, err := ledger.Opening(ctx, 1, month(2025, time.May), seed, d.diff)
	require.NoError(t, err)
	assert.Equal(t, 1, d.calls, "only April should be computed")
	assert.True(t, opening.Equal(decimal.NewFromInt(4)))
}

func TestLedger_InvalidateRecomputes(t *testing.T) {
	ctx := context.Background()
	ledger := core.NewLedger(store.NewMemory())
	seed := core.Seed{Start: month(2025, time.January), HasStart: true}
	d := &countingDiff{perMonth: decimal.NewFromInt(1)}

	_, err := ledger.Opening(ctx, 1, month(2025, time.April), seed, d.diff)
	require.NoError(t, err)

	require.NoError(t, ledger.Invalidate(ctx, 1, month(2025, time.February)))
	d.perMonth = decimal.NewFromInt(10)

	opening, err := ledger.Opening(ctx, 1, month(2025, time.April), seed, d.diff)
	require.NoError(t, err)
	assert.True(t, opening.Equal(decimal.NewFromInt(21)), "1 + 10 + 10, got %s", opening)
}

func TestLedger_BeforeStartCarriesInitial(t *testing.T) {
	ledger := core.NewLedger(store.NewMemory())
	seed := core.Seed{Start: month(2025, time.June), HasStart: true, Initial: decimal.NewFromInt(-3)}

	opening, err := ledger.Opening(context.Background(), 1, month(2025, time.June), seed, nil)
	require.NoError(t, err)
	assert.True(t, opening.Equal(decimal.NewFromInt(-3)))

	opening, err = ledger.Opening(context.Background(), 1, month(2025, time.June), core.Seed{}, nil)
	require.NoError(t, err)
	assert.True(t, opening.IsZero())
}

func TestLedger_FingerprintMismatchRecomputes(t *testing.T) {
	// GIVEN: Jan..Mar cached under fingerprint "a" with 5h initial
	// WHEN: the initial balance changes and the fingerprint with it
	// THEN: the stale cache is ignored and rewritten under "b"

	ctx := context.Background()
	mem := store.NewMemory()
	ledger := core.NewLedger(mem)
	d := &countingDiff{perMonth: decimal.NewFromInt(1)}

	seed := core.Seed{Start: month(2025, time.January), HasStart: true, Initial: decimal.NewFromInt(5), Fingerprint: "a"}
	_, err := ledger.Opening(ctx, 1, month(2025, time.April), seed, d.diff)
	require.NoError(t, err)
	d.calls = 0

	seed.Initial, seed.Fingerprint = decimal.NewFromInt(100), "b"
	opening, err := ledger.Opening(ctx, 1, month(2025, time.April), seed, d.diff)
	require.NoError(t, err)
	assert.True(t, opening.Equal(decimal.NewFromInt(103)), "got %s", opening)
	assert.Equal(t, 3, d.calls)

	cached, ok, err := mem.LatestBalance(ctx, 1, month(2025, time.April))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", cached.Fingerprint)

	// same fingerprint resumes from the rewritten cache
	d.calls = 0
	_, err = ledger.Opening(ctx, 1, month(2025, time.April), seed, d.diff)
	require.NoError(t, err)
	assert.Zero(t, d.calls)
}
