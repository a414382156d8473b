package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worktrack/core"
	"github.com/warp/worktrack/schedule"
)

var (
	march = core.YearMonth{Year: 2025, Month: time.March}
	april = core.YearMonth{Year: 2025, Month: time.April}
)

func TestCopy_MarchToApril(t *testing.T) {
	// GIVEN: three March shifts on the 1st-3rd, and April 1 already planned
	// WHEN: copying March to April
	// THEN: 2 created, 1 skipped as "exists"

	f := newFixture(t)
	ctx := context.Background()
	for _, d := range []string{"2025-03-01", "2025-03-02", "2025-03-03"} {
		f.custom(t, 7, d, "08:00", "16:00")
	}
	f.custom(t, 7, "2025-04-01", "10:00", "18:00")

	res, err := f.copier.Copy(ctx, manager, schedule.CopyRequest{Source: march, Target: april})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, res.Overlapped)
	require.Len(t, res.Items, 3)
	assert.Equal(t, schedule.ReasonExists, res.Items[0].Reason)
	assert.Equal(t, schedule.CopyCreated, res.Items[1].Status)

	emp := core.EmployeeID(7)
	plan, err := f.store.ListShifts(ctx, core.ShiftFilter{EmployeeID: &emp, From: april.First(), To: april.Last()})
	require.NoError(t, err)
	assert.Len(t, plan, 3)
	assert.Equal(t, "10:00", plan[0].Start.String(), "existing April 1 untouched")
}

func TestCopy_SameDayShiftsResolveInSourceOrder(t *testing.T) {
	// GIVEN: employee 7 works 06:00-10:00 and 14:00-18:00 on March 3
	// WHEN: copying March to April, repeated on fresh plans
	// THEN: the morning is always created and the afternoon always "exists"

	for run := 0; run < 20; run++ {
		f := newFixture(t)
		ctx := context.Background()
		f.custom(t, 7, "2025-03-03", "06:00", "10:00")
		f.custom(t, 7, "2025-03-03", "14:00", "18:00")
		f.custom(t, 8, "2025-03-03", "06:00", "10:00")

		res, err := f.copier.Copy(ctx, manager, schedule.CopyRequest{Source: march, Target: april})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Created)
		assert.Equal(t, 1, res.Skipped)

		emp := core.EmployeeID(7)
		plan, err := f.store.ListShifts(ctx, core.ShiftFilter{EmployeeID: &emp, From: april.First(), To: april.Last()})
		require.NoError(t, err)
		require.Len(t, plan, 1)
		assert.Equal(t, "06:00", plan[0].Start.String(), "run %d", run)

		for _, it := range res.Items {
			if it.EmployeeID == 7 && it.Status == schedule.CopySkipped {
				assert.Equal(t, schedule.ReasonExists, it.Reason)
			}
		}
	}
}

func TestCopy_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, d := range []string{"2025-03-03", "2025-03-04", "2025-03-05", "2025-03-06"} {
		f.custom(t, 7, d, "08:00", "16:00")
		f.custom(t, 8, d, "22:00", "06:00")
	}

	first, err := f.copier.Copy(ctx, manager, schedule.CopyRequest{Source: march, Target: april})
	require.NoError(t, err)
	assert.Equal(t, 8, first.Created)
	countAfterFirst := f.count(t)

	second, err := f.copier.Copy(ctx, manager, schedule.CopyRequest{Source: march, Target: april})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 8, second.Skipped)
	assert.Equal(t, countAfterFirst, f.count(t))
}

func TestCopy_SkipsMissingDaysAndCountsOverlaps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.custom(t, 7, "2025-03-31", "08:00", "16:00")
	f.custom(t, 7, "2025-03-09", "22:00", "06:00")
	// April 10 early shift collides with the copied night of April 9.
	blocker := f.custom(t, 7, "2025-04-10", "05:00", "12:00")

	emp := core.EmployeeID(7)
	res, err := f.copier.Copy(ctx, manager, schedule.CopyRequest{Source: march, Target: april, EmployeeID: &emp})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Overlapped)
	for _, it := range res.Items {
		switch it.Status {
		case schedule.CopySkipped:
			assert.Equal(t, schedule.ReasonNoSuchDay, it.Reason)
			assert.True(t, it.Date.IsZero())
		case schedule.CopyOverlap:
			assert.Equal(t, int64(blocker.ID), it.ConflictingID)
		}
	}
}

func TestCopy_OnlyNamedEmployeeAndManagersOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.custom(t, 7, "2025-03-03", "08:00", "16:00")
	f.custom(t, 8, "2025-03-03", "08:00", "16:00")

	emp := core.EmployeeID(8)
	_, err := f.copier.Copy(ctx, worker(8), schedule.CopyRequest{Source: march, Target: april, EmployeeID: &emp})
	assert.ErrorIs(t, err, core.ErrPermissionDenied)

	res, err := f.copier.Copy(ctx, manager, schedule.CopyRequest{Source: march, Target: april, EmployeeID: &emp})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, core.EmployeeID(8), res.Items[0].EmployeeID)
}

func TestCopy_HiddenSourceShiftsAreIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sh := f.custom(t, 7, "2025-03-03", "08:00", "16:00")
	_, err := f.shifts.SoftDelete(ctx, manager, sh.ID)
	require.NoError(t, err)

	res, err := f.copier.Copy(ctx, manager, schedule.CopyRequest{Source: march, Target: april})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}
