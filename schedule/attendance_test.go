package schedule_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worktrack/core"
	"github.com/warp/worktrack/events"
	"github.com/warp/worktrack/schedule"
)

func (f *fixture) morning(t *testing.T, emp core.EmployeeID, date string) core.PlannedShift {
	t.Helper()
	sh, err := f.shifts.Create(context.Background(), manager, schedule.NewShift{EmployeeID: emp, Date: date, ShiftTypeID: typeMorning})
	require.NoError(t, err)
	return sh
}

func TestRecord_MatchingPlanIsTransferred(t *testing.T) {
	// GIVEN: a morning plan on 2025-03-10
	// WHEN: the worker records the same times
	// THEN: the plan is transferred and unchanged

	f := newFixture(t)
	ctx := context.Background()
	plan := f.morning(t, 7, "2025-03-10")

	recs, err := f.attendance.Record(ctx, worker(7), schedule.NewAttendance{
		EmployeeID: 7, Date: "2025-03-10", ShiftTypeID: ptr(typeMorning),
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "06:00", recs[0].Start.String())
	require.NotNil(t, recs[0].PlannedShiftID)
	assert.Equal(t, plan.ID, *recs[0].PlannedShiftID)

	stored, err := f.store.GetShift(ctx, plan.ID)
	require.NoError(t, err)
	assert.True(t, stored.Transferred)
	assert.False(t, stored.IsChanged)
	assert.Contains(t, f.events.types(), events.AttendanceRecorded)
}

func TestRecord_DifferentTimesNeedReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.morning(t, 7, "2025-03-10")
	in := schedule.NewAttendance{EmployeeID: 7, Date: "2025-03-10", StartTime: "07:00", EndTime: "14:00"}

	_, err := f.attendance.Record(ctx, worker(7), in)
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "change_reason_id", ve.Field)

	in.ChangeReasonID = ptr(reasonLate)
	_, err = f.attendance.Record(ctx, worker(7), in)
	require.NoError(t, err)

	stored, err := f.store.GetShift(ctx, plan.ID)
	require.NoError(t, err)
	assert.True(t, stored.Transferred)
	assert.True(t, stored.IsChanged)
	require.NotNil(t, stored.ChangeReasonID)
	assert.Equal(t, reasonLate, *stored.ChangeReasonID)
}

func TestRecord_SplitDayLinksMatchingPlan(t *testing.T) {
	// GIVEN: plans 06:00-10:00 and 14:00-18:00 on 2025-03-10
	// WHEN: the worker records 14:00-18:00, then 06:30-10:00
	// THEN: the first links the afternoon plan without a reason, the second
	//       the morning plan it overlaps, which then needs one

	f := newFixture(t)
	ctx := context.Background()
	morning := f.custom(t, 7, "2025-03-10", "06:00", "10:00")
	afternoon := f.custom(t, 7, "2025-03-10", "14:00", "18:00")

	recs, err := f.attendance.Record(ctx, worker(7), schedule.NewAttendance{
		EmployeeID: 7, Date: "2025-03-10", StartTime: "14:00", EndTime: "18:00",
	})
	require.NoError(t, err)
	require.NotNil(t, recs[0].PlannedShiftID)
	assert.Equal(t, afternoon.ID, *recs[0].PlannedShiftID)

	stored, err := f.store.GetShift(ctx, afternoon.ID)
	require.NoError(t, err)
	assert.True(t, stored.Transferred)
	assert.False(t, stored.IsChanged)

	in := schedule.NewAttendance{EmployeeID: 7, Date: "2025-03-10", StartTime: "06:30", EndTime: "10:00"}
	_, err = f.attendance.Record(ctx, worker(7), in)
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "change_reason_id", ve.Field)

	in.ChangeReasonID = ptr(reasonLate)
	recs, err = f.attendance.Record(ctx, worker(7), in)
	require.NoError(t, err)
	require.NotNil(t, recs[0].PlannedShiftID)
	assert.Equal(t, morning.ID, *recs[0].PlannedShiftID)
}

func TestRecord_WithoutPlan(t *testing.T) {
	f := newFixture(t)

	recs, err := f.attendance.Record(context.Background(), manager, schedule.NewAttendance{
		EmployeeID: 8, Date: "2025-03-10", StartTime: "09:00", EndTime: "12:00",
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Nil(t, recs[0].PlannedShiftID)
}

func TestRecord_NightTypeSplitsAtMidnight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	recs, err := f.attendance.Record(ctx, manager, schedule.NewAttendance{
		EmployeeID: 7, Date: "2025-03-10", ShiftTypeID: ptr(typeNight),
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "2025-03-10", recs[0].Date.String())
	assert.Equal(t, "22:00", recs[0].Start.String())
	assert.Equal(t, "00:00", recs[0].End.String())
	assert.Equal(t, "2025-03-11", recs[1].Date.String())
	assert.Equal(t, "00:00", recs[1].Start.String())
	assert.Equal(t, "06:00", recs[1].End.String())

	// A variable-time overnight record stays whole.
	whole, err := f.attendance.Record(ctx, manager, schedule.NewAttendance{
		EmployeeID: 8, Date: "2025-03-10", StartTime: "22:00", EndTime: "06:00",
	})
	require.NoError(t, err)
	assert.Len(t, whole, 1)
}

func TestRecord_OverlapAndPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.attendance.Record(ctx, worker(7), schedule.NewAttendance{
		EmployeeID: 7, Date: "2025-03-10", StartTime: "08:00", EndTime: "16:00",
	})
	require.NoError(t, err)

	_, err = f.attendance.Record(ctx, worker(7), schedule.NewAttendance{
		EmployeeID: 7, Date: "2025-03-10", StartTime: "12:00", EndTime: "20:00",
	})
	var oe *core.OverlapError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, int64(first[0].ID), oe.ConflictingID)

	_, err = f.attendance.Record(ctx, worker(8), schedule.NewAttendance{
		EmployeeID: 7, Date: "2025-03-11", StartTime: "08:00", EndTime: "16:00",
	})
	assert.ErrorIs(t, err, core.ErrPermissionDenied)

	_, err = f.attendance.Record(ctx, worker(7), schedule.NewAttendance{EmployeeID: 7, Date: "2025-03-11", StartTime: "08:00"})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestDelete_ClearsTransferred(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan := f.morning(t, 7, "2025-03-10")
	recs, err := f.attendance.Record(ctx, worker(7), schedule.NewAttendance{
		EmployeeID: 7, Date: "2025-03-10", ShiftTypeID: ptr(typeMorning),
	})
	require.NoError(t, err)

	err = f.attendance.Delete(ctx, worker(8), recs[0].ID)
	assert.ErrorIs(t, err, core.ErrPermissionDenied)

	require.NoError(t, f.attendance.Delete(ctx, worker(7), recs[0].ID))

	stored, err := f.store.GetShift(ctx, plan.ID)
	require.NoError(t, err)
	assert.False(t, stored.Transferred)

	left, err := f.attendance.List(ctx, worker(7), schedule.AttendanceQuery{Year: 2025, Month: 3})
	require.NoError(t, err)
	assert.Empty(t, left)

	err = f.attendance.Delete(ctx, worker(7), recs[0].ID)
	assert.True(t, core.IsNotFound(err))
}
