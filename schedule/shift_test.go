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

// =============================================================================
// OVERLAP
// =============================================================================

func TestCreate_Employee7Overlap(t *testing.T) {
	// GIVEN: employee 7 works 08:00-16:00 on 2025-03-10
	// WHEN: adding 15:00-23:00, then 16:00-23:00
	// THEN: the first fails naming the existing shift, the second succeeds

	f := newFixture(t)
	ctx := context.Background()
	first := f.custom(t, 7, "2025-03-10", "08:00", "16:00")

	_, err := f.shifts.Create(ctx, manager, schedule.NewShift{
		EmployeeID: 7, Date: "2025-03-10", ShiftTypeID: typeCustom,
		StartTime: ptr("15:00"), EndTime: ptr("23:00"),
	})
	var oe *core.OverlapError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, int64(first.ID), oe.ConflictingID)

	second, err := f.shifts.Create(ctx, manager, schedule.NewShift{
		EmployeeID: 7, Date: "2025-03-10", ShiftTypeID: typeCustom,
		StartTime: ptr("16:00"), EndTime: ptr("23:00"),
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCreate_OverlapLeavesStoreUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.custom(t, 7, "2025-03-10", "08:00", "16:00")
	auditBefore, err := f.store.ListAudit(ctx, core.AuditFilter{})
	require.NoError(t, err)

	_, err = f.shifts.Create(ctx, manager, schedule.NewShift{
		EmployeeID: 7, Date: "2025-03-10", ShiftTypeID: typeCustom,
		StartTime: ptr("12:00"), EndTime: ptr("13:00"),
	})
	require.ErrorIs(t, err, core.ErrOverlap)

	assert.Equal(t, 1, f.count(t))
	auditAfter, err := f.store.ListAudit(ctx, core.AuditFilter{})
	require.NoError(t, err)
	assert.Len(t, auditAfter, len(auditBefore))
	assert.Equal(t, []string{events.ShiftCreated}, f.events.types())
}

func TestCreate_NightShiftBlocksNextMorning(t *testing.T) {
	f := newFixture(t)
	f.custom(t, 7, "2025-03-10", "22:00", "06:00")

	_, err := f.shifts.Create(context.Background(), manager, schedule.NewShift{
		EmployeeID: 7, Date: "2025-03-11", ShiftTypeID: typeCustom,
		StartTime: ptr("05:00"), EndTime: ptr("13:00"),
	})
	assert.ErrorIs(t, err, core.ErrOverlap)

	// The fixed morning shift starts exactly when the night ends.
	_, err = f.shifts.Create(context.Background(), manager, schedule.NewShift{
		EmployeeID: 7, Date: "2025-03-11", ShiftTypeID: typeMorning,
	})
	assert.NoError(t, err)
}

func TestCreate_OtherEmployeeAndHiddenDoNotBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sh := f.custom(t, 7, "2025-03-10", "08:00", "16:00")
	f.custom(t, 8, "2025-03-10", "08:00", "16:00")

	_, err := f.shifts.SoftDelete(ctx, manager, sh.ID)
	require.NoError(t, err)

	f.custom(t, 7, "2025-03-10", "09:00", "17:00")
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    schedule.NewShift
		field string
	}{
		{"bad date", schedule.NewShift{EmployeeID: 7, Date: "10.03.2025", ShiftTypeID: typeMorning}, "date"},
		{"missing start", schedule.NewShift{EmployeeID: 7, Date: "2025-03-10", ShiftTypeID: typeCustom, EndTime: ptr("12:00")}, "start_time"},
		{"missing end", schedule.NewShift{EmployeeID: 7, Date: "2025-03-10", ShiftTypeID: typeCustom, StartTime: ptr("12:00")}, "end_time"},
		{"bad time", schedule.NewShift{EmployeeID: 7, Date: "2025-03-10", ShiftTypeID: typeCustom, StartTime: ptr("7am"), EndTime: ptr("12:00")}, "start_time"},
		{"zero length", schedule.NewShift{EmployeeID: 7, Date: "2025-03-10", ShiftTypeID: typeCustom, StartTime: ptr("12:00"), EndTime: ptr("12:00")}, "end_time"},
		{"no employee", schedule.NewShift{Date: "2025-03-10", ShiftTypeID: typeMorning}, "employee_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.shifts.Create(ctx, manager, tt.in)
			var ve *core.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestCreate_FullDayAndUnknownType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sh := f.custom(t, 7, "2025-03-10", "00:00", "00:00")
	iv, err := sh.Interval()
	require.NoError(t, err)
	assert.Equal(t, float64(24), iv.Duration().Hours())

	_, err = f.shifts.Create(ctx, manager, schedule.NewShift{EmployeeID: 7, Date: "2025-03-12", ShiftTypeID: 99})
	assert.True(t, core.IsNotFound(err))

	_, err = f.shifts.Create(ctx, manager, schedule.NewShift{EmployeeID: 404, Date: "2025-03-12", ShiftTypeID: typeMorning})
	assert.True(t, core.IsNotFound(err))
}

func TestCreate_FixedTypeIgnoresCustomTimes(t *testing.T) {
	f := newFixture(t)

	sh, err := f.shifts.Create(context.Background(), manager, schedule.NewShift{
		EmployeeID: 7, Date: "2025-03-10", ShiftTypeID: typeMorning,
		StartTime: ptr("10:00"), EndTime: ptr("11:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "06:00", sh.Start.String())
	assert.Equal(t, "14:00", sh.End.String())
}

// =============================================================================
// PERMISSIONS
// =============================================================================

func TestCreate_WorkerCannotEditPlan(t *testing.T) {
	f := newFixture(t)

	_, err := f.shifts.Create(context.Background(), worker(7), schedule.NewShift{
		EmployeeID: 7, Date: "2025-03-10", ShiftTypeID: typeMorning,
	})
	assert.ErrorIs(t, err, core.ErrPermissionDenied)
	assert.Equal(t, 0, f.count(t))
}

func TestHardDelete_AdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sh := f.custom(t, 7, "2025-03-10", "08:00", "16:00")

	err := f.shifts.HardDelete(ctx, manager, sh.ID)
	assert.ErrorIs(t, err, core.ErrPermissionDenied)

	require.NoError(t, f.shifts.HardDelete(ctx, admin, sh.ID))
	assert.Equal(t, 0, f.count(t))

	trail, err := f.shifts.Audit(ctx, manager, sh.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, core.AuditShiftDeleted, trail[1].Action)
}

func TestList_WorkersSeeOnlyOwnVisibleShifts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.custom(t, 7, "2025-03-10", "08:00", "16:00")
	hidden := f.custom(t, 7, "2025-03-11", "08:00", "16:00")
	f.custom(t, 8, "2025-03-10", "08:00", "16:00")
	f.custom(t, 7, "2025-04-01", "08:00", "16:00")
	_, err := f.shifts.SoftDelete(ctx, manager, hidden.ID)
	require.NoError(t, err)

	got, err := f.shifts.List(ctx, worker(7), schedule.ShiftQuery{Year: 2025, Month: 3, IncludeHidden: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, core.EmployeeID(7), got[0].EmployeeID)

	other := core.EmployeeID(8)
	_, err = f.shifts.List(ctx, worker(7), schedule.ShiftQuery{EmployeeID: &other})
	assert.ErrorIs(t, err, core.ErrPermissionDenied)

	all, err := f.shifts.List(ctx, manager, schedule.ShiftQuery{Year: 2025, Month: 3, IncludeHidden: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// =============================================================================
// UPDATE / SOFT DELETE
// =============================================================================

func TestUpdate_ExcludesItselfFromOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sh := f.custom(t, 7, "2025-03-10", "08:00", "16:00")
	f.custom(t, 7, "2025-03-10", "18:00", "22:00")

	updated, err := f.shifts.Update(ctx, manager, sh.ID, schedule.ShiftPatch{EndTime: ptr("17:00")})
	require.NoError(t, err)
	assert.Equal(t, "08:00", updated.Start.String())
	assert.Equal(t, "17:00", updated.End.String())
	assert.Equal(t, 2, updated.Version)

	_, err = f.shifts.Update(ctx, manager, sh.ID, schedule.ShiftPatch{EndTime: ptr("19:00")})
	assert.ErrorIs(t, err, core.ErrOverlap)

	_, err = f.shifts.Update(ctx, manager, 999, schedule.ShiftPatch{Note: ptr("x")})
	assert.True(t, core.IsNotFound(err))
}

func TestUpdate_SwitchToVariableTypeRequiresTimes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sh, err := f.shifts.Create(ctx, manager, schedule.NewShift{EmployeeID: 7, Date: "2025-03-10", ShiftTypeID: typeMorning})
	require.NoError(t, err)

	custom := typeCustom
	_, err = f.shifts.Update(ctx, manager, sh.ID, schedule.ShiftPatch{ShiftTypeID: &custom})
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "start_time", ve.Field)
}

func TestSoftDelete_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sh := f.custom(t, 7, "2025-03-10", "08:00", "16:00")

	hidden, err := f.shifts.SoftDelete(ctx, manager, sh.ID)
	require.NoError(t, err)
	assert.True(t, hidden.Hidden)

	again, err := f.shifts.SoftDelete(ctx, manager, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, hidden.Version, again.Version)
	assert.Equal(t, 1, f.count(t))
}
