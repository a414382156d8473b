package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worktrack/core"
	"github.com/warp/worktrack/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newShift(emp core.EmployeeID, day int) *core.PlannedShift {
	return &core.PlannedShift{
		EmployeeID:  emp,
		Date:        core.NewDate(2025, time.March, day),
		ShiftTypeID: 1,
		Start:       core.NewClock(6, 0),
		End:         core.NewClock(14, 0),
	}
}

func TestShift_RoundTrip(t *testing.T) {
	// GIVEN: a shift with a pending exchange and a change reason
	// WHEN: it is inserted and read back
	// THEN: every field survives, including the exchange variant

	ctx := context.Background()
	s := newStore(t)

	reason := core.ReasonID(3)
	requested := time.Date(2025, time.March, 1, 9, 30, 0, 0, time.UTC)
	sh := newShift(12, 4)
	sh.Note = "front desk"
	sh.IsChanged = true
	sh.ChangeReasonID = &reason
	sh.Exchange = core.PendingExchange{Target: 9, Reason: 3, RequestedBy: 12, RequestedAt: requested}
	require.NoError(t, s.InsertShift(ctx, sh))
	assert.NotZero(t, sh.ID)
	assert.Equal(t, 1, sh.Version)

	got, err := s.GetShift(ctx, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, core.EmployeeID(12), got.EmployeeID)
	assert.Equal(t, "2025-03-04", got.Date.String())
	assert.Equal(t, "06:00", got.Start.String())
	assert.Equal(t, "14:00", got.End.String())
	assert.Equal(t, "front desk", got.Note)
	assert.True(t, got.IsChanged)
	require.NotNil(t, got.ChangeReasonID)
	assert.Equal(t, reason, *got.ChangeReasonID)

	pending, ok := got.Exchange.(core.PendingExchange)
	require.True(t, ok, "exchange is %T", got.Exchange)
	assert.Equal(t, core.EmployeeID(9), pending.Target)
	assert.Equal(t, core.EmployeeID(12), pending.RequestedBy)
	assert.True(t, pending.RequestedAt.Equal(requested))
}

func TestShift_NoExchangeByDefault(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	sh := newShift(7, 1)
	require.NoError(t, s.InsertShift(ctx, sh))

	got, err := s.GetShift(ctx, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ExchangeNone, got.ExchangeStatus())
	assert.Nil(t, got.ChangeReasonID)
}

func TestShift_UpdateChecksVersion(t *testing.T) {
	// GIVEN: a shift read twice
	// WHEN: both copies are written
	// THEN: the second write is a version conflict and the first wins

	ctx := context.Background()
	s := newStore(t)
	sh := newShift(7, 1)
	require.NoError(t, s.InsertShift(ctx, sh))

	stale := *sh
	sh.Note = "first"
	sh.Exchange = core.ApprovedExchange{From: 7, To: 8, DecidedBy: 1, DecidedAt: time.Now()}
	require.NoError(t, s.UpdateShift(ctx, sh))
	assert.Equal(t, 2, sh.Version)

	stale.Note = "second"
	err := s.UpdateShift(ctx, &stale)
	assert.ErrorIs(t, err, core.ErrVersionConflict)
	assert.ErrorIs(t, err, core.ErrStateConflict)

	got, err := s.GetShift(ctx, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Note)
	assert.Equal(t, core.ExchangeApproved, got.ExchangeStatus())
}

func TestShift_MissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.GetShift(ctx, 404)
	assert.True(t, core.IsNotFound(err))

	assert.True(t, core.IsNotFound(s.DeleteShift(ctx, 404)))

	ghost := newShift(7, 1)
	ghost.ID, ghost.Version = 404, 1
	assert.True(t, core.IsNotFound(s.UpdateShift(ctx, ghost)))
}

func TestShift_DeleteLeavesAttendance(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	sh := newShift(7, 1)
	require.NoError(t, s.InsertShift(ctx, sh))

	a := &core.Attendance{EmployeeID: 7, Date: sh.Date, Start: sh.Start, End: sh.End, PlannedShiftID: &sh.ID}
	require.NoError(t, s.InsertAttendance(ctx, a))
	require.NoError(t, s.DeleteShift(ctx, sh.ID))

	got, err := s.GetAttendance(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PlannedShiftID)
	assert.Equal(t, sh.ID, *got.PlannedShiftID)
}

func TestListShifts_Filters(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for day := 1; day <= 5; day++ {
		require.NoError(t, s.InsertShift(ctx, newShift(7, day)))
	}
	hidden := newShift(7, 3)
	hidden.Hidden = true
	require.NoError(t, s.InsertShift(ctx, hidden))
	require.NoError(t, s.InsertShift(ctx, newShift(8, 2)))

	emp := core.EmployeeID(7)
	got, err := s.ListShifts(ctx, core.ShiftFilter{
		EmployeeID: &emp,
		From:       core.NewDate(2025, time.March, 2),
		To:         core.NewDate(2025, time.March, 4),
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 2, got[0].Date.Day())
	assert.Equal(t, 4, got[2].Date.Day())

	got, err = s.ListShifts(ctx, core.ShiftFilter{EmployeeID: &emp, IncludeHidden: true})
	require.NoError(t, err)
	assert.Len(t, got, 6)

	got, err = s.ListShifts(ctx, core.ShiftFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 6)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: a store with one shift
	// WHEN: a transaction inserts shift, attendance and audit, then fails
	// THEN: none of the writes are visible

	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.InsertShift(ctx, newShift(7, 1)))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx core.Store) error {
		sh := newShift(7, 2)
		require.NoError(t, tx.InsertShift(ctx, sh))
		require.NoError(t, tx.InsertAttendance(ctx, &core.Attendance{EmployeeID: 7, Date: sh.Date, Start: sh.Start, End: sh.End}))
		require.NoError(t, tx.AppendAudit(ctx, core.NewAuditEntry(core.System, core.AuditShiftCreated, sh.ID, 7, nil)))

		// reads inside the transaction see its own writes
		inside, err := tx.ListShifts(ctx, core.ShiftFilter{})
		require.NoError(t, err)
		assert.Len(t, inside, 2)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	shifts, err := s.ListShifts(ctx, core.ShiftFilter{})
	require.NoError(t, err)
	assert.Len(t, shifts, 1)

	att, err := s.ListAttendance(ctx, core.AttendanceFilter{})
	require.NoError(t, err)
	assert.Empty(t, att)

	audit, err := s.ListAudit(ctx, core.AuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, audit)
}

func TestWithTx_Commits(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	var id core.ShiftID
	err := s.WithTx(ctx, func(tx core.Store) error {
		sh := newShift(7, 2)
		if err := tx.InsertShift(ctx, sh); err != nil {
			return err
		}
		id = sh.ID
		return nil
	})
	require.NoError(t, err)

	_, err = s.GetShift(ctx, id)
	assert.NoError(t, err)
}

func TestWithTx_WaitingHonoursDeadline(t *testing.T) {
	// GIVEN: a transaction holding the store
	// WHEN: other callers wait with a short deadline
	// THEN: they give up with a retryable error, and the store works again
	//       once the transaction ends

	s := newStore(t)
	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.WithTx(context.Background(), func(core.Store) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := s.GetShift(ctx, 1)
	require.Error(t, err)
	assert.True(t, core.IsRetryable(err), "got %v", err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	err = s.WithTx(ctx, func(core.Store) error { return nil })
	assert.True(t, core.IsRetryable(err), "got %v", err)

	close(done)
	require.Eventually(t, func() bool {
		_, err := s.ListShifts(context.Background(), core.ShiftFilter{})
		return err == nil
	}, time.Second, 10*time.Millisecond)
}

func TestAttendance_ListAndFirstDate(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, ok, err := s.FirstAttendanceDate(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	typ := core.ShiftTypeID(2)
	for _, day := range []int{12, 3, 20} {
		require.NoError(t, s.InsertAttendance(ctx, &core.Attendance{
			EmployeeID:  7,
			Date:        core.NewDate(2025, time.March, day),
			ShiftTypeID: &typ,
			Start:       core.NewClock(8, 0),
			End:         core.NewClock(16, 0),
		}))
	}
	require.NoError(t, s.InsertAttendance(ctx, &core.Attendance{
		EmployeeID: 8,
		Date:       core.NewDate(2025, time.February, 1),
		Start:      core.NewClock(8, 0),
		End:        core.NewClock(16, 0),
	}))

	first, ok, err := s.FirstAttendanceDate(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2025-03-03", first.String())

	emp := core.EmployeeID(7)
	got, err := s.ListAttendance(ctx, core.AttendanceFilter{EmployeeID: &emp, To: core.NewDate(2025, time.March, 15)})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].Date.Day())
	require.NotNil(t, got[0].ShiftTypeID)
	assert.Equal(t, typ, *got[0].ShiftTypeID)
	assert.Nil(t, got[0].PlannedShiftID)

	require.NoError(t, s.DeleteAttendance(ctx, got[0].ID))
	_, err = s.GetAttendance(ctx, got[0].ID)
	assert.True(t, core.IsNotFound(err))
	assert.True(t, core.IsNotFound(s.DeleteAttendance(ctx, got[0].ID)))
}

func TestBalances_LatestAndInvalidate(t *testing.T) {
	// GIVEN: cached totals for January through April
	// WHEN: the cache is invalidated from February
	// THEN: the latest entry before any later month is January

	ctx := context.Background()
	s := newStore(t)
	for m := time.January; m <= time.April; m++ {
		require.NoError(t, s.SaveBalance(ctx, core.MonthBalance{
			EmployeeID: 1,
			Month:      core.YearMonth{Year: 2025, Month: m},
			Total:      decimal.NewFromInt(int64(m)).Neg(),
			ComputedAt: time.Now(),
		}))
	}

	latest, ok, err := s.LatestBalance(ctx, 1, core.YearMonth{Year: 2025, Month: time.March})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, core.YearMonth{Year: 2025, Month: time.February}, latest.Month)
	assert.True(t, latest.Total.Equal(decimal.NewFromInt(-2)))

	assert.Empty(t, latest.Fingerprint)

	// SaveBalance replaces, fingerprint included
	require.NoError(t, s.SaveBalance(ctx, core.MonthBalance{
		EmployeeID:  1,
		Month:       core.YearMonth{Year: 2025, Month: time.February},
		Total:       decimal.RequireFromString("12.5"),
		Fingerprint: "rules-v2",
	}))
	latest, _, err = s.LatestBalance(ctx, 1, core.YearMonth{Year: 2025, Month: time.March})
	require.NoError(t, err)
	assert.True(t, latest.Total.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "rules-v2", latest.Fingerprint)

	require.NoError(t, s.InvalidateBalances(ctx, 1, core.YearMonth{Year: 2025, Month: time.February}))
	latest, ok, err = s.LatestBalance(ctx, 1, core.YearMonth{Year: 2026, Month: time.January})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.January, latest.Month.Month)

	_, ok, err = s.LatestBalance(ctx, 2, core.YearMonth{Year: 2026, Month: time.January})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAudit_AppendAndFilter(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	manager := core.Actor{EmployeeID: 1, Role: core.RoleManager}
	require.NoError(t, s.AppendAudit(ctx, core.NewAuditEntry(manager, core.AuditShiftCreated, 5, 7, map[string]any{"date": "2025-03-01"})))
	require.NoError(t, s.AppendAudit(ctx, core.NewAuditEntry(manager, core.AuditShiftUpdated, 5, 7, nil)))
	require.NoError(t, s.AppendAudit(ctx, core.NewAuditEntry(manager, core.AuditShiftCreated, 6, 8, nil)))

	shift := core.ShiftID(5)
	got, err := s.ListAudit(ctx, core.AuditFilter{ShiftID: &shift})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, core.AuditShiftCreated, got[0].Action)
	assert.Equal(t, core.EmployeeID(1), got[0].ActorID)
	assert.Equal(t, "2025-03-01", got[0].Payload["date"])
	assert.Equal(t, core.AuditShiftUpdated, got[1].Action)

	emp := core.EmployeeID(8)
	got, err = s.ListAudit(ctx, core.AuditFilter{EmployeeID: &emp})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, core.ShiftID(6), got[0].ShiftID)
}

func TestNew_PersistsToFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "worktrack.db")

	s, err := sqlite.New(path)
	require.NoError(t, err)
	sh := newShift(7, 1)
	require.NoError(t, s.InsertShift(ctx, sh))
	require.NoError(t, s.Close())

	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetShift(ctx, sh.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Date.Day())
	require.NoError(t, reopened.Ping(ctx))
}
