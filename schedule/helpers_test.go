package schedule_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/warp/worktrack/core"
	"github.com/warp/worktrack/core/store"
	"github.com/warp/worktrack/events"
	"github.com/warp/worktrack/schedule"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

const (
	typeMorning  core.ShiftTypeID = 1 // fixed 06:00-14:00
	typeCustom   core.ShiftTypeID = 2 // variable time
	typeNight    core.ShiftTypeID = 3 // fixed 22:00-06:00, split at midnight
	typeVacation core.ShiftTypeID = 4

	reasonSwap core.ReasonID = 1
	reasonLate core.ReasonID = 2
)

var (
	admin   = core.Actor{EmployeeID: 1, Role: core.RoleAdmin}
	manager = core.Actor{EmployeeID: 2, Role: core.RoleManager}
)

func worker(id core.EmployeeID) core.Actor {
	return core.Actor{EmployeeID: id, Role: core.RoleWorker}
}

// fakeCatalog is an in-memory core.Catalog.
type fakeCatalog struct {
	employees map[core.EmployeeID]core.Employee
	types     map[core.ShiftTypeID]core.ShiftType
	reasons   map[core.ReasonID]core.ChangeReason
}

func newFakeCatalog() *fakeCatalog {
	c := &fakeCatalog{
		employees: map[core.EmployeeID]core.Employee{},
		types: map[core.ShiftTypeID]core.ShiftType{
			typeMorning:  {ID: typeMorning, Name: "Morning", ShortName: "R", Start: core.NewClock(6, 0), End: core.NewClock(14, 0), Kind: core.ShiftKindWork},
			typeCustom:   {ID: typeCustom, Name: "Custom", ShortName: "V", VariableTime: true, Kind: core.ShiftKindWork},
			typeNight:    {ID: typeNight, Name: "Night", ShortName: "N", Start: core.NewClock(22, 0), End: core.NewClock(6, 0), Kind: core.ShiftKindWork, SplitAtMidnight: true},
			typeVacation: {ID: typeVacation, Name: "Vacation", ShortName: "D", Start: core.NewClock(8, 0), End: core.NewClock(15, 0), Kind: core.ShiftKindVacation, Duration: ptr(decimal.NewFromInt(7))},
		},
		reasons: map[core.ReasonID]core.ChangeReason{
			reasonSwap: {ID: reasonSwap, Name: "Swap", Category: core.ReasonCDR},
			reasonLate: {ID: reasonLate, Name: "Late arrival", Category: core.ReasonAbsence},
		},
	}
	for _, id := range []core.EmployeeID{1, 2, 3, 7, 8, 9} {
		role := core.RoleWorker
		switch id {
		case 1:
			role = core.RoleAdmin
		case 2:
			role = core.RoleManager
		}
		c.employees[id] = core.Employee{ID: id, FirstName: "Employee", LastName: fmt.Sprintf("No%d", id), Role: role, Active: true}
	}
	return c
}

func (c *fakeCatalog) Employee(_ context.Context, id core.EmployeeID) (core.Employee, error) {
	e, ok := c.employees[id]
	if !ok {
		return core.Employee{}, core.NotFound("employee", int64(id))
	}
	return e, nil
}

func (c *fakeCatalog) Employees(context.Context) ([]core.Employee, error) {
	var out []core.Employee
	for _, e := range c.employees {
		out = append(out, e)
	}
	return out, nil
}

func (c *fakeCatalog) ShiftType(_ context.Context, id core.ShiftTypeID) (core.ShiftType, error) {
	t, ok := c.types[id]
	if !ok {
		return core.ShiftType{}, core.NotFound("shift_type", int64(id))
	}
	return t, nil
}

func (c *fakeCatalog) ShiftTypes(context.Context) ([]core.ShiftType, error) {
	var out []core.ShiftType
	for _, t := range c.types {
		out = append(out, t)
	}
	return out, nil
}

func (c *fakeCatalog) ChangeReason(_ context.Context, id core.ReasonID) (core.ChangeReason, error) {
	r, ok := c.reasons[id]
	if !ok {
		return core.ChangeReason{}, core.NotFound("change_reason", int64(id))
	}
	return r, nil
}

func (c *fakeCatalog) ChangeReasons(context.Context) ([]core.ChangeReason, error) {
	var out []core.ChangeReason
	for _, r := range c.reasons {
		out = append(out, r)
	}
	return out, nil
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store      core.TxStore
	catalog    *fakeCatalog
	events     *recorder
	shifts     *schedule.ShiftService
	exchange   *schedule.ExchangeService
	copier     *schedule.PlanCopier
	attendance *schedule.AttendanceService
	missing    *schedule.MissingAttendanceCheck
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, store.NewMemory())
}

// newFixtureWithStore wires the services on top of st.
func newFixtureWithStore(t *testing.T, st core.TxStore) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	f := &fixture{store: st, catalog: newFakeCatalog(), events: &recorder{}}
	deps := schedule.Deps{
		Store:   f.store,
		Catalog: f.catalog,
		Events:  f.events,
		Log:     logger,
		Now:     func() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) },
	}
	f.shifts = schedule.NewShiftService(deps)
	f.exchange = schedule.NewExchangeService(deps)
	f.copier = schedule.NewPlanCopier(deps, 3)
	f.attendance = schedule.NewAttendanceService(deps)
	f.missing = schedule.NewMissingAttendanceCheck(deps)
	return f
}

// custom creates a variable-time shift and fails the test on error.
func (f *fixture) custom(t *testing.T, emp core.EmployeeID, date, start, end string) core.PlannedShift {
	t.Helper()
	sh, err := f.shifts.Create(context.Background(), manager, schedule.NewShift{
		EmployeeID:  emp,
		Date:        date,
		ShiftTypeID: typeCustom,
		StartTime:   &start,
		EndTime:     &end,
	})
	require.NoError(t, err)
	return sh
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	shifts, err := f.store.ListShifts(context.Background(), core.ShiftFilter{IncludeHidden: true})
	require.NoError(t, err)
	return len(shifts)
}

func ptr[T any](v T) *T { return &v }
