/*
Package schedule implements the write side of the shift engine.

PURPOSE:
  Planned shifts, the exchange workflow, plan copying, attendance recording
  and the missing-attendance check. Every write:
    1. checks the caller's capability
    2. validates input against the catalogs
    3. runs check-then-write inside one TxStore.WithTx
    4. appends an audit entry and invalidates cached balances in that tx
    5. publishes a domain event after commit

OVERLAP RULE:
  Two non-hidden shifts of one employee must not share any instant. The
  check resolves absolute intervals (end < start crosses midnight) and
  looks at the neighbouring dates too, so a night shift also blocks an
  early shift the next morning. Intervals are half-open: 08-16 and 16-23
  are fine.

SEE ALSO:
  - core/store.go: TxStore contract
  - balance/: the read side (summaries and reports)
*/
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/worktrack/core"
	"github.com/warp/worktrack/events"
)

// Deps are the collaborators shared by all schedule services.
type Deps struct {
	Store   core.TxStore
	Catalog core.Catalog
	Events  events.Publisher
	Log     logrus.FieldLogger
	Now     func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d Deps) logger() logrus.FieldLogger {
	if d.Log != nil {
		return d.Log
	}
	return logrus.StandardLogger()
}

func (d Deps) emit(ctx context.Context, typ string, actor core.Actor, payload map[string]any) {
	events.Emit(ctx, d.Events, d.logger(), events.New(typ, actor, payload))
}

// =============================================================================
// SHARED RULES
// =============================================================================

// checkShiftOverlap fails with an OverlapError naming the first non-hidden
// shift of employee that intersects iv. exclude skips the shift being edited.
func checkShiftOverlap(ctx context.Context, tx core.Store, employee core.EmployeeID, date core.Date, iv core.Interval, exclude core.ShiftID) error {
	shifts, err := tx.ListShifts(ctx, core.ShiftFilter{
		EmployeeID: &employee,
		From:       date.AddDays(-1),
		To:         date.AddDays(1),
	})
	if err != nil {
		return fmt.Errorf("list shifts for overlap check: %w", err)
	}
	for _, other := range shifts {
		if other.ID == exclude {
			continue
		}
		otherIv, err := other.Interval()
		if err != nil {
			continue
		}
		if iv.Overlaps(otherIv) {
			return &core.OverlapError{
				EmployeeID:    employee,
				Date:          date,
				ConflictingID: int64(other.ID),
				Field:         "start_time",
			}
		}
	}
	return nil
}

// resolveShiftTimes applies the shift type's rule: fixed types use their
// defaults and ignore custom times, variable types require both.
func resolveShiftTimes(st core.ShiftType, start, end *string) (core.ClockTime, core.ClockTime, error) {
	if !st.VariableTime {
		return st.Start, st.End, nil
	}
	if start == nil || *start == "" {
		return 0, 0, core.Invalid("start_time", "required for variable-time shift type %q", st.Name)
	}
	if end == nil || *end == "" {
		return 0, 0, core.Invalid("end_time", "required for variable-time shift type %q", st.Name)
	}
	s, err := core.ParseClockField("start_time", *start)
	if err != nil {
		return 0, 0, err
	}
	e, err := core.ParseClockField("end_time", *end)
	if err != nil {
		return 0, 0, err
	}
	return s, e, nil
}

// invalidateFrom drops cached month balances that a write to date makes stale.
func invalidateFrom(ctx context.Context, tx core.Store, employee core.EmployeeID, date core.Date) error {
	return core.NewLedger(tx).Invalidate(ctx, employee, date.YearMonth())
}

func audit(ctx context.Context, tx core.Store, actor core.Actor, action core.AuditAction, shift core.ShiftID, employee core.EmployeeID, payload map[string]any) error {
	if err := tx.AppendAudit(ctx, core.NewAuditEntry(actor, action, shift, employee, payload)); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func strPtr(s string) *string { return &s }
