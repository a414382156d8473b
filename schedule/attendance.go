package schedule

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/warp/worktrack/core"
	"github.com/warp/worktrack/events"
)

// =============================================================================
// ATTENDANCE SERVICE - Materializes the plan into recorded work
// =============================================================================
//
// Recording attendance marks the day's plan as transferred. When the actual
// times differ from the plan, a change reason is mandatory and the plan is
// flagged is_changed. Deleting the last attendance of a day clears the
// transferred flag again.

type AttendanceService struct {
	Deps
}

func NewAttendanceService(d Deps) *AttendanceService {
	return &AttendanceService{Deps: d}
}

// NewAttendance is the raw input of Record. Times may be omitted when a
// shift type is given; its defaults are used then.
type NewAttendance struct {
	EmployeeID     core.EmployeeID
	Date           string
	ShiftTypeID    *core.ShiftTypeID
	StartTime      string
	EndTime        string
	PlannedShiftID *core.ShiftID
	ChangeReasonID *core.ReasonID
	Note           string
}

type AttendanceQuery struct {
	EmployeeID *core.EmployeeID
	Year       int
	Month      int
}

// Record stores attendance. A shift type flagged split_at_midnight turns
// an overnight record into two, one per date.
func (s *AttendanceService) Record(ctx context.Context, actor core.Actor, in NewAttendance) ([]core.Attendance, error) {
	if in.EmployeeID == 0 {
		return nil, core.Invalid("employee_id", "required")
	}
	if err := actor.Authorize(core.CapRecordAttendance, in.EmployeeID); err != nil {
		return nil, err
	}
	date, err := core.ParseDateField("date", in.Date)
	if err != nil {
		return nil, err
	}
	if _, err := s.Catalog.Employee(ctx, in.EmployeeID); err != nil {
		return nil, err
	}

	var st *core.ShiftType
	if in.ShiftTypeID != nil {
		t, err := s.Catalog.ShiftType(ctx, *in.ShiftTypeID)
		if err != nil {
			return nil, err
		}
		st = &t
	}
	start, end, err := attendanceTimes(st, in.StartTime, in.EndTime)
	if err != nil {
		return nil, err
	}
	worked, err := core.ResolveInterval(date, start, end)
	if err != nil {
		return nil, err
	}
	if in.ChangeReasonID != nil {
		if _, err := s.Catalog.ChangeReason(ctx, *in.ChangeReasonID); err != nil {
			return nil, err
		}
	}

	records := []core.Attendance{{
		EmployeeID:     in.EmployeeID,
		Date:           date,
		ShiftTypeID:    in.ShiftTypeID,
		Start:          start,
		End:            end,
		PlannedShiftID: in.PlannedShiftID,
		ChangeReasonID: in.ChangeReasonID,
		Note:           in.Note,
	}}
	if st != nil && st.SplitAtMidnight && end != 0 && end < start {
		first, second := records[0], records[0]
		first.End = 0
		second.Date, second.Start = date.AddDays(1), 0
		records = []core.Attendance{first, second}
	}

	err = s.Store.WithTx(ctx, func(tx core.Store) error {
		// 1. Plan linkage
		plan, err := s.findPlan(ctx, tx, in.EmployeeID, date, worked, in.PlannedShiftID)
		if err != nil {
			return err
		}
		differs := plan != nil && (plan.Start != start || plan.End != end)
		if differs && in.ChangeReasonID == nil {
			return core.Invalid("change_reason_id", "required when times differ from the planned %s-%s", plan.Start, plan.End)
		}

		// 2. Overlap with recorded attendance, then insert
		for i := range records {
			if err := checkAttendanceOverlap(ctx, tx, records[i]); err != nil {
				return err
			}
			if plan != nil {
				records[i].PlannedShiftID = &plan.ID
			}
			if err := tx.InsertAttendance(ctx, &records[i]); err != nil {
				return fmt.Errorf("insert attendance: %w", err)
			}
			if err := invalidateFrom(ctx, tx, in.EmployeeID, records[i].Date); err != nil {
				return err
			}
		}

		// 3. Mark the plan
		var shiftID core.ShiftID
		if plan != nil {
			plan.Transferred = true
			if differs {
				plan.IsChanged = true
				plan.ChangeReasonID = in.ChangeReasonID
			}
			if err := tx.UpdateShift(ctx, plan); err != nil {
				return fmt.Errorf("mark plan transferred: %w", err)
			}
			shiftID = plan.ID
		}

		return audit(ctx, tx, actor, core.AuditAttendanceRecorded, shiftID, in.EmployeeID, map[string]any{
			"attendance_id": int64(records[0].ID),
			"date":          date.String(),
			"start":         start.String(),
			"end":           end.String(),
			"differs":       differs,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger().WithFields(logrus.Fields{
		"employee_id": in.EmployeeID,
		"date":        date.String(),
		"records":     len(records),
	}).Info("attendance recorded")
	for _, a := range records {
		s.emit(ctx, events.AttendanceRecorded, actor, attendancePayload(a))
	}
	return records, nil
}

// Delete removes one attendance record.
func (s *AttendanceService) Delete(ctx context.Context, actor core.Actor, id core.AttendanceID) error {
	var deleted core.Attendance

	err := s.Store.WithTx(ctx, func(tx core.Store) error {
		a, err := tx.GetAttendance(ctx, id)
		if err != nil {
			return err
		}
		if err := actor.Authorize(core.CapRecordAttendance, a.EmployeeID); err != nil {
			return err
		}
		if err := tx.DeleteAttendance(ctx, id); err != nil {
			return fmt.Errorf("delete attendance: %w", err)
		}

		emp := a.EmployeeID
		remaining, err := tx.ListAttendance(ctx, core.AttendanceFilter{EmployeeID: &emp, From: a.Date, To: a.Date})
		if err != nil {
			return fmt.Errorf("list remaining attendance: %w", err)
		}
		if len(remaining) == 0 {
			plans, err := tx.ListShifts(ctx, core.ShiftFilter{EmployeeID: &emp, From: a.Date, To: a.Date, IncludeHidden: true})
			if err != nil {
				return fmt.Errorf("list plans: %w", err)
			}
			for i := range plans {
				if !plans[i].Transferred {
					continue
				}
				plans[i].Transferred = false
				if err := tx.UpdateShift(ctx, &plans[i]); err != nil {
					return fmt.Errorf("clear transferred: %w", err)
				}
			}
		}

		if err := invalidateFrom(ctx, tx, emp, a.Date); err != nil {
			return err
		}
		deleted = a
		var shiftID core.ShiftID
		if a.PlannedShiftID != nil {
			shiftID = *a.PlannedShiftID
		}
		return audit(ctx, tx, actor, core.AuditAttendanceDeleted, shiftID, emp, attendancePayload(a))
	})
	if err != nil {
		return err
	}

	s.logger().WithField("attendance_id", id).Info("attendance deleted")
	s.emit(ctx, events.AttendanceDeleted, actor, attendancePayload(deleted))
	return nil
}

// List returns attendance ordered by date and start. Workers see their own.
func (s *AttendanceService) List(ctx context.Context, actor core.Actor, q AttendanceQuery) ([]core.Attendance, error) {
	filter := core.AttendanceFilter{EmployeeID: q.EmployeeID}
	if !actor.IsManager() && filter.EmployeeID == nil {
		own := actor.EmployeeID
		filter.EmployeeID = &own
	}
	if filter.EmployeeID != nil {
		if err := actor.Authorize(core.CapView, *filter.EmployeeID); err != nil {
			return nil, err
		}
	}
	if q.Year != 0 || q.Month != 0 {
		ym, err := core.NewYearMonth(q.Year, q.Month)
		if err != nil {
			return nil, err
		}
		filter.From, filter.To = ym.First(), ym.Last()
	}
	return s.Store.ListAttendance(ctx, filter)
}

// findPlan returns the linked plan. Without one it picks, among the
// employee's non-hidden plans on date, the one with exactly the worked
// interval, then the first one it overlaps, then the first of the day.
func (s *AttendanceService) findPlan(ctx context.Context, tx core.Store, employee core.EmployeeID, date core.Date, worked core.Interval, linked *core.ShiftID) (*core.PlannedShift, error) {
	if linked != nil {
		plan, err := tx.GetShift(ctx, *linked)
		if err != nil {
			return nil, err
		}
		if plan.EmployeeID != employee || !plan.Date.Equal(date) {
			return nil, core.Invalid("planned_shift_id", "shift %d is not planned for employee %d on %s", plan.ID, employee, date)
		}
		return &plan, nil
	}
	plans, err := tx.ListShifts(ctx, core.ShiftFilter{EmployeeID: &employee, From: date, To: date})
	if err != nil {
		return nil, fmt.Errorf("find plan: %w", err)
	}
	if len(plans) == 0 {
		return nil, nil
	}

	overlapping := -1
	for i := range plans {
		iv, err := plans[i].Interval()
		if err != nil {
			continue
		}
		if iv.Start.Equal(worked.Start) && iv.End.Equal(worked.End) {
			return &plans[i], nil
		}
		if overlapping < 0 && iv.Overlaps(worked) {
			overlapping = i
		}
	}
	if overlapping >= 0 {
		return &plans[overlapping], nil
	}
	return &plans[0], nil
}

func attendanceTimes(st *core.ShiftType, start, end string) (core.ClockTime, core.ClockTime, error) {
	if start == "" && end == "" && st != nil && !st.VariableTime {
		return st.Start, st.End, nil
	}
	if start == "" {
		return 0, 0, core.Invalid("start_time", "required")
	}
	if end == "" {
		return 0, 0, core.Invalid("end_time", "required")
	}
	s, err := core.ParseClockField("start_time", start)
	if err != nil {
		return 0, 0, err
	}
	e, err := core.ParseClockField("end_time", end)
	if err != nil {
		return 0, 0, err
	}
	return s, e, nil
}

func checkAttendanceOverlap(ctx context.Context, tx core.Store, a core.Attendance) error {
	iv, err := a.Interval()
	if err != nil {
		return err
	}
	emp := a.EmployeeID
	existing, err := tx.ListAttendance(ctx, core.AttendanceFilter{EmployeeID: &emp, From: a.Date.AddDays(-1), To: a.Date.AddDays(1)})
	if err != nil {
		return fmt.Errorf("list attendance for overlap check: %w", err)
	}
	for _, other := range existing {
		otherIv, err := other.Interval()
		if err != nil {
			continue
		}
		if iv.Overlaps(otherIv) {
			return &core.OverlapError{EmployeeID: emp, Date: a.Date, ConflictingID: int64(other.ID), Field: "start_time"}
		}
	}
	return nil
}

func attendancePayload(a core.Attendance) map[string]any {
	return map[string]any{
		"attendance_id": int64(a.ID),
		"employee_id":   int64(a.EmployeeID),
		"date":          a.Date.String(),
		"start":         a.Start.String(),
		"end":           a.End.String(),
	}
}
