package schedule

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/warp/worktrack/core"
	"github.com/warp/worktrack/events"
)

// MissingAttendanceNote is appended to the note of a flagged plan.
const MissingAttendanceNote = "missing attendance for planned shift"

// MissingAttendanceCheck flags past plans that never turned into attendance.
type MissingAttendanceCheck struct {
	Deps
}

func NewMissingAttendanceCheck(d Deps) *MissingAttendanceCheck {
	return &MissingAttendanceCheck{Deps: d}
}

// Run flags every non-hidden plan dated before today that is neither
// transferred nor already changed and has no attendance on its date. It
// returns how many plans were flagged.
func (m *MissingAttendanceCheck) Run(ctx context.Context, today core.Date) (int, error) {
	var flagged []core.PlannedShift

	err := m.Store.WithTx(ctx, func(tx core.Store) error {
		plans, err := tx.ListShifts(ctx, core.ShiftFilter{To: today.AddDays(-1)})
		if err != nil {
			return fmt.Errorf("list past plans: %w", err)
		}
		for _, p := range plans {
			if p.Transferred || p.IsChanged {
				continue
			}
			emp := p.EmployeeID
			att, err := tx.ListAttendance(ctx, core.AttendanceFilter{EmployeeID: &emp, From: p.Date, To: p.Date})
			if err != nil {
				return fmt.Errorf("list attendance: %w", err)
			}
			if len(att) > 0 {
				continue
			}

			p.IsChanged = true
			if p.Note == "" {
				p.Note = MissingAttendanceNote
			} else {
				p.Note += "; " + MissingAttendanceNote
			}
			if err := tx.UpdateShift(ctx, &p); err != nil {
				return fmt.Errorf("flag plan %d: %w", p.ID, err)
			}
			if err := audit(ctx, tx, core.System, core.AuditAttendanceMissing, p.ID, p.EmployeeID, nil); err != nil {
				return err
			}
			flagged = append(flagged, p)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, p := range flagged {
		m.logger().WithFields(logrus.Fields{
			"shift_id":    p.ID,
			"employee_id": p.EmployeeID,
			"date":        p.Date.String(),
		}).Warn("missing attendance")
		m.emit(ctx, events.AttendanceMissing, core.System, shiftPayload(p))
	}
	m.logger().WithField("flagged", len(flagged)).Info("missing-attendance check done")
	return len(flagged), nil
}
