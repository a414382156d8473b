package schedule

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/warp/worktrack/core"
	"github.com/warp/worktrack/events"
)

// =============================================================================
// SHIFT SERVICE - Planned shift CRUD with overlap protection
// =============================================================================

type ShiftService struct {
	Deps
}

func NewShiftService(d Deps) *ShiftService {
	return &ShiftService{Deps: d}
}

// NewShift is the raw input of Create. Date and times stay strings so their
// syntax is validated here, with the offending field named.
type NewShift struct {
	EmployeeID  core.EmployeeID
	Date        string
	ShiftTypeID core.ShiftTypeID
	StartTime   *string
	EndTime     *string
	Note        string
}

// ShiftPatch changes only the non-nil fields.
type ShiftPatch struct {
	EmployeeID  *core.EmployeeID
	Date        *string
	ShiftTypeID *core.ShiftTypeID
	StartTime   *string
	EndTime     *string
	Note        *string
}

// ShiftQuery selects shifts of one month. A zero Year and Month leaves the
// range open.
type ShiftQuery struct {
	EmployeeID    *core.EmployeeID
	Year          int
	Month         int
	IncludeHidden bool
}

// Create validates and stores a new planned shift.
func (s *ShiftService) Create(ctx context.Context, actor core.Actor, in NewShift) (core.PlannedShift, error) {
	if in.EmployeeID == 0 {
		return core.PlannedShift{}, core.Invalid("employee_id", "required")
	}
	if err := actor.Authorize(core.CapEditPlan, in.EmployeeID); err != nil {
		return core.PlannedShift{}, err
	}
	date, err := core.ParseDateField("date", in.Date)
	if err != nil {
		return core.PlannedShift{}, err
	}
	if _, err := s.Catalog.Employee(ctx, in.EmployeeID); err != nil {
		return core.PlannedShift{}, err
	}
	st, err := s.Catalog.ShiftType(ctx, in.ShiftTypeID)
	if err != nil {
		return core.PlannedShift{}, err
	}
	start, end, err := resolveShiftTimes(st, in.StartTime, in.EndTime)
	if err != nil {
		return core.PlannedShift{}, err
	}
	iv, err := core.ResolveInterval(date, start, end)
	if err != nil {
		return core.PlannedShift{}, err
	}

	shift := core.PlannedShift{
		EmployeeID:  in.EmployeeID,
		Date:        date,
		ShiftTypeID: st.ID,
		Start:       start,
		End:         end,
		Note:        in.Note,
		Exchange:    core.NoExchange{},
	}

	err = s.Store.WithTx(ctx, func(tx core.Store) error {
		if err := checkShiftOverlap(ctx, tx, shift.EmployeeID, date, iv, 0); err != nil {
			return err
		}
		if err := tx.InsertShift(ctx, &shift); err != nil {
			return fmt.Errorf("insert shift: %w", err)
		}
		if err := invalidateFrom(ctx, tx, shift.EmployeeID, date); err != nil {
			return err
		}
		return audit(ctx, tx, actor, core.AuditShiftCreated, shift.ID, shift.EmployeeID, map[string]any{
			"date":  date.String(),
			"start": start.String(),
			"end":   end.String(),
		})
	})
	if err != nil {
		return core.PlannedShift{}, err
	}

	s.logger().WithFields(logrus.Fields{
		"shift_id":    shift.ID,
		"employee_id": shift.EmployeeID,
		"date":        date.String(),
	}).Info("shift created")
	s.emit(ctx, events.ShiftCreated, actor, shiftPayload(shift))
	return shift, nil
}

// Update applies a patch, re-running the create checks against every other
// shift.
func (s *ShiftService) Update(ctx context.Context, actor core.Actor, id core.ShiftID, patch ShiftPatch) (core.PlannedShift, error) {
	var updated core.PlannedShift

	err := s.Store.WithTx(ctx, func(tx core.Store) error {
		cur, err := tx.GetShift(ctx, id)
		if err != nil {
			return err
		}
		if err := actor.Authorize(core.CapEditPlan, cur.EmployeeID); err != nil {
			return err
		}
		next := cur

		// 1. Owner
		if patch.EmployeeID != nil && *patch.EmployeeID != cur.EmployeeID {
			if err := actor.Authorize(core.CapEditPlan, *patch.EmployeeID); err != nil {
				return err
			}
			if _, err := s.Catalog.Employee(ctx, *patch.EmployeeID); err != nil {
				return err
			}
			next.EmployeeID = *patch.EmployeeID
		}

		// 2. Date
		if patch.Date != nil {
			d, err := core.ParseDateField("date", *patch.Date)
			if err != nil {
				return err
			}
			next.Date = d
		}

		// 3. Type and times
		if patch.ShiftTypeID != nil || patch.StartTime != nil || patch.EndTime != nil {
			typeID := cur.ShiftTypeID
			if patch.ShiftTypeID != nil {
				typeID = *patch.ShiftTypeID
			}
			st, err := s.Catalog.ShiftType(ctx, typeID)
			if err != nil {
				return err
			}
			startIn, endIn := patch.StartTime, patch.EndTime
			if typeID == cur.ShiftTypeID {
				if startIn == nil {
					startIn = strPtr(cur.Start.String())
				}
				if endIn == nil {
					endIn = strPtr(cur.End.String())
				}
			}
			next.ShiftTypeID = st.ID
			if next.Start, next.End, err = resolveShiftTimes(st, startIn, endIn); err != nil {
				return err
			}
		}

		if patch.Note != nil {
			next.Note = *patch.Note
		}

		// 4. Overlap, excluding itself
		iv, err := next.Interval()
		if err != nil {
			return err
		}
		if !next.Hidden {
			if err := checkShiftOverlap(ctx, tx, next.EmployeeID, next.Date, iv, next.ID); err != nil {
				return err
			}
		}

		if err := tx.UpdateShift(ctx, &next); err != nil {
			return fmt.Errorf("update shift: %w", err)
		}
		for _, stale := range []struct {
			emp  core.EmployeeID
			date core.Date
		}{{cur.EmployeeID, cur.Date}, {next.EmployeeID, next.Date}} {
			if err := invalidateFrom(ctx, tx, stale.emp, stale.date); err != nil {
				return err
			}
		}
		updated = next
		return audit(ctx, tx, actor, core.AuditShiftUpdated, next.ID, next.EmployeeID, map[string]any{
			"before": shiftPayload(cur),
			"after":  shiftPayload(next),
		})
	})
	if err != nil {
		return core.PlannedShift{}, err
	}

	s.logger().WithField("shift_id", id).Info("shift updated")
	s.emit(ctx, events.ShiftUpdated, actor, shiftPayload(updated))
	return updated, nil
}

// SoftDelete hides a shift. Attendance is untouched. Hiding an already
// hidden shift is a no-op.
func (s *ShiftService) SoftDelete(ctx context.Context, actor core.Actor, id core.ShiftID) (core.PlannedShift, error) {
	var hidden core.PlannedShift
	changed := false

	err := s.Store.WithTx(ctx, func(tx core.Store) error {
		sh, err := tx.GetShift(ctx, id)
		if err != nil {
			return err
		}
		if err := actor.Authorize(core.CapEditPlan, sh.EmployeeID); err != nil {
			return err
		}
		if sh.Hidden {
			hidden = sh
			return nil
		}
		sh.Hidden = true
		if err := tx.UpdateShift(ctx, &sh); err != nil {
			return fmt.Errorf("hide shift: %w", err)
		}
		if err := invalidateFrom(ctx, tx, sh.EmployeeID, sh.Date); err != nil {
			return err
		}
		hidden, changed = sh, true
		return audit(ctx, tx, actor, core.AuditShiftHidden, sh.ID, sh.EmployeeID, nil)
	})
	if err != nil {
		return core.PlannedShift{}, err
	}

	if changed {
		s.logger().WithField("shift_id", id).Info("shift hidden")
		s.emit(ctx, events.ShiftHidden, actor, shiftPayload(hidden))
	}
	return hidden, nil
}

// HardDelete removes the row. Attendance that links to it keeps the id as a
// historical reference.
func (s *ShiftService) HardDelete(ctx context.Context, actor core.Actor, id core.ShiftID) error {
	var deleted core.PlannedShift

	err := s.Store.WithTx(ctx, func(tx core.Store) error {
		sh, err := tx.GetShift(ctx, id)
		if err != nil {
			return err
		}
		if err := actor.Authorize(core.CapHardDelete, sh.EmployeeID); err != nil {
			return err
		}
		if err := tx.DeleteShift(ctx, id); err != nil {
			return fmt.Errorf("delete shift: %w", err)
		}
		if err := invalidateFrom(ctx, tx, sh.EmployeeID, sh.Date); err != nil {
			return err
		}
		deleted = sh
		return audit(ctx, tx, actor, core.AuditShiftDeleted, sh.ID, sh.EmployeeID, shiftPayload(sh))
	})
	if err != nil {
		return err
	}

	s.logger().WithField("shift_id", id).Warn("shift hard-deleted")
	s.emit(ctx, events.ShiftDeleted, actor, shiftPayload(deleted))
	return nil
}

// Get returns one shift the caller may view.
func (s *ShiftService) Get(ctx context.Context, actor core.Actor, id core.ShiftID) (core.PlannedShift, error) {
	sh, err := s.Store.GetShift(ctx, id)
	if err != nil {
		return core.PlannedShift{}, err
	}
	if err := actor.Authorize(core.CapView, sh.EmployeeID); err != nil {
		return core.PlannedShift{}, err
	}
	return sh, nil
}

// List returns shifts ordered by date and start. Workers only see their
// own, and never hidden ones.
func (s *ShiftService) List(ctx context.Context, actor core.Actor, q ShiftQuery) ([]core.PlannedShift, error) {
	filter := core.ShiftFilter{EmployeeID: q.EmployeeID, IncludeHidden: q.IncludeHidden}

	if !actor.IsManager() {
		if filter.EmployeeID == nil {
			own := actor.EmployeeID
			filter.EmployeeID = &own
		}
		filter.IncludeHidden = false
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

	return s.Store.ListShifts(ctx, filter)
}

// Audit returns the trail of a shift, including one that was hard-deleted
// (managers only in that case).
func (s *ShiftService) Audit(ctx context.Context, actor core.Actor, id core.ShiftID) ([]core.AuditEntry, error) {
	sh, err := s.Store.GetShift(ctx, id)
	switch {
	case err == nil:
		if err := actor.Authorize(core.CapView, sh.EmployeeID); err != nil {
			return nil, err
		}
	case core.IsNotFound(err) && actor.IsManager():
	default:
		return nil, err
	}
	return s.Store.ListAudit(ctx, core.AuditFilter{ShiftID: &id})
}

func shiftPayload(sh core.PlannedShift) map[string]any {
	return map[string]any{
		"shift_id":    int64(sh.ID),
		"employee_id": int64(sh.EmployeeID),
		"date":        sh.Date.String(),
		"start":       sh.Start.String(),
		"end":         sh.End.String(),
		"shift_type":  int64(sh.ShiftTypeID),
	}
}
