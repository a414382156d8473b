/*
exchange.go - Peer-to-peer shift exchange workflow

PURPOSE:
  A worker hands a planned shift to a colleague, subject to a manager's
  decision. The exchange lives on the shift itself as a core.ExchangeState
  variant; approval reassigns the owner in place.

STATE MACHINE:
  ┌──────┐  Request   ┌─────────┐  Decide(approved)  ┌──────────┐
  │ None │ ─────────▶ │ Pending │ ─────────────────▶ │ Approved │
  └──────┘            └─────────┘                    └──────────┘
                           │      Decide(rejected)   ┌──────────┐
                           └───────────────────────▶ │ Rejected │
                                                     └──────────┘
  Approved and Rejected accept a fresh Request. Anything else is a
  StateConflictError.

CONCURRENCY:
  Request and Decide read the shift, check the state and write it back in
  one transaction with a version check, so of two concurrent decisions
  exactly one succeeds and the other sees a non-pending state.

SEE ALSO:
  - core/shift.go: the ExchangeState variants
*/
package schedule

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/warp/worktrack/core"
	"github.com/warp/worktrack/events"
)

// Decision is a manager's verdict on a pending exchange.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

func ParseDecision(s string) (Decision, error) {
	switch d := Decision(s); d {
	case DecisionApproved, DecisionRejected:
		return d, nil
	}
	return "", core.Invalid("status", "must be approved or rejected, got %q", s)
}

type ExchangeService struct {
	Deps
}

func NewExchangeService(d Deps) *ExchangeService {
	return &ExchangeService{Deps: d}
}

// Request asks to hand shift id over to target for reason.
func (s *ExchangeService) Request(ctx context.Context, actor core.Actor, id core.ShiftID, target core.EmployeeID, reason core.ReasonID) (core.PlannedShift, error) {
	var result core.PlannedShift

	err := s.Store.WithTx(ctx, func(tx core.Store) error {
		sh, err := tx.GetShift(ctx, id)
		if err != nil {
			return err
		}
		if err := actor.Authorize(core.CapRequestExchange, sh.EmployeeID); err != nil {
			return err
		}

		// 1. State machine
		if sh.ExchangeStatus() == core.ExchangePending {
			return &core.StateConflictError{ShiftID: id, Status: core.ExchangePending, Op: "request exchange for"}
		}
		if sh.Hidden {
			return core.Invalid("shift_id", "shift %d is deleted", id)
		}

		// 2. Inputs
		if target == sh.EmployeeID {
			return core.Invalid("target_employee_id", "must differ from the current owner")
		}
		if _, err := s.Catalog.Employee(ctx, target); err != nil {
			return err
		}
		if _, err := s.Catalog.ChangeReason(ctx, reason); err != nil {
			return err
		}

		// 3. Target must be free at that time
		iv, err := sh.Interval()
		if err != nil {
			return err
		}
		if err := checkShiftOverlap(ctx, tx, target, sh.Date, iv, sh.ID); err != nil {
			return err
		}

		// 4. Transition
		sh.Exchange = core.PendingExchange{
			Target:      target,
			Reason:      reason,
			RequestedBy: actor.EmployeeID,
			RequestedAt: s.now(),
		}
		sh.ChangeReasonID = &reason
		sh.IsChanged = true
		if err := tx.UpdateShift(ctx, &sh); err != nil {
			return fmt.Errorf("store exchange request: %w", err)
		}
		result = sh
		return audit(ctx, tx, actor, core.AuditExchangeRequested, sh.ID, sh.EmployeeID, map[string]any{
			"target_employee_id": int64(target),
			"reason_id":          int64(reason),
		})
	})
	if err != nil {
		return core.PlannedShift{}, err
	}

	s.logger().WithFields(logrus.Fields{
		"shift_id": id,
		"owner":    result.EmployeeID,
		"target":   target,
	}).Info("exchange requested")
	s.emit(ctx, events.ExchangeRequested, actor, map[string]any{
		"shift_id":           int64(id),
		"owner_employee_id":  int64(result.EmployeeID),
		"target_employee_id": int64(target),
	})
	return result, nil
}

// Decide approves or rejects a pending exchange. Only managers may decide.
// An approval that would overlap the target's plan fails with an
// OverlapError and leaves the exchange pending.
func (s *ExchangeService) Decide(ctx context.Context, actor core.Actor, id core.ShiftID, decision Decision, note string) (core.PlannedShift, error) {
	if _, err := ParseDecision(string(decision)); err != nil {
		return core.PlannedShift{}, err
	}
	if err := actor.Authorize(core.CapDecideExchange, 0); err != nil {
		return core.PlannedShift{}, err
	}

	var result core.PlannedShift
	var from core.EmployeeID

	err := s.Store.WithTx(ctx, func(tx core.Store) error {
		sh, err := tx.GetShift(ctx, id)
		if err != nil {
			return err
		}
		pending, ok := sh.Exchange.(core.PendingExchange)
		if !ok {
			return &core.StateConflictError{ShiftID: id, Status: sh.ExchangeStatus(), Op: "decide exchange for"}
		}
		from = sh.EmployeeID
		now := s.now()

		switch decision {
		case DecisionApproved:
			iv, err := sh.Interval()
			if err != nil {
				return err
			}
			if err := checkShiftOverlap(ctx, tx, pending.Target, sh.Date, iv, sh.ID); err != nil {
				return err
			}
			sh.EmployeeID = pending.Target
			sh.Exchange = core.ApprovedExchange{
				From:      from,
				To:        pending.Target,
				Reason:    pending.Reason,
				DecidedBy: actor.EmployeeID,
				DecidedAt: now,
			}
		case DecisionRejected:
			sh.Exchange = core.RejectedExchange{DecidedBy: actor.EmployeeID, DecidedAt: now}
			sh.ChangeReasonID = nil
		}
		sh.IsChanged = false
		sh.ManagerNote = note

		if err := tx.UpdateShift(ctx, &sh); err != nil {
			return fmt.Errorf("store exchange decision: %w", err)
		}
		if decision == DecisionApproved {
			for _, emp := range []core.EmployeeID{from, sh.EmployeeID} {
				if err := invalidateFrom(ctx, tx, emp, sh.Date); err != nil {
					return err
				}
			}
		}

		result = sh
		action := core.AuditExchangeRejected
		if decision == DecisionApproved {
			action = core.AuditExchangeApproved
		}
		return audit(ctx, tx, actor, action, sh.ID, sh.EmployeeID, map[string]any{
			"from_employee_id":   int64(from),
			"target_employee_id": int64(pending.Target),
			"note":               note,
		})
	})
	if err != nil {
		return core.PlannedShift{}, err
	}

	s.logger().WithFields(logrus.Fields{
		"shift_id": id,
		"decision": decision,
		"owner":    result.EmployeeID,
	}).Info("exchange decided")
	s.emit(ctx, events.ExchangeDecided, actor, map[string]any{
		"shift_id":          int64(id),
		"decision":          string(decision),
		"from_employee_id":  int64(from),
		"owner_employee_id": int64(result.EmployeeID),
	})
	return result, nil
}
