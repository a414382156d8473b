package core

import (
	"fmt"
	"time"
)

// =============================================================================
// PLANNED SHIFT
// =============================================================================

// PlannedShift is a scheduled work interval of one employee on one date.
// Start/End hold the resolved times: the shift type's defaults, or the
// custom times for variable-time types.
type PlannedShift struct {
	ID          ShiftID
	EmployeeID  EmployeeID
	Date        Date
	ShiftTypeID ShiftTypeID
	Start       ClockTime
	End         ClockTime
	Note        string

	Hidden      bool // soft-deleted
	Transferred bool // materialized into Attendance
	IsChanged   bool // attendance differs from plan, is missing, or an exchange is pending

	ChangeReasonID *ReasonID
	ManagerNote    string
	Exchange       ExchangeState

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Interval anchors the shift's clock times on its date.
func (s PlannedShift) Interval() (Interval, error) {
	return ResolveInterval(s.Date, s.Start, s.End)
}

// ExchangeStatus is never empty; a nil state reads as none.
func (s PlannedShift) ExchangeStatus() ExchangeStatus {
	if s.Exchange == nil {
		return ExchangeNone
	}
	return s.Exchange.Status()
}

// =============================================================================
// EXCHANGE STATE - Tagged variant attached to a shift
// =============================================================================

type ExchangeStatus string

const (
	ExchangeNone     ExchangeStatus = "none"
	ExchangePending  ExchangeStatus = "pending"
	ExchangeApproved ExchangeStatus = "approved"
	ExchangeRejected ExchangeStatus = "rejected"
)

// ExchangeState is closed: only the four types below implement it, so an
// approved exchange without a recorded target cannot be built.
type ExchangeState interface {
	Status() ExchangeStatus
	exchangeState()
}

type NoExchange struct{}

// PendingExchange waits for a manager decision.
type PendingExchange struct {
	Target      EmployeeID
	Reason      ReasonID
	RequestedBy EmployeeID
	RequestedAt time.Time
}

// ApprovedExchange keeps the previous owner for audit.
type ApprovedExchange struct {
	From      EmployeeID
	To        EmployeeID
	Reason    ReasonID
	DecidedBy EmployeeID
	DecidedAt time.Time
}

type RejectedExchange struct {
	DecidedBy EmployeeID
	DecidedAt time.Time
}

func (NoExchange) Status() ExchangeStatus       { return ExchangeNone }
func (PendingExchange) Status() ExchangeStatus  { return ExchangePending }
func (ApprovedExchange) Status() ExchangeStatus { return ExchangeApproved }
func (RejectedExchange) Status() ExchangeStatus { return ExchangeRejected }

func (NoExchange) exchangeState()       {}
func (PendingExchange) exchangeState()  {}
func (ApprovedExchange) exchangeState() {}
func (RejectedExchange) exchangeState() {}

// ExchangeRecord is the flat, persisted form of an ExchangeState.
type ExchangeRecord struct {
	Status ExchangeStatus
	Target EmployeeID
	From   EmployeeID
	Reason ReasonID
	Actor  EmployeeID // requester while pending, decider afterwards
	At     time.Time
}

// EncodeExchange flattens a state for storage.
func EncodeExchange(st ExchangeState) ExchangeRecord {
	switch v := st.(type) {
	case PendingExchange:
		return ExchangeRecord{Status: ExchangePending, Target: v.Target, Reason: v.Reason, Actor: v.RequestedBy, At: v.RequestedAt}
	case ApprovedExchange:
		return ExchangeRecord{Status: ExchangeApproved, Target: v.To, From: v.From, Reason: v.Reason, Actor: v.DecidedBy, At: v.DecidedAt}
	case RejectedExchange:
		return ExchangeRecord{Status: ExchangeRejected, Actor: v.DecidedBy, At: v.DecidedAt}
	default:
		return ExchangeRecord{Status: ExchangeNone}
	}
}

// DecodeExchange rebuilds the variant, rejecting records that would be an
// illegal state.
func DecodeExchange(r ExchangeRecord) (ExchangeState, error) {
	switch r.Status {
	case ExchangeNone, "":
		return NoExchange{}, nil
	case ExchangePending:
		if r.Target == 0 {
			return nil, fmt.Errorf("pending exchange without target")
		}
		return PendingExchange{Target: r.Target, Reason: r.Reason, RequestedBy: r.Actor, RequestedAt: r.At}, nil
	case ExchangeApproved:
		if r.Target == 0 {
			return nil, fmt.Errorf("approved exchange without target")
		}
		return ApprovedExchange{From: r.From, To: r.Target, Reason: r.Reason, DecidedBy: r.Actor, DecidedAt: r.At}, nil
	case ExchangeRejected:
		return RejectedExchange{DecidedBy: r.Actor, DecidedAt: r.At}, nil
	}
	return nil, fmt.Errorf("unknown exchange status %q", r.Status)
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// Attendance is the recorded actual work of an employee on a date.
type Attendance struct {
	ID             AttendanceID
	EmployeeID     EmployeeID
	Date           Date
	ShiftTypeID    *ShiftTypeID
	Start          ClockTime
	End            ClockTime
	PlannedShiftID *ShiftID
	ChangeReasonID *ReasonID
	Note           string
	CreatedAt      time.Time
}

func (a Attendance) Interval() (Interval, error) {
	return ResolveInterval(a.Date, a.Start, a.End)
}
