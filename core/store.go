/*
store.go - Persistence contracts for shifts, attendance, balances and audit

PURPOSE:
  Defines the interface between the engine and the database. Services never
  talk to SQL directly; they run every operation inside WithTx so that
  overlap-check-then-insert and pending-check-then-transition are atomic.

KEY INTERFACES:
  ShiftStore:      PlannedShift rows (soft delete is an update)
  AttendanceStore: Attendance rows
  BalanceStore:    Cached month totals backing the Ledger
  AuditLog:        Who did what to which shift
  TxStore:         All of the above plus WithTx

OPTIMISTIC VERSIONING:
  UpdateShift only succeeds when the stored version equals the version the
  caller read. A mismatch returns ErrVersionConflict, which unwraps to
  ErrStateConflict.

IMPLEMENTATIONS:
  - store/sqlite: SQLite via database/sql
  - core/store: In-memory for tests and demos
  - store/resilient: timeout + circuit-breaker decorator over either

SEE ALSO:
  - ledger.go: month chaining on top of BalanceStore
*/
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// ErrVersionConflict is returned when a shift changed between read and write.
var ErrVersionConflict = fmt.Errorf("%w: shift version changed", ErrStateConflict)

// =============================================================================
// FILTERS
// =============================================================================

// ShiftFilter selects shifts. Zero dates leave that side unbounded.
type ShiftFilter struct {
	EmployeeID    *EmployeeID
	From          Date
	To            Date
	IncludeHidden bool
}

// AttendanceFilter selects attendance. Zero dates leave that side unbounded.
type AttendanceFilter struct {
	EmployeeID *EmployeeID
	From       Date
	To         Date
}

// =============================================================================
// STORES
// =============================================================================

type ShiftStore interface {
	// InsertShift assigns ID, Version and timestamps on s.
	InsertShift(ctx context.Context, s *PlannedShift) error

	// UpdateShift writes s if its Version matches, then bumps s.Version.
	UpdateShift(ctx context.Context, s *PlannedShift) error

	// GetShift returns a NotFoundError for unknown ids.
	GetShift(ctx context.Context, id ShiftID) (PlannedShift, error)

	// DeleteShift removes the row. Attendance is not touched.
	DeleteShift(ctx context.Context, id ShiftID) error

	// ListShifts orders by date, start time, id.
	ListShifts(ctx context.Context, f ShiftFilter) ([]PlannedShift, error)
}

type AttendanceStore interface {
	InsertAttendance(ctx context.Context, a *Attendance) error
	GetAttendance(ctx context.Context, id AttendanceID) (Attendance, error)
	DeleteAttendance(ctx context.Context, id AttendanceID) error

	// ListAttendance orders by date, start time, id.
	ListAttendance(ctx context.Context, f AttendanceFilter) ([]Attendance, error)

	// FirstAttendanceDate returns the earliest attendance date of an employee.
	FirstAttendanceDate(ctx context.Context, employee EmployeeID) (Date, bool, error)
}

// MonthBalance is a cached running total at the end of a month.
// Fingerprint identifies the rules and reference data it was computed with.
type MonthBalance struct {
	EmployeeID  EmployeeID
	Month       YearMonth
	Total       decimal.Decimal
	Fingerprint string
	ComputedAt  time.Time
}

type BalanceStore interface {
	// LatestBalance returns the newest cached month strictly before `before`.
	LatestBalance(ctx context.Context, employee EmployeeID, before YearMonth) (MonthBalance, bool, error)

	// SaveBalance inserts or replaces the month's total.
	SaveBalance(ctx context.Context, b MonthBalance) error

	// InvalidateBalances drops cached months from `from` onward.
	InvalidateBalances(ctx context.Context, employee EmployeeID, from YearMonth) error
}

// Store is the full persistence surface used inside a transaction.
type Store interface {
	ShiftStore
	AttendanceStore
	BalanceStore
	AuditLog
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// AUDIT LOG
// =============================================================================

type AuditAction string

const (
	AuditShiftCreated       AuditAction = "shift_created"
	AuditShiftUpdated       AuditAction = "shift_updated"
	AuditShiftHidden        AuditAction = "shift_hidden"
	AuditShiftDeleted       AuditAction = "shift_deleted"
	AuditShiftCopied        AuditAction = "shift_copied"
	AuditExchangeRequested  AuditAction = "exchange_requested"
	AuditExchangeApproved   AuditAction = "exchange_approved"
	AuditExchangeRejected   AuditAction = "exchange_rejected"
	AuditAttendanceRecorded AuditAction = "attendance_recorded"
	AuditAttendanceDeleted  AuditAction = "attendance_deleted"
	AuditAttendanceMissing  AuditAction = "attendance_missing"
)

// AuditEntry records who did what when.
type AuditEntry struct {
	ID         string
	At         time.Time
	ActorID    EmployeeID
	Action     AuditAction
	ShiftID    ShiftID
	EmployeeID EmployeeID
	Payload    map[string]any
}

// NewAuditEntry stamps a fresh ULID and the current time.
func NewAuditEntry(actor Actor, action AuditAction, shift ShiftID, employee EmployeeID, payload map[string]any) AuditEntry {
	return AuditEntry{
		ID:         ulid.Make().String(),
		At:         time.Now().UTC(),
		ActorID:    actor.EmployeeID,
		Action:     action,
		ShiftID:    shift,
		EmployeeID: employee,
		Payload:    payload,
	}
}

type AuditFilter struct {
	ShiftID    *ShiftID
	EmployeeID *EmployeeID
}

// AuditLog is append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	ListAudit(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
}
