/*
errors.go - Error taxonomy for the shift engine

PURPOSE:
  All error kinds in one place so every package and the HTTP layer agree
  on what a failure means. Structured errors carry the detail a caller
  needs to act on (which field, which conflicting shift) and unwrap to a
  sentinel so callers can branch with errors.Is().

ERROR KINDS:
  ValidationError   Malformed input (date/time syntax, missing field)
  OverlapError      Time-range conflict with an existing shift
  NotFoundError     Unknown id
  PermissionError   Role or ownership check failed
  StateConflict     Invalid exchange transition
  StoreUnavailable  Transient persistence failure (the only retryable kind)

USAGE:
  if errors.Is(err, core.ErrOverlap) {
      var oe *core.OverlapError
      errors.As(err, &oe)
      // oe.ConflictingID names the blocking shift
  }

SEE ALSO:
  - store/resilient: turns timeouts and breaker trips into StoreUnavailable
  - api/handlers.go: maps kinds to HTTP status codes
*/
package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed or incomplete input.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidArgument is the calendar's name for a validation failure.
	ErrInvalidArgument = ErrValidation

	// ErrOverlap is returned when a time interval intersects another
	// non-hidden shift (or attendance) of the same employee on the same date.
	ErrOverlap = errors.New("time range overlaps an existing entry")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied is returned when the caller lacks a capability.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrStateConflict is returned for an exchange transition that is not
	// allowed from the shift's current state.
	ErrStateConflict = errors.New("state conflict")

	// ErrStoreUnavailable is returned when the store cannot serve the
	// operation right now. Callers may retry with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid is shorthand for a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// OverlapError reports the shift (or attendance record) that blocks a write.
type OverlapError struct {
	EmployeeID    EmployeeID
	Date          Date
	ConflictingID int64
	Field         string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("overlap for employee %d on %s with entry %d",
		e.EmployeeID, e.Date, e.ConflictingID)
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }

// NotFoundError identifies the missing entity.
type NotFoundError struct {
	Kind string // "shift", "employee", "shift_type", ...
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound is shorthand for a NotFoundError.
func NotFound(kind string, id int64) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// PermissionError records which capability the actor was missing.
type PermissionError struct {
	Actor      Actor
	Capability Capability
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s %d cannot %s",
		e.Actor.Role, e.Actor.EmployeeID, e.Capability)
}

func (e *PermissionError) Unwrap() error { return ErrPermissionDenied }

// StateConflictError reports an exchange transition rejected by the state machine.
type StateConflictError struct {
	ShiftID ShiftID
	Status  ExchangeStatus
	Op      string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("cannot %s shift %d: exchange status is %s", e.Op, e.ShiftID, e.Status)
}

func (e *StateConflictError) Unwrap() error { return ErrStateConflict }

// StoreUnavailableError wraps the underlying persistence failure.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// Unavailable wraps err as a StoreUnavailableError unless it already is one.
func Unavailable(op string, err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return &StoreUnavailableError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsClientError returns true if the error is due to the caller's input or rights.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrOverlap) ||
		errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrStateConflict)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
