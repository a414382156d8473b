/*
Package core provides the domain types and contracts of the shift engine.

PURPOSE:
  Everything the engine's services share: identifiers, hour arithmetic,
  civil dates and clock times, roles and capabilities, the planned-shift
  and attendance entities, the store contracts and the balance ledger.
  Services live in schedule/ and balance/; core has no knowledge of how
  they are wired.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: type-safe integer ids
  - Hours: decimal hour quantities (never float64 inside the engine)

DESIGN PRINCIPLES:
  1. Precision: hours use decimal.Decimal so month chaining never drifts
  2. Type Safety: EmployeeID and ShiftID cannot be mixed up
  3. Rounding happens once, at the API boundary (RoundHours)

SEE ALSO:
  - time.go: Date, ClockTime, Interval
  - shift.go: PlannedShift and the exchange state variant
  - ledger.go: month-chained balances
*/
package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID int64
type ShiftID int64
type AttendanceID int64
type ShiftTypeID int64
type ReasonID int64

// =============================================================================
// HOURS
// =============================================================================

// DefaultStandardWorkHours is the fund contributed by one ordinary weekday.
var DefaultStandardWorkHours = decimal.NewFromInt(7)

var secondsPerHour = decimal.NewFromInt(3600)

// HoursOf converts a duration to decimal hours.
func HoursOf(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d / time.Second)).Div(secondsPerHour)
}

// RoundHours rounds to two decimal places for presentation.
func RoundHours(h decimal.Decimal) decimal.Decimal {
	return h.Round(2)
}

// HoursFloat is the value written to JSON responses.
func HoursFloat(h decimal.Decimal) float64 {
	return h.Round(2).InexactFloat64()
}
