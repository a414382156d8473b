/*
period.go - Calendar month arithmetic

PURPOSE:
  Monthly summaries, plan copies and the balance ledger are all keyed by
  (year, month). YearMonth keeps that key validated and comparable so
  month chaining can walk forward without date math scattered around.

EXAMPLE:
  ym, err := core.NewYearMonth(2025, 3)
  ym.Prev()   // 2025-02
  ym.Days()   // 31
  ym.Last()   // 2025-03-31
*/
package core

import (
	"fmt"
	"time"
)

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// NewYearMonth validates the month range (1-12) and a sane year.
func NewYearMonth(year, month int) (YearMonth, error) {
	if month < 1 || month > 12 {
		return YearMonth{}, Invalid("month", "must be between 1 and 12, got %d", month)
	}
	if year < 1 || year > 9999 {
		return YearMonth{}, Invalid("year", "out of range: %d", year)
	}
	return YearMonth{Year: year, Month: time.Month(month)}, nil
}

func (ym YearMonth) Prev() YearMonth {
	if ym.Month == time.January {
		return YearMonth{Year: ym.Year - 1, Month: time.December}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month - 1}
}

func (ym YearMonth) Next() YearMonth {
	if ym.Month == time.December {
		return YearMonth{Year: ym.Year + 1, Month: time.January}
	}
	return YearMonth{Year: ym.Year, Month: ym.Month + 1}
}

// Index orders months on a single axis.
func (ym YearMonth) Index() int { return ym.Year*12 + int(ym.Month) - 1 }

func (ym YearMonth) Before(o YearMonth) bool { return ym.Index() < o.Index() }
func (ym YearMonth) After(o YearMonth) bool  { return ym.Index() > o.Index() }

func (ym YearMonth) First() Date { return NewDate(ym.Year, ym.Month, 1) }
func (ym YearMonth) Last() Date  { return ym.Next().First().AddDays(-1) }
func (ym YearMonth) Days() int   { return ym.Last().Day() }

// Contains reports whether d falls in the month.
func (ym YearMonth) Contains(d Date) bool {
	return d.Year() == ym.Year && d.Month() == ym.Month
}

// DayOf returns the given day of this month, or false when the month is
// shorter than day.
func (ym YearMonth) DayOf(day int) (Date, bool) {
	if day < 1 || day > ym.Days() {
		return Date{}, false
	}
	return NewDate(ym.Year, ym.Month, day), true
}

func (ym YearMonth) String() string { return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month)) }
