package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// =============================================================================
// DATE - Civil calendar date (no time, no zone)
// =============================================================================

type Date struct {
	t time.Time
}

// NewDate normalizes overflowing values the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the clock part of t.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses an ISO YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	return ParseDateField("date", s)
}

// ParseDateField parses an ISO date and reports failures against field.
func ParseDateField(field, s string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return Date{}, Invalid(field, "must be YYYY-MM-DD, got %q", s)
	}
	return Date{t: t}, nil
}

func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) IsZero() bool          { return d.t.IsZero() }
func (d Date) Time() time.Time       { return d.t }
func (d Date) String() string        { return d.t.Format(DateLayout) }

func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) AddDays(n int) Date       { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) Before(o Date) bool       { return d.t.Before(o.t) }
func (d Date) After(o Date) bool        { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool        { return d.t.Equal(o.t) }
func (d Date) YearMonth() YearMonth     { return YearMonth{Year: d.Year(), Month: d.Month()} }
func (d Date) At(c ClockTime) time.Time { return d.t.Add(c.Duration()) }

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// CLOCK TIME - Local time of day, minute precision
// =============================================================================

// ClockTime counts minutes since midnight.
type ClockTime int

// NewClock builds a clock time; callers are expected to pass valid values.
func NewClock(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ParseClock parses HH:MM (24h).
func ParseClock(s string) (ClockTime, error) {
	return ParseClockField("time", s)
}

// ParseClockField parses HH:MM and reports failures against field.
func ParseClockField(field, s string) (ClockTime, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil || len(s) != len(ClockLayout) {
		return 0, Invalid(field, "must be HH:MM, got %q", s)
	}
	return NewClock(t.Hour(), t.Minute()), nil
}

func (c ClockTime) Hour() int               { return int(c) / 60 }
func (c ClockTime) Minute() int             { return int(c) % 60 }
func (c ClockTime) Duration() time.Duration { return time.Duration(c) * time.Minute }
func (c ClockTime) String() string          { return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute()) }

func (c ClockTime) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ClockTime) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// =============================================================================
// INTERVAL - Absolute span of work, possibly crossing midnight
// =============================================================================

type Interval struct {
	Start time.Time
	End   time.Time
}

// ResolveInterval anchors start/end clock times on date. An end before the
// start crosses midnight; 00:00-00:00 is a full day. Any other zero-length
// span is invalid.
func ResolveInterval(date Date, start, end ClockTime) (Interval, error) {
	iv := Interval{Start: date.At(start), End: date.At(end)}
	switch {
	case end < start:
		iv.End = iv.End.Add(24 * time.Hour)
	case end == start && end == 0:
		iv.End = iv.End.Add(24 * time.Hour)
	case end == start:
		return Interval{}, Invalid("end_time", "must differ from start_time")
	}
	return iv, nil
}

func (i Interval) Duration() time.Duration { return i.End.Sub(i.Start) }

// Overlaps treats intervals as half-open, so 08:00-16:00 and 16:00-23:00 touch
// without overlapping.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Intersect returns the length of the common part.
func (i Interval) Intersect(o Interval) time.Duration {
	start, end := i.Start, i.End
	if o.Start.After(start) {
		start = o.Start
	}
	if o.End.Before(end) {
		end = o.End
	}
	if !start.Before(end) {
		return 0
	}
	return end.Sub(start)
}

// SplitByDay cuts the interval at every midnight it crosses.
func (i Interval) SplitByDay() []Interval {
	var out []Interval
	cur := i.Start
	for cur.Before(i.End) {
		next := DateOf(cur).AddDays(1).Time()
		if next.After(i.End) {
			next = i.End
		}
		out = append(out, Interval{Start: cur, End: next})
		cur = next
	}
	return out
}

// =============================================================================
// HOLIDAY CALENDAR - Public holidays supplied by an external source
// =============================================================================

// Holiday is a public holiday and the hours it stands for.
type Holiday struct {
	Date  Date
	Name  string
	Hours decimal.Decimal // expected hours of a working day on this date
}

// HolidayCalendar provides holiday lookup functionality.
type HolidayCalendar interface {
	// Holidays returns all holidays of the year in date order.
	Holidays(year int) []Holiday

	// Lookup reports whether d is a holiday.
	Lookup(d Date) (Holiday, bool)
}

// NoHolidays is a calendar without holidays.
type NoHolidays struct{}

func (NoHolidays) Holidays(int) []Holiday      { return nil }
func (NoHolidays) Lookup(Date) (Holiday, bool) { return Holiday{}, false }
