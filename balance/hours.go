/*
hours.go - Turning shift-like records into categorized hours

PURPOSE:
  Attendance and planned shifts are both "a clock interval on a date with a
  shift type". This file reduces such a record to decimal hours and splits
  them into the categories reported per month: night, saturday, sunday,
  holiday, sick and vacation.

DURATION:
  A non-variable shift type with a fixed Duration pays that duration.
  Everything else is the length of the clock interval, where an end before
  the start crosses midnight and 00:00-00:00 is a full day.

NIGHT:
  Apportioned by overlap with the night window. The window is checked for
  every day the interval touches, starting from the day before, so a
  22:00-06:00 shift and a 02:00-05:00 shift are both counted.

WEEKEND / HOLIDAY:
  By default the full duration counts when the record's date is a
  saturday, sunday or holiday. With Rules.SplitAtMidnight each calendar-day
  segment is attributed to its own date instead.

NON-WORKING KINDS:
  Vacation and sick records count as worked time (they cover the fund) but
  never as night, weekend or holiday hours.
*/
package balance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/worktrack/core"
)

// HolidayPolicy decides how weekday holidays interact with the fund.
type HolidayPolicy string

const (
	// HolidayReduceUnlessScheduled removes a weekday holiday from the fund
	// unless the employee has a working plan that day.
	HolidayReduceUnlessScheduled HolidayPolicy = "reduce_unless_scheduled"

	// HolidayReduce always removes weekday holidays from the fund.
	HolidayReduce HolidayPolicy = "reduce"

	// HolidayCredit removes weekday holidays from the fund and credits the
	// holiday's hours when the employee has no attendance that day.
	HolidayCredit HolidayPolicy = "credit"
)

func ParseHolidayPolicy(s string) (HolidayPolicy, error) {
	switch p := HolidayPolicy(s); p {
	case HolidayReduceUnlessScheduled, HolidayReduce, HolidayCredit:
		return p, nil
	case "":
		return HolidayReduceUnlessScheduled, nil
	}
	return "", core.Invalid("holiday_policy", "unknown policy %q", s)
}

// Rules are the tunable parts of the aggregation.
type Rules struct {
	StandardHours   decimal.Decimal // fund per ordinary weekday
	NightStart      core.ClockTime
	NightEnd        core.ClockTime
	HolidayPolicy   HolidayPolicy
	SplitAtMidnight bool
}

func DefaultRules() Rules {
	return Rules{
		StandardHours: core.DefaultStandardWorkHours,
		NightStart:    core.NewClock(22, 0),
		NightEnd:      core.NewClock(6, 0),
		HolidayPolicy: HolidayReduceUnlessScheduled,
	}
}

func (r Rules) withDefaults() Rules {
	d := DefaultRules()
	if r.StandardHours.IsZero() {
		r.StandardHours = d.StandardHours
	}
	if r.NightStart == r.NightEnd {
		r.NightStart, r.NightEnd = d.NightStart, d.NightEnd
	}
	if r.HolidayPolicy == "" {
		r.HolidayPolicy = d.HolidayPolicy
	}
	return r
}

// =============================================================================
// HOURS - Categorized totals
// =============================================================================

// Hours accumulates the categories of a set of records.
type Hours struct {
	Worked   decimal.Decimal
	Night    decimal.Decimal
	Saturday decimal.Decimal
	Sunday   decimal.Decimal
	Holiday  decimal.Decimal
	Sick     decimal.Decimal
	Vacation decimal.Decimal
}

func (h Hours) Weekend() decimal.Decimal { return h.Saturday.Add(h.Sunday) }

// Day is worked time on working shifts outside the night window.
func (h Hours) Day() decimal.Decimal {
	return h.Worked.Sub(h.Night).Sub(h.Sick).Sub(h.Vacation)
}

func (h Hours) Add(o Hours) Hours {
	return Hours{
		Worked:   h.Worked.Add(o.Worked),
		Night:    h.Night.Add(o.Night),
		Saturday: h.Saturday.Add(o.Saturday),
		Sunday:   h.Sunday.Add(o.Sunday),
		Holiday:  h.Holiday.Add(o.Holiday),
		Sick:     h.Sick.Add(o.Sick),
		Vacation: h.Vacation.Add(o.Vacation),
	}
}

// record is the common shape of a shift or an attendance row.
type record struct {
	date  core.Date
	start core.ClockTime
	end   core.ClockTime
	typ   *core.ShiftType
}

func attendanceRecord(a core.Attendance, types map[core.ShiftTypeID]core.ShiftType) record {
	r := record{date: a.Date, start: a.Start, end: a.End}
	if a.ShiftTypeID != nil {
		if t, ok := types[*a.ShiftTypeID]; ok {
			r.typ = &t
		}
	}
	return r
}

func shiftRecord(s core.PlannedShift, types map[core.ShiftTypeID]core.ShiftType) record {
	r := record{date: s.Date, start: s.Start, end: s.End}
	if t, ok := types[s.ShiftTypeID]; ok {
		r.typ = &t
	}
	return r
}

// classifier applies Rules and a holiday source to records.
type classifier struct {
	rules    Rules
	holidays core.HolidayCalendar
}

func (c classifier) add(h *Hours, r record) error {
	iv, err := core.ResolveInterval(r.date, r.start, r.end)
	if err != nil {
		return fmt.Errorf("record on %s: %w", r.date, err)
	}
	dur := core.HoursOf(iv.Duration())
	if r.typ != nil && !r.typ.VariableTime && r.typ.Duration != nil {
		dur = *r.typ.Duration
	}
	h.Worked = h.Worked.Add(dur)

	if r.typ != nil && !r.typ.IsWorking() {
		switch r.typ.Kind {
		case core.ShiftKindSick:
			h.Sick = h.Sick.Add(dur)
		case core.ShiftKindVacation:
			h.Vacation = h.Vacation.Add(dur)
		}
		return nil
	}

	h.Night = h.Night.Add(core.HoursOf(c.nightOverlap(iv)))

	if !c.rules.SplitAtMidnight {
		c.addDay(h, r.date, dur)
		return nil
	}
	for _, seg := range iv.SplitByDay() {
		c.addDay(h, core.DateOf(seg.Start), core.HoursOf(seg.Duration()))
	}
	return nil
}

func (c classifier) addDay(h *Hours, d core.Date, hours decimal.Decimal) {
	switch d.Weekday() {
	case time.Saturday:
		h.Saturday = h.Saturday.Add(hours)
	case time.Sunday:
		h.Sunday = h.Sunday.Add(hours)
	}
	if _, ok := c.holidays.Lookup(d); ok {
		h.Holiday = h.Holiday.Add(hours)
	}
}

// nightOverlap sums the intersection with the night window of every day
// from the day before the interval starts to the day it ends.
func (c classifier) nightOverlap(iv core.Interval) time.Duration {
	var total time.Duration
	last := core.DateOf(iv.End)
	for d := core.DateOf(iv.Start).AddDays(-1); !d.After(last); d = d.AddDays(1) {
		window := core.Interval{Start: d.At(c.rules.NightStart), End: d.At(c.rules.NightEnd)}
		if c.rules.NightEnd <= c.rules.NightStart {
			window.End = d.AddDays(1).At(c.rules.NightEnd)
		}
		total += iv.Intersect(window)
	}
	return total
}
