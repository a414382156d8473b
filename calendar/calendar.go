/*
calendar.go - Month calendar generation

PURPOSE:
  Produces the day-by-day view of a month that the planner and the balance
  aggregator build on: weekday, weekend flag and public holiday. Holidays
  come from a core.HolidayCalendar so the source (computed, file, merged)
  can be swapped without touching callers.

PURITY:
  Generator has no side effects and no clock dependency. The same inputs
  always yield the same days.

SEE ALSO:
  - holidays.go: Slovak public holidays, static lists, merging
  - balance/aggregator.go: uses WorkingDays for the monthly fund
*/
package calendar

import (
	"github.com/warp/worktrack/core"
)

// Day is one calendar day of a month.
type Day struct {
	Date        core.Date `json:"date"`
	Weekday     string    `json:"weekday"`
	IsWeekend   bool      `json:"is_weekend"`
	IsHoliday   bool      `json:"is_holiday"`
	HolidayName string    `json:"holiday_name,omitempty"`
}

// IsWorkingDay is a weekday that is not a public holiday.
func (d Day) IsWorkingDay() bool {
	return !d.IsWeekend && !d.IsHoliday
}

// Generator builds month calendars against a holiday source.
type Generator struct {
	Holidays core.HolidayCalendar
}

func NewGenerator(holidays core.HolidayCalendar) *Generator {
	if holidays == nil {
		holidays = core.NoHolidays{}
	}
	return &Generator{Holidays: holidays}
}

// Month returns every day of the month in date order. A month outside
// 1-12 fails with a validation error on field "month".
func (g *Generator) Month(year, month int) ([]Day, error) {
	ym, err := core.NewYearMonth(year, month)
	if err != nil {
		return nil, err
	}
	return g.Days(ym), nil
}

// Days is Month for an already validated YearMonth.
func (g *Generator) Days(ym core.YearMonth) []Day {
	days := make([]Day, 0, ym.Days())
	for d := ym.First(); ym.Contains(d); d = d.AddDays(1) {
		day := Day{
			Date:      d,
			Weekday:   d.Weekday().String(),
			IsWeekend: d.IsWeekend(),
		}
		if h, ok := g.Holidays.Lookup(d); ok {
			day.IsHoliday = true
			day.HolidayName = h.Name
		}
		days = append(days, day)
	}
	return days
}

// WorkingDays counts weekdays of the month that are not holidays.
func (g *Generator) WorkingDays(year, month int) (int, error) {
	days, err := g.Month(year, month)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range days {
		if d.IsWorkingDay() {
			n++
		}
	}
	return n, nil
}

// WeekdayHolidays returns the holidays of the month that fall on a weekday.
func (g *Generator) WeekdayHolidays(ym core.YearMonth) []core.Holiday {
	var out []core.Holiday
	for _, h := range g.Holidays.Holidays(ym.Year) {
		if ym.Contains(h.Date) && !h.Date.IsWeekend() {
			out = append(out, h)
		}
	}
	return out
}
