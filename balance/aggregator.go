/*
aggregator.go - Monthly worked-hours balances

PURPOSE:
  Computes, per employee and month, what the employee owed (fund), what
  they worked, the difference and the running total carried from month to
  month. Also produces the planned counterpart and the yearly matrix used
  for payroll exports.

CALCULATION (per month M):
  1. fund     = working days x StandardHours, then the holiday policy
  2. worked   = sum of attendance durations dated in M
  3. night / weekend / holiday categories (hours.go)
  4. prev     = Ledger.Opening(M), chained from the first attendance month
  5. diff     = worked + holiday_credit - fund
     total    = prev + diff

  Months before the first attendance month (and every month of an
  employee with no attendance) report the fund but a zero diff, so the
  initial balance carries through them unchanged.

CACHE FINGERPRINT:
  Cached totals are keyed by a hash of the rules, the employee's initial
  balance and the shift type catalog. Changing any of them through a seed,
  a scenario or a restart with new settings makes the old totals unusable.

CONSISTENCY:
  Every read happens inside one store transaction, so the summary never
  mixes two states of the plan. Opening may persist missing month totals
  in that same transaction.

UNKNOWN EMPLOYEE:
  Yields zero worked hours, a zero diff and a zero opening balance with
  the correct fund rather than an error.

SEE ALSO:
  - core/ledger.go: month chaining
  - calendar/calendar.go: working days and holidays
*/
package balance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/worktrack/calendar"
	"github.com/warp/worktrack/core"
)

// Summary is the monthly balance of one employee.
type Summary struct {
	EmployeeID    core.EmployeeID
	Month         core.YearMonth
	Fund          decimal.Decimal
	Worked        decimal.Decimal
	HolidayCredit decimal.Decimal
	Diff          decimal.Decimal
	PrevBalance   decimal.Decimal
	Total         decimal.Decimal
	Hours         Hours
}

// PlannedSummary is Summary computed from the plan instead of attendance.
type PlannedSummary struct {
	EmployeeID core.EmployeeID
	Month      core.YearMonth
	Fund       decimal.Decimal
	Planned    decimal.Decimal
	Diff       decimal.Decimal
	Shifts     int
	Hours      Hours
}

type Aggregator struct {
	Store    core.TxStore
	Catalog  core.Catalog
	Calendar *calendar.Generator
	Rules    Rules
	Log      logrus.FieldLogger
}

func NewAggregator(store core.TxStore, catalog core.Catalog, cal *calendar.Generator, rules Rules, log logrus.FieldLogger) *Aggregator {
	if cal == nil {
		cal = calendar.NewGenerator(nil)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Aggregator{Store: store, Catalog: catalog, Calendar: cal, Rules: rules.withDefaults(), Log: log}
}

func (a *Aggregator) classifier() classifier {
	return classifier{rules: a.Rules, holidays: a.Calendar.Holidays}
}

// =============================================================================
// FUND
// =============================================================================

// Fund is the base fund of a month: working days times StandardHours.
func (a *Aggregator) Fund(year, month int) (decimal.Decimal, error) {
	days, err := a.Calendar.WorkingDays(year, month)
	if err != nil {
		return decimal.Zero, err
	}
	return a.Rules.StandardHours.Mul(decimal.NewFromInt(int64(days))), nil
}

// employeeFund applies the holiday policy to the base fund. plans and att
// are the employee's month records.
func (a *Aggregator) employeeFund(ym core.YearMonth, plans []core.PlannedShift, att []core.Attendance, types map[core.ShiftTypeID]core.ShiftType) (fund, credit decimal.Decimal) {
	fund, _ = a.Fund(ym.Year, int(ym.Month))
	credit = decimal.Zero

	for _, h := range a.Calendar.WeekdayHolidays(ym) {
		hours := h.Hours
		if hours.IsZero() {
			hours = a.Rules.StandardHours
		}
		switch a.Rules.HolidayPolicy {
		case HolidayReduceUnlessScheduled:
			if scheduledToWork(h.Date, plans, types) {
				fund = fund.Add(hours)
			}
		case HolidayCredit:
			if !hasAttendance(h.Date, att) {
				credit = credit.Add(hours)
			}
		}
	}
	return fund, credit
}

func scheduledToWork(d core.Date, plans []core.PlannedShift, types map[core.ShiftTypeID]core.ShiftType) bool {
	for _, p := range plans {
		if !p.Date.Equal(d) || p.Hidden {
			continue
		}
		if t, ok := types[p.ShiftTypeID]; !ok || t.IsWorking() {
			return true
		}
	}
	return false
}

func hasAttendance(d core.Date, att []core.Attendance) bool {
	for _, x := range att {
		if x.Date.Equal(d) {
			return true
		}
	}
	return false
}

// =============================================================================
// MONTHLY SUMMARY
// =============================================================================

// MonthlySummary returns the balance of employee for year/month.
func (a *Aggregator) MonthlySummary(ctx context.Context, actor core.Actor, employee core.EmployeeID, year, month int) (Summary, error) {
	if err := actor.Authorize(core.CapView, employee); err != nil {
		return Summary{}, err
	}
	ym, err := core.NewYearMonth(year, month)
	if err != nil {
		return Summary{}, err
	}

	initial := decimal.Zero
	emp, err := a.Catalog.Employee(ctx, employee)
	switch {
	case err == nil:
		initial = emp.InitialHoursBalance
	case core.IsNotFound(err):
		a.Log.WithField("employee_id", employee).Debug("summary for unknown employee")
	default:
		return Summary{}, err
	}
	types, err := a.shiftTypes(ctx)
	if err != nil {
		return Summary{}, err
	}

	var result Summary
	err = a.Store.WithTx(ctx, func(tx core.Store) error {
		// 1. This month
		s, err := a.month(ctx, tx, employee, ym, types)
		if err != nil {
			return err
		}

		// 2. Opening balance from the ledger
		seed := core.Seed{Initial: initial, Fingerprint: a.fingerprint(initial, types)}
		first, ok, err := tx.FirstAttendanceDate(ctx, employee)
		if err != nil {
			return fmt.Errorf("first attendance: %w", err)
		}
		if ok {
			seed.Start, seed.HasStart = first.YearMonth(), true
		}
		if !seed.HasStart || ym.Before(seed.Start) {
			s.HolidayCredit, s.Diff = decimal.Zero, decimal.Zero
		}
		prev, err := core.NewLedger(tx).Opening(ctx, employee, ym, seed, func(ctx context.Context, m core.YearMonth) (decimal.Decimal, error) {
			past, err := a.month(ctx, tx, employee, m, types)
			if err != nil {
				return decimal.Zero, err
			}
			return past.Diff, nil
		})
		if err != nil {
			return err
		}

		// 3. Carry
		s.PrevBalance = prev
		s.Total = prev.Add(s.Diff)
		result = s
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	a.Log.WithFields(logrus.Fields{
		"employee_id": employee,
		"month":       ym.String(),
		"total":       result.Total.StringFixed(2),
	}).Debug("monthly summary")
	return result, nil
}

// month computes everything but the opening balance.
func (a *Aggregator) month(ctx context.Context, tx core.Store, employee core.EmployeeID, ym core.YearMonth, types map[core.ShiftTypeID]core.ShiftType) (Summary, error) {
	att, err := tx.ListAttendance(ctx, core.AttendanceFilter{EmployeeID: &employee, From: ym.First(), To: ym.Last()})
	if err != nil {
		return Summary{}, fmt.Errorf("list attendance: %w", err)
	}
	plans, err := tx.ListShifts(ctx, core.ShiftFilter{EmployeeID: &employee, From: ym.First(), To: ym.Last()})
	if err != nil {
		return Summary{}, fmt.Errorf("list plan: %w", err)
	}

	c := a.classifier()
	var h Hours
	for _, x := range att {
		if err := c.add(&h, attendanceRecord(x, types)); err != nil {
			return Summary{}, err
		}
	}
	fund, credit := a.employeeFund(ym, plans, att, types)

	return Summary{
		EmployeeID:    employee,
		Month:         ym,
		Fund:          fund,
		Worked:        h.Worked,
		HolidayCredit: credit,
		Diff:          h.Worked.Add(credit).Sub(fund),
		Hours:         h,
	}, nil
}

// PlannedSummary computes the month's categories from non-hidden plans.
func (a *Aggregator) PlannedSummary(ctx context.Context, actor core.Actor, employee core.EmployeeID, year, month int) (PlannedSummary, error) {
	if err := actor.Authorize(core.CapView, employee); err != nil {
		return PlannedSummary{}, err
	}
	ym, err := core.NewYearMonth(year, month)
	if err != nil {
		return PlannedSummary{}, err
	}
	types, err := a.shiftTypes(ctx)
	if err != nil {
		return PlannedSummary{}, err
	}

	plans, err := a.Store.ListShifts(ctx, core.ShiftFilter{EmployeeID: &employee, From: ym.First(), To: ym.Last()})
	if err != nil {
		return PlannedSummary{}, fmt.Errorf("list plan: %w", err)
	}

	c := a.classifier()
	var h Hours
	for _, p := range plans {
		if err := c.add(&h, shiftRecord(p, types)); err != nil {
			return PlannedSummary{}, err
		}
	}
	fund, _ := a.employeeFund(ym, plans, nil, types)

	return PlannedSummary{
		EmployeeID: employee,
		Month:      ym,
		Fund:       fund,
		Planned:    h.Worked,
		Diff:       h.Worked.Sub(fund),
		Shifts:     len(plans),
		Hours:      h,
	}, nil
}

// =============================================================================
// YEARLY REPORT
// =============================================================================

// MonthStats is one cell of the yearly matrix.
type MonthStats struct {
	Saturday decimal.Decimal
	Sunday   decimal.Decimal
	Holiday  decimal.Decimal
	Night    decimal.Decimal
	Day      decimal.Decimal
	Sick     decimal.Decimal
}

func statsOf(h Hours) MonthStats {
	return MonthStats{
		Saturday: h.Saturday,
		Sunday:   h.Sunday,
		Holiday:  h.Holiday,
		Night:    h.Night,
		Day:      h.Day(),
		Sick:     h.Sick,
	}
}

type YearlyRow struct {
	Employee core.Employee
	Months   [12]MonthStats
	Total    MonthStats
}

type YearlyReport struct {
	Year int
	Rows []YearlyRow
	// Holidays of Year-1 and Year, in date order.
	Holidays []core.Holiday
}

// YearlyReport builds the per-employee, per-month category matrix. Managers
// only.
func (a *Aggregator) YearlyReport(ctx context.Context, actor core.Actor, year int) (YearlyReport, error) {
	if !actor.IsManager() {
		return YearlyReport{}, &core.PermissionError{Actor: actor, Capability: core.CapView}
	}
	if _, err := core.NewYearMonth(year, 1); err != nil {
		return YearlyReport{}, core.Invalid("year", "out of range")
	}

	employees, err := a.Catalog.Employees(ctx)
	if err != nil {
		return YearlyReport{}, err
	}
	sort.Slice(employees, func(i, j int) bool { return employees[i].ID < employees[j].ID })
	types, err := a.shiftTypes(ctx)
	if err != nil {
		return YearlyReport{}, err
	}

	from := core.NewDate(year, 1, 1)
	to := core.NewDate(year, 12, 31)
	att, err := a.Store.ListAttendance(ctx, core.AttendanceFilter{From: from, To: to})
	if err != nil {
		return YearlyReport{}, fmt.Errorf("list attendance: %w", err)
	}

	perEmployee := make(map[core.EmployeeID]*[12]Hours)
	c := a.classifier()
	for _, x := range att {
		cells, ok := perEmployee[x.EmployeeID]
		if !ok {
			cells = &[12]Hours{}
			perEmployee[x.EmployeeID] = cells
		}
		if err := c.add(&cells[x.Date.Month()-1], attendanceRecord(x, types)); err != nil {
			return YearlyReport{}, err
		}
	}

	report := YearlyReport{Year: year}
	for _, e := range employees {
		row := YearlyRow{Employee: e}
		var total Hours
		if cells, ok := perEmployee[e.ID]; ok {
			for i, h := range cells {
				row.Months[i] = statsOf(h)
				total = total.Add(h)
			}
		}
		row.Total = statsOf(total)
		report.Rows = append(report.Rows, row)
	}
	report.Holidays = append(report.Holidays, a.Calendar.Holidays.Holidays(year-1)...)
	report.Holidays = append(report.Holidays, a.Calendar.Holidays.Holidays(year)...)
	return report, nil
}

// fingerprint hashes every input of a month diff that is not stored with
// the plan itself.
func (a *Aggregator) fingerprint(initial decimal.Decimal, types map[core.ShiftTypeID]core.ShiftType) string {
	h := sha256.New()
	r := a.Rules
	fmt.Fprintf(h, "rules|%s|%d|%d|%s|%t\n", r.StandardHours.String(), r.NightStart, r.NightEnd, r.HolidayPolicy, r.SplitAtMidnight)
	fmt.Fprintf(h, "initial|%s\n", initial.String())

	ids := make([]core.ShiftTypeID, 0, len(types))
	for id := range types {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		t := types[id]
		duration := "-"
		if t.Duration != nil {
			duration = t.Duration.String()
		}
		fmt.Fprintf(h, "type|%d|%d|%d|%s|%t|%s|%t\n", t.ID, t.Start, t.End, duration, t.VariableTime, t.Kind, t.SplitAtMidnight)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func (a *Aggregator) shiftTypes(ctx context.Context) (map[core.ShiftTypeID]core.ShiftType, error) {
	list, err := a.Catalog.ShiftTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load shift types: %w", err)
	}
	out := make(map[core.ShiftTypeID]core.ShiftType, len(list))
	for _, t := range list {
		out[t.ID] = t
	}
	return out, nil
}
