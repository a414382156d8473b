/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

NUMBERS:
  Hours are decimals internally and rounded to two places on the way out.
  Dates are YYYY-MM-DD, clock times HH:MM.

VALIDATION:
  Validation is done by the services, not in DTOs. DTOs are pure data
  carriers; pointer fields distinguish "absent" from "zero" in patches.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/worktrack/balance"
	"github.com/warp/worktrack/calendar"
	"github.com/warp/worktrack/core"
	"github.com/warp/worktrack/schedule"
)

// =============================================================================
// SHIFTS
// =============================================================================

type ShiftDTO struct {
	ID             int64        `json:"id"`
	EmployeeID     int64        `json:"employee_id"`
	Date           string       `json:"date"`
	ShiftTypeID    int64        `json:"shift_type_id"`
	StartTime      string       `json:"start_time"`
	EndTime        string       `json:"end_time"`
	Note           string       `json:"note"`
	Hidden         bool         `json:"hidden"`
	Transferred    bool         `json:"transferred"`
	IsChanged      bool         `json:"is_changed"`
	ChangeReasonID *int64       `json:"change_reason_id,omitempty"`
	ManagerNote    string       `json:"manager_note,omitempty"`
	Exchange       *ExchangeDTO `json:"exchange,omitempty"`
	ApprovalStatus string       `json:"approval_status"`
	Version        int          `json:"version"`
}

// ExchangeDTO is the exchange variant flattened; fields depend on status.
type ExchangeDTO struct {
	Status string `json:"status"`
	Target int64  `json:"target_employee_id,omitempty"`
	From   int64  `json:"from_employee_id,omitempty"`
	Reason int64  `json:"reason_id,omitempty"`
	Actor  int64  `json:"actor_id,omitempty"`
	At     string `json:"at,omitempty"`
}

func toShiftDTO(s core.PlannedShift) ShiftDTO {
	dto := ShiftDTO{
		ID:             int64(s.ID),
		EmployeeID:     int64(s.EmployeeID),
		Date:           s.Date.String(),
		ShiftTypeID:    int64(s.ShiftTypeID),
		StartTime:      s.Start.String(),
		EndTime:        s.End.String(),
		Note:           s.Note,
		Hidden:         s.Hidden,
		Transferred:    s.Transferred,
		IsChanged:      s.IsChanged,
		ManagerNote:    s.ManagerNote,
		ApprovalStatus: string(s.ExchangeStatus()),
		Version:        s.Version,
	}
	if s.ChangeReasonID != nil {
		id := int64(*s.ChangeReasonID)
		dto.ChangeReasonID = &id
	}
	if s.ExchangeStatus() != core.ExchangeNone {
		rec := core.EncodeExchange(s.Exchange)
		dto.Exchange = &ExchangeDTO{
			Status: string(rec.Status),
			Target: int64(rec.Target),
			From:   int64(rec.From),
			Reason: int64(rec.Reason),
			Actor:  int64(rec.Actor),
		}
		if !rec.At.IsZero() {
			dto.Exchange.At = rec.At.Format(time.RFC3339)
		}
	}
	return dto
}

func toShiftDTOs(shifts []core.PlannedShift) []ShiftDTO {
	dtos := make([]ShiftDTO, len(shifts))
	for i, s := range shifts {
		dtos[i] = toShiftDTO(s)
	}
	return dtos
}

type CreateShiftRequest struct {
	EmployeeID  int64   `json:"employee_id"`
	Date        string  `json:"date"`
	ShiftTypeID int64   `json:"shift_type_id"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	Note        string  `json:"note"`
}

func (r CreateShiftRequest) toInput() schedule.NewShift {
	return schedule.NewShift{
		EmployeeID:  core.EmployeeID(r.EmployeeID),
		Date:        r.Date,
		ShiftTypeID: core.ShiftTypeID(r.ShiftTypeID),
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		Note:        r.Note,
	}
}

type UpdateShiftRequest struct {
	EmployeeID  *int64  `json:"employee_id"`
	Date        *string `json:"date"`
	ShiftTypeID *int64  `json:"shift_type_id"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	Note        *string `json:"note"`
}

func (r UpdateShiftRequest) toPatch() schedule.ShiftPatch {
	p := schedule.ShiftPatch{
		Date:      r.Date,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Note:      r.Note,
	}
	if r.EmployeeID != nil {
		id := core.EmployeeID(*r.EmployeeID)
		p.EmployeeID = &id
	}
	if r.ShiftTypeID != nil {
		id := core.ShiftTypeID(*r.ShiftTypeID)
		p.ShiftTypeID = &id
	}
	return p
}

type ExchangeRequest struct {
	TargetEmployeeID int64 `json:"target_employee_id"`
	ReasonID         int64 `json:"reason_id"`
}

type DecisionRequest struct {
	Status      string `json:"status"`
	ManagerNote string `json:"manager_note"`
}

type AuditEntryDTO struct {
	ID         string         `json:"id"`
	At         string         `json:"at"`
	ActorID    int64          `json:"actor_id"`
	Action     string         `json:"action"`
	ShiftID    int64          `json:"shift_id,omitempty"`
	EmployeeID int64          `json:"employee_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

func toAuditDTOs(entries []core.AuditEntry) []AuditEntryDTO {
	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = AuditEntryDTO{
			ID:         e.ID,
			At:         e.At.Format(time.RFC3339Nano),
			ActorID:    int64(e.ActorID),
			Action:     string(e.Action),
			ShiftID:    int64(e.ShiftID),
			EmployeeID: int64(e.EmployeeID),
			Payload:    e.Payload,
		}
	}
	return dtos
}

// =============================================================================
// PLAN COPY
// =============================================================================

type CopyPlanRequest struct {
	SourceYear  int    `json:"source_year"`
	SourceMonth int    `json:"source_month"`
	TargetYear  int    `json:"target_year"`
	TargetMonth int    `json:"target_month"`
	EmployeeID  *int64 `json:"employee_id"`
}

type CopyItemDTO struct {
	SourceShiftID int64  `json:"source_shift_id"`
	EmployeeID    int64  `json:"employee_id"`
	Date          string `json:"date,omitempty"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	NewShiftID    int64  `json:"new_shift_id,omitempty"`
	ConflictingID int64  `json:"conflicting_shift_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

type CopyResultDTO struct {
	Created    int           `json:"created"`
	Skipped    int           `json:"skipped"`
	Overlapped int           `json:"overlapped"`
	Failed     int           `json:"failed"`
	Items      []CopyItemDTO `json:"items"`
}

func toCopyResultDTO(r schedule.CopyResult) CopyResultDTO {
	dto := CopyResultDTO{
		Created:    r.Created,
		Skipped:    r.Skipped,
		Overlapped: r.Overlapped,
		Failed:     r.Failed,
		Items:      make([]CopyItemDTO, len(r.Items)),
	}
	for i, it := range r.Items {
		item := CopyItemDTO{
			SourceShiftID: int64(it.SourceShiftID),
			EmployeeID:    int64(it.EmployeeID),
			Status:        string(it.Status),
			Reason:        it.Reason,
			NewShiftID:    int64(it.NewShiftID),
			ConflictingID: it.ConflictingID,
			Error:         it.Error,
		}
		if !it.Date.IsZero() {
			item.Date = it.Date.String()
		}
		dto.Items[i] = item
	}
	return dto
}

// =============================================================================
// ATTENDANCE
// =============================================================================

type AttendanceDTO struct {
	ID             int64  `json:"id"`
	EmployeeID     int64  `json:"employee_id"`
	Date           string `json:"date"`
	ShiftTypeID    *int64 `json:"shift_type_id,omitempty"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	PlannedShiftID *int64 `json:"planned_shift_id,omitempty"`
	ChangeReasonID *int64 `json:"change_reason_id,omitempty"`
	Note           string `json:"note,omitempty"`
}

func toAttendanceDTOs(records []core.Attendance) []AttendanceDTO {
	dtos := make([]AttendanceDTO, len(records))
	for i, a := range records {
		dto := AttendanceDTO{
			ID:         int64(a.ID),
			EmployeeID: int64(a.EmployeeID),
			Date:       a.Date.String(),
			StartTime:  a.Start.String(),
			EndTime:    a.End.String(),
			Note:       a.Note,
		}
		if a.ShiftTypeID != nil {
			v := int64(*a.ShiftTypeID)
			dto.ShiftTypeID = &v
		}
		if a.PlannedShiftID != nil {
			v := int64(*a.PlannedShiftID)
			dto.PlannedShiftID = &v
		}
		if a.ChangeReasonID != nil {
			v := int64(*a.ChangeReasonID)
			dto.ChangeReasonID = &v
		}
		dtos[i] = dto
	}
	return dtos
}

type RecordAttendanceRequest struct {
	EmployeeID     int64  `json:"employee_id"`
	Date           string `json:"date"`
	ShiftTypeID    *int64 `json:"shift_type_id"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	PlannedShiftID *int64 `json:"planned_shift_id"`
	ChangeReasonID *int64 `json:"change_reason_id"`
	Note           string `json:"note"`
}

func (r RecordAttendanceRequest) toInput() schedule.NewAttendance {
	in := schedule.NewAttendance{
		EmployeeID: core.EmployeeID(r.EmployeeID),
		Date:       r.Date,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		Note:       r.Note,
	}
	if r.ShiftTypeID != nil {
		v := core.ShiftTypeID(*r.ShiftTypeID)
		in.ShiftTypeID = &v
	}
	if r.PlannedShiftID != nil {
		v := core.ShiftID(*r.PlannedShiftID)
		in.PlannedShiftID = &v
	}
	if r.ChangeReasonID != nil {
		v := core.ReasonID(*r.ChangeReasonID)
		in.ChangeReasonID = &v
	}
	return in
}

// =============================================================================
// SUMMARIES AND REPORTS
// =============================================================================

type HoursDTO struct {
	Worked   float64 `json:"worked"`
	Day      float64 `json:"day"`
	Night    float64 `json:"night"`
	Saturday float64 `json:"saturday"`
	Sunday   float64 `json:"sunday"`
	Weekend  float64 `json:"weekend"`
	Holiday  float64 `json:"holiday"`
	Sick     float64 `json:"sick"`
	Vacation float64 `json:"vacation"`
}

func toHoursDTO(h balance.Hours) HoursDTO {
	return HoursDTO{
		Worked:   hours(h.Worked),
		Day:      hours(h.Day()),
		Night:    hours(h.Night),
		Saturday: hours(h.Saturday),
		Sunday:   hours(h.Sunday),
		Weekend:  hours(h.Weekend()),
		Holiday:  hours(h.Holiday),
		Sick:     hours(h.Sick),
		Vacation: hours(h.Vacation),
	}
}

type SummaryDTO struct {
	EmployeeID    int64    `json:"employee_id"`
	Year          int      `json:"year"`
	Month         int      `json:"month"`
	Fund          float64  `json:"fund"`
	Worked        float64  `json:"worked"`
	HolidayCredit float64  `json:"holiday_credit"`
	Diff          float64  `json:"diff"`
	PrevBalance   float64  `json:"prev_balance"`
	Total         float64  `json:"total"`
	Hours         HoursDTO `json:"hours"`
}

func toSummaryDTO(s balance.Summary) SummaryDTO {
	return SummaryDTO{
		EmployeeID:    int64(s.EmployeeID),
		Year:          s.Month.Year,
		Month:         int(s.Month.Month),
		Fund:          hours(s.Fund),
		Worked:        hours(s.Worked),
		HolidayCredit: hours(s.HolidayCredit),
		Diff:          hours(s.Diff),
		PrevBalance:   hours(s.PrevBalance),
		Total:         hours(s.Total),
		Hours:         toHoursDTO(s.Hours),
	}
}

type PlannedSummaryDTO struct {
	EmployeeID int64    `json:"employee_id"`
	Year       int      `json:"year"`
	Month      int      `json:"month"`
	Fund       float64  `json:"fund"`
	Planned    float64  `json:"planned"`
	Diff       float64  `json:"diff"`
	Shifts     int      `json:"shifts"`
	Hours      HoursDTO `json:"hours"`
}

func toPlannedSummaryDTO(s balance.PlannedSummary) PlannedSummaryDTO {
	return PlannedSummaryDTO{
		EmployeeID: int64(s.EmployeeID),
		Year:       s.Month.Year,
		Month:      int(s.Month.Month),
		Fund:       hours(s.Fund),
		Planned:    hours(s.Planned),
		Diff:       hours(s.Diff),
		Shifts:     s.Shifts,
		Hours:      toHoursDTO(s.Hours),
	}
}

type MonthStatsDTO struct {
	Saturday float64 `json:"saturday"`
	Sunday   float64 `json:"sunday"`
	Holiday  float64 `json:"holiday"`
	Night    float64 `json:"night"`
	Day      float64 `json:"day"`
	Sick     float64 `json:"sick"`
}

func toMonthStatsDTO(m balance.MonthStats) MonthStatsDTO {
	return MonthStatsDTO{
		Saturday: hours(m.Saturday),
		Sunday:   hours(m.Sunday),
		Holiday:  hours(m.Holiday),
		Night:    hours(m.Night),
		Day:      hours(m.Day),
		Sick:     hours(m.Sick),
	}
}

type YearlyRowDTO struct {
	EmployeeID int64           `json:"employee_id"`
	Name       string          `json:"name"`
	Months     []MonthStatsDTO `json:"months"`
	Total      MonthStatsDTO   `json:"total"`
}

type YearlyReportDTO struct {
	Year     int            `json:"year"`
	Rows     []YearlyRowDTO `json:"rows"`
	Holidays []HolidayDTO   `json:"holidays"`
}

type HolidayDTO struct {
	Date  string  `json:"date"`
	Name  string  `json:"name"`
	Hours float64 `json:"hours"`
}

func toYearlyReportDTO(r balance.YearlyReport) YearlyReportDTO {
	dto := YearlyReportDTO{
		Year:     r.Year,
		Rows:     make([]YearlyRowDTO, len(r.Rows)),
		Holidays: make([]HolidayDTO, len(r.Holidays)),
	}
	for i, row := range r.Rows {
		out := YearlyRowDTO{
			EmployeeID: int64(row.Employee.ID),
			Name:       row.Employee.Name(),
			Months:     make([]MonthStatsDTO, len(row.Months)),
			Total:      toMonthStatsDTO(row.Total),
		}
		for m, stats := range row.Months {
			out.Months[m] = toMonthStatsDTO(stats)
		}
		dto.Rows[i] = out
	}
	for i, h := range r.Holidays {
		dto.Holidays[i] = HolidayDTO{Date: h.Date.String(), Name: h.Name, Hours: hours(h.Hours)}
	}
	return dto
}

// =============================================================================
// CALENDAR AND CATALOG
// =============================================================================

type CalendarDTO struct {
	Year        int            `json:"year"`
	Month       int            `json:"month"`
	WorkingDays int            `json:"working_days"`
	Fund        float64        `json:"fund"`
	Days        []calendar.Day `json:"days"`
}

type EmployeeDTO struct {
	ID                  int64   `json:"id"`
	PersonalNumber      string  `json:"personal_number,omitempty"`
	Name                string  `json:"name"`
	Role                string  `json:"role"`
	InitialHoursBalance float64 `json:"initial_hours_balance"`
	Active              bool    `json:"active"`
}

type ShiftTypeDTO struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	ShortName       string   `json:"short_name"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time"`
	Duration        *float64 `json:"duration,omitempty"`
	VariableTime    bool     `json:"variable_time"`
	Kind            string   `json:"kind"`
	SplitAtMidnight bool     `json:"split_at_midnight"`
}

type ChangeReasonDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error              string `json:"error"`
	Code               string `json:"code,omitempty"`
	Field              string `json:"field,omitempty"`
	ConflictingShiftID int64  `json:"conflicting_shift_id,omitempty"`
	Retryable          bool   `json:"retryable,omitempty"`
	Details            any    `json:"details,omitempty"`
}

func hours(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
