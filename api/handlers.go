/*
handlers.go - HTTP API handlers for the shift engine

PURPOSE:
  Exposes the schedule and balance services via REST API. Handles HTTP
  request/response and JSON serialization, and delegates to the services.
  Handlers never check permissions themselves; the services do, with the
  actor taken from the bearer token.

ENDPOINTS:
  Calendar:
    GET    /api/calendar/{year}/{month}           Days, working days, fund

  Shifts:
    GET    /api/shifts                            ?employee_id&year&month&include_hidden
    POST   /api/shifts                            Create
    PUT    /api/shifts/{id}                       Patch
    DELETE /api/shifts/{id}                       Soft delete (hide)
    DELETE /api/shifts/{id}/hard                  Hard delete (admin)
    GET    /api/shifts/{id}/audit                 Audit trail
    POST   /api/shifts/{id}/exchange              Request exchange
    POST   /api/shifts/{id}/exchange/decision     Approve / reject

  Plans:
    POST   /api/plans/copy                        Copy a month

  Attendance:
    GET    /api/attendance                        ?employee_id&year&month
    POST   /api/attendance                        Record
    DELETE /api/attendance/{id}                   Delete

  Summaries:
    GET    /api/summary/{employee}/{year}/{month}          From attendance
    GET    /api/summary/{employee}/{year}/{month}/planned  From the plan
    GET    /api/reports/yearly?year=                       Category matrix

  Catalog:
    GET    /api/employees, /api/shift-types, /api/change-reasons

  Admin:
    POST   /api/admin/missing-attendance          Run the check now
    GET    /api/scenarios                         Demo scenarios
    POST   /api/scenarios/load                    Load a demo scenario

ERROR HANDLING:
  Domain errors map to statuses by kind:
  - 400: ValidationError (with field)
  - 403: PermissionError
  - 404: NotFoundError
  - 409: OverlapError (with conflicting_shift_id), StateConflictError
  - 503: StoreUnavailableError (Retry-After, retryable: true)
  - 500: anything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/warp/worktrack/balance"
	"github.com/warp/worktrack/calendar"
	"github.com/warp/worktrack/core"
	"github.com/warp/worktrack/schedule"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Shifts     *schedule.ShiftService
	Exchanges  *schedule.ExchangeService
	Copier     *schedule.PlanCopier
	Attendance *schedule.AttendanceService
	Missing    *schedule.MissingAttendanceCheck
	Balance    *balance.Aggregator
	Calendar   *calendar.Generator
	Catalog    core.Catalog
	Seeder     CatalogSeeder

	// Ping backs /healthz; nil reports healthy.
	Ping func(ctx context.Context) error
	Log  logrus.FieldLogger
	Now  func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) logger() logrus.FieldLogger {
	if h.Log != nil {
		return h.Log
	}
	return logrus.StandardLogger()
}

// =============================================================================
// HEALTH AND CALENDAR
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		if err := h.Ping(r.Context()); err != nil {
			h.writeDomainError(w, r, core.Unavailable("health check", err))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt(r, "year")
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	month, err := pathInt(r, "month")
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	days, err := h.Calendar.Month(year, month)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	working, err := h.Calendar.WorkingDays(year, month)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	fund, err := h.Balance.Fund(year, month)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CalendarDTO{
		Year:        year,
		Month:       month,
		WorkingDays: working,
		Fund:        hours(fund),
		Days:        days,
	})
}

// =============================================================================
// SHIFT HANDLERS
// =============================================================================

func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	q := schedule.ShiftQuery{}
	var err error
	if q.EmployeeID, err = queryEmployee(r); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if q.Year, q.Month, err = queryMonth(r, h.now()); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if v := r.URL.Query().Get("include_hidden"); v != "" {
		if q.IncludeHidden, err = strconv.ParseBool(v); err != nil {
			h.writeDomainError(w, r, core.Invalid("include_hidden", "must be true or false"))
			return
		}
	}

	shifts, err := h.Shifts.List(r.Context(), mustActor(r), q)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTOs(shifts))
}

func (h *Handler) CreateShift(w http.ResponseWriter, r *http.Request) {
	var req CreateShiftRequest
	if !h.decode(w, r, &req) {
		return
	}

	shift, err := h.Shifts.Create(r.Context(), mustActor(r), req.toInput())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toShiftDTO(shift))
}

func (h *Handler) UpdateShift(w http.ResponseWriter, r *http.Request) {
	id, ok := h.shiftID(w, r)
	if !ok {
		return
	}
	var req UpdateShiftRequest
	if !h.decode(w, r, &req) {
		return
	}

	shift, err := h.Shifts.Update(r.Context(), mustActor(r), id, req.toPatch())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(shift))
}

func (h *Handler) HideShift(w http.ResponseWriter, r *http.Request) {
	id, ok := h.shiftID(w, r)
	if !ok {
		return
	}

	shift, err := h.Shifts.SoftDelete(r.Context(), mustActor(r), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(shift))
}

func (h *Handler) DeleteShift(w http.ResponseWriter, r *http.Request) {
	id, ok := h.shiftID(w, r)
	if !ok {
		return
	}

	if err := h.Shifts.HardDelete(r.Context(), mustActor(r), id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ShiftAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.shiftID(w, r)
	if !ok {
		return
	}

	entries, err := h.Shifts.Audit(r.Context(), mustActor(r), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditDTOs(entries))
}

// =============================================================================
// EXCHANGE HANDLERS
// =============================================================================

func (h *Handler) RequestExchange(w http.ResponseWriter, r *http.Request) {
	id, ok := h.shiftID(w, r)
	if !ok {
		return
	}
	var req ExchangeRequest
	if !h.decode(w, r, &req) {
		return
	}

	shift, err := h.Exchanges.Request(r.Context(), mustActor(r), id,
		core.EmployeeID(req.TargetEmployeeID), core.ReasonID(req.ReasonID))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(shift))
}

func (h *Handler) DecideExchange(w http.ResponseWriter, r *http.Request) {
	id, ok := h.shiftID(w, r)
	if !ok {
		return
	}
	var req DecisionRequest
	if !h.decode(w, r, &req) {
		return
	}
	decision, err := schedule.ParseDecision(req.Status)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	shift, err := h.Exchanges.Decide(r.Context(), mustActor(r), id, decision, req.ManagerNote)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(shift))
}

// =============================================================================
// PLAN COPY
// =============================================================================

func (h *Handler) CopyPlan(w http.ResponseWriter, r *http.Request) {
	var req CopyPlanRequest
	if !h.decode(w, r, &req) {
		return
	}
	source, err := core.NewYearMonth(req.SourceYear, req.SourceMonth)
	if err != nil {
		h.writeDomainError(w, r, withField(err, "source_month"))
		return
	}
	target, err := core.NewYearMonth(req.TargetYear, req.TargetMonth)
	if err != nil {
		h.writeDomainError(w, r, withField(err, "target_month"))
		return
	}

	copyReq := schedule.CopyRequest{Source: source, Target: target}
	if req.EmployeeID != nil {
		id := core.EmployeeID(*req.EmployeeID)
		copyReq.EmployeeID = &id
	}

	result, err := h.Copier.Copy(r.Context(), mustActor(r), copyReq)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCopyResultDTO(result))
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

func (h *Handler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	q := schedule.AttendanceQuery{}
	var err error
	if q.EmployeeID, err = queryEmployee(r); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if q.Year, q.Month, err = queryMonth(r, h.now()); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	records, err := h.Attendance.List(r.Context(), mustActor(r), q)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceDTOs(records))
}

func (h *Handler) RecordAttendance(w http.ResponseWriter, r *http.Request) {
	var req RecordAttendanceRequest
	if !h.decode(w, r, &req) {
		return
	}

	records, err := h.Attendance.Record(r.Context(), mustActor(r), req.toInput())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAttendanceDTOs(records))
}

func (h *Handler) DeleteAttendance(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	if err := h.Attendance.Delete(r.Context(), mustActor(r), core.AttendanceID(id)); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SUMMARIES AND REPORTS
// =============================================================================

func (h *Handler) MonthlySummary(w http.ResponseWriter, r *http.Request) {
	emp, year, month, err := summaryParams(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	summary, err := h.Balance.MonthlySummary(r.Context(), mustActor(r), emp, year, month)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

func (h *Handler) PlannedSummary(w http.ResponseWriter, r *http.Request) {
	emp, year, month, err := summaryParams(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	summary, err := h.Balance.PlannedSummary(r.Context(), mustActor(r), emp, year, month)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlannedSummaryDTO(summary))
}

func (h *Handler) YearlyReport(w http.ResponseWriter, r *http.Request) {
	year := h.now().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			h.writeDomainError(w, r, core.Invalid("year", "not a number: %q", v))
			return
		}
		year = y
	}

	report, err := h.Balance.YearlyReport(r.Context(), mustActor(r), year)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toYearlyReportDTO(report))
}

// =============================================================================
// ADMIN
// =============================================================================

func (h *Handler) RunMissingAttendance(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	if err := actor.Authorize(core.CapRunMaintenance, 0); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	flagged, err := h.Missing.Run(r.Context(), core.DateOf(h.now()))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"flagged": flagged})
}

// =============================================================================
// CATALOG
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Catalog.Employees(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	actor := mustActor(r)
	dtos := make([]EmployeeDTO, 0, len(employees))
	for _, e := range employees {
		dto := EmployeeDTO{
			ID:     int64(e.ID),
			Name:   e.Name(),
			Role:   string(e.Role),
			Active: e.Active,
		}
		// balances and personal numbers are visible to managers and the employee
		if actor.Can(core.CapView, e.ID) {
			dto.PersonalNumber = e.PersonalNumber
			dto.InitialHoursBalance = hours(e.InitialHoursBalance)
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ListShiftTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Catalog.ShiftTypes(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	dtos := make([]ShiftTypeDTO, len(types))
	for i, t := range types {
		dtos[i] = ShiftTypeDTO{
			ID:              int64(t.ID),
			Name:            t.Name,
			ShortName:       t.ShortName,
			StartTime:       t.Start.String(),
			EndTime:         t.End.String(),
			VariableTime:    t.VariableTime,
			Kind:            string(t.Kind),
			SplitAtMidnight: t.SplitAtMidnight,
		}
		if t.Duration != nil {
			d := hours(*t.Duration)
			dtos[i].Duration = &d
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ListChangeReasons(w http.ResponseWriter, r *http.Request) {
	reasons, err := h.Catalog.ChangeReasons(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	dtos := make([]ChangeReasonDTO, len(reasons))
	for i, c := range reasons {
		dtos[i] = ChangeReasonDTO{
			ID:          int64(c.ID),
			Name:        c.Name,
			Description: c.Description,
			Category:    string(c.Category),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps an error kind to a status and body.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *core.ValidationError
		oe *core.OverlapError
		ce *core.StateConflictError
	)

	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "validation", Field: ve.Field})
	case errors.As(err, &oe):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "overlap", Field: oe.Field, ConflictingShiftID: oe.ConflictingID})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, core.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: err.Error(), Code: "permission_denied"})
	case errors.As(err, &ce), errors.Is(err, core.ErrStateConflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "state_conflict"})
	case core.IsRetryable(err):
		h.logger().WithError(err).WithField("path", r.URL.Path).Warn("Store unavailable")
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "store unavailable, retry later", Code: "store_unavailable", Retryable: true})
	default:
		h.logger().WithError(err).WithField("path", r.URL.Path).Error("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "validation", Details: err.Error()})
		return false
	}
	return true
}

func (h *Handler) shiftID(w http.ResponseWriter, r *http.Request) (core.ShiftID, bool) {
	id, err := pathInt(r, "id")
	if err != nil {
		h.writeDomainError(w, r, err)
		return 0, false
	}
	return core.ShiftID(id), true
}

// mustActor is only called behind RequireAuth.
func mustActor(r *http.Request) core.Actor {
	a, _ := ActorFrom(r.Context())
	return a
}

func pathInt(r *http.Request, name string) (int, error) {
	v := chi.URLParam(r, name)
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, core.Invalid(name, "not a number: %q", v)
	}
	return n, nil
}

func queryEmployee(r *http.Request) (*core.EmployeeID, error) {
	v := r.URL.Query().Get("employee_id")
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, core.Invalid("employee_id", "not a number: %q", v)
	}
	id := core.EmployeeID(n)
	return &id, nil
}

// queryMonth defaults to the current month.
func queryMonth(r *http.Request, now time.Time) (int, int, error) {
	year, month := now.Year(), int(now.Month())
	q := r.URL.Query()
	if v := q.Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, core.Invalid("year", "not a number: %q", v)
		}
		year = n
	}
	if v := q.Get("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, core.Invalid("month", "not a number: %q", v)
		}
		month = n
	}
	return year, month, nil
}

func summaryParams(r *http.Request) (core.EmployeeID, int, int, error) {
	emp, err := pathInt(r, "employee")
	if err != nil {
		return 0, 0, 0, err
	}
	year, err := pathInt(r, "year")
	if err != nil {
		return 0, 0, 0, err
	}
	month, err := pathInt(r, "month")
	if err != nil {
		return 0, 0, 0, err
	}
	return core.EmployeeID(emp), year, month, nil
}

func withField(err error, field string) error {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		return core.Invalid(field, "%s", ve.Message)
	}
	return err
}
