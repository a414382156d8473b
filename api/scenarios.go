/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the catalog and plan with
  realistic data for demos. Each scenario upserts its reference data and
  then plans shifts through the normal ShiftService, so every demo shift
  passes the same overlap and validation rules as a real one.

AVAILABLE SCENARIOS:
  front-desk:  Three workers on morning/afternoon rotation, weekdays
  night-rota:  Adds a night rotation crossing midnight and weekends

HOW SCENARIOS WORK:
  1. Upsert employees, shift types and change reasons
  2. Plan shifts for the requested month as the system actor
  3. Shifts that would overlap existing ones are counted as skipped

USAGE VIA API:
  GET  /api/scenarios
  POST /api/scenarios/load
  {"scenario_id": "front-desk", "year": 2025, "month": 3}

NOTE:
  Scenarios are additive and admin-only. Only use in development/demo
  environments.

SEE ALSO:
  - catalog/seed.go: Seed format
  - handlers.go: Error mapping
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/worktrack/catalog"
	"github.com/warp/worktrack/core"
	"github.com/warp/worktrack/schedule"
)

// CatalogSeeder writes reference data; catalog.Store implements it.
type CatalogSeeder interface {
	Apply(ctx context.Context, seed catalog.Seed) error
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
	Year       int    `json:"year"`
	Month      int    `json:"month"`
}

type LoadScenarioResponse struct {
	ScenarioID string `json:"scenario_id"`
	Created    int    `json:"created"`
	Skipped    int    `json:"skipped"`
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

const (
	demoMorning   core.ShiftTypeID = 1
	demoAfternoon core.ShiftTypeID = 2
	demoNight     core.ShiftTypeID = 3
	demoCustom    core.ShiftTypeID = 4
	demoVacation  core.ShiftTypeID = 5
	demoSick      core.ShiftTypeID = 6
)

var scenarios = []ScenarioDTO{
	{
		ID:          "front-desk",
		Name:        "Front Desk",
		Description: "Three workers rotating morning and afternoon shifts on weekdays",
	},
	{
		ID:          "night-rota",
		Name:        "Night Rota",
		Description: "Front desk plus a night rotation that crosses midnight and covers weekends",
	},
}

func demoSeed() catalog.Seed {
	seven := decimal.NewFromInt(7)
	return catalog.Seed{
		Employees: []core.Employee{
			{ID: 1, FirstName: "Ada", LastName: "Admin", Role: core.RoleAdmin, Active: true},
			{ID: 2, FirstName: "Mona", LastName: "Manager", Role: core.RoleManager, Active: true},
			{ID: 7, PersonalNumber: "0007", FirstName: "Jan", LastName: "Novak", Role: core.RoleWorker, Active: true},
			{ID: 9, PersonalNumber: "0009", FirstName: "Eva", LastName: "Horvath", Role: core.RoleWorker, Active: true, InitialHoursBalance: decimal.NewFromInt(12)},
			{ID: 12, PersonalNumber: "0012", FirstName: "Petr", LastName: "Kral", Role: core.RoleWorker, Active: true},
		},
		ShiftTypes: []core.ShiftType{
			{ID: demoMorning, Name: "Morning", ShortName: "R", Start: core.NewClock(6, 0), End: core.NewClock(14, 0), Kind: core.ShiftKindWork},
			{ID: demoAfternoon, Name: "Afternoon", ShortName: "P", Start: core.NewClock(14, 0), End: core.NewClock(22, 0), Kind: core.ShiftKindWork},
			{ID: demoNight, Name: "Night", ShortName: "N", Start: core.NewClock(22, 0), End: core.NewClock(6, 0), Kind: core.ShiftKindWork, SplitAtMidnight: true},
			{ID: demoCustom, Name: "Custom", ShortName: "V", VariableTime: true, Kind: core.ShiftKindWork},
			{ID: demoVacation, Name: "Vacation", ShortName: "D", Start: core.NewClock(8, 0), End: core.NewClock(15, 0), Duration: &seven, Kind: core.ShiftKindVacation},
			{ID: demoSick, Name: "Sick leave", ShortName: "PN", Start: core.NewClock(8, 0), End: core.NewClock(15, 0), Duration: &seven, Kind: core.ShiftKindSick},
		},
		ChangeReasons: []core.ChangeReason{
			{ID: 1, Name: "Shift swap", Category: core.ReasonCDR},
			{ID: 2, Name: "Doctor", Description: "Medical appointment", Category: core.ReasonAbsence},
			{ID: 3, Name: "Overtime", Category: core.ReasonCDR},
		},
	}
}

// planned is one demo shift before it goes through ShiftService.
type planned struct {
	employee core.EmployeeID
	date     core.Date
	typ      core.ShiftTypeID
}

func frontDeskPlan(ym core.YearMonth) []planned {
	var out []planned
	workers := []core.EmployeeID{7, 9, 12}
	for day := ym.First(); !day.After(ym.Last()); day = day.AddDays(1) {
		if day.IsWeekend() {
			continue
		}
		for i, emp := range workers {
			// two of three work each weekday, rotating
			if (day.Day()+i)%3 == 0 {
				continue
			}
			typ := demoMorning
			if (day.Day()+i)%2 == 1 {
				typ = demoAfternoon
			}
			out = append(out, planned{employee: emp, date: day, typ: typ})
		}
	}
	return out
}

func nightRotaPlan(ym core.YearMonth) []planned {
	out := frontDeskPlan(ym)
	workers := []core.EmployeeID{7, 9, 12}
	for day := ym.First(); !day.After(ym.Last()); day = day.AddDays(1) {
		emp := workers[day.Day()%len(workers)]
		out = append(out, planned{employee: emp, date: day, typ: demoNight})
	}
	return out
}

// =============================================================================
// HANDLERS
// =============================================================================

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	actor := mustActor(r)
	if actor.Role != core.RoleAdmin {
		h.writeDomainError(w, r, &core.PermissionError{Actor: actor, Capability: core.CapRunMaintenance})
		return
	}
	if h.Seeder == nil {
		writeError(w, http.StatusNotImplemented, "Scenarios are not available", nil)
		return
	}

	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Year == 0 && req.Month == 0 {
		now := h.now()
		req.Year, req.Month = now.Year(), int(now.Month())
	}
	ym, err := core.NewYearMonth(req.Year, req.Month)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	var plan []planned
	switch req.ScenarioID {
	case "front-desk":
		plan = frontDeskPlan(ym)
	case "night-rota":
		plan = nightRotaPlan(ym)
	default:
		h.writeDomainError(w, r, core.Invalid("scenario_id", "unknown scenario %q", req.ScenarioID))
		return
	}

	resp, err := h.loadScenario(r.Context(), req.ScenarioID, plan)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) loadScenario(ctx context.Context, id string, plan []planned) (LoadScenarioResponse, error) {
	start := time.Now()
	if err := h.Seeder.Apply(ctx, demoSeed()); err != nil {
		return LoadScenarioResponse{}, err
	}

	resp := LoadScenarioResponse{ScenarioID: id}
	for _, p := range plan {
		_, err := h.Shifts.Create(ctx, core.System, schedule.NewShift{
			EmployeeID:  p.employee,
			Date:        p.date.String(),
			ShiftTypeID: p.typ,
		})
		switch {
		case err == nil:
			resp.Created++
		case errors.Is(err, core.ErrOverlap):
			resp.Skipped++
		default:
			return resp, err
		}
	}

	h.logger().WithField("scenario", id).
		WithField("created", resp.Created).
		WithField("skipped", resp.Skipped).
		WithField("elapsed", time.Since(start).String()).
		Info("Scenario loaded")
	return resp, nil
}
