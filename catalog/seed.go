package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/worktrack/core"
)

// Seed is a full set of reference data.
type Seed struct {
	Employees     []core.Employee
	ShiftTypes    []core.ShiftType
	ChangeReasons []core.ChangeReason
}

type seedFile struct {
	Employees []struct {
		ID                  int64  `yaml:"id"`
		PersonalNumber      string `yaml:"personal_number"`
		FirstName           string `yaml:"first_name"`
		LastName            string `yaml:"last_name"`
		Role                string `yaml:"role"`
		InitialHoursBalance string `yaml:"initial_hours_balance"`
		Active              *bool  `yaml:"active"`
	} `yaml:"employees"`
	ShiftTypes []struct {
		ID              int64  `yaml:"id"`
		Name            string `yaml:"name"`
		ShortName       string `yaml:"short_name"`
		Start           string `yaml:"start"`
		End             string `yaml:"end"`
		Duration        string `yaml:"duration"`
		VariableTime    bool   `yaml:"variable_time"`
		Kind            string `yaml:"kind"`
		SplitAtMidnight bool   `yaml:"split_at_midnight"`
	} `yaml:"shift_types"`
	ChangeReasons []struct {
		ID          int64  `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Category    string `yaml:"category"`
	} `yaml:"change_reasons"`
}

// ParseSeed reads a YAML document of the form
//
//	employees:
//	  - {id: 7, first_name: Jana, role: worker, initial_hours_balance: "4.5"}
//	shift_types:
//	  - {id: 1, name: Morning, short_name: R, start: "06:00", end: "14:00"}
//	  - {id: 9, name: Custom, variable_time: true}
//	change_reasons:
//	  - {id: 1, name: Swap, category: cdr}
//
// Active defaults to true, kind to work, start/end to 00:00.
func ParseSeed(data []byte) (Seed, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}

	var seed Seed
	for i, e := range f.Employees {
		field := func(name string) string { return fmt.Sprintf("employees[%d].%s", i, name) }
		if e.ID <= 0 {
			return Seed{}, core.Invalid(field("id"), "must be positive")
		}
		role := core.RoleWorker
		if e.Role != "" {
			r, err := core.ParseRole(e.Role)
			if err != nil {
				return Seed{}, core.Invalid(field("role"), "unknown role %q", e.Role)
			}
			role = r
		}
		initial, err := parseHours(field("initial_hours_balance"), e.InitialHoursBalance)
		if err != nil {
			return Seed{}, err
		}
		active := e.Active == nil || *e.Active
		seed.Employees = append(seed.Employees, core.Employee{
			ID:                  core.EmployeeID(e.ID),
			PersonalNumber:      e.PersonalNumber,
			FirstName:           e.FirstName,
			LastName:            e.LastName,
			Role:                role,
			InitialHoursBalance: initial,
			Active:              active,
		})
	}

	for i, t := range f.ShiftTypes {
		field := func(name string) string { return fmt.Sprintf("shift_types[%d].%s", i, name) }
		if t.ID <= 0 {
			return Seed{}, core.Invalid(field("id"), "must be positive")
		}
		st := core.ShiftType{
			ID:              core.ShiftTypeID(t.ID),
			Name:            t.Name,
			ShortName:       t.ShortName,
			VariableTime:    t.VariableTime,
			Kind:            core.ShiftKind(t.Kind),
			SplitAtMidnight: t.SplitAtMidnight,
		}
		switch st.Kind {
		case "":
			st.Kind = core.ShiftKindWork
		case core.ShiftKindWork, core.ShiftKindVacation, core.ShiftKindSick:
		default:
			return Seed{}, core.Invalid(field("kind"), "unknown kind %q", t.Kind)
		}
		var err error
		if st.Start, err = parseClock(field("start"), t.Start); err != nil {
			return Seed{}, err
		}
		if st.End, err = parseClock(field("end"), t.End); err != nil {
			return Seed{}, err
		}
		if t.Duration != "" {
			d, err := parseHours(field("duration"), t.Duration)
			if err != nil {
				return Seed{}, err
			}
			st.Duration = &d
		}
		seed.ShiftTypes = append(seed.ShiftTypes, st)
	}

	for i, r := range f.ChangeReasons {
		cat := core.ReasonCategory(r.Category)
		if cat != core.ReasonAbsence && cat != core.ReasonCDR {
			return Seed{}, core.Invalid(fmt.Sprintf("change_reasons[%d].category", i), "must be absence or cdr")
		}
		seed.ChangeReasons = append(seed.ChangeReasons, core.ChangeReason{
			ID:          core.ReasonID(r.ID),
			Name:        r.Name,
			Description: r.Description,
			Category:    cat,
		})
	}
	return seed, nil
}

// LoadSeed reads a seed file and applies it to s.
func (s *Store) LoadSeed(ctx context.Context, path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}
	seed, err := ParseSeed(data)
	if err != nil {
		return Seed{}, err
	}
	return seed, s.Apply(ctx, seed)
}

func parseClock(field, s string) (core.ClockTime, error) {
	if s == "" {
		return 0, nil
	}
	return core.ParseClockField(field, s)
}

func parseHours(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, core.Invalid(field, "not a number: %q", s)
	}
	return d, nil
}
