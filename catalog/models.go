package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/warp/worktrack/core"
)

// employeeRow is the employees table.
type employeeRow struct {
	ID                  int64  `gorm:"primarykey"`
	PersonalNumber      string `gorm:"index"`
	FirstName           string `gorm:"not null"`
	LastName            string
	Role                string          `gorm:"not null;default:'worker'"`
	InitialHoursBalance decimal.Decimal `gorm:"type:numeric;not null"`
	Active              bool            `gorm:"not null"`
}

func (employeeRow) TableName() string { return "employees" }

func (r employeeRow) toDomain() (core.Employee, error) {
	role, err := core.ParseRole(r.Role)
	if err != nil {
		return core.Employee{}, err
	}
	return core.Employee{
		ID:                  core.EmployeeID(r.ID),
		PersonalNumber:      r.PersonalNumber,
		FirstName:           r.FirstName,
		LastName:            r.LastName,
		Role:                role,
		InitialHoursBalance: r.InitialHoursBalance,
		Active:              r.Active,
	}, nil
}

func employeeFromDomain(e core.Employee) employeeRow {
	return employeeRow{
		ID:                  int64(e.ID),
		PersonalNumber:      e.PersonalNumber,
		FirstName:           e.FirstName,
		LastName:            e.LastName,
		Role:                string(e.Role),
		InitialHoursBalance: e.InitialHoursBalance,
		Active:              e.Active,
	}
}

// shiftTypeRow is the shift_types table. Times are stored as HH:MM.
type shiftTypeRow struct {
	ID              int64  `gorm:"primarykey"`
	Name            string `gorm:"not null"`
	ShortName       string
	StartTime       string              `gorm:"not null;default:'00:00'"`
	EndTime         string              `gorm:"not null;default:'00:00'"`
	Duration        decimal.NullDecimal `gorm:"type:numeric"`
	VariableTime    bool                `gorm:"not null"`
	Kind            string              `gorm:"not null;default:'work'"`
	SplitAtMidnight bool                `gorm:"not null"`
}

func (shiftTypeRow) TableName() string { return "shift_types" }

func (r shiftTypeRow) toDomain() (core.ShiftType, error) {
	start, err := core.ParseClockField("start_time", r.StartTime)
	if err != nil {
		return core.ShiftType{}, err
	}
	end, err := core.ParseClockField("end_time", r.EndTime)
	if err != nil {
		return core.ShiftType{}, err
	}
	t := core.ShiftType{
		ID:              core.ShiftTypeID(r.ID),
		Name:            r.Name,
		ShortName:       r.ShortName,
		Start:           start,
		End:             end,
		VariableTime:    r.VariableTime,
		Kind:            core.ShiftKind(r.Kind),
		SplitAtMidnight: r.SplitAtMidnight,
	}
	if r.Duration.Valid {
		d := r.Duration.Decimal
		t.Duration = &d
	}
	return t, nil
}

func shiftTypeFromDomain(t core.ShiftType) shiftTypeRow {
	row := shiftTypeRow{
		ID:              int64(t.ID),
		Name:            t.Name,
		ShortName:       t.ShortName,
		StartTime:       t.Start.String(),
		EndTime:         t.End.String(),
		VariableTime:    t.VariableTime,
		Kind:            string(t.Kind),
		SplitAtMidnight: t.SplitAtMidnight,
	}
	if row.Kind == "" {
		row.Kind = string(core.ShiftKindWork)
	}
	if t.Duration != nil {
		row.Duration = decimal.NewNullDecimal(*t.Duration)
	}
	return row
}

// changeReasonRow is the change_reasons table.
type changeReasonRow struct {
	ID          int64  `gorm:"primarykey"`
	Name        string `gorm:"not null"`
	Description string
	Category    string `gorm:"not null"`
}

func (changeReasonRow) TableName() string { return "change_reasons" }

func (r changeReasonRow) toDomain() core.ChangeReason {
	return core.ChangeReason{
		ID:          core.ReasonID(r.ID),
		Name:        r.Name,
		Description: r.Description,
		Category:    core.ReasonCategory(r.Category),
	}
}

func changeReasonFromDomain(c core.ChangeReason) changeReasonRow {
	return changeReasonRow{
		ID:          int64(c.ID),
		Name:        c.Name,
		Description: c.Description,
		Category:    string(c.Category),
	}
}
