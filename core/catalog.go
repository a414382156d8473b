package core

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REFERENCE DATA - Owned by external collaborators, read by the engine
// =============================================================================

// Employee is a directory entry.
type Employee struct {
	ID                  EmployeeID
	PersonalNumber      string
	FirstName           string
	LastName            string
	Role                Role
	InitialHoursBalance decimal.Decimal
	Active              bool
}

func (e Employee) Name() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// ShiftKind separates working shifts from absences recorded as shifts.
type ShiftKind string

const (
	ShiftKindWork     ShiftKind = "work"
	ShiftKindVacation ShiftKind = "vacation"
	ShiftKindSick     ShiftKind = "sick"
)

// ShiftType is a catalog entry with default times.
type ShiftType struct {
	ID              ShiftTypeID
	Name            string
	ShortName       string
	Start           ClockTime
	End             ClockTime
	Duration        *decimal.Decimal // fixed paid duration, if any
	VariableTime    bool             // custom start/end allowed (and then required)
	Kind            ShiftKind
	SplitAtMidnight bool // attendance crossing midnight is stored as two records
}

func (t ShiftType) IsWorking() bool { return t.Kind == "" || t.Kind == ShiftKindWork }

type ReasonCategory string

const (
	ReasonAbsence ReasonCategory = "absence"
	ReasonCDR     ReasonCategory = "cdr"
)

// ChangeReason explains why attendance or ownership differs from the plan.
type ChangeReason struct {
	ID          ReasonID
	Name        string
	Description string
	Category    ReasonCategory
}

// Directory is the employee directory collaborator.
type Directory interface {
	// Employee returns NotFoundError for unknown ids.
	Employee(ctx context.Context, id EmployeeID) (Employee, error)
	Employees(ctx context.Context) ([]Employee, error)
}

// ShiftTypeCatalog is the shift-type catalog collaborator.
type ShiftTypeCatalog interface {
	ShiftType(ctx context.Context, id ShiftTypeID) (ShiftType, error)
	ShiftTypes(ctx context.Context) ([]ShiftType, error)
}

// ReasonCatalog is the change-reason catalog collaborator.
type ReasonCatalog interface {
	ChangeReason(ctx context.Context, id ReasonID) (ChangeReason, error)
	ChangeReasons(ctx context.Context) ([]ChangeReason, error)
}

// Catalog bundles the three reference-data collaborators.
type Catalog interface {
	Directory
	ShiftTypeCatalog
	ReasonCatalog
}
