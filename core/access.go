package core

import "fmt"

// =============================================================================
// ROLES
// =============================================================================

// Role is the closed set of caller roles.
type Role string

const (
	RoleWorker  Role = "worker"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// ParseRole rejects anything outside the closed set.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleWorker, RoleManager, RoleAdmin:
		return r, nil
	}
	return "", Invalid("role", "unknown role %q", s)
}

// =============================================================================
// CAPABILITIES
// =============================================================================

// Capability names one thing an operation needs the caller to be allowed to do.
type Capability int

const (
	CapView Capability = iota
	CapEditPlan
	CapRequestExchange
	CapDecideExchange
	CapCopyPlan
	CapRecordAttendance
	CapHardDelete
	CapRunMaintenance
)

var capabilityNames = map[Capability]string{
	CapView:             "view schedules",
	CapEditPlan:         "edit the plan",
	CapRequestExchange:  "request an exchange",
	CapDecideExchange:   "decide an exchange",
	CapCopyPlan:         "copy a plan",
	CapRecordAttendance: "record attendance",
	CapHardDelete:       "hard-delete shifts",
	CapRunMaintenance:   "run maintenance",
}

func (c Capability) String() string {
	if s, ok := capabilityNames[c]; ok {
		return s
	}
	return fmt.Sprintf("capability(%d)", int(c))
}

// grants lists what each role may do regardless of ownership.
var grants = map[Role]map[Capability]bool{
	RoleWorker: {},
	RoleManager: {
		CapView: true, CapEditPlan: true,
		CapRequestExchange: true, CapDecideExchange: true, CapCopyPlan: true,
		CapRecordAttendance: true, CapRunMaintenance: true,
	},
	RoleAdmin: {
		CapView: true, CapEditPlan: true,
		CapRequestExchange: true, CapDecideExchange: true, CapCopyPlan: true,
		CapRecordAttendance: true, CapHardDelete: true, CapRunMaintenance: true,
	},
}

// ownerGrants are capabilities a worker holds on their own records only.
var ownerGrants = map[Capability]bool{
	CapView:             true,
	CapRequestExchange:  true,
	CapRecordAttendance: true,
}

// =============================================================================
// ACTOR
// =============================================================================

// Actor is the authenticated caller of an operation.
type Actor struct {
	EmployeeID EmployeeID
	Role       Role
}

// System is the actor used by background jobs.
var System = Actor{EmployeeID: 0, Role: RoleAdmin}

// Can evaluates the capability predicate. subject is the employee whose
// record is touched; ownership widens a worker's grants.
func (a Actor) Can(c Capability, subject EmployeeID) bool {
	if grants[a.Role][c] {
		return true
	}
	return a.Role == RoleWorker && subject == a.EmployeeID && ownerGrants[c]
}

// Authorize returns a PermissionError when Can is false.
func (a Actor) Authorize(c Capability, subject EmployeeID) error {
	if a.Can(c, subject) {
		return nil
	}
	return &PermissionError{Actor: a, Capability: c}
}

// IsManager reports manager-level rights.
func (a Actor) IsManager() bool {
	return a.Role == RoleManager || a.Role == RoleAdmin
}
