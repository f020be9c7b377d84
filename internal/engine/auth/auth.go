package auth

import (
	"fmt"

	"caseline/internal/domain"
)

// ForbiddenError indicates the caller lacks scope for the target.
type ForbiddenError struct {
	Target string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("caller lacks scope for %s", e.Target)
}

// Scope is the caller's identity as established by the transport layer.
type Scope struct {
	Role    string
	StaffID string
	UnitID  string
}

func (s Scope) admin() bool { return s.Role == domain.RoleAdmin }

// EnsureCanQueryStaff permits self lookups, supervisors within their own
// unit, and admins.
func (s Scope) EnsureCanQueryStaff(target domain.StaffProfile) error {
	if s.admin() {
		return nil
	}
	if s.StaffID != "" && s.StaffID == target.ID {
		return nil
	}
	if s.Role == domain.RoleSupervisor && s.UnitID != "" && s.UnitID == target.UnitID {
		return nil
	}
	return ForbiddenError{Target: "staff " + target.ID}
}

// EnsureCanQueryUnit permits supervisors of the unit and admins.
func (s Scope) EnsureCanQueryUnit(unitID string) error {
	if s.admin() {
		return nil
	}
	if s.Role == domain.RoleSupervisor && s.UnitID != "" && s.UnitID == unitID {
		return nil
	}
	return ForbiddenError{Target: "unit " + unitID}
}

// EnsureAdmin gates directory writes and manual sweeps.
func (s Scope) EnsureAdmin(target string) error {
	if s.admin() {
		return nil
	}
	return ForbiddenError{Target: target}
}
