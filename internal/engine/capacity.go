package engine

import (
	"context"

	"caseline/internal/domain"
	"caseline/internal/engine/auth"
)

type CapacityQuery struct {
	StaffID string
	UnitID  string
}

// CapacityCheck reports utilization for a single staff member or an
// organizational unit. Exactly one of the two targets must be set.
func (e Engine) CapacityCheck(ctx context.Context, q CapacityQuery) (domain.CapacityReport, error) {
	if (q.StaffID == "") == (q.UnitID == "") {
		return domain.CapacityReport{}, validationf("exactly one of staff_id or unit_id must be provided")
	}
	if q.StaffID != "" {
		return e.staffCapacity(ctx, q.StaffID)
	}
	return e.unitCapacity(ctx, q.UnitID)
}

// CapacityCheckFor is CapacityCheck with the caller's scope enforced:
// staff may query themselves, supervisors their own unit and its members,
// admins anything.
func (e Engine) CapacityCheckFor(ctx context.Context, scope auth.Scope, q CapacityQuery) (domain.CapacityReport, error) {
	if (q.StaffID == "") == (q.UnitID == "") {
		return domain.CapacityReport{}, validationf("exactly one of staff_id or unit_id must be provided")
	}
	if q.StaffID != "" {
		p, err := e.Repo.GetStaff(ctx, q.StaffID)
		if err != nil {
			return domain.CapacityReport{}, err
		}
		if err := scope.EnsureCanQueryStaff(p); err != nil {
			return domain.CapacityReport{}, err
		}
		return e.staffReport(p), nil
	}
	if err := scope.EnsureCanQueryUnit(q.UnitID); err != nil {
		return domain.CapacityReport{}, err
	}
	return e.unitCapacity(ctx, q.UnitID)
}

func (e Engine) staffCapacity(ctx context.Context, staffID string) (domain.CapacityReport, error) {
	p, err := e.Repo.GetStaff(ctx, staffID)
	if err != nil {
		return domain.CapacityReport{}, err
	}
	return e.staffReport(p), nil
}

func (e Engine) staffReport(p domain.StaffProfile) domain.CapacityReport {
	return e.buildReport(domain.CapacityReport{
		Type:         "staff",
		StaffID:      p.ID,
		CurrentCount: p.CurrentAssignmentCount,
		WIPLimit:     p.IndividualWIPLimit,
	})
}

func (e Engine) unitCapacity(ctx context.Context, unitID string) (domain.CapacityReport, error) {
	u, err := e.Repo.GetUnit(ctx, unitID)
	if err != nil {
		return domain.CapacityReport{}, err
	}
	staff, err := e.Repo.ListStaff(ctx, unitID)
	if err != nil {
		return domain.CapacityReport{}, err
	}
	report := domain.CapacityReport{
		Type:     "unit",
		UnitID:   u.ID,
		WIPLimit: u.UnitWIPLimit,
	}
	// Unit aggregates count only members who can actually take work.
	for _, p := range staff {
		if p.AvailabilityStatus != domain.AvailabilityAvailable {
			continue
		}
		report.TotalStaff++
		report.CurrentCount += p.CurrentAssignmentCount
	}
	return e.buildReport(report), nil
}

func (e Engine) buildReport(r domain.CapacityReport) domain.CapacityReport {
	r.AvailableCapacity = r.WIPLimit - r.CurrentCount
	if r.WIPLimit > 0 {
		r.UtilizationPct = float64(r.CurrentCount) / float64(r.WIPLimit) * 100
	}
	switch {
	case r.UtilizationPct >= e.Config.Capacity.CriticalPct:
		r.Status = domain.CapacityCritical
	case r.UtilizationPct >= e.Config.Capacity.WarningPct:
		r.Status = domain.CapacityWarning
	default:
		r.Status = domain.CapacityOk
	}
	return r
}
