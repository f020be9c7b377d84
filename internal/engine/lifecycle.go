package engine

import (
	"context"
	"fmt"

	"caseline/internal/domain"
	"caseline/internal/events"
)

// StartAssignment moves an assignment from assigned to in_progress.
func (e Engine) StartAssignment(ctx context.Context, id, actorID string) (domain.Assignment, error) {
	return e.transition(ctx, id, actorID, domain.StatusInProgress, events.TypeAssignmentStarted)
}

// CompleteAssignment closes an assignment and releases its capacity slot.
func (e Engine) CompleteAssignment(ctx context.Context, id, actorID string) (domain.Assignment, error) {
	return e.transition(ctx, id, actorID, domain.StatusCompleted, events.TypeAssignmentCompleted)
}

// CancelAssignment closes an assignment without completion and releases
// its capacity slot.
func (e Engine) CancelAssignment(ctx context.Context, id, actorID string) (domain.Assignment, error) {
	return e.transition(ctx, id, actorID, domain.StatusCancelled, events.TypeAssignmentCancelled)
}

func (e Engine) transition(ctx context.Context, id, actorID, target, evtType string) (domain.Assignment, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Assignment{}, err
	}
	defer tx.Rollback()

	a, err := e.Repo.GetAssignmentTx(ctx, tx, id)
	if err != nil {
		return domain.Assignment{}, err
	}
	if err := ensureTransition(a.Status, target); err != nil {
		return domain.Assignment{}, err
	}
	now := e.nowRFC3339()
	var completedAt *string
	if target == domain.StatusCompleted {
		completedAt = &now
	}
	if err := e.Repo.SetAssignmentStatusTx(ctx, tx, id, target, completedAt); err != nil {
		return domain.Assignment{}, err
	}
	if target == domain.StatusCompleted || target == domain.StatusCancelled {
		if err := e.Repo.DecrementStaffLoadTx(ctx, tx, a.AssigneeID, now); err != nil {
			return domain.Assignment{}, err
		}
	}
	err = e.Events.Append(ctx, tx, evtType, "assignment", a.ID, actorID, events.EventPayload{
		"from": a.Status,
		"to":   target,
	})
	if err != nil {
		return domain.Assignment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Assignment{}, err
	}
	a.Status = target
	a.CompletedAt = completedAt
	return a, nil
}

func ensureTransition(current, target string) error {
	allowed := map[string][]string{
		domain.StatusAssigned:   {domain.StatusInProgress, domain.StatusCompleted, domain.StatusCancelled},
		domain.StatusInProgress: {domain.StatusCompleted, domain.StatusCancelled},
	}
	for _, t := range allowed[current] {
		if t == target {
			return nil
		}
	}
	return conflictf("invalid assignment status transition %s -> %s", current, target)
}

// UpsertStaff writes a staff profile from the directory, replacing its
// skill set.
func (e Engine) UpsertStaff(ctx context.Context, p domain.StaffProfile, actorID string) error {
	if _, err := e.Repo.GetUnit(ctx, p.UnitID); err != nil {
		return fmt.Errorf("unit %s: %w", p.UnitID, err)
	}
	missing, err := e.Repo.MissingSkills(ctx, p.Skills)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return validationf("unknown skill %s", missing[0])
	}
	switch p.Role {
	case "", domain.RoleStaff, domain.RoleSupervisor, domain.RoleAdmin:
	default:
		return validationf("role must be staff, supervisor or admin")
	}
	if p.Role == "" {
		p.Role = domain.RoleStaff
	}
	if p.AvailabilityStatus == "" {
		p.AvailabilityStatus = domain.AvailabilityAvailable
	}
	now := e.nowRFC3339()
	if p.CreatedAt == "" {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if err := e.Repo.UpsertStaff(ctx, p); err != nil {
		return err
	}
	return e.appendEvent(ctx, events.TypeStaffUpserted, "staff", p.ID, actorID, events.EventPayload{
		"unit_id": p.UnitID,
		"skills":  p.Skills,
	})
}

// SetStaffAvailability flips a staff member's availability state.
func (e Engine) SetStaffAvailability(ctx context.Context, staffID, status, actorID string) error {
	if err := e.Repo.SetStaffAvailability(ctx, staffID, status, e.nowRFC3339()); err != nil {
		return err
	}
	return e.appendEvent(ctx, events.TypeStaffAvailability, "staff", staffID, actorID, events.EventPayload{
		"availability_status": status,
	})
}

// UpsertUnit writes an organizational unit from the directory.
func (e Engine) UpsertUnit(ctx context.Context, u domain.OrganizationalUnit, actorID string) error {
	if u.UnitWIPLimit <= 0 {
		return validationf("unit_wip_limit must be positive")
	}
	if u.CreatedAt == "" {
		u.CreatedAt = e.nowRFC3339()
	}
	if err := e.Repo.UpsertUnit(ctx, u); err != nil {
		return err
	}
	return e.appendEvent(ctx, events.TypeUnitUpserted, "unit", u.ID, actorID, events.EventPayload{
		"unit_wip_limit": u.UnitWIPLimit,
	})
}

// UpsertSkill writes a skill reference record.
func (e Engine) UpsertSkill(ctx context.Context, s domain.Skill, actorID string) error {
	if s.ID == "" {
		return validationf("skill id is required")
	}
	if s.CreatedAt == "" {
		s.CreatedAt = e.nowRFC3339()
	}
	if err := e.Repo.UpsertSkill(ctx, s); err != nil {
		return err
	}
	return e.appendEvent(ctx, events.TypeSkillUpserted, "skill", s.ID, actorID, nil)
}

func (e Engine) appendEvent(ctx context.Context, evtType, entityKind, entityID, actorID string, payload events.EventPayload) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, evtType, entityKind, entityID, actorID, payload); err != nil {
		return err
	}
	return tx.Commit()
}
