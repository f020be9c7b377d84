package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"caseline/internal/domain"
	"caseline/internal/events"
	"caseline/internal/metrics"
	"caseline/internal/repo"
)

// AssignRequest describes one incoming work item to place.
type AssignRequest struct {
	WorkItemID     string
	WorkItemType   string
	RequiredSkills []string
	Priority       string
	UnitID         string
	ActorID        string
}

// AssignResult is the resolver's decision plus the ranking it was based on.
type AssignResult struct {
	Assignment domain.Assignment
	Breakdown  ScoreBreakdown
	Considered int
}

// AutoAssign picks the best eligible staff member for a work item,
// increments their open load and persists the assignment, all in one
// transaction. The WIP ceiling is enforced by a guarded increment, so
// two concurrent resolutions cannot both land on a full candidate.
func (e Engine) AutoAssign(ctx context.Context, req AssignRequest) (AssignResult, error) {
	if req.WorkItemID == "" {
		return AssignResult{}, validationf("work_item_id is required")
	}
	if req.WorkItemType == "" {
		return AssignResult{}, validationf("work_item_type is required")
	}
	switch req.Priority {
	case domain.PriorityUrgent, domain.PriorityHigh, domain.PriorityNormal:
	default:
		return AssignResult{}, validationf("priority must be urgent, high or normal")
	}
	slaOffset, err := e.Config.SLAFor(req.Priority)
	if err != nil {
		return AssignResult{}, err
	}
	missing, err := e.Repo.MissingSkills(ctx, req.RequiredSkills)
	if err != nil {
		return AssignResult{}, err
	}
	if len(missing) > 0 {
		return AssignResult{}, fmt.Errorf("skill %s: %w", missing[0], repo.ErrNotFound)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return AssignResult{}, err
	}
	defer tx.Rollback()

	if req.UnitID != "" {
		if _, err := e.Repo.GetUnitTx(ctx, tx, req.UnitID); err != nil {
			return AssignResult{}, fmt.Errorf("unit %s: %w", req.UnitID, err)
		}
	}
	staff, err := e.Repo.ListStaffTx(ctx, tx, req.UnitID)
	if err != nil {
		return AssignResult{}, err
	}
	unitLimits, err := e.Repo.ListUnitLimitsTx(ctx, tx)
	if err != nil {
		return AssignResult{}, err
	}
	ranked := e.scoreCandidates(scoringInput{
		staff:      staff,
		required:   req.RequiredSkills,
		originUnit: req.UnitID,
		unitLoads:  unitLoadSnapshot(staff),
		unitLimits: unitLimits,
	})
	if len(ranked) == 0 {
		metrics.AssignmentsResolvedTotal.WithLabelValues("no_eligible_staff").Inc()
		return AssignResult{}, ErrNoEligibleStaff
	}

	assignedAt := e.now().UTC()
	now := assignedAt.Format(time.RFC3339)
	deadline := assignedAt.Add(slaOffset).Format(time.RFC3339)
	for _, candidate := range ranked {
		ok, err := e.Repo.TryIncrementStaffLoadTx(ctx, tx, candidate.StaffID, now)
		if err != nil {
			return AssignResult{}, err
		}
		if !ok {
			continue
		}
		winner, err := e.Repo.GetStaffTx(ctx, tx, candidate.StaffID)
		if err != nil {
			return AssignResult{}, err
		}
		if limit, known := unitLimits[winner.UnitID]; known {
			load, err := e.Repo.UnitOpenLoadTx(ctx, tx, winner.UnitID)
			if err != nil {
				return AssignResult{}, err
			}
			if load > limit {
				if err := e.Repo.DecrementStaffLoadTx(ctx, tx, candidate.StaffID, now); err != nil {
					return AssignResult{}, err
				}
				continue
			}
		}
		unitID := winner.UnitID
		a := domain.Assignment{
			ID:           uuid.NewString(),
			WorkItemID:   req.WorkItemID,
			WorkItemType: req.WorkItemType,
			AssigneeID:   winner.ID,
			UnitID:       &unitID,
			Priority:     req.Priority,
			Status:       domain.StatusAssigned,
			AssignedAt:   now,
			SLADeadline:  deadline,
			SLAStatus:    domain.SLAOk,
			Score:        candidate.Total,
		}
		if err := e.Repo.InsertAssignmentTx(ctx, tx, a); err != nil {
			return AssignResult{}, err
		}
		err = e.Events.Append(ctx, tx, events.TypeAssignmentCreated, "assignment", a.ID, req.ActorID, events.EventPayload{
			"work_item_id": a.WorkItemID,
			"assignee_id":  a.AssigneeID,
			"priority":     a.Priority,
			"score":        a.Score,
			"sla_deadline": a.SLADeadline,
		})
		if err != nil {
			return AssignResult{}, err
		}
		if err := tx.Commit(); err != nil {
			return AssignResult{}, err
		}
		metrics.AssignmentsResolvedTotal.WithLabelValues("assigned").Inc()
		metrics.AssignmentScore.Observe(candidate.Total)
		return AssignResult{Assignment: a, Breakdown: candidate, Considered: len(ranked)}, nil
	}
	metrics.AssignmentsResolvedTotal.WithLabelValues("conflict").Inc()
	return AssignResult{}, conflictf("every ranked candidate reached a capacity limit during resolution")
}
