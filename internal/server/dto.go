package server

import (
	"caseline/internal/engine"
)

type AutoAssignRequest struct {
	WorkItemID     string   `json:"work_item_id" example:"dossier-4812"`
	WorkItemType   string   `json:"work_item_type" example:"dossier_review"`
	RequiredSkills []string `json:"required_skills,omitempty"`
	Priority       string   `json:"priority" enum:"urgent,high,normal"`
	UnitID         string   `json:"unit_id,omitempty"`
}

type AutoAssignResponse struct {
	AssignmentID string                `json:"assignment_id"`
	AssigneeID   string                `json:"assignee_id"`
	Status       string                `json:"status"`
	SLADeadline  string                `json:"sla_deadline" format:"date-time"`
	Score        float64               `json:"score"`
	Breakdown    engine.ScoreBreakdown `json:"breakdown"`
}

func autoAssignResponse(res engine.AssignResult) AutoAssignResponse {
	return AutoAssignResponse{
		AssignmentID: res.Assignment.ID,
		AssigneeID:   res.Assignment.AssigneeID,
		Status:       res.Assignment.Status,
		SLADeadline:  res.Assignment.SLADeadline,
		Score:        res.Assignment.Score,
		Breakdown:    res.Breakdown,
	}
}

type StaffUpsertRequest struct {
	UserID             string   `json:"user_id"`
	UnitID             string   `json:"unit_id"`
	Role               string   `json:"role,omitempty" enum:"staff,supervisor,admin"`
	Skills             []string `json:"skills,omitempty"`
	IndividualWIPLimit int      `json:"individual_wip_limit"`
	AvailabilityStatus string   `json:"availability_status,omitempty" enum:"available,unavailable,on_leave"`
}

type UnitUpsertRequest struct {
	Name         string `json:"name,omitempty"`
	UnitWIPLimit int    `json:"unit_wip_limit"`
}

type SkillUpsertRequest struct {
	Category string `json:"category,omitempty"`
}

type AvailabilityRequest struct {
	AvailabilityStatus string `json:"availability_status" enum:"available,unavailable,on_leave"`
}
