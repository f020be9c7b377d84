package domain

// Availability states for staff.
const (
	AvailabilityAvailable   = "available"
	AvailabilityUnavailable = "unavailable"
	AvailabilityOnLeave     = "on_leave"
)

// Assignment priorities.
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityNormal = "normal"
)

// Assignment statuses. Completed and cancelled are terminal.
const (
	StatusAssigned   = "assigned"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// SLA statuses, ordered. A sweep may only move an assignment forward.
const (
	SLAOk        = "ok"
	SLAWarning   = "warning"
	SLABreached  = "breached"
	SLAEscalated = "escalated"
)

// Capacity statuses reported by the capacity evaluator.
const (
	CapacityOk       = "ok"
	CapacityWarning  = "warning"
	CapacityCritical = "critical"
)

// Staff roles used for capacity-check authorization.
const (
	RoleStaff      = "staff"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

type Skill struct {
	ID        string `json:"id"`
	Category  string `json:"category,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type StaffProfile struct {
	ID                     string   `json:"id"`
	UserID                 string   `json:"user_id"`
	UnitID                 string   `json:"unit_id"`
	Role                   string   `json:"role" enum:"staff,supervisor,admin"`
	Skills                 []string `json:"skills"`
	IndividualWIPLimit     int      `json:"individual_wip_limit"`
	CurrentAssignmentCount int      `json:"current_assignment_count"`
	AvailabilityStatus     string   `json:"availability_status" enum:"available,unavailable,on_leave"`
	CreatedAt              string   `json:"created_at" format:"date-time"`
	UpdatedAt              string   `json:"updated_at" format:"date-time"`
}

// HasSkills reports whether the profile holds every listed skill.
func (s StaffProfile) HasSkills(required []string) bool {
	if len(required) == 0 {
		return true
	}
	held := make(map[string]struct{}, len(s.Skills))
	for _, id := range s.Skills {
		held[id] = struct{}{}
	}
	for _, id := range required {
		if _, ok := held[id]; !ok {
			return false
		}
	}
	return true
}

type OrganizationalUnit struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	UnitWIPLimit int    `json:"unit_wip_limit"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type Assignment struct {
	ID           string  `json:"id"`
	WorkItemID   string  `json:"work_item_id"`
	WorkItemType string  `json:"work_item_type"`
	AssigneeID   string  `json:"assignee_id"`
	UnitID       *string `json:"unit_id,omitempty"`
	Priority     string  `json:"priority" enum:"urgent,high,normal"`
	Status       string  `json:"status" enum:"assigned,in_progress,completed,cancelled"`
	AssignedAt   string  `json:"assigned_at" format:"date-time"`
	SLADeadline  string  `json:"sla_deadline" format:"date-time"`
	SLAStatus    string  `json:"sla_status" enum:"ok,warning,breached,escalated"`
	Score        float64 `json:"score"`
	CompletedAt  *string `json:"completed_at,omitempty" format:"date-time"`
}

// SLARank orders SLA statuses so transitions can be checked for monotonicity.
func SLARank(status string) int {
	switch status {
	case SLAOk:
		return 0
	case SLAWarning:
		return 1
	case SLABreached:
		return 2
	case SLAEscalated:
		return 3
	default:
		return -1
	}
}

type EscalationEvent struct {
	ID           string `json:"id"`
	AssignmentID string `json:"assignment_id"`
	CreatedAt    string `json:"created_at" format:"date-time"`
	Reason       string `json:"reason"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// CapacityReport is the capacity evaluator's output for either a staff
// member or a whole unit.
type CapacityReport struct {
	Type              string  `json:"type" enum:"staff,unit"`
	StaffID           string  `json:"staff_id,omitempty"`
	UnitID            string  `json:"unit_id,omitempty"`
	TotalStaff        int     `json:"total_staff,omitempty"`
	CurrentCount      int     `json:"current_count"`
	WIPLimit          int     `json:"wip_limit"`
	AvailableCapacity int     `json:"available_capacity"`
	UtilizationPct    float64 `json:"utilization_pct"`
	Status            string  `json:"status" enum:"ok,warning,critical"`
}
