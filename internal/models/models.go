package models

import "time"

type Status string

const (
	StatusPending     Status = "pending"
	StatusAssigned    Status = "assigned"
	StatusInProgress  Status = "in_progress"
	StatusEscalated   Status = "escalated"
	StatusSLABreached Status = "sla_breached"
	StatusResolved    Status = "resolved"
	StatusClosed      Status = "closed"
)

// Terminal reports whether no further SLA tracking applies.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusClosed
}

const RoleOfficer = "officer"

type Complaint struct {
	ID                   int64      `json:"id"`
	Code                 string     `json:"complaint_id"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	CategoryID           *int64     `json:"category_id"`
	CategoryName         string     `json:"category_name,omitempty"`
	DepartmentID         *int64     `json:"department_id"`
	AssignedOfficerID    *int64     `json:"assigned_officer_id"`
	Status               Status     `json:"status"`
	CreatedAt            time.Time  `json:"created_at"`
	SLADeadline          *time.Time `json:"sla_deadline"`
	SLABreachPredicted   bool       `json:"sla_breach_predicted"`
	SLABreachProbability float64    `json:"sla_breach_probability"`
	ResolvedAt           *time.Time `json:"resolved_at"`
}

type Officer struct {
	ID                 int64    `json:"id"`
	Name               string   `json:"name"`
	Role               string   `json:"role"`
	DepartmentID       int64    `json:"department_id"`
	Expertise          []string `json:"expertise"`
	Rating             float64  `json:"rating"`
	ActiveLoad         int      `json:"active_complaints_count"`
	AvgResolutionHours float64  `json:"avg_resolution_time_hours"`
	TotalResolved      int      `json:"total_resolved_count"`
}

type EscalationLevel struct {
	Level     int     `json:"level"`
	AtPercent float64 `json:"at_percent"`
}

type SLARule struct {
	CategoryID       int64             `json:"category_id"`
	SLAHours         int               `json:"sla_hours"`
	EscalationLevels []EscalationLevel `json:"escalation_levels"`
}

type Escalation struct {
	ID            int64     `json:"id"`
	ComplaintID   int64     `json:"complaint_id"`
	FromOfficerID *int64    `json:"from_officer_id"`
	ToOfficerID   int64     `json:"to_officer_id"`
	Level         int       `json:"level"`
	Reason        string    `json:"reason"`
	AutoEscalated bool      `json:"auto_escalated"`
	CreatedAt     time.Time `json:"created_at"`
}

type Resolution struct {
	ComplaintID        int64     `json:"complaint_id"`
	Text               string    `json:"resolution_text"`
	TimeToResolveHours float64   `json:"time_to_resolve_hours"`
	SuccessRating      *float64  `json:"success_rating"`
	OfficerID          *int64    `json:"officer_id"`
	CreatedAt          time.Time `json:"created_at"`
}

type HistoryEntry struct {
	ComplaintID int64  `json:"complaint_id"`
	Action      string `json:"action"`
	PerformedBy *int64 `json:"performed_by"`
	Notes       string `json:"notes"`
}

// SLACandidate is a non-terminal complaint joined with its category rule,
// as read by the escalation sweep.
type SLACandidate struct {
	Complaint        Complaint
	EscalationLevels []EscalationLevel
	EscalatedLevels  map[int]bool
}

// Notice is an escalation or breach whose event has not been confirmed on
// the bus yet.
type Notice struct {
	ComplaintID  int64
	Code         string
	CategoryName string
	Breach       bool
	Level        int
	ToOfficerID  int64
}
