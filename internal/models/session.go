package models

import (
	"time"

	"gorm.io/datatypes"
)

// SessionState is the lifecycle state of an interview session.
type SessionState string

const (
	StatePending   SessionState = "pending"
	StateReady     SessionState = "ready"
	StateActive    SessionState = "active"
	StateCompleted SessionState = "completed"
	StateFailed    SessionState = "failed"
	StateCancelled SessionState = "cancelled"
)

// transitions is the single authority on legal state changes. Anything not
// listed here is rejected by the session service.
var transitions = map[SessionState][]SessionState{
	StatePending: {StateReady, StateFailed, StateCancelled},
	StateReady:   {StateActive, StateCancelled},
	StateActive:  {StateCompleted, StateFailed, StateCancelled},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to SessionState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s has no outgoing transitions.
func (s SessionState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Valid reports whether s is a known state.
func (s SessionState) Valid() bool {
	switch s {
	case StatePending, StateReady, StateActive, StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

type Session struct {
	ID         string       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrgID      string       `gorm:"column:org_id;type:text;index" json:"org_id"`
	TemplateID string       `gorm:"column:template_id;type:uuid;index" json:"template_id"`
	State      SessionState `gorm:"column:state;type:text;index" json:"state"`

	// WorkerID and RoomName are set once provisioning succeeds (pending -> ready).
	WorkerID *string `gorm:"column:worker_id;type:text" json:"worker_id,omitempty"`
	RoomName *string `gorm:"column:room_name;type:text" json:"room_name,omitempty"`

	// FailureReason is populated when the session ends in failed.
	FailureReason string `gorm:"column:failure_reason;type:text" json:"failure_reason,omitempty"`

	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`

	CreatedAt   time.Time  `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	StartedAt   *time.Time `gorm:"column:started_at;type:timestamptz" json:"started_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at;type:timestamptz" json:"completed_at,omitempty"`

	DurationSeconds *int64 `gorm:"column:duration_seconds" json:"duration_seconds,omitempty"`
}

func (Session) TableName() string { return "sessions" }

// SessionMetadata is the caller-supplied context for an interview attempt.
// Stored as jsonb, opaque to the orchestration core.
type SessionMetadata struct {
	InterviewType string `json:"interview_type,omitempty"`
	CompanyName   string `json:"company_name,omitempty"`
	Position      string `json:"position,omitempty"`
	CandidateName string `json:"candidate_name,omitempty"`
}
