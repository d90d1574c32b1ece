package models

import "time"

// AuditRecord 一次权限检查的审计记录
type AuditRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	RequesterID string    `json:"requester_id"`
	Role        Role      `json:"role"`
	SubjectID   string    `json:"subject_id"`
	Category    Category  `json:"category"`
	Action      Action    `json:"action"`
	Allowed     bool      `json:"allowed"`
	Reason      string    `json:"reason"`
}

// Transition 报警状态变更
type Transition string

const (
	TransitionCreated      Transition = "created"
	TransitionAcknowledged Transition = "acknowledged"
	TransitionEscalated    Transition = "escalated"
)

// AlertTransition 报警状态变更的审计记录
type AlertTransition struct {
	Timestamp  time.Time  `json:"timestamp"`
	AlertID    string     `json:"alert_id"`
	SubjectID  string     `json:"subject_id"`
	Transition Transition `json:"transition"`
	ActorID    string     `json:"actor_id,omitempty"`
	Applied    bool       `json:"applied"`
}
