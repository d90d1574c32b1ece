package models

import "time"

// DispatchInstruction 交给通知分发服务的一条 (alert, recipient, channels) 指令
type DispatchInstruction struct {
	AlertID       string         `json:"alert_id"`
	GroupAlertIDs []string       `json:"group_alert_ids"`
	SubjectID     string         `json:"subject_id"`
	RecipientID   string         `json:"recipient_id"`
	Channels      []Channel      `json:"channels"`
	AlertType     AlertType      `json:"alert_type"`
	Severity      Severity       `json:"severity"`
	Priority      float64        `json:"priority"`
	Escalated     bool           `json:"escalated"`
	Message       string         `json:"message"`
	Payload       map[string]any `json:"payload"`
}

// DispatchPlan 有序的、按接收人拆分的分发计划
type DispatchPlan struct {
	GeneratedAt  time.Time             `json:"generated_at"`
	Instructions []DispatchInstruction `json:"instructions"`
	// Decisions 本次计划中做出的所有权限判定（供审计）
	Decisions []AuditRecord `json:"decisions"`
}

// Empty 没有需要发送的指令
func (p *DispatchPlan) Empty() bool {
	return p == nil || len(p.Instructions) == 0
}
