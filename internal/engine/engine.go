package engine

import (
	"errors"
	"strings"
	"time"

	"wisefido-guardian/internal/anomaly"
	"wisefido-guardian/internal/models"
	"wisefido-guardian/internal/permission"
	"wisefido-guardian/internal/preference"
	"wisefido-guardian/internal/prioritizer"

	"github.com/google/uuid"
)

// ErrMissingSubject 事件缺少受监护人ID
var ErrMissingSubject = errors.New("subject_id is required")

// Engine 决策引擎：无共享可变状态，可并发调用
type Engine struct {
	now                 func() time.Time
	newID               func() string
	escalationThreshold int
}

// Option 引擎选项
type Option func(*Engine)

// WithClock 注入时钟
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator 注入报警ID生成器
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithEscalationThreshold 升级阈值（分钟）
func WithEscalationThreshold(minutes int) Option {
	return func(e *Engine) { e.escalationThreshold = minutes }
}

// New 创建决策引擎
func New(opts ...Option) *Engine {
	e := &Engine{
		now:                 time.Now,
		newID:               func() string { return uuid.New().String() },
		escalationThreshold: prioritizer.DefaultEscalationThresholdMinutes,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now 引擎时钟
func (e *Engine) Now() time.Time {
	return e.now()
}

// ReadingResult 一次读数评估的结果
type ReadingResult struct {
	Findings  []models.AnomalyFinding
	Highest   models.Severity
	Triggered bool
	// Alerts 达到触发阈值的异常各生成一条报警
	Alerts []models.Alert
}

// EvaluateReading 读数 → 异常 → 报警
func (e *Engine) EvaluateReading(reading *models.VitalsReading, baseline models.Baseline) (*ReadingResult, error) {
	findings, err := anomaly.DetectAnomalies(reading, baseline)
	if err != nil {
		return nil, err
	}

	result := &ReadingResult{
		Findings:  findings,
		Highest:   anomaly.GetHighestSeverity(findings),
		Triggered: anomaly.ShouldTriggerAlert(findings),
		Alerts:    make([]models.Alert, 0),
	}
	if !result.Triggered {
		return result, nil
	}

	at := reading.Timestamp
	if at.IsZero() {
		at = e.now()
	}
	builder := NewAlertBuilder(reading.SubjectID, e.newID)
	for _, f := range findings {
		if f.Severity < models.SeverityMedium {
			continue
		}
		result.Alerts = append(result.Alerts, builder.BuildFromFinding(f, at))
	}
	return result, nil
}

// AlertFromEvent 离散事件 → 报警
func (e *Engine) AlertFromEvent(ev *models.Event) (*models.Alert, error) {
	if ev == nil || strings.TrimSpace(ev.SubjectID) == "" {
		return nil, ErrMissingSubject
	}
	normalized := *ev
	if normalized.Timestamp.IsZero() {
		normalized.Timestamp = e.now()
	}
	alert, err := NewAlertBuilder(ev.SubjectID, e.newID).BuildFromEvent(&normalized)
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// EscalationCandidates 需要升级的报警
func (e *Engine) EscalationCandidates(alerts []models.Alert) []models.Alert {
	return prioritizer.GetAlertsNeedingEscalation(alerts, e.escalationThreshold, e.now())
}

// FindDuplicate 返回与 alert 相关且仍未确认的已有报警中级别最高的一条（没有时为 nil）
func (e *Engine) FindDuplicate(alert *models.Alert, open []models.Alert) *models.Alert {
	var dup *models.Alert
	for i := range open {
		if open[i].ID == alert.ID || open[i].Acknowledged {
			continue
		}
		if !prioritizer.AreAlertsRelated(&open[i], alert) {
			continue
		}
		if dup == nil || open[i].Severity > dup.Severity {
			dup = &open[i]
		}
	}
	return dup
}

// Suppresses 已打开的相关报警 dup 是否足以覆盖新报警：只有级别不升高时才不再分发
func Suppresses(dup, alert *models.Alert) bool {
	return dup != nil && alert.Severity <= dup.Severity
}

// Recipient 候选接收人：关联关系加通知偏好（偏好可为 nil）
type Recipient struct {
	Link        *models.CareCircleLink
	Preferences *models.RecipientPreferences
}

// PlanDispatch 排序 → 合并 → 对每组逐个候选人做权限判定与偏好判定，生成有序的分发计划
func (e *Engine) PlanDispatch(alerts []models.Alert, recipients []Recipient) *models.DispatchPlan {
	now := e.now()
	plan := &models.DispatchPlan{
		GeneratedAt:  now,
		Instructions: make([]models.DispatchInstruction, 0),
		Decisions:    make([]models.AuditRecord, 0),
	}

	scored := prioritizer.ScoreAlerts(alerts, now)
	ordered := make([]models.Alert, len(scored))
	scores := make(map[string]float64, len(scored))
	for i, s := range scored {
		ordered[i] = s.Alert
		scores[s.Alert.ID] = s.Score
	}

	for _, group := range prioritizer.ConsolidateAlerts(ordered) {
		primary := group.Seed()
		message := prioritizer.CreateConsolidatedMessage(group)
		escalated := false
		for _, a := range group.Alerts {
			escalated = escalated || a.Escalated
		}

		for _, r := range recipients {
			if r.Link == nil || r.Link.SubjectID != primary.SubjectID {
				continue
			}
			recipientID := r.Link.CaregiverID

			allowed, decisions := permission.CanReceiveAlert(r.Link, recipientID, &primary)
			for _, d := range decisions {
				plan.Decisions = append(plan.Decisions, d.AuditRecord(now))
			}
			if !allowed {
				continue
			}

			channels := preference.Channels(r.Preferences, &primary)
			if len(channels) == 0 {
				continue
			}

			plan.Instructions = append(plan.Instructions, models.DispatchInstruction{
				AlertID:       primary.ID,
				GroupAlertIDs: group.IDs(),
				SubjectID:     primary.SubjectID,
				RecipientID:   recipientID,
				Channels:      channels,
				AlertType:     primary.Type,
				Severity:      group.HighestSeverity(),
				Priority:      scores[primary.ID],
				Escalated:     escalated,
				Message:       message,
				Payload: permission.FilterDataByPermissions(
					alertPayload(&primary),
					r.Link.Permissions,
					permission.AlertFieldCategories,
				),
			})
		}
	}
	return plan
}
