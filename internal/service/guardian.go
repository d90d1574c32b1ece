package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"wisefido-guardian/internal/anomaly"
	"wisefido-guardian/internal/dispatch"
	"wisefido-guardian/internal/engine"
	"wisefido-guardian/internal/metrics"
	"wisefido-guardian/internal/models"
	"wisefido-guardian/internal/permission"
	"wisefido-guardian/internal/preference"
	"wisefido-guardian/internal/prioritizer"

	"go.uber.org/zap"
)

// ErrNotPermitted 操作者无权处理该报警
var ErrNotPermitted = errors.New("not permitted")

// AlertStore 报警持久化（repository.AlertRepository 实现）
type AlertStore interface {
	Create(ctx context.Context, a *models.Alert) error
	Get(ctx context.Context, alertID string) (*models.Alert, error)
	ListOpen(ctx context.Context) ([]models.Alert, error)
	ListOpenBySubject(ctx context.Context, subjectID string, since time.Time) ([]models.Alert, error)
	MarkEscalated(ctx context.Context, alertID string, at time.Time) (bool, error)
	Acknowledge(ctx context.Context, alertID, actorID string, at time.Time) (bool, error)
}

// BaselineStore 个人基线（repository.BaselineRepository 实现）
type BaselineStore interface {
	GetBaseline(ctx context.Context, subjectID string) (models.Baseline, error)
}

// CareCircle 护理圈查询（cache.CareCircleCache 实现）
type CareCircle interface {
	permission.LinkSource
	ListLinks(ctx context.Context, subjectID string) ([]models.CareCircleLink, error)
}

// Auditor 审计（audit.Publisher 实现）
type Auditor interface {
	RecordDecisions(ctx context.Context, records []models.AuditRecord) error
	RecordTransition(ctx context.Context, t models.AlertTransition) error
}

// Guardian 读数/事件 → 报警 → 分发计划 的编排
type Guardian struct {
	engine    *engine.Engine
	alerts    AlertStore
	baselines BaselineStore
	circle    CareCircle
	prefs     preference.Source
	checker   *permission.Checker
	auditor   Auditor
	sink      dispatch.Sink
	logger    *zap.Logger
}

// NewGuardian 创建编排器
func NewGuardian(
	eng *engine.Engine,
	alerts AlertStore,
	baselines BaselineStore,
	circle CareCircle,
	prefs preference.Source,
	auditor Auditor,
	sink dispatch.Sink,
	logger *zap.Logger,
) *Guardian {
	return &Guardian{
		engine:    eng,
		alerts:    alerts,
		baselines: baselines,
		circle:    circle,
		prefs:     prefs,
		checker:   permission.NewChecker(circle),
		auditor:   auditor,
		sink:      sink,
		logger:    logger,
	}
}

// HandleReading 评估一次读数；无效读数记录后丢弃（返回 nil，消息会被确认）
func (g *Guardian) HandleReading(ctx context.Context, reading *models.VitalsReading) error {
	baseline, err := g.baselines.GetBaseline(ctx, reading.SubjectID)
	if err != nil {
		metrics.ReadingsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to load baseline: %w", err)
	}

	result, err := g.engine.EvaluateReading(reading, baseline)
	if err != nil {
		if errors.Is(err, anomaly.ErrInvalidReading) {
			metrics.ReadingsTotal.WithLabelValues("invalid").Inc()
			g.logger.Warn("Dropping invalid reading",
				zap.String("subject_id", reading.SubjectID),
				zap.Error(err),
			)
			return nil
		}
		metrics.ReadingsTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.ReadingsTotal.WithLabelValues("evaluated").Inc()

	for _, f := range result.Findings {
		metrics.FindingsTotal.WithLabelValues(string(f.Metric), f.Severity.String()).Inc()
	}

	g.logger.Debug("Evaluated reading",
		zap.String("subject_id", reading.SubjectID),
		zap.Int("finding_count", len(result.Findings)),
		zap.String("highest_severity", result.Highest.String()),
		zap.Bool("triggered", result.Triggered),
	)

	if !result.Triggered {
		return nil
	}
	return g.admit(ctx, reading.SubjectID, result.Alerts)
}

// HandleEvent 离散事件 → 报警；无法识别的事件记录后丢弃
func (g *Guardian) HandleEvent(ctx context.Context, ev *models.Event) error {
	alert, err := g.engine.AlertFromEvent(ev)
	if err != nil {
		metrics.EventsTotal.WithLabelValues(string(ev.Kind), "rejected").Inc()
		g.logger.Warn("Dropping event",
			zap.String("subject_id", ev.SubjectID),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
		return nil
	}
	metrics.EventsTotal.WithLabelValues(string(ev.Kind), "accepted").Inc()
	return g.admit(ctx, alert.SubjectID, []models.Alert{*alert})
}

// admit 持久化新报警；被已打开的相关报警覆盖（级别不升高）的只入库不分发。
// 级别升高的报警与它所加重的已打开报警一起进入分发计划，合并后按更高级别通知
func (g *Guardian) admit(ctx context.Context, subjectID string, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	since := alerts[0].Timestamp
	for _, a := range alerts[1:] {
		if a.Timestamp.Before(since) {
			since = a.Timestamp
		}
	}
	open, err := g.alerts.ListOpenBySubject(ctx, subjectID, since.Add(-prioritizer.RelatedWindow))
	if err != nil {
		return fmt.Errorf("failed to load open alerts: %w", err)
	}

	fresh := make([]models.Alert, 0, len(alerts))
	worsened := make([]models.Alert, 0)
	planned := make(map[string]bool)
	for i := range alerts {
		a := &alerts[i]
		if err := g.alerts.Create(ctx, a); err != nil {
			return err
		}
		metrics.AlertsCreated.WithLabelValues(string(a.Type), a.Severity.String()).Inc()
		g.recordTransition(ctx, a, models.TransitionCreated, "", true)

		dup := g.engine.FindDuplicate(a, open)
		if engine.Suppresses(dup, a) {
			metrics.AlertsSuppressed.WithLabelValues(string(a.Type)).Inc()
			g.logger.Info("Alert related to an open alert, not dispatching",
				zap.String("alert_id", a.ID),
				zap.String("open_alert_id", dup.ID),
				zap.String("subject_id", subjectID),
			)
			continue
		}
		if dup != nil && !planned[dup.ID] {
			g.logger.Info("Alert worsens an open alert, dispatching",
				zap.String("alert_id", a.ID),
				zap.String("open_alert_id", dup.ID),
				zap.String("severity", a.Severity.String()),
				zap.String("open_severity", dup.Severity.String()),
			)
			planned[dup.ID] = true
			worsened = append(worsened, *dup)
		}
		planned[a.ID] = true
		open = append(open, *a)
		fresh = append(fresh, *a)
	}

	return g.dispatch(ctx, subjectID, append(fresh, worsened...))
}

// dispatch 为同一受监护人的一组报警生成并发送分发计划
func (g *Guardian) dispatch(ctx context.Context, subjectID string, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	links, err := g.circle.ListLinks(ctx, subjectID)
	if err != nil {
		return err
	}

	recipients := make([]engine.Recipient, 0, len(links))
	for i := range links {
		link := &links[i]
		r := engine.Recipient{Link: link}
		if link.Active() {
			prefs, err := g.prefs.GetPreferences(ctx, link.CaregiverID)
			if err != nil {
				return err
			}
			r.Preferences = prefs
		}
		recipients = append(recipients, r)
	}

	plan := g.engine.PlanDispatch(alerts, recipients)

	for _, d := range plan.Decisions {
		metrics.PermissionDecisions.WithLabelValues(string(d.Category), strconv.FormatBool(d.Allowed)).Inc()
	}
	if err := g.auditor.RecordDecisions(ctx, plan.Decisions); err != nil {
		g.logger.Warn("Failed to record permission decisions", zap.Error(err))
	}

	if plan.Empty() {
		g.logger.Info("No eligible recipients for alerts",
			zap.String("subject_id", subjectID),
			zap.Int("alert_count", len(alerts)),
		)
		return nil
	}

	start := time.Now()
	err = g.sink.Send(ctx, plan)
	metrics.DispatchDuration.WithLabelValues(g.sink.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DispatchInstructions.WithLabelValues(g.sink.Name(), "failed").Add(float64(len(plan.Instructions)))
		return fmt.Errorf("failed to send dispatch plan: %w", err)
	}
	metrics.DispatchInstructions.WithLabelValues(g.sink.Name(), "sent").Add(float64(len(plan.Instructions)))

	g.logger.Info("Dispatched alerts",
		zap.String("subject_id", subjectID),
		zap.Int("alert_count", len(alerts)),
		zap.Int("instruction_count", len(plan.Instructions)),
	)
	return nil
}

// RunEscalationSweep 升级超时未确认的报警，只重新分发本次真正被置为已升级的报警
func (g *Guardian) RunEscalationSweep(ctx context.Context) (int, error) {
	open, err := g.alerts.ListOpen(ctx)
	if err != nil {
		metrics.EscalationSweeps.WithLabelValues("error").Inc()
		return 0, err
	}

	now := g.engine.Now()
	bySubject := make(map[string][]models.Alert)
	order := make([]string, 0)
	escalated := 0

	for _, a := range g.engine.EscalationCandidates(open) {
		applied, err := g.alerts.MarkEscalated(ctx, a.ID, now)
		if err != nil {
			metrics.EscalationSweeps.WithLabelValues("error").Inc()
			return escalated, err
		}
		g.recordTransition(ctx, &a, models.TransitionEscalated, "", applied)
		if !applied {
			continue
		}
		escalated++
		a.Escalated = true
		if _, ok := bySubject[a.SubjectID]; !ok {
			order = append(order, a.SubjectID)
		}
		bySubject[a.SubjectID] = append(bySubject[a.SubjectID], a)
	}

	for _, subjectID := range order {
		if err := g.dispatch(ctx, subjectID, bySubject[subjectID]); err != nil {
			g.logger.Error("Failed to dispatch escalated alerts",
				zap.String("subject_id", subjectID),
				zap.Error(err),
			)
		}
	}

	metrics.EscalationSweeps.WithLabelValues("ok").Inc()
	if escalated > 0 {
		g.logger.Info("Escalated alerts", zap.Int("count", escalated))
	}
	return escalated, nil
}

// Acknowledge 确认报警；操作者须为本人或有权接收报警的护理人。重复确认返回 false
func (g *Guardian) Acknowledge(ctx context.Context, alertID, actorID string) (bool, error) {
	alert, err := g.alerts.Get(ctx, alertID)
	if err != nil {
		return false, err
	}

	role := models.RoleCaregiver
	if actorID == alert.SubjectID {
		role = models.RolePrimary
	}
	decision, err := g.checker.CheckPermission(ctx, actorID, role, alert.SubjectID, models.CategoryAlerts, models.ActionRead)
	if err != nil {
		return false, err
	}
	now := g.engine.Now()
	if err := g.auditor.RecordDecisions(ctx, []models.AuditRecord{decision.AuditRecord(now)}); err != nil {
		g.logger.Warn("Failed to record permission decision", zap.Error(err))
	}
	if !decision.Allowed {
		return false, fmt.Errorf("%w: %s", ErrNotPermitted, decision.Reason)
	}

	applied, err := g.alerts.Acknowledge(ctx, alertID, actorID, now)
	if err != nil {
		return false, err
	}
	g.recordTransition(ctx, alert, models.TransitionAcknowledged, actorID, applied)
	return applied, nil
}

func (g *Guardian) recordTransition(ctx context.Context, a *models.Alert, t models.Transition, actorID string, applied bool) {
	metrics.AlertTransitions.WithLabelValues(string(t), strconv.FormatBool(applied)).Inc()
	err := g.auditor.RecordTransition(ctx, models.AlertTransition{
		Timestamp:  g.engine.Now(),
		AlertID:    a.ID,
		SubjectID:  a.SubjectID,
		Transition: t,
		ActorID:    actorID,
		Applied:    applied,
	})
	if err != nil {
		g.logger.Warn("Failed to record alert transition",
			zap.String("alert_id", a.ID),
			zap.String("transition", string(t)),
			zap.Error(err),
		)
	}
}
