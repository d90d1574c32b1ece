package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wisefido-guardian/internal/models"

	"go.uber.org/zap"
)

// ErrAlertNotFound 报警不存在
var ErrAlertNotFound = errors.New("alert not found")

// AlertRepository 报警仓库
// acknowledged / escalated 只能由 false 变为 true，更新都带条件，重复调用返回 applied=false
type AlertRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertRepository 创建报警仓库
func NewAlertRepository(db *sql.DB, logger *zap.Logger) *AlertRepository {
	return &AlertRepository{
		db:     db,
		logger: logger,
	}
}

const alertColumns = `
	alert_id,
	subject_id,
	alert_type,
	severity,
	triggered_at,
	message,
	acknowledged,
	escalated,
	related_data
`

func scanAlert(row rowScanner) (*models.Alert, error) {
	var a models.Alert
	var alertType, severity string
	var related []byte

	if err := row.Scan(
		&a.ID,
		&a.SubjectID,
		&alertType,
		&severity,
		&a.Timestamp,
		&a.Message,
		&a.Acknowledged,
		&a.Escalated,
		&related,
	); err != nil {
		return nil, err
	}

	a.Type = models.AlertType(alertType)
	sev, err := models.ParseSeverity(severity)
	if err != nil {
		return nil, fmt.Errorf("alert %s: %w", a.ID, err)
	}
	a.Severity = sev
	if len(related) > 0 {
		if err := json.Unmarshal(related, &a.RelatedData); err != nil {
			return nil, fmt.Errorf("failed to decode related_data: %w", err)
		}
	}
	return &a, nil
}

// Create 写入新报警
func (r *AlertRepository) Create(ctx context.Context, a *models.Alert) error {
	if a.ID == "" || a.SubjectID == "" {
		return fmt.Errorf("alert_id and subject_id are required")
	}
	related, err := json.Marshal(a.RelatedData)
	if err != nil {
		return fmt.Errorf("failed to encode related_data: %w", err)
	}

	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.ExecContext(ctx, query,
		a.ID,
		a.SubjectID,
		string(a.Type),
		a.Severity.String(),
		a.Timestamp,
		a.Message,
		a.Acknowledged,
		a.Escalated,
		related,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	r.logger.Debug("Created alert",
		zap.String("alert_id", a.ID),
		zap.String("subject_id", a.SubjectID),
		zap.String("type", string(a.Type)),
	)
	return nil
}

// Get 根据 alert_id 查询
func (r *AlertRepository) Get(ctx context.Context, alertID string) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE alert_id = $1`
	a, err := scanAlert(r.db.QueryRowContext(ctx, query, alertID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAlertNotFound, alertID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return a, nil
}

func (r *AlertRepository) list(ctx context.Context, query string, args ...any) ([]models.Alert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]models.Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}

// ListOpen 所有未确认的报警（升级巡检使用）
func (r *AlertRepository) ListOpen(ctx context.Context) ([]models.Alert, error) {
	query := `SELECT ` + alertColumns + `
		FROM alerts
		WHERE acknowledged = false
		ORDER BY triggered_at
	`
	return r.list(ctx, query)
}

// ListOpenBySubject 受监护人未确认的报警，since 之后触发的（去重与合并的工作集）
func (r *AlertRepository) ListOpenBySubject(ctx context.Context, subjectID string, since time.Time) ([]models.Alert, error) {
	query := `SELECT ` + alertColumns + `
		FROM alerts
		WHERE subject_id = $1
		  AND acknowledged = false
		  AND triggered_at >= $2
		ORDER BY triggered_at
	`
	return r.list(ctx, query, subjectID, since)
}

// MarkEscalated 条件更新：仅当未升级且未确认时置为已升级
func (r *AlertRepository) MarkEscalated(ctx context.Context, alertID string, at time.Time) (bool, error) {
	query := `
		UPDATE alerts
		SET escalated = true, escalated_at = $2
		WHERE alert_id = $1
		  AND escalated = false
		  AND acknowledged = false
	`
	return r.conditionalUpdate(ctx, "escalate", query, alertID, at)
}

// Acknowledge 条件更新：仅当未确认时置为已确认
func (r *AlertRepository) Acknowledge(ctx context.Context, alertID, actorID string, at time.Time) (bool, error) {
	query := `
		UPDATE alerts
		SET acknowledged = true, acknowledged_by = $2, acknowledged_at = $3
		WHERE alert_id = $1
		  AND acknowledged = false
	`
	return r.conditionalUpdate(ctx, "acknowledge", query, alertID, actorID, at)
}

func (r *AlertRepository) conditionalUpdate(ctx context.Context, op, query string, args ...any) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to %s alert: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to %s alert: %w", op, err)
	}
	return n == 1, nil
}
