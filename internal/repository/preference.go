package repository

import (
	"context"
	"database/sql"
	"fmt"

	"wisefido-guardian/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PreferenceRepository 通知偏好仓库
// 表 notification_preferences：每个 (recipient_id, alert_type) 一行
type PreferenceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPreferenceRepository 创建通知偏好仓库
func NewPreferenceRepository(db *sql.DB, logger *zap.Logger) *PreferenceRepository {
	return &PreferenceRepository{
		db:     db,
		logger: logger,
	}
}

// GetPreferences 接收人的全部偏好；没有任何行时返回 nil, nil
func (r *PreferenceRepository) GetPreferences(ctx context.Context, recipientID string) (*models.RecipientPreferences, error) {
	if recipientID == "" {
		return nil, fmt.Errorf("recipient_id is required")
	}

	query := `
		SELECT
			alert_type,
			enabled,
			allowed_severities,
			channels
		FROM notification_preferences
		WHERE recipient_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notification preferences: %w", err)
	}
	defer rows.Close()

	prefs := &models.RecipientPreferences{
		RecipientID: recipientID,
		ByType:      make(map[models.AlertType]models.NotificationPreference),
	}
	for rows.Next() {
		var alertType string
		var severities, channels []string
		var p models.NotificationPreference

		if err := rows.Scan(&alertType, &p.Enabled, pq.Array(&severities), pq.Array(&channels)); err != nil {
			return nil, fmt.Errorf("failed to scan notification preference: %w", err)
		}
		p.AlertType = models.AlertType(alertType)
		for _, s := range severities {
			sev, err := models.ParseSeverity(s)
			if err != nil {
				r.logger.Warn("Ignoring unknown severity in preference",
					zap.String("recipient_id", recipientID),
					zap.String("severity", s),
				)
				continue
			}
			p.AllowedSeverities = append(p.AllowedSeverities, sev)
		}
		for _, c := range channels {
			p.Channels = append(p.Channels, models.Channel(c))
		}
		prefs.ByType[p.AlertType] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notification preferences: %w", err)
	}

	if len(prefs.ByType) == 0 {
		return nil, nil
	}
	return prefs, nil
}

// SavePreference 写入或更新一条偏好
func (r *PreferenceRepository) SavePreference(ctx context.Context, recipientID string, p models.NotificationPreference) error {
	severities := make([]string, len(p.AllowedSeverities))
	for i, s := range p.AllowedSeverities {
		severities[i] = s.String()
	}
	channels := make([]string, len(p.Channels))
	for i, c := range p.Channels {
		channels[i] = string(c)
	}

	query := `
		INSERT INTO notification_preferences (recipient_id, alert_type, enabled, allowed_severities, channels)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (recipient_id, alert_type) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			allowed_severities = EXCLUDED.allowed_severities,
			channels = EXCLUDED.channels
	`
	if _, err := r.db.ExecContext(ctx, query,
		recipientID,
		string(p.AlertType),
		p.Enabled,
		pq.Array(severities),
		pq.Array(channels),
	); err != nil {
		return fmt.Errorf("failed to save notification preference: %w", err)
	}
	return nil
}
