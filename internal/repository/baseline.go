package repository

import (
	"context"
	"database/sql"
	"fmt"

	"wisefido-guardian/internal/models"

	"go.uber.org/zap"
)

// BaselineRepository 个体化基线仓库（表 baseline_ranges）
type BaselineRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBaselineRepository 创建基线仓库
func NewBaselineRepository(db *sql.DB, logger *zap.Logger) *BaselineRepository {
	return &BaselineRepository{
		db:     db,
		logger: logger,
	}
}

// GetBaseline 受监护人的基线；没有配置时返回空 Baseline（使用临床默认范围）
func (r *BaselineRepository) GetBaseline(ctx context.Context, subjectID string) (models.Baseline, error) {
	query := `
		SELECT subject_id, metric, min_value, max_value
		FROM baseline_ranges
		WHERE subject_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query baselines: %w", err)
	}
	defer rows.Close()

	baseline := make(models.Baseline)
	for rows.Next() {
		var row models.BaselineRange
		if err := rows.Scan(&row.SubjectID, &row.Metric, &row.Min, &row.Max); err != nil {
			return nil, fmt.Errorf("failed to scan baseline: %w", err)
		}
		if !row.Valid() {
			r.logger.Warn("Ignoring invalid baseline range",
				zap.String("subject_id", subjectID),
				zap.String("metric", string(row.Metric)),
			)
			continue
		}
		baseline[row.Metric] = row.Range
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate baselines: %w", err)
	}
	return baseline, nil
}
