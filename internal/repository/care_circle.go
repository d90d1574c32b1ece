package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"wisefido-guardian/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// CareCircleRepository 护理圈关联仓库
// 表 care_circle_links：permissions 为 JSONB，write_grants 为 text[]
type CareCircleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCareCircleRepository 创建护理圈关联仓库
func NewCareCircleRepository(db *sql.DB, logger *zap.Logger) *CareCircleRepository {
	return &CareCircleRepository{
		db:     db,
		logger: logger,
	}
}

const careCircleColumns = `
	subject_id,
	caregiver_id,
	relationship_type,
	permissions,
	write_grants,
	status,
	joined_at,
	last_active_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*models.CareCircleLink, error) {
	var link models.CareCircleLink
	var permissions []byte
	var grants []string
	var status string

	if err := row.Scan(
		&link.SubjectID,
		&link.CaregiverID,
		&link.RelationshipType,
		&permissions,
		pq.Array(&grants),
		&status,
		&link.JoinedAt,
		&link.LastActiveAt,
	); err != nil {
		return nil, err
	}

	if len(permissions) > 0 {
		if err := json.Unmarshal(permissions, &link.Permissions); err != nil {
			return nil, fmt.Errorf("failed to decode permissions: %w", err)
		}
	}
	link.Status = models.LinkStatus(status)
	for _, g := range grants {
		link.WriteGrants = append(link.WriteGrants, models.Category(g))
	}
	return &link, nil
}

// GetLink 查询一条关联；不存在时返回 nil, nil
func (r *CareCircleRepository) GetLink(ctx context.Context, subjectID, caregiverID string) (*models.CareCircleLink, error) {
	if subjectID == "" || caregiverID == "" {
		return nil, fmt.Errorf("subject_id and caregiver_id are required")
	}

	query := `SELECT ` + careCircleColumns + `
		FROM care_circle_links
		WHERE subject_id = $1
		  AND caregiver_id = $2
	`
	link, err := scanLink(r.db.QueryRowContext(ctx, query, subjectID, caregiverID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get care circle link: %w", err)
	}
	return link, nil
}

// ListLinksBySubject 受监护人的全部关联（按加入时间排序，决定分发时候选人的顺序）
func (r *CareCircleRepository) ListLinksBySubject(ctx context.Context, subjectID string) ([]models.CareCircleLink, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("subject_id is required")
	}

	query := `SELECT ` + careCircleColumns + `
		FROM care_circle_links
		WHERE subject_id = $1
		ORDER BY joined_at, caregiver_id
	`
	rows, err := r.db.QueryContext(ctx, query, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list care circle links: %w", err)
	}
	defer rows.Close()

	links := make([]models.CareCircleLink, 0)
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan care circle link: %w", err)
		}
		links = append(links, *link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate care circle links: %w", err)
	}
	return links, nil
}

// UpsertLink 写入或更新关联
func (r *CareCircleRepository) UpsertLink(ctx context.Context, link *models.CareCircleLink) error {
	permissions, err := json.Marshal(link.Permissions)
	if err != nil {
		return fmt.Errorf("failed to encode permissions: %w", err)
	}
	grants := make([]string, len(link.WriteGrants))
	for i, g := range link.WriteGrants {
		grants[i] = string(g)
	}

	query := `
		INSERT INTO care_circle_links (
			subject_id, caregiver_id, relationship_type, permissions,
			write_grants, status, joined_at, last_active_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (subject_id, caregiver_id) DO UPDATE SET
			relationship_type = EXCLUDED.relationship_type,
			permissions = EXCLUDED.permissions,
			write_grants = EXCLUDED.write_grants,
			status = EXCLUDED.status,
			last_active_at = EXCLUDED.last_active_at
	`
	_, err = r.db.ExecContext(ctx, query,
		link.SubjectID,
		link.CaregiverID,
		link.RelationshipType,
		permissions,
		pq.Array(grants),
		string(link.Status),
		link.JoinedAt,
		link.LastActiveAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert care circle link: %w", err)
	}

	r.logger.Debug("Upserted care circle link",
		zap.String("subject_id", link.SubjectID),
		zap.String("caregiver_id", link.CaregiverID),
	)
	return nil
}
