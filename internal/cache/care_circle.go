package cache

import (
	"context"
	"fmt"
	"time"

	"wisefido-guardian/internal/models"

	"go.uber.org/zap"
)

// LinkStore 护理圈关联的持久化来源（repository 实现）
// GetLink 不存在时返回 nil, nil
type LinkStore interface {
	GetLink(ctx context.Context, subjectID, caregiverID string) (*models.CareCircleLink, error)
	ListLinksBySubject(ctx context.Context, subjectID string) ([]models.CareCircleLink, error)
}

// CareCircleCache 护理圈关联的读穿缓存（实现 permission.LinkSource）
type CareCircleCache struct {
	store  LinkStore
	kv     KVStore
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewCareCircleCache 创建护理圈缓存
func NewCareCircleCache(store LinkStore, kv KVStore, prefix string, ttl time.Duration, logger *zap.Logger) *CareCircleCache {
	return &CareCircleCache{
		store:  store,
		kv:     kv,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *CareCircleCache) linkKey(subjectID, caregiverID string) string {
	return fmt.Sprintf("%slink:%s:%s", c.prefix, subjectID, caregiverID)
}

func (c *CareCircleCache) circleKey(subjectID string) string {
	return fmt.Sprintf("%scircle:%s", c.prefix, subjectID)
}

// GetLink 查询单条关联，不存在时返回 nil
func (c *CareCircleCache) GetLink(ctx context.Context, subjectID, caregiverID string) (*models.CareCircleLink, error) {
	link, found, err := readThrough(ctx, c.kv, c.logger, c.linkKey(subjectID, caregiverID), c.ttl,
		func(ctx context.Context) (models.CareCircleLink, bool, error) {
			l, err := c.store.GetLink(ctx, subjectID, caregiverID)
			if err != nil || l == nil {
				return models.CareCircleLink{}, false, err
			}
			return *l, true, nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to get care circle link: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &link, nil
}

// ListLinks 受监护人的全部护理圈关联（含非活跃关联，由权限模型判定）
func (c *CareCircleCache) ListLinks(ctx context.Context, subjectID string) ([]models.CareCircleLink, error) {
	links, _, err := readThrough(ctx, c.kv, c.logger, c.circleKey(subjectID), c.ttl,
		func(ctx context.Context) ([]models.CareCircleLink, bool, error) {
			ls, err := c.store.ListLinksBySubject(ctx, subjectID)
			if err != nil {
				return nil, false, err
			}
			return ls, true, nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list care circle: %w", err)
	}
	if links == nil {
		links = []models.CareCircleLink{}
	}
	return links, nil
}

// Invalidate 关联变更后清除缓存
func (c *CareCircleCache) Invalidate(ctx context.Context, subjectID, caregiverID string) error {
	return c.kv.Del(ctx, c.linkKey(subjectID, caregiverID), c.circleKey(subjectID))
}
