package cache

import (
	"context"
	"fmt"
	"time"

	"wisefido-guardian/internal/models"

	"go.uber.org/zap"
)

// PreferenceStore 通知偏好的持久化来源，没有配置时返回 nil, nil
type PreferenceStore interface {
	GetPreferences(ctx context.Context, recipientID string) (*models.RecipientPreferences, error)
}

// PreferenceCache 通知偏好的读穿缓存（实现 preference.Source）
type PreferenceCache struct {
	store  PreferenceStore
	kv     KVStore
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewPreferenceCache 创建偏好缓存
func NewPreferenceCache(store PreferenceStore, kv KVStore, prefix string, ttl time.Duration, logger *zap.Logger) *PreferenceCache {
	return &PreferenceCache{
		store:  store,
		kv:     kv,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *PreferenceCache) key(recipientID string) string {
	return fmt.Sprintf("%sprefs:%s", c.prefix, recipientID)
}

// GetPreferences 读取接收人的通知偏好
func (c *PreferenceCache) GetPreferences(ctx context.Context, recipientID string) (*models.RecipientPreferences, error) {
	prefs, found, err := readThrough(ctx, c.kv, c.logger, c.key(recipientID), c.ttl,
		func(ctx context.Context) (models.RecipientPreferences, bool, error) {
			p, err := c.store.GetPreferences(ctx, recipientID)
			if err != nil || p == nil {
				return models.RecipientPreferences{}, false, err
			}
			return *p, true, nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to get notification preferences: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &prefs, nil
}

// Invalidate 偏好变更后清除缓存
func (c *PreferenceCache) Invalidate(ctx context.Context, recipientID string) error {
	return c.kv.Del(ctx, c.key(recipientID))
}
