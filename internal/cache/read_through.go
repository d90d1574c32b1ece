package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// absent 缓存“不存在”本身，避免对没有配置的键反复回源
const absent = "null"

// readThrough 通用读穿逻辑：命中则解码；未命中则回源并写回（写回失败只记日志）
// load 返回 found=false 表示源中不存在
func readThrough[T any](
	ctx context.Context,
	kv KVStore,
	logger *zap.Logger,
	key string,
	ttl time.Duration,
	load func(ctx context.Context) (T, bool, error),
) (T, bool, error) {
	var zero T

	raw, err := kv.Get(ctx, key)
	switch {
	case err == nil:
		if raw == absent {
			return zero, false, nil
		}
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			return v, true, nil
		}
		logger.Warn("Discarding undecodable cache entry", zap.String("key", key))
	case !errors.Is(err, ErrCacheMiss):
		// Redis 不可用时直接回源
		logger.Warn("Cache read failed, falling back to store", zap.String("key", key), zap.Error(err))
	}

	v, found, err := load(ctx)
	if err != nil {
		return zero, false, err
	}

	encoded := absent
	if found {
		b, err := json.Marshal(v)
		if err != nil {
			return zero, false, fmt.Errorf("failed to marshal cache entry: %w", err)
		}
		encoded = string(b)
	}
	if err := kv.Set(ctx, key, encoded, ttl); err != nil {
		logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
	return v, found, nil
}
