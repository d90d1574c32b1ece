package dispatch

import (
	"context"
	"fmt"

	"wisefido-guardian/internal/models"
	"wisefido-guardian/internal/streams"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisStreamSink 每条分发指令作为一条消息写入分发流（保持计划顺序）
type RedisStreamSink struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

// NewRedisStreamSink 创建 Redis Streams sink
func NewRedisStreamSink(client *redis.Client, stream string, logger *zap.Logger) *RedisStreamSink {
	return &RedisStreamSink{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (s *RedisStreamSink) Name() string { return "redis" }

func (s *RedisStreamSink) Send(ctx context.Context, plan *models.DispatchPlan) error {
	for i := range plan.Instructions {
		in := &plan.Instructions[i]
		id, err := streams.PublishJSON(ctx, s.client, s.stream, in)
		if err != nil {
			return fmt.Errorf("failed to publish dispatch instruction %s: %w", in.AlertID, err)
		}
		s.logger.Debug("Published dispatch instruction",
			zap.String("alert_id", in.AlertID),
			zap.String("recipient_id", in.RecipientID),
			zap.String("stream_id", id),
		)
	}
	return nil
}

func (s *RedisStreamSink) Close() error { return nil }
