package dispatch

import (
	"context"
	"fmt"

	"wisefido-guardian/internal/config"
	"wisefido-guardian/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Sink 将分发计划交给外部通知分发方（推送/短信/邮件/语音由对方负责投递）
type Sink interface {
	Name() string
	Send(ctx context.Context, plan *models.DispatchPlan) error
	Close() error
}

// New 按配置创建 Sink
func New(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) (Sink, error) {
	switch cfg.Guardian.Dispatch.Sink {
	case "redis":
		return NewRedisStreamSink(redisClient, cfg.Guardian.Streams.Dispatch, logger), nil
	case "webhook":
		return NewWebhookSink(cfg.Guardian.Dispatch.WebhookURL, cfg.Guardian.Dispatch.Timeout, logger), nil
	case "kafka":
		return NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.DispatchTopic, logger)
	default:
		return nil, fmt.Errorf("unknown dispatch sink: %q", cfg.Guardian.Dispatch.Sink)
	}
}
