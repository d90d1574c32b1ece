package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wisefido-guardian/internal/models"
	"wisefido-guardian/internal/streams"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Handler 读数与事件的处理方（GuardianService 实现）
type Handler interface {
	HandleReading(ctx context.Context, reading *models.VitalsReading) error
	HandleEvent(ctx context.Context, ev *models.Event) error
}

// StreamOptions 消费者组参数
type StreamOptions struct {
	Stream       string
	Group        string
	ConsumerName string
	BatchSize    int64
	BlockTimeout time.Duration
}

// StreamConsumer Redis Streams 消费者
type StreamConsumer struct {
	redisClient *redis.Client
	opts        StreamOptions
	process     func(ctx context.Context, msg streams.Message) error
	logger      *zap.Logger
}

// NewReadingConsumer 读数流消费者
func NewReadingConsumer(redisClient *redis.Client, opts StreamOptions, handler Handler, logger *zap.Logger) *StreamConsumer {
	return &StreamConsumer{
		redisClient: redisClient,
		opts:        opts,
		logger:      logger.With(zap.String("stream", opts.Stream)),
		process: func(ctx context.Context, msg streams.Message) error {
			reading, err := ParseReading(msg)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
			}
			return handler.HandleReading(ctx, reading)
		},
	}
}

// NewEventConsumer 离散事件流消费者
func NewEventConsumer(redisClient *redis.Client, opts StreamOptions, handler Handler, logger *zap.Logger) *StreamConsumer {
	return &StreamConsumer{
		redisClient: redisClient,
		opts:        opts,
		logger:      logger.With(zap.String("stream", opts.Stream)),
		process: func(ctx context.Context, msg streams.Message) error {
			ev, err := ParseEvent(msg)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
			}
			return handler.HandleEvent(ctx, ev)
		},
	}
}

// Start 阻塞消费直到 ctx 取消（读失败时指数退避）
func (c *StreamConsumer) Start(ctx context.Context) error {
	if err := streams.CreateConsumerGroup(ctx, c.redisClient, c.opts.Stream, c.opts.Group); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("Stream consumer started",
		zap.String("consumer_group", c.opts.Group),
		zap.String("consumer_name", c.opts.ConsumerName),
	)

	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Stream consumer stopped")
			return nil
		default:
		}

		if err := c.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to consume stream",
				zap.Error(err),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
			continue
		}
		backoff = time.Second
	}
}

// Poll 读取一批消息并逐条处理；处理失败的消息不确认（留在 pending 中等待重试），
// 无法解析的消息记录后直接确认
func (c *StreamConsumer) Poll(ctx context.Context) error {
	messages, err := streams.ReadGroup(ctx, c.redisClient,
		c.opts.Stream, c.opts.Group, c.opts.ConsumerName,
		c.opts.BatchSize, c.opts.BlockTimeout,
	)
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, msg := range messages {
		if err := c.process(ctx, msg); err != nil {
			if !errors.Is(err, ErrMalformedMessage) {
				c.logger.Error("Failed to process message",
					zap.String("message_id", msg.ID),
					zap.Error(err),
				)
				continue
			}
			c.logger.Warn("Dropping malformed message",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
		if err := streams.Ack(ctx, c.redisClient, c.opts.Stream, c.opts.Group, msg.ID); err != nil {
			c.logger.Warn("Failed to ack message",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}
