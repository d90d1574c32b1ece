package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wisefido-guardian/internal/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter kafka.Writer 的最小接口（测试中替换）
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink 每条指令一条 Kafka 消息，以接收人ID为 key（同一接收人的指令落在同一分区，保持顺序）
type KafkaSink struct {
	writer messageWriter
	logger *zap.Logger
}

// NewKafkaSink 创建 Kafka sink
func NewKafkaSink(brokers []string, topic string, logger *zap.Logger) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if topic == "" {
		return nil, errors.New("kafka dispatch topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
	}
	return newKafkaSink(writer, logger), nil
}

func newKafkaSink(writer messageWriter, logger *zap.Logger) *KafkaSink {
	return &KafkaSink{
		writer: writer,
		logger: logger,
	}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Send(ctx context.Context, plan *models.DispatchPlan) error {
	if len(plan.Instructions) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(plan.Instructions))
	for i := range plan.Instructions {
		in := &plan.Instructions[i]
		value, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal dispatch instruction: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(in.RecipientID),
			Value: value,
			Time:  plan.GeneratedAt,
			Headers: []kafka.Header{
				{Key: "alert_id", Value: []byte(in.AlertID)},
				{Key: "severity", Value: []byte(in.Severity.String())},
			},
		})
	}

	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to write dispatch messages: %w", err)
	}
	s.logger.Debug("Wrote dispatch plan to kafka", zap.Int("message_count", len(msgs)))
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
