package consumer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Subscriber MQTT 订阅接口（由 internal/mqtt.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
	Unsubscribe(topics ...string) error
}

// MQTTEventConsumer 设备事件消费者
// 主题格式: guardian/events/{subject_id}，负载为 JSON 事件；负载缺少 subject_id 时取主题中的值
type MQTTEventConsumer struct {
	subscriber Subscriber
	topic      string
	qos        byte
	handler    Handler
	logger     *zap.Logger
}

// NewMQTTEventConsumer 创建设备事件消费者
func NewMQTTEventConsumer(subscriber Subscriber, topic string, qos byte, handler Handler, logger *zap.Logger) *MQTTEventConsumer {
	return &MQTTEventConsumer{
		subscriber: subscriber,
		topic:      topic,
		qos:        qos,
		handler:    handler,
		logger:     logger,
	}
}

// Start 订阅后阻塞到 ctx 取消
func (c *MQTTEventConsumer) Start(ctx context.Context) error {
	err := c.subscriber.Subscribe(c.topic, c.qos, func(topic string, payload []byte) error {
		return c.HandleMessage(ctx, topic, payload)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to event topic: %w", err)
	}

	c.logger.Info("MQTT event consumer started", zap.String("topic", c.topic))
	<-ctx.Done()
	return nil
}

// Stop 取消订阅
func (c *MQTTEventConsumer) Stop() {
	if err := c.subscriber.Unsubscribe(c.topic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	c.logger.Info("MQTT event consumer stopped")
}

// HandleMessage 处理一条 MQTT 消息
func (c *MQTTEventConsumer) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	ev, err := DecodeEvent(payload)
	if err != nil {
		return err
	}
	if ev.SubjectID == "" {
		ev.SubjectID = subjectFromTopic(topic)
	}
	return c.handler.HandleEvent(ctx, ev)
}

func subjectFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[len(parts)-1]
}
