package streams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// DataField JSON 负载所在字段
const DataField = "data"

// Message Redis Streams 消息
type Message struct {
	Stream string
	ID     string
	Values map[string]interface{}
}

// Data 取出 data 字段（JSON 文本）
func (m Message) Data() (string, bool) {
	v, ok := m.Values[DataField]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Publish 发布消息到 Redis Streams，非字符串值会被转成字符串
func Publish(ctx context.Context, client *redis.Client, stream string, values map[string]interface{}) (string, error) {
	fields := make(map[string]interface{}, len(values))
	for k, v := range values {
		s, err := stringify(v)
		if err != nil {
			return "", fmt.Errorf("failed to encode field %s: %w", k, err)
		}
		fields[k] = s
	}

	return client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: fields,
	}).Result()
}

func stringify(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

// PublishJSON 以 {"data": <json>, "timestamp": <unix>} 的形式发布
func PublishJSON(ctx context.Context, client *redis.Client, stream string, data interface{}) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stream payload: %w", err)
	}
	return Publish(ctx, client, stream, map[string]interface{}{
		DataField:   string(b),
		"timestamp": time.Now().Unix(),
	})
}

// CreateConsumerGroup 创建消费者组（流不存在时一并创建，组已存在视为成功）
func CreateConsumerGroup(ctx context.Context, client *redis.Client, stream, group string) error {
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s on %s: %w", group, stream, err)
	}
	return nil
}

// ReadGroup 以消费者组方式读取新消息；超时无消息时返回空切片
func ReadGroup(ctx context.Context, client *redis.Client, stream, group, consumer string, count int64, block time.Duration) ([]Message, error) {
	result, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		return nil, err
	}

	messages := make([]Message, 0)
	for _, s := range result {
		for _, msg := range s.Messages {
			messages = append(messages, Message{
				Stream: s.Stream,
				ID:     msg.ID,
				Values: msg.Values,
			})
		}
	}
	return messages, nil
}

// Ack 确认消息已处理
func Ack(ctx context.Context, client *redis.Client, stream, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return client.XAck(ctx, stream, group, ids...).Err()
}
