package audit

import (
	"context"
	"fmt"

	"wisefido-guardian/internal/models"
	"wisefido-guardian/internal/streams"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Kind 审计记录类型
const (
	KindPermission = "permission_decision"
	KindTransition = "alert_transition"
)

// Envelope 审计流上的一条记录
type Envelope struct {
	Kind       string                  `json:"kind"`
	Decision   *models.AuditRecord     `json:"decision,omitempty"`
	Transition *models.AlertTransition `json:"transition,omitempty"`
}

// Publisher 审计发布器（写入审计 Redis Stream）
type Publisher struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

// NewPublisher 创建审计发布器
func NewPublisher(client *redis.Client, stream string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client: client,
		stream: stream,
		logger: logger,
	}
}

// RecordDecisions 发布权限判定
func (p *Publisher) RecordDecisions(ctx context.Context, records []models.AuditRecord) error {
	for i := range records {
		if err := p.publish(ctx, Envelope{Kind: KindPermission, Decision: &records[i]}); err != nil {
			return err
		}
	}
	return nil
}

// RecordTransition 发布报警状态变化
func (p *Publisher) RecordTransition(ctx context.Context, t models.AlertTransition) error {
	return p.publish(ctx, Envelope{Kind: KindTransition, Transition: &t})
}

func (p *Publisher) publish(ctx context.Context, env Envelope) error {
	if _, err := streams.PublishJSON(ctx, p.client, p.stream, env); err != nil {
		return fmt.Errorf("failed to publish audit record: %w", err)
	}
	return nil
}
