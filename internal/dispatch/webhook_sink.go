package dispatch

import (
	"context"
	"fmt"
	"time"

	"wisefido-guardian/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookSink 以 HTTP POST 把整份计划交给通知分发服务
type WebhookSink struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// NewWebhookSink 创建 webhook sink
func NewWebhookSink(url string, timeout time.Duration, logger *zap.Logger) *WebhookSink {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookSink{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Send(ctx context.Context, plan *models.DispatchPlan) error {
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetBody(plan).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("failed to call dispatch webhook: %w", err)
	}
	if resp.IsError() {
		s.logger.Error("Dispatch webhook rejected plan",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("body", resp.String()),
		)
		return fmt.Errorf("dispatch webhook returned status %d", resp.StatusCode())
	}

	s.logger.Debug("Delivered dispatch plan to webhook",
		zap.Int("instruction_count", len(plan.Instructions)),
	)
	return nil
}

func (s *WebhookSink) Close() error { return nil }
