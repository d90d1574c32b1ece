package preference

import (
	"context"
	"fmt"

	"wisefido-guardian/internal/models"
)

// Allows 纯函数：没有显式偏好时默认允许；只有明确关闭该类型或排除该级别才拒绝
func Allows(prefs *models.RecipientPreferences, alert *models.Alert) bool {
	p, ok := prefs.For(alert.Type)
	if !ok {
		return true
	}
	return p.Enabled && p.AllowsSeverity(alert.Severity)
}

// Channels 纯函数：接收人对该报警类型配置的渠道；不允许发送时为空
func Channels(prefs *models.RecipientPreferences, alert *models.Alert) []models.Channel {
	if !Allows(prefs, alert) {
		return []models.Channel{}
	}
	p, ok := prefs.For(alert.Type)
	if !ok || len(p.Channels) == 0 {
		return append([]models.Channel(nil), models.DefaultChannels...)
	}
	return append([]models.Channel(nil), p.Channels...)
}

// FilterAlertsByPreferences 为某个接收人准备报警列表时使用（保持输入顺序）
func FilterAlertsByPreferences(alerts []models.Alert, prefs *models.RecipientPreferences) []models.Alert {
	out := make([]models.Alert, 0, len(alerts))
	for i := range alerts {
		if Allows(prefs, &alerts[i]) {
			out = append(out, alerts[i])
		}
	}
	return out
}

// Source 偏好查询（可由缓存实现；没有配置时返回 nil, nil）
type Source interface {
	GetPreferences(ctx context.Context, recipientID string) (*models.RecipientPreferences, error)
}

// Filter 偏好过滤器（在权限模型之后使用：未通过权限检查的接收人不会进入这里）
type Filter struct {
	prefs Source
}

// NewFilter 创建偏好过滤器
func NewFilter(prefs Source) *Filter {
	return &Filter{prefs: prefs}
}

func (f *Filter) load(ctx context.Context, recipientID string) (*models.RecipientPreferences, error) {
	prefs, err := f.prefs.GetPreferences(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification preferences: %w", err)
	}
	return prefs, nil
}

// ShouldSendAlert 接收人是否愿意接收该报警
func (f *Filter) ShouldSendAlert(ctx context.Context, recipientID string, alert *models.Alert) (bool, error) {
	prefs, err := f.load(ctx, recipientID)
	if err != nil {
		return false, err
	}
	return Allows(prefs, alert), nil
}

// GetNotificationChannels 接收人对该报警的通知渠道
func (f *Filter) GetNotificationChannels(ctx context.Context, recipientID string, alert *models.Alert) ([]models.Channel, error) {
	prefs, err := f.load(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	return Channels(prefs, alert), nil
}

// FilterCareCircleByPreferences 对候选接收人逐个应用 ShouldSendAlert（保持输入顺序）
func (f *Filter) FilterCareCircleByPreferences(ctx context.Context, candidateIDs []string, alert *models.Alert) ([]string, error) {
	out := make([]string, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		ok, err := f.ShouldSendAlert(ctx, id, alert)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, id)
		}
	}
	return out, nil
}
