package models

// Channel 通知渠道
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelVoice Channel = "voice"
)

// DefaultChannels 没有显式偏好时使用的渠道
var DefaultChannels = []Channel{ChannelPush}

// NotificationPreference 某护理人对某报警类型的通知偏好
type NotificationPreference struct {
	AlertType AlertType `json:"alert_type" db:"alert_type"`
	Enabled   bool      `json:"enabled" db:"enabled"`
	// AllowedSeverities 为空表示不限制级别
	AllowedSeverities []Severity `json:"allowed_severities,omitempty" db:"allowed_severities"`
	// Channels 为空时使用 DefaultChannels
	Channels []Channel `json:"channels,omitempty" db:"channels"`
}

// AllowsSeverity 级别是否在允许集合中
func (p NotificationPreference) AllowsSeverity(s Severity) bool {
	if len(p.AllowedSeverities) == 0 {
		return true
	}
	for _, allowed := range p.AllowedSeverities {
		if allowed == s {
			return true
		}
	}
	return false
}

// RecipientPreferences 某护理人的全部通知偏好
type RecipientPreferences struct {
	RecipientID string                               `json:"recipient_id"`
	ByType      map[AlertType]NotificationPreference `json:"by_type"`
}

// For 返回某报警类型的偏好（未配置时 ok=false）
func (r *RecipientPreferences) For(t AlertType) (NotificationPreference, bool) {
	if r == nil || r.ByType == nil {
		return NotificationPreference{}, false
	}
	p, ok := r.ByType[t]
	return p, ok
}
