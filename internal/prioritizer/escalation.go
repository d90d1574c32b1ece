package prioritizer

import (
	"fmt"
	"time"

	"wisefido-guardian/internal/models"
)

// DefaultEscalationThresholdMinutes 默认升级阈值
const DefaultEscalationThresholdMinutes = 30

// NeedsEscalation 单条报警是否需要升级：未升级、未确认、级别高于 low、存在时长达到阈值
func NeedsEscalation(alert *models.Alert, threshold time.Duration, now time.Time) bool {
	if alert.Escalated || alert.Acknowledged {
		return false
	}
	if alert.Severity <= models.SeverityLow {
		return false
	}
	return alert.Age(now) >= threshold
}

// GetAlertsNeedingEscalation 返回需要升级的报警（保持输入顺序）
// thresholdMinutes 为负数属于调用方错误
func GetAlertsNeedingEscalation(alerts []models.Alert, thresholdMinutes int, now time.Time) []models.Alert {
	if thresholdMinutes < 0 {
		panic(fmt.Sprintf("prioritizer: negative escalation threshold %d", thresholdMinutes))
	}
	threshold := time.Duration(thresholdMinutes) * time.Minute

	out := make([]models.Alert, 0)
	for i := range alerts {
		if NeedsEscalation(&alerts[i], threshold, now) {
			out = append(out, alerts[i])
		}
	}
	return out
}
