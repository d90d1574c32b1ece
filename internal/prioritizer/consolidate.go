package prioritizer

import (
	"fmt"
	"time"

	"wisefido-guardian/internal/models"
)

// RelatedWindow 两条报警被视为同一问题的最大时间间隔（含）
const RelatedWindow = 15 * time.Minute

// AreAlertsRelated 同一受监护人、同一类型、时间相差不超过 15 分钟；
// 若双方都带有该类型的关联标识（指标/药品/设备），标识必须一致
func AreAlertsRelated(a, b *models.Alert) bool {
	if a.SubjectID != b.SubjectID || a.Type != b.Type {
		return false
	}

	gap := a.Timestamp.Sub(b.Timestamp)
	if gap < 0 {
		gap = -gap
	}
	if gap > RelatedWindow {
		return false
	}

	keyA, okA := a.RelatedData.CorrelationKey(a.Type)
	keyB, okB := b.RelatedData.CorrelationKey(b.Type)
	if okA && okB {
		return keyA == keyB
	}
	return true
}

// AlertGroup 合并后的一组报警，第一条是种子
type AlertGroup struct {
	Alerts []models.Alert
}

// Seed 组的种子报警
func (g AlertGroup) Seed() models.Alert {
	return g.Alerts[0]
}

// IDs 组内所有报警ID
func (g AlertGroup) IDs() []string {
	ids := make([]string, len(g.Alerts))
	for i, a := range g.Alerts {
		ids[i] = a.ID
	}
	return ids
}

// HighestSeverity 组内最高级别
func (g AlertGroup) HighestSeverity() models.Severity {
	highest := models.SeverityNone
	for _, a := range g.Alerts {
		if a.Severity > highest {
			highest = a.Severity
		}
	}
	return highest
}

// ConsolidateAlerts 以种子为中心的单遍分组（非传递闭包）：
// 按输入顺序取未分组的报警作为种子，收集所有与种子直接相关且未分组的报警。
// 只与某个非种子成员相关的报警会开启新组。
func ConsolidateAlerts(alerts []models.Alert) []AlertGroup {
	grouped := make([]bool, len(alerts))
	groups := make([]AlertGroup, 0)

	for i := range alerts {
		if grouped[i] {
			continue
		}
		grouped[i] = true
		group := AlertGroup{Alerts: []models.Alert{alerts[i]}}

		for j := i + 1; j < len(alerts); j++ {
			if grouped[j] {
				continue
			}
			if AreAlertsRelated(&alerts[i], &alerts[j]) {
				grouped[j] = true
				group.Alerts = append(group.Alerts, alerts[j])
			}
		}
		groups = append(groups, group)
	}
	return groups
}

// CreateConsolidatedMessage 单条报警原样返回消息；多条报警生成汇总消息
func CreateConsolidatedMessage(group AlertGroup) string {
	switch len(group.Alerts) {
	case 0:
		return ""
	case 1:
		return group.Alerts[0].Message
	}

	first := group.Alerts[0]
	count := len(group.Alerts)
	return fmt.Sprintf("%d %s alerts (%s severity): %s and %d more",
		count,
		first.Type.Label(),
		group.HighestSeverity(),
		first.Message,
		count-1,
	)
}
