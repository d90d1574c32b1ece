package prioritizer

import (
	"math"
	"sort"
	"time"

	"wisefido-guardian/internal/models"
)

// 打分权重表
var (
	severityWeight = map[models.Severity]float64{
		models.SeverityCritical: 4,
		models.SeverityHigh:     3,
		models.SeverityMedium:   2,
		models.SeverityLow:      1,
	}

	typeWeight = map[models.AlertType]float64{
		models.AlertEmergency:     7,
		models.AlertFallDetection: 6,
		models.AlertVitalSigns:    5,
		models.AlertCheckIn:       4,
		models.AlertMedication:    3,
		models.AlertDevice:        2,
		models.AlertAppointment:   1,
	}
)

const (
	escalatedBonus      = 20
	unacknowledgedBonus = 10
	// recencyWindowHours 新近加分从 5 线性衰减到 0
	recencyWindowHours = 5
)

// RecencyBonus max(0, 5 - ageInHours)，未来时间戳按 0 小时计
func RecencyBonus(alert *models.Alert, now time.Time) float64 {
	ageHours := alert.Age(now).Hours()
	return math.Max(0, recencyWindowHours-ageHours)
}

// CalculateAlertPriority 计算报警优先级分数
func CalculateAlertPriority(alert *models.Alert, now time.Time) float64 {
	score := severityWeight[alert.Severity]*10 + typeWeight[alert.Type]
	if alert.Escalated {
		score += escalatedBonus
	}
	if !alert.Acknowledged {
		score += unacknowledgedBonus
	}
	return score + RecencyBonus(alert, now)
}

// Scored 带分数的报警
type Scored struct {
	Alert models.Alert
	Score float64
}

// ScoreAlerts 按分数降序排序并返回分数；分数相同则时间新的在前；
// 分数和时间都相同时保持输入顺序（稳定排序）
func ScoreAlerts(alerts []models.Alert, now time.Time) []Scored {
	scored := make([]Scored, len(alerts))
	for i := range alerts {
		scored[i] = Scored{Alert: alerts[i], Score: CalculateAlertPriority(&alerts[i], now)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Alert.Timestamp.After(scored[j].Alert.Timestamp)
	})
	return scored
}

// PrioritizeAlerts 返回排序后的新切片，不修改输入
func PrioritizeAlerts(alerts []models.Alert, now time.Time) []models.Alert {
	scored := ScoreAlerts(alerts, now)
	out := make([]models.Alert, len(scored))
	for i, s := range scored {
		out[i] = s.Alert
	}
	return out
}
