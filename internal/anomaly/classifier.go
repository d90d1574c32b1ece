package anomaly

import (
	"wisefido-guardian/internal/models"
)

// DefaultRanges 临床默认正常范围（没有个人基线时使用）
// 体重没有人群默认值，只在设置了个人基线时参与评估
var DefaultRanges = map[models.Metric]models.Range{
	models.MetricHeartRate:        {Min: 60, Max: 100},
	models.MetricSystolicBP:       {Min: 90, Max: 140},
	models.MetricDiastolicBP:      {Min: 60, Max: 90},
	models.MetricTemperature:      {Min: 97.0, Max: 99.5},
	models.MetricOxygenSaturation: {Min: 95, Max: 100},
}

// severityBands 相对偏离 → 级别，上界不含
// deviation < 0.15 → low，< 0.35 → medium，< 0.60 → high，其余 critical
var severityBands = []struct {
	upper    float64
	severity models.Severity
}{
	{0.15, models.SeverityLow},
	{0.35, models.SeverityMedium},
	{0.60, models.SeverityHigh},
}

// SeverityForDeviation 按固定分段映射级别
func SeverityForDeviation(deviation float64) models.Severity {
	for _, band := range severityBands {
		if deviation < band.upper {
			return band.severity
		}
	}
	return models.SeverityCritical
}

// ActiveRange 解析指标的生效范围：个人基线优先，否则临床默认
// 宽度非正的基线视为未设置
func ActiveRange(m models.Metric, baseline models.Baseline) (models.Range, bool, bool) {
	if r, ok := baseline[m]; ok && r.Valid() {
		return r, true, true
	}
	r, ok := DefaultRanges[m]
	return r, false, ok
}

// DetectAnomalies 对读数中出现的每个指标做区间比较，返回异常列表（可能为空）
// 读数不合法时返回 *ValidationError
func DetectAnomalies(reading *models.VitalsReading, baseline models.Baseline) ([]models.AnomalyFinding, error) {
	if err := Validate(reading); err != nil {
		return nil, err
	}

	findings := make([]models.AnomalyFinding, 0)
	for _, metric := range models.AllMetrics {
		value, present := reading.Value(metric)
		if !present {
			continue
		}
		active, fromBaseline, ok := ActiveRange(metric, baseline)
		if !ok || active.Contains(value) {
			continue
		}

		var distance float64
		direction := models.DirectionAbove
		if value > active.Max {
			distance = value - active.Max
		} else {
			distance = active.Min - value
			direction = models.DirectionBelow
		}
		deviation := distance / active.Width()

		findings = append(findings, models.AnomalyFinding{
			Metric:        metric,
			ObservedValue: value,
			Severity:      SeverityForDeviation(deviation),
			Direction:     direction,
			ActiveRange:   active,
			Deviation:     deviation,
			FromBaseline:  fromBaseline,
		})
	}
	return findings, nil
}

// ShouldTriggerAlert 任一异常达到 medium 及以上才触发报警
func ShouldTriggerAlert(findings []models.AnomalyFinding) bool {
	for _, f := range findings {
		if f.Severity >= models.SeverityMedium {
			return true
		}
	}
	return false
}

// GetHighestSeverity 最高级别；空列表返回 SeverityNone
func GetHighestSeverity(findings []models.AnomalyFinding) models.Severity {
	highest := models.SeverityNone
	for _, f := range findings {
		if f.Severity > highest {
			highest = f.Severity
		}
	}
	return highest
}
