package models

import (
	"fmt"
	"time"
)

// Metric 生命体征指标
type Metric string

const (
	MetricHeartRate        Metric = "heart_rate"
	MetricSystolicBP       Metric = "systolic_bp"
	MetricDiastolicBP      Metric = "diastolic_bp"
	MetricTemperature      Metric = "temperature"
	MetricOxygenSaturation Metric = "oxygen_saturation"
	MetricWeight           Metric = "weight"
)

// AllMetrics 固定的评估顺序
var AllMetrics = []Metric{
	MetricHeartRate,
	MetricSystolicBP,
	MetricDiastolicBP,
	MetricTemperature,
	MetricOxygenSaturation,
	MetricWeight,
}

// Label 指标显示名称
func (m Metric) Label() string {
	switch m {
	case MetricHeartRate:
		return "Heart rate"
	case MetricSystolicBP:
		return "Systolic blood pressure"
	case MetricDiastolicBP:
		return "Diastolic blood pressure"
	case MetricTemperature:
		return "Temperature"
	case MetricOxygenSaturation:
		return "Oxygen saturation"
	case MetricWeight:
		return "Weight"
	default:
		return string(m)
	}
}

// Unit 指标单位
func (m Metric) Unit() string {
	switch m {
	case MetricHeartRate:
		return " bpm"
	case MetricSystolicBP, MetricDiastolicBP:
		return " mmHg"
	case MetricTemperature:
		return "°F"
	case MetricOxygenSaturation:
		return "%"
	case MetricWeight:
		return " lb"
	default:
		return ""
	}
}

// ReadingSource 数据来源
type ReadingSource string

const (
	SourceManual   ReadingSource = "manual"
	SourceDevice   ReadingSource = "device"
	SourceWearable ReadingSource = "wearable"
)

// VitalsReading 一次生命体征读数（创建后不可变）
type VitalsReading struct {
	SubjectID        string        `json:"subject_id"`
	Timestamp        time.Time     `json:"timestamp"`
	HeartRate        *float64      `json:"heart_rate,omitempty"`
	SystolicBP       *float64      `json:"systolic_bp,omitempty"`
	DiastolicBP      *float64      `json:"diastolic_bp,omitempty"`
	Temperature      *float64      `json:"temperature,omitempty"`
	OxygenSaturation *float64      `json:"oxygen_saturation,omitempty"`
	Weight           *float64      `json:"weight,omitempty"`
	Source           ReadingSource `json:"source"`
}

// Value 返回指定指标的读数（未提供时 ok=false）
func (r *VitalsReading) Value(m Metric) (float64, bool) {
	var v *float64
	switch m {
	case MetricHeartRate:
		v = r.HeartRate
	case MetricSystolicBP:
		v = r.SystolicBP
	case MetricDiastolicBP:
		v = r.DiastolicBP
	case MetricTemperature:
		v = r.Temperature
	case MetricOxygenSaturation:
		v = r.OxygenSaturation
	case MetricWeight:
		v = r.Weight
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// Range 闭区间 [Min, Max]
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Width 区间宽度
func (r Range) Width() float64 {
	return r.Max - r.Min
}

// Contains 是否在区间内（含边界）
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Valid 宽度必须为正
func (r Range) Valid() bool {
	return r.Max > r.Min
}

func (r Range) String() string {
	return fmt.Sprintf("%g–%g", r.Min, r.Max)
}

// BaselineRange 个人基线（对应 baseline_ranges 表的一行）
type BaselineRange struct {
	SubjectID string `json:"subject_id" db:"subject_id"`
	Metric    Metric `json:"metric" db:"metric"`
	Range
}

// Baseline 某个受监护人的所有指标基线
type Baseline map[Metric]Range

// Direction 超出方向
type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
)

// AnomalyFinding 单个指标的异常结果（不持久化）
type AnomalyFinding struct {
	Metric        Metric    `json:"metric"`
	ObservedValue float64   `json:"observed_value"`
	Severity      Severity  `json:"severity"`
	Direction     Direction `json:"direction"`
	ActiveRange   Range     `json:"active_range"`
	Deviation     float64   `json:"deviation"`
	FromBaseline  bool      `json:"from_baseline"`
}
