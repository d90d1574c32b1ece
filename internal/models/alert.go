package models

import "time"

// AlertType 报警类型
type AlertType string

const (
	AlertEmergency     AlertType = "emergency"
	AlertFallDetection AlertType = "fall_detection"
	AlertVitalSigns    AlertType = "vital_signs"
	AlertCheckIn       AlertType = "check_in"
	AlertMedication    AlertType = "medication"
	AlertDevice        AlertType = "device"
	AlertAppointment   AlertType = "appointment"
)

// AllAlertTypes 所有报警类型
var AllAlertTypes = []AlertType{
	AlertEmergency,
	AlertFallDetection,
	AlertVitalSigns,
	AlertCheckIn,
	AlertMedication,
	AlertDevice,
	AlertAppointment,
}

// Label 用于合并消息的类型名称
func (t AlertType) Label() string {
	switch t {
	case AlertEmergency:
		return "emergency"
	case AlertFallDetection:
		return "fall detection"
	case AlertVitalSigns:
		return "vital signs"
	case AlertCheckIn:
		return "check-in"
	case AlertMedication:
		return "medication"
	case AlertDevice:
		return "device"
	case AlertAppointment:
		return "appointment"
	default:
		return string(t)
	}
}

// RelatedData 报警关联数据
// 按报警类型取用不同字段：vital_signs → Metric，medication → MedicationID，device → DeviceID
type RelatedData struct {
	Metric        Metric            `json:"metric,omitempty"`
	ObservedValue *float64          `json:"observed_value,omitempty"`
	MedicationID  string            `json:"medication_id,omitempty"`
	DeviceID      string            `json:"device_id,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// CorrelationKey 返回该报警类型用于关联判断的标识
// ok=false 表示该类型没有可比较的标识，或标识缺失
func (r RelatedData) CorrelationKey(t AlertType) (string, bool) {
	switch t {
	case AlertVitalSigns:
		return string(r.Metric), r.Metric != ""
	case AlertMedication:
		return r.MedicationID, r.MedicationID != ""
	case AlertDevice:
		return r.DeviceID, r.DeviceID != ""
	case AlertEmergency, AlertFallDetection, AlertCheckIn, AlertAppointment:
		return "", false
	default:
		return "", false
	}
}

// Alert 报警（对应 alerts 表）
type Alert struct {
	ID           string      `json:"id" db:"alert_id"`
	SubjectID    string      `json:"subject_id" db:"subject_id"`
	Type         AlertType   `json:"type" db:"alert_type"`
	Severity     Severity    `json:"severity" db:"severity"`
	Timestamp    time.Time   `json:"timestamp" db:"triggered_at"`
	Message      string      `json:"message" db:"message"`
	Acknowledged bool        `json:"acknowledged" db:"acknowledged"`
	Escalated    bool        `json:"escalated" db:"escalated"`
	RelatedData  RelatedData `json:"related_data" db:"related_data"` // JSONB
}

// Age 报警已存在的时长（未来时间视为 0）
func (a *Alert) Age(now time.Time) time.Duration {
	d := now.Sub(a.Timestamp)
	if d < 0 {
		return 0
	}
	return d
}
