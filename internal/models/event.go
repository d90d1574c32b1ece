package models

import "time"

// EventKind 离散事件类型（来自设备或计划任务）
type EventKind string

const (
	EventEmergencyButton   EventKind = "emergency_button"
	EventFallDetected      EventKind = "fall_detected"
	EventCheckInMissed     EventKind = "check_in_missed"
	EventMedicationMissed  EventKind = "medication_missed"
	EventDeviceFault       EventKind = "device_fault"
	EventDeviceOffline     EventKind = "device_offline"
	EventLowBattery        EventKind = "low_battery"
	EventAppointmentMissed EventKind = "appointment_missed"
)

// Event 离散事件
type Event struct {
	SubjectID   string      `json:"subject_id"`
	Kind        EventKind   `json:"kind"`
	Timestamp   time.Time   `json:"timestamp"`
	Severity    *Severity   `json:"severity,omitempty"` // 覆盖默认级别
	Message     string      `json:"message,omitempty"`
	RelatedData RelatedData `json:"related_data"`
}
