package engine

import (
	"fmt"
	"strings"
	"time"

	"wisefido-guardian/internal/models"
)

// eventRule 离散事件 → 报警类型、默认级别、默认消息
type eventRule struct {
	alertType models.AlertType
	severity  models.Severity
	message   string
}

var eventRules = map[models.EventKind]eventRule{
	models.EventEmergencyButton:   {models.AlertEmergency, models.SeverityCritical, "Emergency button pressed"},
	models.EventFallDetected:      {models.AlertFallDetection, models.SeverityCritical, "Possible fall detected"},
	models.EventCheckInMissed:     {models.AlertCheckIn, models.SeverityMedium, "Scheduled check-in was missed"},
	models.EventMedicationMissed:  {models.AlertMedication, models.SeverityMedium, "Scheduled medication was not taken"},
	models.EventDeviceFault:       {models.AlertDevice, models.SeverityMedium, "Monitoring device reported a fault"},
	models.EventDeviceOffline:     {models.AlertDevice, models.SeverityLow, "Monitoring device is offline"},
	models.EventLowBattery:        {models.AlertDevice, models.SeverityLow, "Monitoring device battery is low"},
	models.EventAppointmentMissed: {models.AlertAppointment, models.SeverityLow, "Appointment was missed"},
}

// AlertBuilder 报警构建器
type AlertBuilder struct {
	subjectID string
	newID     func() string
}

// NewAlertBuilder 创建报警构建器
func NewAlertBuilder(subjectID string, newID func() string) *AlertBuilder {
	return &AlertBuilder{
		subjectID: subjectID,
		newID:     newID,
	}
}

// BuildFromFinding 由异常结果构建 vital_signs 报警
func (b *AlertBuilder) BuildFromFinding(finding models.AnomalyFinding, at time.Time) models.Alert {
	observed := finding.ObservedValue
	return models.Alert{
		ID:        b.newID(),
		SubjectID: b.subjectID,
		Type:      models.AlertVitalSigns,
		Severity:  finding.Severity,
		Timestamp: at,
		Message:   FindingMessage(finding),
		RelatedData: models.RelatedData{
			Metric:        finding.Metric,
			ObservedValue: &observed,
		},
	}
}

// BuildFromEvent 由离散事件构建报警
func (b *AlertBuilder) BuildFromEvent(ev *models.Event) (models.Alert, error) {
	rule, ok := eventRules[ev.Kind]
	if !ok {
		return models.Alert{}, fmt.Errorf("unknown event kind: %q", ev.Kind)
	}

	severity := rule.severity
	if ev.Severity != nil {
		if *ev.Severity < models.SeverityLow || *ev.Severity > models.SeverityCritical {
			return models.Alert{}, fmt.Errorf("invalid event severity: %s", *ev.Severity)
		}
		severity = *ev.Severity
	}

	message := rule.message
	if strings.TrimSpace(ev.Message) != "" {
		message = ev.Message
	}

	return models.Alert{
		ID:          b.newID(),
		SubjectID:   b.subjectID,
		Type:        rule.alertType,
		Severity:    severity,
		Timestamp:   ev.Timestamp,
		Message:     message,
		RelatedData: ev.RelatedData,
	}, nil
}

// FindingMessage 例如 "Heart rate 130 bpm is above the normal range (60–100 bpm)"
func FindingMessage(f models.AnomalyFinding) string {
	unit := f.Metric.Unit()
	return fmt.Sprintf("%s %g%s is %s the normal range (%s%s)",
		f.Metric.Label(),
		f.ObservedValue,
		unit,
		f.Direction,
		f.ActiveRange,
		unit,
	)
}

// alertPayload 报警负载（随后按接收人权限裁剪）
func alertPayload(a *models.Alert) map[string]any {
	payload := map[string]any{
		"alert_id":   a.ID,
		"subject_id": a.SubjectID,
		"type":       string(a.Type),
		"severity":   a.Severity.String(),
		"timestamp":  a.Timestamp.UTC().Format(time.RFC3339),
	}
	if a.RelatedData.Metric != "" {
		payload["metric"] = string(a.RelatedData.Metric)
	}
	if a.RelatedData.ObservedValue != nil {
		payload["observed_value"] = *a.RelatedData.ObservedValue
	}
	if a.RelatedData.MedicationID != "" {
		payload["medication_id"] = a.RelatedData.MedicationID
	}
	if a.RelatedData.DeviceID != "" {
		payload["device_id"] = a.RelatedData.DeviceID
	}
	return payload
}
