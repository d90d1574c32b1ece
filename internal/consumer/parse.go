package consumer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"wisefido-guardian/internal/models"
	"wisefido-guardian/internal/streams"
)

// ErrMalformedMessage 消息无法解析（重试也不会成功）
var ErrMalformedMessage = errors.New("malformed message")

// ParseReading 解析读数消息：优先取 data 字段中的 JSON，否则按扁平字段解析
func ParseReading(msg streams.Message) (*models.VitalsReading, error) {
	if data, ok := msg.Data(); ok {
		var r models.VitalsReading
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("invalid reading payload: %w", err)
		}
		return &r, nil
	}

	r := &models.VitalsReading{
		SubjectID: stringField(msg.Values, "subject_id"),
		Source:    models.ReadingSource(stringField(msg.Values, "source")),
	}
	ts, err := timeField(msg.Values, "timestamp")
	if err != nil {
		return nil, err
	}
	r.Timestamp = ts

	fields := []struct {
		key string
		dst **float64
	}{
		{"heart_rate", &r.HeartRate},
		{"systolic_bp", &r.SystolicBP},
		{"diastolic_bp", &r.DiastolicBP},
		{"temperature", &r.Temperature},
		{"oxygen_saturation", &r.OxygenSaturation},
		{"weight", &r.Weight},
	}
	for _, f := range fields {
		v, err := floatField(msg.Values, f.key)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}

	if r.SubjectID == "" {
		return nil, fmt.Errorf("invalid reading: missing subject_id")
	}
	return r, nil
}

// ParseEvent 解析离散事件消息
func ParseEvent(msg streams.Message) (*models.Event, error) {
	if data, ok := msg.Data(); ok {
		return DecodeEvent([]byte(data))
	}

	ev := &models.Event{
		SubjectID: stringField(msg.Values, "subject_id"),
		Kind:      models.EventKind(stringField(msg.Values, "kind")),
		Message:   stringField(msg.Values, "message"),
		RelatedData: models.RelatedData{
			MedicationID: stringField(msg.Values, "medication_id"),
			DeviceID:     stringField(msg.Values, "device_id"),
		},
	}
	ts, err := timeField(msg.Values, "timestamp")
	if err != nil {
		return nil, err
	}
	ev.Timestamp = ts
	if s := stringField(msg.Values, "severity"); s != "" {
		sev, err := models.ParseSeverity(s)
		if err != nil {
			return nil, err
		}
		ev.Severity = &sev
	}

	if ev.Kind == "" {
		return nil, fmt.Errorf("invalid event: missing kind")
	}
	return ev, nil
}

// DecodeEvent 解析 JSON 事件
func DecodeEvent(payload []byte) (*models.Event, error) {
	var ev models.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("invalid event payload: %w", err)
	}
	if ev.Kind == "" {
		return nil, fmt.Errorf("invalid event: missing kind")
	}
	return &ev, nil
}

func stringField(values map[string]interface{}, key string) string {
	s, _ := values[key].(string)
	return s
}

func floatField(values map[string]interface{}, key string) (*float64, error) {
	s := stringField(values, key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", key, s)
	}
	return &v, nil
}

// timeField 接受 Unix 秒或 RFC3339；缺省为零值（由引擎补当前时间）
func timeField(values map[string]interface{}, key string) (time.Time, error) {
	s := stringField(values, key)
	if s == "" {
		return time.Time{}, nil
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %q", key, s)
	}
	return t, nil
}
