package anomaly

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"wisefido-guardian/internal/models"
)

// ErrInvalidReading 读数校验失败
var ErrInvalidReading = errors.New("invalid vitals reading")

// plausibleRanges 生理上可能出现的取值范围，超出即视为录入或设备错误
var plausibleRanges = map[models.Metric]models.Range{
	models.MetricHeartRate:        {Min: 20, Max: 300},
	models.MetricSystolicBP:       {Min: 50, Max: 300},
	models.MetricDiastolicBP:      {Min: 20, Max: 200},
	models.MetricTemperature:      {Min: 85, Max: 115},
	models.MetricOxygenSaturation: {Min: 50, Max: 100},
	models.MetricWeight:           {Min: 0, Max: 1500},
}

// FieldError 单个字段的校验错误
type FieldError struct {
	Field  string
	Reason string
}

// ValidationError 读数校验错误
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Reason))
	}
	return fmt.Sprintf("%s: %s", ErrInvalidReading.Error(), strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidReading
}

// Validate 校验读数
func Validate(reading *models.VitalsReading) error {
	if reading == nil {
		return &ValidationError{Fields: []FieldError{{Field: "reading", Reason: "is required"}}}
	}

	var fields []FieldError
	if strings.TrimSpace(reading.SubjectID) == "" {
		fields = append(fields, FieldError{Field: "subject_id", Reason: "is required"})
	}
	switch reading.Source {
	case models.SourceManual, models.SourceDevice, models.SourceWearable:
	default:
		fields = append(fields, FieldError{Field: "source", Reason: fmt.Sprintf("unknown source %q", reading.Source)})
	}

	for _, metric := range models.AllMetrics {
		value, present := reading.Value(metric)
		if !present {
			continue
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			fields = append(fields, FieldError{Field: string(metric), Reason: fmt.Sprintf("%g is not a finite number", value)})
			continue
		}
		bounds := plausibleRanges[metric]
		if metric == models.MetricWeight {
			if value <= 0 || value > bounds.Max {
				fields = append(fields, FieldError{Field: string(metric), Reason: fmt.Sprintf("%g is not a plausible weight", value)})
			}
			continue
		}
		if !bounds.Contains(value) {
			fields = append(fields, FieldError{
				Field:  string(metric),
				Reason: fmt.Sprintf("%g outside plausible range %s", value, bounds),
			})
		}
	}

	if reading.SystolicBP != nil && reading.DiastolicBP != nil && *reading.DiastolicBP >= *reading.SystolicBP {
		fields = append(fields, FieldError{Field: string(models.MetricDiastolicBP), Reason: "must be below systolic"})
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
