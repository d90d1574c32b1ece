package engine

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"wisefido-guardian/internal/anomaly"
	"wisefido-guardian/internal/models"
	"wisefido-guardian/internal/permission"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	seq := 0
	return New(
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("alert-%d", seq)
		}),
	)
}

func floatPtr(v float64) *float64 {
	return &v
}

func link(caregiverID string, perms models.PermissionSet) *models.CareCircleLink {
	return &models.CareCircleLink{
		SubjectID:   "subject-1",
		CaregiverID: caregiverID,
		Permissions: perms,
		Status:      models.LinkActive,
	}
}

func TestEvaluateReading_CreatesAlertPerTriggeringFinding(t *testing.T) {
	e := newTestEngine()
	reading := &models.VitalsReading{
		SubjectID:        "subject-1",
		Timestamp:        now.Add(-time.Minute),
		HeartRate:        floatPtr(130),
		Temperature:      floatPtr(99.8), // 0.12 → low，不生成报警
		OxygenSaturation: floatPtr(92),   // 0.6 → critical
		Source:           models.SourceWearable,
	}

	result, err := e.EvaluateReading(reading, models.Baseline{models.MetricHeartRate: {Min: 60, Max: 100}})
	require.NoError(t, err)
	require.Len(t, result.Findings, 3)
	assert.True(t, result.Triggered)
	assert.Equal(t, models.SeverityCritical, result.Highest)
	require.Len(t, result.Alerts, 2)

	hr := result.Alerts[0]
	assert.Equal(t, "alert-1", hr.ID)
	assert.Equal(t, "subject-1", hr.SubjectID)
	assert.Equal(t, models.AlertVitalSigns, hr.Type)
	assert.Equal(t, models.SeverityCritical, hr.Severity)
	assert.Equal(t, reading.Timestamp, hr.Timestamp)
	assert.Equal(t, models.MetricHeartRate, hr.RelatedData.Metric)
	assert.Equal(t, 130.0, *hr.RelatedData.ObservedValue)
	assert.Equal(t, "Heart rate 130 bpm is above the normal range (60–100 bpm)", hr.Message)

	assert.Equal(t, models.MetricOxygenSaturation, result.Alerts[1].RelatedData.Metric)
	assert.Equal(t, "Oxygen saturation 92% is below the normal range (95–100%)", result.Alerts[1].Message)
}

func TestEvaluateReading_LowOnlyDoesNotTrigger(t *testing.T) {
	e := newTestEngine()
	reading := &models.VitalsReading{
		SubjectID: "subject-1",
		Timestamp: now,
		HeartRate: floatPtr(102),
		Source:    models.SourceManual,
	}

	result, err := e.EvaluateReading(reading, nil)
	require.NoError(t, err)
	assert.Len(t, result.Findings, 1)
	assert.False(t, result.Triggered)
	assert.Equal(t, models.SeverityLow, result.Highest)
	assert.Empty(t, result.Alerts)
}

func TestEvaluateReading_Invalid(t *testing.T) {
	e := newTestEngine()
	_, err := e.EvaluateReading(&models.VitalsReading{Source: models.SourceManual, HeartRate: floatPtr(80)}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, anomaly.ErrInvalidReading))
}

func TestAlertFromEvent(t *testing.T) {
	e := newTestEngine()

	alert, err := e.AlertFromEvent(&models.Event{
		SubjectID:   "subject-1",
		Kind:        models.EventMedicationMissed,
		Timestamp:   now.Add(-time.Hour),
		RelatedData: models.RelatedData{MedicationID: "med-9"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.AlertMedication, alert.Type)
	assert.Equal(t, models.SeverityMedium, alert.Severity)
	assert.Equal(t, "med-9", alert.RelatedData.MedicationID)
	assert.Equal(t, "Scheduled medication was not taken", alert.Message)

	high := models.SeverityHigh
	alert, err = e.AlertFromEvent(&models.Event{
		SubjectID: "subject-1",
		Kind:      models.EventDeviceOffline,
		Severity:  &high,
		Message:   "Bedroom sensor offline for 2 hours",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AlertDevice, alert.Type)
	assert.Equal(t, models.SeverityHigh, alert.Severity)
	assert.Equal(t, now, alert.Timestamp)
	assert.Equal(t, "Bedroom sensor offline for 2 hours", alert.Message)

	_, err = e.AlertFromEvent(&models.Event{Kind: models.EventFallDetected})
	assert.ErrorIs(t, err, ErrMissingSubject)

	_, err = e.AlertFromEvent(&models.Event{SubjectID: "subject-1", Kind: "sneeze"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event kind")
}

func TestPlanDispatch_PermissionThenPreference(t *testing.T) {
	e := newTestEngine()
	alerts := []models.Alert{
		{
			ID: "vital-1", SubjectID: "subject-1", Type: models.AlertVitalSigns,
			Severity: models.SeverityHigh, Timestamp: now.Add(-5 * time.Minute), Message: "HR high",
			RelatedData: models.RelatedData{Metric: models.MetricHeartRate, ObservedValue: floatPtr(125)},
		},
		{
			ID: "vital-2", SubjectID: "subject-1", Type: models.AlertVitalSigns,
			Severity: models.SeverityMedium, Timestamp: now.Add(-2 * time.Minute), Message: "HR still high",
			RelatedData: models.RelatedData{Metric: models.MetricHeartRate, ObservedValue: floatPtr(112)},
		},
		{
			ID: "fall-1", SubjectID: "subject-1", Type: models.AlertFallDetection,
			Severity: models.SeverityCritical, Timestamp: now.Add(-time.Minute), Message: "Fall",
		},
	}

	noVitals := permission.DefaultAccess()
	noVitals.CanViewVitals = false

	muted := &models.RecipientPreferences{
		RecipientID: "muted",
		ByType: map[models.AlertType]models.NotificationPreference{
			models.AlertFallDetection: {AlertType: models.AlertFallDetection, Enabled: false},
		},
	}

	recipients := []Recipient{
		{Link: link("full", permission.FullAccess())},
		{Link: link("no-vitals", noVitals)},
		{Link: link("muted", permission.LimitedAccess()), Preferences: muted},
		{Link: &models.CareCircleLink{SubjectID: "subject-2", CaregiverID: "other", Status: models.LinkActive, Permissions: permission.FullAccess()}},
	}

	plan := e.PlanDispatch(alerts, recipients)
	require.False(t, plan.Empty())

	type pair struct{ alert, recipient string }
	got := make([]pair, 0, len(plan.Instructions))
	for _, in := range plan.Instructions {
		got = append(got, pair{in.AlertID, in.RecipientID})
	}
	// fall（critical）优先；vital-1 与 vital-2 合并为一组
	assert.Equal(t, []pair{
		{"fall-1", "full"},
		{"fall-1", "no-vitals"},
		{"vital-1", "full"},
		{"vital-1", "muted"},
	}, got)

	vitalsForFull := plan.Instructions[2]
	assert.Equal(t, []string{"vital-1", "vital-2"}, vitalsForFull.GroupAlertIDs)
	assert.Equal(t, "2 vital signs alerts (high severity): HR high and 1 more", vitalsForFull.Message)
	assert.Equal(t, models.SeverityHigh, vitalsForFull.Severity)
	assert.Equal(t, models.DefaultChannels, vitalsForFull.Channels)
	assert.Equal(t, "heart_rate", vitalsForFull.Payload["metric"])
	assert.Equal(t, 125.0, vitalsForFull.Payload["observed_value"])
	assert.Greater(t, plan.Instructions[0].Priority, vitalsForFull.Priority)

	// 每个同一受监护人的候选人每组都留下审计记录；其它受监护人的关联不参与
	for _, d := range plan.Decisions {
		assert.NotEqual(t, "other", d.RequesterID)
		assert.Equal(t, now, d.Timestamp)
	}
	denied := 0
	for _, d := range plan.Decisions {
		if !d.Allowed {
			denied++
			assert.Equal(t, "no-vitals", d.RequesterID)
			assert.Equal(t, models.CategoryVitals, d.Category)
		}
	}
	assert.Equal(t, 1, denied)
}

func TestPlanDispatch_PayloadRedaction(t *testing.T) {
	e := newTestEngine()
	perms := permission.FullAccess()
	perms.CanManageDevices = false
	alerts := []models.Alert{{
		ID: "fall-1", SubjectID: "subject-1", Type: models.AlertFallDetection,
		Severity: models.SeverityCritical, Timestamp: now, Message: "Fall",
		RelatedData: models.RelatedData{DeviceID: "radar-7"},
	}}

	plan := e.PlanDispatch(alerts, []Recipient{{Link: link("c-1", perms)}})
	require.Len(t, plan.Instructions, 1)
	assert.NotContains(t, plan.Instructions[0].Payload, "device_id")
	assert.Equal(t, "fall-1", plan.Instructions[0].Payload["alert_id"])
	assert.Equal(t, "critical", plan.Instructions[0].Payload["severity"])
}

func TestPlanDispatch_Empty(t *testing.T) {
	e := newTestEngine()
	plan := e.PlanDispatch(nil, []Recipient{{Link: link("c-1", permission.FullAccess())}})
	assert.True(t, plan.Empty())
	assert.Empty(t, plan.Decisions)
}

func TestEscalationCandidates(t *testing.T) {
	e := New(WithClock(func() time.Time { return now }), WithEscalationThreshold(10))
	alerts := []models.Alert{
		{ID: "old", Severity: models.SeverityMedium, Timestamp: now.Add(-11 * time.Minute)},
		{ID: "new", Severity: models.SeverityMedium, Timestamp: now.Add(-9 * time.Minute)},
	}
	out := e.EscalationCandidates(alerts)
	require.Len(t, out, 1)
	assert.Equal(t, "old", out[0].ID)
}

func TestFindDuplicate(t *testing.T) {
	e := newTestEngine()
	open := []models.Alert{
		{ID: "acked", SubjectID: "subject-1", Type: models.AlertCheckIn, Timestamp: now, Acknowledged: true},
		{ID: "open", SubjectID: "subject-1", Type: models.AlertCheckIn, Timestamp: now.Add(-5 * time.Minute)},
	}
	incoming := &models.Alert{ID: "new", SubjectID: "subject-1", Type: models.AlertCheckIn, Timestamp: now}

	dup := e.FindDuplicate(incoming, open)
	require.NotNil(t, dup)
	assert.Equal(t, "open", dup.ID)

	incoming.Type = models.AlertMedication
	assert.Nil(t, e.FindDuplicate(incoming, open))
}

func TestFindDuplicate_PicksMostSevereRelated(t *testing.T) {
	e := newTestEngine()
	hr := models.RelatedData{Metric: models.MetricHeartRate}
	open := []models.Alert{
		{ID: "medium", SubjectID: "subject-1", Type: models.AlertVitalSigns, Severity: models.SeverityMedium, Timestamp: now.Add(-8 * time.Minute), RelatedData: hr},
		{ID: "high", SubjectID: "subject-1", Type: models.AlertVitalSigns, Severity: models.SeverityHigh, Timestamp: now.Add(-4 * time.Minute), RelatedData: hr},
		{ID: "spo2", SubjectID: "subject-1", Type: models.AlertVitalSigns, Severity: models.SeverityCritical, Timestamp: now.Add(-2 * time.Minute),
			RelatedData: models.RelatedData{Metric: models.MetricOxygenSaturation}},
	}
	incoming := &models.Alert{ID: "new", SubjectID: "subject-1", Type: models.AlertVitalSigns, Severity: models.SeverityHigh, Timestamp: now, RelatedData: hr}

	dup := e.FindDuplicate(incoming, open)
	require.NotNil(t, dup)
	assert.Equal(t, "high", dup.ID)
	assert.True(t, Suppresses(dup, incoming))

	incoming.Severity = models.SeverityCritical
	assert.False(t, Suppresses(dup, incoming), "a worsening alert is not covered by the open one")
	assert.False(t, Suppresses(nil, incoming))
}

func TestNew_DefaultIDsAreUUIDs(t *testing.T) {
	e := New()
	alert, err := e.AlertFromEvent(&models.Event{SubjectID: "subject-1", Kind: models.EventFallDetected})
	require.NoError(t, err)
	assert.Len(t, alert.ID, 36)
}
