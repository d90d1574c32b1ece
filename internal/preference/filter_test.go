package preference

import (
	"context"
	"errors"
	"testing"

	"wisefido-guardian/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrefs struct {
	byRecipient map[string]*models.RecipientPreferences
	err         error
}

func (f *fakePrefs) GetPreferences(ctx context.Context, recipientID string) (*models.RecipientPreferences, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byRecipient[recipientID], nil
}

func testPrefs() *fakePrefs {
	return &fakePrefs{byRecipient: map[string]*models.RecipientPreferences{
		"muted-vitals": {
			RecipientID: "muted-vitals",
			ByType: map[models.AlertType]models.NotificationPreference{
				models.AlertVitalSigns: {AlertType: models.AlertVitalSigns, Enabled: false},
			},
		},
		"critical-only": {
			RecipientID: "critical-only",
			ByType: map[models.AlertType]models.NotificationPreference{
				models.AlertVitalSigns: {
					AlertType:         models.AlertVitalSigns,
					Enabled:           true,
					AllowedSeverities: []models.Severity{models.SeverityCritical},
					Channels:          []models.Channel{models.ChannelSMS, models.ChannelVoice},
				},
			},
		},
	}}
}

func vitalsAlert(sev models.Severity) *models.Alert {
	return &models.Alert{ID: "a-1", SubjectID: "subject-1", Type: models.AlertVitalSigns, Severity: sev}
}

func TestShouldSendAlert(t *testing.T) {
	f := NewFilter(testPrefs())
	ctx := context.Background()

	ok, err := f.ShouldSendAlert(ctx, "no-prefs", vitalsAlert(models.SeverityMedium))
	require.NoError(t, err)
	assert.True(t, ok, "absence of preference never suppresses an alert")

	ok, err = f.ShouldSendAlert(ctx, "muted-vitals", vitalsAlert(models.SeverityCritical))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.ShouldSendAlert(ctx, "muted-vitals", &models.Alert{Type: models.AlertFallDetection, Severity: models.SeverityCritical})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.ShouldSendAlert(ctx, "critical-only", vitalsAlert(models.SeverityHigh))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.ShouldSendAlert(ctx, "critical-only", vitalsAlert(models.SeverityCritical))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetNotificationChannels(t *testing.T) {
	f := NewFilter(testPrefs())
	ctx := context.Background()

	channels, err := f.GetNotificationChannels(ctx, "no-prefs", vitalsAlert(models.SeverityMedium))
	require.NoError(t, err)
	assert.Equal(t, models.DefaultChannels, channels)

	channels, err = f.GetNotificationChannels(ctx, "critical-only", vitalsAlert(models.SeverityCritical))
	require.NoError(t, err)
	assert.Equal(t, []models.Channel{models.ChannelSMS, models.ChannelVoice}, channels)

	channels, err = f.GetNotificationChannels(ctx, "muted-vitals", vitalsAlert(models.SeverityCritical))
	require.NoError(t, err)
	assert.Empty(t, channels)
}

func TestFilterCareCircleByPreferences(t *testing.T) {
	f := NewFilter(testPrefs())

	out, err := f.FilterCareCircleByPreferences(context.Background(),
		[]string{"muted-vitals", "no-prefs", "critical-only"},
		vitalsAlert(models.SeverityCritical),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"no-prefs", "critical-only"}, out)
}

func TestFilterCareCircleByPreferences_SourceError(t *testing.T) {
	f := NewFilter(&fakePrefs{err: errors.New("redis down")})

	_, err := f.FilterCareCircleByPreferences(context.Background(), []string{"x"}, vitalsAlert(models.SeverityHigh))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
}

func TestFilterAlertsByPreferences(t *testing.T) {
	prefs := testPrefs().byRecipient["critical-only"]
	alerts := []models.Alert{
		*vitalsAlert(models.SeverityHigh),
		*vitalsAlert(models.SeverityCritical),
		{ID: "fall", Type: models.AlertFallDetection, Severity: models.SeverityLow},
	}

	out := FilterAlertsByPreferences(alerts, prefs)
	require.Len(t, out, 2)
	assert.Equal(t, models.SeverityCritical, out[0].Severity)
	assert.Equal(t, "fall", out[1].ID)

	assert.Len(t, FilterAlertsByPreferences(alerts, nil), 3)
}

func TestChannels_ReturnsCopy(t *testing.T) {
	channels := Channels(nil, vitalsAlert(models.SeverityHigh))
	channels[0] = models.ChannelVoice
	assert.Equal(t, models.ChannelPush, models.DefaultChannels[0])
}
