package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wisefido-guardian/internal/config"
	"wisefido-guardian/internal/models"
	"wisefido-guardian/internal/streams"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPlan() *models.DispatchPlan {
	return &models.DispatchPlan{
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Instructions: []models.DispatchInstruction{
			{
				AlertID: "fall-1", GroupAlertIDs: []string{"fall-1"}, SubjectID: "subject-1",
				RecipientID: "caregiver-1", Channels: []models.Channel{models.ChannelPush},
				AlertType: models.AlertFallDetection, Severity: models.SeverityCritical, Priority: 125,
				Message: "Possible fall detected", Payload: map[string]any{"alert_id": "fall-1"},
			},
			{
				AlertID: "fall-1", GroupAlertIDs: []string{"fall-1"}, SubjectID: "subject-1",
				RecipientID: "caregiver-2", Channels: []models.Channel{models.ChannelSMS, models.ChannelVoice},
				AlertType: models.AlertFallDetection, Severity: models.SeverityCritical, Priority: 125,
				Message: "Possible fall detected", Payload: map[string]any{"alert_id": "fall-1"},
			},
		},
	}
}

func TestRedisStreamSink(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	sink := NewRedisStreamSink(client, "guardian:dispatch", zap.NewNop())
	require.NoError(t, sink.Send(ctx, testPlan()))

	entries, err := client.XRange(ctx, "guardian:dispatch", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var first models.DispatchInstruction
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values[streams.DataField].(string)), &first))
	assert.Equal(t, "caregiver-1", first.RecipientID)
	assert.Equal(t, models.SeverityCritical, first.Severity)

	var second models.DispatchInstruction
	require.NoError(t, json.Unmarshal([]byte(entries[1].Values[streams.DataField].(string)), &second))
	assert.Equal(t, []models.Channel{models.ChannelSMS, models.ChannelVoice}, second.Channels)
}

func TestWebhookSink(t *testing.T) {
	var received models.DispatchPlan
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL+"/dispatch", time.Second, zap.NewNop())
	require.NoError(t, sink.Send(context.Background(), testPlan()))
	require.Len(t, received.Instructions, 2)
	assert.Equal(t, "caregiver-2", received.Instructions[1].RecipientID)
}

func TestWebhookSink_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad plan", http.StatusBadRequest)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, time.Second, zap.NewNop())
	err := sink.Send(context.Background(), testPlan())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSink(t *testing.T) {
	w := &fakeWriter{}
	sink := newKafkaSink(w, zap.NewNop())

	require.NoError(t, sink.Send(context.Background(), testPlan()))
	require.Len(t, w.msgs, 2)
	assert.Equal(t, []byte("caregiver-1"), w.msgs[0].Key)
	assert.Equal(t, []byte("caregiver-2"), w.msgs[1].Key)
	assert.Equal(t, "alert_id", w.msgs[0].Headers[0].Key)
	assert.Equal(t, []byte("critical"), w.msgs[0].Headers[1].Value)

	require.NoError(t, sink.Send(context.Background(), &models.DispatchPlan{}))
	assert.Len(t, w.msgs, 2, "empty plan writes nothing")

	w.err = errors.New("leader not available")
	require.Error(t, sink.Send(context.Background(), testPlan()))

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

func TestNewKafkaSink_Validation(t *testing.T) {
	_, err := NewKafkaSink(nil, "topic", zap.NewNop())
	assert.Error(t, err)
	_, err = NewKafkaSink([]string{"localhost:9092"}, "", zap.NewNop())
	assert.Error(t, err)

	sink, err := NewKafkaSink([]string{"localhost:9092"}, "guardian.dispatch", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "kafka", sink.Name())
	require.NoError(t, sink.Close())
}

func TestNew(t *testing.T) {
	cfg := &config.Config{}
	cfg.Guardian.Dispatch.Sink = "redis"
	cfg.Guardian.Streams.Dispatch = "guardian:dispatch"

	sink, err := New(cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "redis", sink.Name())

	cfg.Guardian.Dispatch.Sink = "webhook"
	cfg.Guardian.Dispatch.WebhookURL = "http://localhost/dispatch"
	sink, err = New(cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "webhook", sink.Name())

	cfg.Guardian.Dispatch.Sink = "fax"
	_, err = New(cfg, nil, zap.NewNop())
	assert.Error(t, err)
}
