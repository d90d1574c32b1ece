package streams

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestPublishJSON_ReadGroup_Ack(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, CreateConsumerGroup(ctx, client, "guardian:readings", "g"))
	require.NoError(t, CreateConsumerGroup(ctx, client, "guardian:readings", "g"), "existing group is not an error")

	id, err := PublishJSON(ctx, client, "guardian:readings", map[string]any{"subject_id": "subject-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := ReadGroup(ctx, client, "guardian:readings", "g", "c-1", 10, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)

	data, ok := msgs[0].Data()
	require.True(t, ok)
	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(data), &decoded))
	assert.Equal(t, "subject-1", decoded["subject_id"])

	require.NoError(t, Ack(ctx, client, "guardian:readings", "g", msgs[0].ID))
	pending, err := client.XPending(ctx, "guardian:readings", "g").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)

	msgs, err = ReadGroup(ctx, client, "guardian:readings", "g", "c-1", 10, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestPublish_StringifiesValues(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()

	_, err := Publish(ctx, client, "s", map[string]interface{}{
		"n":    42,
		"f":    0.75,
		"b":    true,
		"list": []string{"a"},
	})
	require.NoError(t, err)

	entries, err := client.XRange(ctx, "s", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "42", entries[0].Values["n"])
	assert.Equal(t, "0.75", entries[0].Values["f"])
	assert.Equal(t, "true", entries[0].Values["b"])
	assert.Equal(t, `["a"]`, entries[0].Values["list"])
}

func TestMessage_DataMissing(t *testing.T) {
	_, ok := Message{Values: map[string]interface{}{"init": "true"}}.Data()
	assert.False(t, ok)
}
