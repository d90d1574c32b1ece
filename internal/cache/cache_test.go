package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"wisefido-guardian/internal/cache"
	"wisefido-guardian/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLinkStore struct {
	links     map[string]*models.CareCircleLink
	getCalls  int
	listCalls int
	err       error
}

func (f *fakeLinkStore) GetLink(ctx context.Context, subjectID, caregiverID string) (*models.CareCircleLink, error) {
	f.getCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.links[subjectID+"/"+caregiverID], nil
}

func (f *fakeLinkStore) ListLinksBySubject(ctx context.Context, subjectID string) ([]models.CareCircleLink, error) {
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := []models.CareCircleLink{}
	for _, l := range f.links {
		if l.SubjectID == subjectID {
			out = append(out, *l)
		}
	}
	return out, nil
}

type fakePreferenceStore struct {
	prefs map[string]*models.RecipientPreferences
	calls int
}

func (f *fakePreferenceStore) GetPreferences(ctx context.Context, recipientID string) (*models.RecipientPreferences, error) {
	f.calls++
	return f.prefs[recipientID], nil
}

func testLinkStore() *fakeLinkStore {
	return &fakeLinkStore{links: map[string]*models.CareCircleLink{
		"subject-1/caregiver-1": {
			SubjectID:   "subject-1",
			CaregiverID: "caregiver-1",
			Permissions: models.PermissionSet{CanViewVitals: true, CanReceiveAlerts: true},
			WriteGrants: []models.Category{models.CategoryDeviceManagement},
			Status:      models.LinkActive,
		},
	}}
}

func TestCareCircleCache_GetLink_ReadThrough(t *testing.T) {
	store := testLinkStore()
	kv := newFakeKVStore()
	c := cache.NewCareCircleCache(store, kv, "guardian:", time.Minute, zap.NewNop())
	ctx := context.Background()

	link, err := c.GetLink(ctx, "subject-1", "caregiver-1")
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.True(t, link.Permissions.CanViewVitals)

	link, err = c.GetLink(ctx, "subject-1", "caregiver-1")
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, []models.Category{models.CategoryDeviceManagement}, link.WriteGrants)
	assert.Equal(t, 1, store.getCalls, "second read is served from cache")

	_, err = kv.Get(ctx, "guardian:link:subject-1:caregiver-1")
	require.NoError(t, err)
}

func TestCareCircleCache_GetLink_CachesAbsence(t *testing.T) {
	store := testLinkStore()
	c := cache.NewCareCircleCache(store, newFakeKVStore(), "guardian:", time.Minute, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		link, err := c.GetLink(ctx, "subject-1", "stranger")
		require.NoError(t, err)
		assert.Nil(t, link)
	}
	assert.Equal(t, 1, store.getCalls)
}

func TestCareCircleCache_KVFailureFallsBackToStore(t *testing.T) {
	store := testLinkStore()
	kv := newFakeKVStore()
	kv.failGet = true
	c := cache.NewCareCircleCache(store, kv, "guardian:", time.Minute, zap.NewNop())

	link, err := c.GetLink(context.Background(), "subject-1", "caregiver-1")
	require.NoError(t, err)
	require.NotNil(t, link)
}

func TestCareCircleCache_StoreError(t *testing.T) {
	store := testLinkStore()
	store.err = errors.New("db down")
	c := cache.NewCareCircleCache(store, newFakeKVStore(), "guardian:", time.Minute, zap.NewNop())

	_, err := c.GetLink(context.Background(), "subject-1", "caregiver-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")

	_, err = c.ListLinks(context.Background(), "subject-1")
	require.Error(t, err)
}

func TestCareCircleCache_ListLinksAndInvalidate(t *testing.T) {
	store := testLinkStore()
	c := cache.NewCareCircleCache(store, newFakeKVStore(), "guardian:", time.Minute, zap.NewNop())
	ctx := context.Background()

	links, err := c.ListLinks(ctx, "subject-1")
	require.NoError(t, err)
	require.Len(t, links, 1)

	links, err = c.ListLinks(ctx, "subject-9")
	require.NoError(t, err)
	assert.Empty(t, links)

	_, err = c.ListLinks(ctx, "subject-1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.listCalls)

	require.NoError(t, c.Invalidate(ctx, "subject-1", "caregiver-1"))
	_, err = c.ListLinks(ctx, "subject-1")
	require.NoError(t, err)
	assert.Equal(t, 3, store.listCalls)
}

func TestPreferenceCache(t *testing.T) {
	store := &fakePreferenceStore{prefs: map[string]*models.RecipientPreferences{
		"caregiver-1": {
			RecipientID: "caregiver-1",
			ByType: map[models.AlertType]models.NotificationPreference{
				models.AlertVitalSigns: {
					AlertType:         models.AlertVitalSigns,
					Enabled:           true,
					AllowedSeverities: []models.Severity{models.SeverityHigh, models.SeverityCritical},
					Channels:          []models.Channel{models.ChannelSMS},
				},
			},
		},
	}}
	c := cache.NewPreferenceCache(store, newFakeKVStore(), "guardian:", time.Minute, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		prefs, err := c.GetPreferences(ctx, "caregiver-1")
		require.NoError(t, err)
		require.NotNil(t, prefs)
		p, ok := prefs.For(models.AlertVitalSigns)
		require.True(t, ok)
		assert.Equal(t, []models.Severity{models.SeverityHigh, models.SeverityCritical}, p.AllowedSeverities)
		assert.Equal(t, []models.Channel{models.ChannelSMS}, p.Channels)
	}
	assert.Equal(t, 1, store.calls)

	prefs, err := c.GetPreferences(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, prefs)

	require.NoError(t, c.Invalidate(ctx, "caregiver-1"))
	_, err = c.GetPreferences(ctx, "caregiver-1")
	require.NoError(t, err)
	assert.Equal(t, 3, store.calls)
}

func TestRedisKVStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	kv := cache.NewRedisKVStore(client)
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))
	val, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
	assert.Equal(t, time.Minute, mr.TTL("k"))

	mr.FastForward(2 * time.Minute)
	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	require.NoError(t, kv.Set(ctx, "k2", "v2", 0))
	require.NoError(t, kv.Del(ctx, "k2"))
	assert.False(t, mr.Exists("k2"))
	require.NoError(t, kv.Del(ctx))
}

func TestCareCircleCache_WithMiniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := testLinkStore()
	c := cache.NewCareCircleCache(store, cache.NewRedisKVStore(client), "guardian:", time.Minute, zap.NewNop())
	ctx := context.Background()

	_, err := c.GetLink(ctx, "subject-1", "caregiver-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("guardian:link:subject-1:caregiver-1"))

	_, err = c.GetLink(ctx, "subject-1", "nobody")
	require.NoError(t, err)
	raw, err := mr.Get("guardian:link:subject-1:nobody")
	require.NoError(t, err)
	assert.Equal(t, "null", raw)
}
