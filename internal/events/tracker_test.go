package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestTracker(t *testing.T) *RedisDeliveryTracker {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisDeliveryTracker(client)
}

func sampleDelivery(id string) *NotificationDelivery {
	return &NotificationDelivery{
		ID:             id,
		EventID:        "evt-1",
		SubscriptionID: "sub-1",
		SinkURL:        "https://consumer.example.com/events",
		Status:         DeliveryStatusDelivered,
		Attempts:       1,
		MaxAttempts:    3,
		CreatedAt:      time.Now().UTC(),
		CompletedAt:    time.Now().UTC(),
	}
}

func TestTrackAndGet(t *testing.T) {
	tracker := setupTestTracker(t)
	ctx := context.Background()

	delivery := sampleDelivery("del-1")
	require.NoError(t, tracker.Track(ctx, delivery))

	got, err := tracker.Get(ctx, "del-1")
	require.NoError(t, err)
	assert.Equal(t, "del-1", got.ID)
	assert.Equal(t, "https://consumer.example.com/events", got.SinkURL)
	assert.Equal(t, DeliveryStatusDelivered, got.Status)
}

func TestTrack_InvalidInput(t *testing.T) {
	tracker := setupTestTracker(t)
	ctx := context.Background()

	assert.Error(t, tracker.Track(ctx, nil))
	assert.Error(t, tracker.Track(ctx, &NotificationDelivery{}))
}

func TestGet_NotFound(t *testing.T) {
	tracker := setupTestTracker(t)

	_, err := tracker.Get(context.Background(), "missing")
	assert.Error(t, err)
}

func TestListByEventAndSubscription(t *testing.T) {
	tracker := setupTestTracker(t)
	ctx := context.Background()

	first := sampleDelivery("del-1")
	second := sampleDelivery("del-2")
	second.SubscriptionID = "sub-2"
	require.NoError(t, tracker.Track(ctx, first))
	require.NoError(t, tracker.Track(ctx, second))

	byEvent, err := tracker.ListByEvent(ctx, "evt-1")
	require.NoError(t, err)
	assert.Len(t, byEvent, 2)

	bySub, err := tracker.ListBySubscription(ctx, "sub-2")
	require.NoError(t, err)
	require.Len(t, bySub, 1)
	assert.Equal(t, "del-2", bySub[0].ID)
}

func TestListFailed(t *testing.T) {
	tracker := setupTestTracker(t)
	ctx := context.Background()

	failed := sampleDelivery("del-failed")
	failed.Status = DeliveryStatusFailed
	failed.LastError = "webhook returned non-2xx status: 500"
	require.NoError(t, tracker.Track(ctx, failed))
	require.NoError(t, tracker.Track(ctx, sampleDelivery("del-ok")))

	list, err := tracker.ListFailed(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "del-failed", list[0].ID)

	// A later successful track removes it from the failed set
	failed.Status = DeliveryStatusDelivered
	require.NoError(t, tracker.Track(ctx, failed))

	list, err = tracker.ListFailed(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
