package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/piwi3910/camweave/internal/camara"
	"github.com/piwi3910/camweave/internal/storage"
)

func setupTestQueue(t *testing.T) (*RedisQueue, redis.UniversalClient) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisQueue(client, zap.NewNop()), client
}

func queuedTestEvent() *QueuedEvent {
	rec := &storage.SessionRecord{
		SessionInfo: camara.SessionInfo{
			SessionID: "sess-1",
			Sink:      "https://consumer.example.com/events",
			QosStatus: camara.QosStatusUnavailable,
		},
	}
	return NewQosStatusChanged(rec)
}

func TestPublish(t *testing.T) {
	queue, client := setupTestQueue(t)
	ctx := context.Background()

	require.NoError(t, queue.Publish(ctx, queuedTestEvent()))

	length, err := client.XLen(ctx, eventStreamKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)
}

func TestPublish_InvalidInput(t *testing.T) {
	queue, _ := setupTestQueue(t)
	ctx := context.Background()

	assert.Error(t, queue.Publish(ctx, nil))
	assert.Error(t, queue.Publish(ctx, &QueuedEvent{}))
	assert.Error(t, queue.Publish(ctx, &QueuedEvent{Event: &Event{}}))
}

func TestSubscribeReceivesPublishedEvent(t *testing.T) {
	queue, _ := setupTestQueue(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	published := queuedTestEvent()
	require.NoError(t, queue.Publish(ctx, published))

	eventCh, err := queue.Subscribe(ctx, "notifiers", "worker-0")
	require.NoError(t, err)

	select {
	case got := <-eventCh:
		require.NotNil(t, got)
		assert.Equal(t, published.Event.ID, got.Event.ID)
		assert.Equal(t, EventTypeQosStatusChanged, got.Event.Type)
		assert.Equal(t, published.Sink, got.Sink)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribe_InvalidInput(t *testing.T) {
	queue, _ := setupTestQueue(t)
	ctx := context.Background()

	_, err := queue.Subscribe(ctx, "", "worker-0")
	assert.Error(t, err)

	_, err = queue.Subscribe(ctx, "notifiers", "")
	assert.Error(t, err)
}

func TestAcknowledge_InvalidInput(t *testing.T) {
	queue, _ := setupTestQueue(t)
	ctx := context.Background()

	assert.Error(t, queue.Acknowledge(ctx, "", "1-0"))
	assert.Error(t, queue.Acknowledge(ctx, "notifiers", ""))
}
