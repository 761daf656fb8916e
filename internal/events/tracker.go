package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	deliveryKeyPrefix     = "events:delivery:"
	deliveryByEventPrefix = "events:delivery:by-event:"
	deliveryBySubPrefix   = "events:delivery:by-sub:"
	deliveryFailedSet     = "events:delivery:failed"

	// Delivery records are audit data, kept one week.
	deliveryTTL = 7 * 24 * time.Hour
)

// RedisDeliveryTracker records webhook delivery attempts in Redis so
// operators can audit what a consumer's sink received and when.
type RedisDeliveryTracker struct {
	client redis.UniversalClient
}

// NewRedisDeliveryTracker creates a tracker on the given client.
func NewRedisDeliveryTracker(client redis.UniversalClient) *RedisDeliveryTracker {
	if client == nil {
		panic("Redis client cannot be nil")
	}
	return &RedisDeliveryTracker{client: client}
}

// Track upserts a delivery record and maintains the lookup indexes.
// Re-tracking the same delivery with a new status replaces the record,
// so a retry that eventually succeeds drops out of the failed set.
func (t *RedisDeliveryTracker) Track(ctx context.Context, delivery *NotificationDelivery) error {
	if delivery == nil {
		return errors.New("delivery cannot be nil")
	}
	if delivery.ID == "" {
		return errors.New("delivery ID cannot be empty")
	}

	data, err := json.Marshal(delivery)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery: %w", err)
	}

	pipe := t.client.Pipeline()
	pipe.Set(ctx, deliveryKeyPrefix+delivery.ID, data, deliveryTTL)

	for prefix, id := range map[string]string{
		deliveryByEventPrefix: delivery.EventID,
		deliveryBySubPrefix:   delivery.SubscriptionID,
	} {
		if id == "" {
			continue
		}
		pipe.SAdd(ctx, prefix+id, delivery.ID)
		pipe.Expire(ctx, prefix+id, deliveryTTL)
	}

	if delivery.Status == DeliveryStatusFailed {
		pipe.ZAdd(ctx, deliveryFailedSet, redis.Z{
			Score:  float64(delivery.CompletedAt.Unix()),
			Member: delivery.ID,
		})
		pipe.Expire(ctx, deliveryFailedSet, deliveryTTL)
	} else {
		pipe.ZRem(ctx, deliveryFailedSet, delivery.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to track delivery: %w", err)
	}
	return nil
}

// Get returns one delivery record.
func (t *RedisDeliveryTracker) Get(ctx context.Context, deliveryID string) (*NotificationDelivery, error) {
	if deliveryID == "" {
		return nil, errors.New("delivery ID cannot be empty")
	}

	data, err := t.client.Get(ctx, deliveryKeyPrefix+deliveryID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.New("delivery not found")
		}
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}

	var delivery NotificationDelivery
	if err := json.Unmarshal(data, &delivery); err != nil {
		return nil, fmt.Errorf("failed to unmarshal delivery: %w", err)
	}
	return &delivery, nil
}

// ListByEvent returns all delivery attempts for one published event.
func (t *RedisDeliveryTracker) ListByEvent(ctx context.Context, eventID string) ([]*NotificationDelivery, error) {
	if eventID == "" {
		return nil, errors.New("event ID cannot be empty")
	}

	ids, err := t.client.SMembers(ctx, deliveryByEventPrefix+eventID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery IDs by event: %w", err)
	}
	return t.fetchDeliveries(ctx, ids)
}

// ListBySubscription returns all deliveries sent for one subscription's sink.
func (t *RedisDeliveryTracker) ListBySubscription(ctx context.Context, subscriptionID string) ([]*NotificationDelivery, error) {
	if subscriptionID == "" {
		return nil, errors.New("subscription ID cannot be empty")
	}

	ids, err := t.client.SMembers(ctx, deliveryBySubPrefix+subscriptionID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery IDs by subscription: %w", err)
	}
	return t.fetchDeliveries(ctx, ids)
}

// ListFailed returns exhausted deliveries ordered by completion time.
func (t *RedisDeliveryTracker) ListFailed(ctx context.Context) ([]*NotificationDelivery, error) {
	ids, err := t.client.ZRange(ctx, deliveryFailedSet, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list failed delivery IDs: %w", err)
	}
	return t.fetchDeliveries(ctx, ids)
}

// fetchDeliveries loads records in one MGET. Index entries whose record
// already expired are skipped, the indexes outlive records briefly.
func (t *RedisDeliveryTracker) fetchDeliveries(ctx context.Context, ids []string) ([]*NotificationDelivery, error) {
	deliveries := make([]*NotificationDelivery, 0, len(ids))
	if len(ids) == 0 {
		return deliveries, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = deliveryKeyPrefix + id
	}

	values, err := t.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch deliveries: %w", err)
	}

	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var delivery NotificationDelivery
		if err := json.Unmarshal([]byte(raw), &delivery); err != nil {
			continue
		}
		deliveries = append(deliveries, &delivery)
	}
	return deliveries, nil
}
