package events

import (
	"context"

	"github.com/piwi3910/camweave/internal/storage"
)

// Queue carries events from the API handlers and workers that generate
// them to the notification workers that deliver them. The production
// implementation is Redis Streams; MemoryQueue serves single-instance
// deployments without Redis.
type Queue interface {
	// Publish enqueues one event.
	Publish(ctx context.Context, event *QueuedEvent) error

	// Subscribe returns a channel fed from the queue. The consumer
	// group spreads events across gateway replicas; the channel closes
	// when ctx is cancelled.
	Subscribe(ctx context.Context, consumerGroup, consumerName string) (<-chan *QueuedEvent, error)

	// Acknowledge marks an event processed for the consumer group.
	Acknowledge(ctx context.Context, consumerGroup, streamID string) error

	// Close releases queue resources.
	Close() error
}

// Filter decides which device-status subscriptions an event fans out
// to, matching on subscription kind, requested event types, and the
// device the event concerns.
type Filter interface {
	MatchSubscriptions(ctx context.Context, event *QueuedEvent) ([]*storage.SubscriptionRecord, error)
}

// Notifier posts CloudEvents to consumer sinks.
type Notifier interface {
	// Notify delivers once, without retries.
	Notify(ctx context.Context, event *Event, target Target) error

	// NotifyWithRetry delivers with backoff and returns the delivery
	// record describing the final outcome.
	NotifyWithRetry(ctx context.Context, event *Event, target Target) (*NotificationDelivery, error)

	// Close releases notifier resources.
	Close() error
}

// DeliveryTracker persists delivery records for auditing: which sink
// got which event, when, and after how many attempts.
type DeliveryTracker interface {
	Track(ctx context.Context, delivery *NotificationDelivery) error
	Get(ctx context.Context, deliveryID string) (*NotificationDelivery, error)
	ListByEvent(ctx context.Context, eventID string) ([]*NotificationDelivery, error)
	ListBySubscription(ctx context.Context, subscriptionID string) ([]*NotificationDelivery, error)
	ListFailed(ctx context.Context) ([]*NotificationDelivery, error)
}
