package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/piwi3910/camweave/internal/camara"
	"github.com/piwi3910/camweave/internal/storage"
)

// SubscriptionFilter implements the Filter interface against the
// device-status subscription registry.
type SubscriptionFilter struct {
	store  storage.Store
	logger *zap.Logger
}

// NewSubscriptionFilter creates a new SubscriptionFilter instance.
func NewSubscriptionFilter(store storage.Store, logger *zap.Logger) *SubscriptionFilter {
	if store == nil {
		panic("storage cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	return &SubscriptionFilter{
		store:  store,
		logger: logger,
	}
}

// MatchSubscriptions finds all subscriptions that should receive the event.
// Matching requires:
//   - the subscription kind matches the event's routing kind
//   - the subscription requested the event type (an empty type list accepts all)
//   - the subscription's device identifies the same subscriber
func (f *SubscriptionFilter) MatchSubscriptions(ctx context.Context, event *QueuedEvent) ([]*storage.SubscriptionRecord, error) {
	if event.Kind == "" {
		return []*storage.SubscriptionRecord{}, nil
	}

	subscriptions, err := f.store.ListSubscriptions(ctx, event.Kind)
	if err != nil {
		return nil, err
	}

	matched := make([]*storage.SubscriptionRecord, 0)
	for _, sub := range subscriptions {
		if f.matchesSubscription(event, sub) {
			matched = append(matched, sub)
		}
	}

	RecordSubscriptionsMatched(string(event.Event.Type), len(matched))

	f.logger.Debug("matched subscriptions for event",
		zap.String("event_id", event.Event.ID),
		zap.String("event_type", string(event.Event.Type)),
		zap.Int("total_subscriptions", len(subscriptions)),
		zap.Int("matched_subscriptions", len(matched)),
	)

	return matched, nil
}

// matchesSubscription checks if an event matches one subscription.
func (f *SubscriptionFilter) matchesSubscription(event *QueuedEvent, sub *storage.SubscriptionRecord) bool {
	if !typeRequested(sub.Types, event.Event.Type) {
		return false
	}
	return sameDevice(event.Device, sub.Device)
}

// typeRequested reports whether the subscription asked for this event type.
func typeRequested(types []string, eventType EventType) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == string(eventType) {
			return true
		}
	}
	return false
}

// sameDevice reports whether two devices share at least one identifier.
func sameDevice(a, b *camara.Device) bool {
	if a == nil || b == nil {
		return false
	}
	if a.PhoneNumber != "" && a.PhoneNumber == b.PhoneNumber {
		return true
	}
	if a.NetworkAccessIdentifier != "" && a.NetworkAccessIdentifier == b.NetworkAccessIdentifier {
		return true
	}
	if a.IPv4Address != nil && b.IPv4Address != nil &&
		a.IPv4Address.PublicAddress != "" &&
		a.IPv4Address.PublicAddress == b.IPv4Address.PublicAddress {
		return true
	}
	if a.IPv6Address != "" && a.IPv6Address == b.IPv6Address {
		return true
	}
	return false
}
