package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/piwi3910/camweave/internal/camara"
	"github.com/piwi3910/camweave/internal/storage"
)

const (
	// eventSource is the CloudEvents source attribute for this gateway.
	eventSource = "https://camweave.local/gateway"

	// cloudEventsSpecVersion is the only spec version we emit.
	cloudEventsSpecVersion = "1.0"

	// jsonContentType is the content type of every event payload.
	jsonContentType = "application/json"
)

// newEvent builds the CloudEvents envelope shared by all constructors.
func newEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            eventType,
		SpecVersion:     cloudEventsSpecVersion,
		DataContentType: jsonContentType,
		Time:            time.Now().UTC(),
		Data:            data,
	}
}

// NewQosStatusChanged builds a qos-status-changed event targeted at the
// session's sink.
func NewQosStatusChanged(rec *storage.SessionRecord) *QueuedEvent {
	event := newEvent(EventTypeQosStatusChanged, &QosStatusChangedData{
		SessionID:  rec.SessionID,
		QosStatus:  rec.QosStatus,
		StatusInfo: rec.StatusInfo,
	})
	RecordEventGenerated(string(EventTypeQosStatusChanged), "quality-on-demand")

	return &QueuedEvent{
		Event:    event,
		Sink:     rec.Sink,
		TargetID: rec.SessionID,
	}
}

// NewSubscriptionEnds builds a subscription-ends event targeted at the
// subscription's own sink.
func NewSubscriptionEnds(sub *storage.SubscriptionRecord, reason string) *QueuedEvent {
	event := newEvent(SubscriptionEndsType(sub.Kind), &SubscriptionEndsData{
		Device:            sub.Device.SingleIdentifier(),
		TerminationReason: reason,
		SubscriptionID:    sub.SubscriptionID,
	})
	RecordEventGenerated(string(event.Type), "device-status")

	return &QueuedEvent{
		Event:    event,
		Sink:     sub.Sink,
		TargetID: sub.SubscriptionID,
	}
}

// NewReachabilityData builds a reachability-data event routed to every
// matching reachability subscription.
func NewReachabilityData(device *camara.Device, status *camara.ReachabilityStatus) *QueuedEvent {
	event := newEvent(EventTypeReachabilityData, &ReachabilityData{
		Device:       device.SingleIdentifier(),
		Reachable:    status.Reachable,
		Connectivity: status.Connectivity,
	})
	RecordEventGenerated(string(EventTypeReachabilityData), "device-status")

	return &QueuedEvent{
		Event:  event,
		Kind:   storage.SubscriptionReachability,
		Device: device,
	}
}

// NewRoamingStatus builds a roaming-status event routed to every matching
// roaming subscription.
func NewRoamingStatus(device *camara.Device, status *camara.RoamingStatus) *QueuedEvent {
	event := newEvent(EventTypeRoamingStatus, &RoamingStatusData{
		Device:      device.SingleIdentifier(),
		Roaming:     status.Roaming,
		CountryCode: status.CountryCode,
		CountryName: status.CountryName,
	})
	RecordEventGenerated(string(EventTypeRoamingStatus), "device-status")

	return &QueuedEvent{
		Event:  event,
		Kind:   storage.SubscriptionRoaming,
		Device: device,
	}
}
