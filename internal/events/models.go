// Package events provides the notification pipeline for the gateway.
// Handlers and background workers publish CloudEvents to a Redis Stream;
// delivery workers match them against device-status subscriptions or a
// direct sink and POST them with retry, circuit breaking, and tracking.
package events

import (
	"time"

	"github.com/piwi3910/camweave/internal/camara"
	"github.com/piwi3910/camweave/internal/storage"
)

// EventType is the CloudEvents type attribute. The vocabulary follows the
// CAMARA event naming convention per API family.
type EventType string

const (
	// EventTypeReachabilityData carries a reachability status change.
	EventTypeReachabilityData EventType = "org.camaraproject.device-reachability-status-subscriptions.v1.reachability-data"

	// EventTypeRoamingStatus carries a roaming status change.
	EventTypeRoamingStatus EventType = "org.camaraproject.device-roaming-status-subscriptions.v1.roaming-status"

	// EventTypeReachabilitySubscriptionEnds signals a reachability
	// subscription reached its expiry or event budget.
	EventTypeReachabilitySubscriptionEnds EventType = "org.camaraproject.device-reachability-status-subscriptions.v1.subscription-ends"

	// EventTypeRoamingSubscriptionEnds signals a roaming subscription
	// reached its expiry or event budget.
	EventTypeRoamingSubscriptionEnds EventType = "org.camaraproject.device-roaming-status-subscriptions.v1.subscription-ends"

	// EventTypeQosStatusChanged signals a QoD session left the AVAILABLE
	// state.
	EventTypeQosStatusChanged EventType = "org.camaraproject.quality-on-demand.v1.qos-status-changed"
)

// String returns the string representation of the EventType.
func (t EventType) String() string {
	return string(t)
}

// SubscriptionEndsType returns the subscription-ends event type for a
// device-status subscription kind.
func SubscriptionEndsType(kind storage.SubscriptionKind) EventType {
	if kind == storage.SubscriptionRoaming {
		return EventTypeRoamingSubscriptionEnds
	}
	return EventTypeReachabilitySubscriptionEnds
}

// Event is the CloudEvents 1.0 structured envelope posted to sinks.
type Event struct {
	// ID is the unique event identifier (UUID v4)
	ID string `json:"id"`

	// Source identifies the producing gateway instance
	Source string `json:"source"`

	// Type is the CAMARA event type
	Type EventType `json:"type"`

	// SpecVersion is the CloudEvents spec version, always "1.0"
	SpecVersion string `json:"specversion"`

	// DataContentType is the content type of Data
	DataContentType string `json:"datacontenttype,omitempty"`

	// Time is when the event occurred
	Time time.Time `json:"time"`

	// Data is the event payload
	Data interface{} `json:"data"`
}

// QosStatusChangedData is the payload of a qos-status-changed event.
type QosStatusChangedData struct {
	SessionID  string            `json:"sessionId"`
	QosStatus  camara.QosStatus  `json:"qosStatus"`
	StatusInfo camara.StatusInfo `json:"statusInfo,omitempty"`
}

// SubscriptionEndsData is the payload of a subscription-ends event.
type SubscriptionEndsData struct {
	Device            *camara.Device `json:"device,omitempty"`
	TerminationReason string         `json:"terminationReason"`
	SubscriptionID    string         `json:"subscriptionId"`
}

// Subscription-ends termination reasons.
const (
	TerminationReasonExpired   = "SUBSCRIPTION_EXPIRED"
	TerminationReasonMaxEvents = "MAX_EVENTS"
	TerminationReasonDeleted   = "SUBSCRIPTION_DELETED"
)

// ReachabilityData is the payload of a reachability-data event.
type ReachabilityData struct {
	Device       *camara.Device            `json:"device,omitempty"`
	Reachable    bool                      `json:"reachable"`
	Connectivity []camara.ConnectivityType `json:"connectivity,omitempty"`
}

// RoamingStatusData is the payload of a roaming-status event.
type RoamingStatusData struct {
	Device      *camara.Device `json:"device,omitempty"`
	Roaming     bool           `json:"roaming"`
	CountryCode int            `json:"countryCode,omitempty"`
	CountryName []string       `json:"countryName,omitempty"`
}

// QueuedEvent is what travels through the queue: the wire envelope plus
// routing metadata that never reaches the sink.
type QueuedEvent struct {
	// Event is the CloudEvents envelope delivered to sinks
	Event *Event `json:"event"`

	// Kind routes the event to device-status subscriptions of one family.
	// Empty when the event targets a direct sink.
	Kind storage.SubscriptionKind `json:"kind,omitempty"`

	// Device is the subscriber identity used for subscription matching
	Device *camara.Device `json:"device,omitempty"`

	// Sink is the direct delivery target (QoD session sink, traffic
	// influence notification sink). Empty for subscription-routed events.
	Sink string `json:"sink,omitempty"`

	// TargetID correlates a direct delivery with its owning record
	TargetID string `json:"targetId,omitempty"`
}

// Target is a resolved delivery destination.
type Target struct {
	// SubscriptionID is the owning subscription or record identifier
	SubscriptionID string

	// Sink is the webhook endpoint URL
	Sink string
}

// DeliveryStatus represents the status of a notification delivery attempt.
type DeliveryStatus string

const (
	// DeliveryStatusPending indicates the notification is queued for delivery.
	DeliveryStatusPending DeliveryStatus = "pending"

	// DeliveryStatusDelivering indicates delivery is in progress.
	DeliveryStatusDelivering DeliveryStatus = "delivering"

	// DeliveryStatusDelivered indicates successful delivery.
	DeliveryStatusDelivered DeliveryStatus = "delivered"

	// DeliveryStatusFailed indicates delivery failed after all retries.
	DeliveryStatusFailed DeliveryStatus = "failed"

	// DeliveryStatusRetrying indicates delivery is being retried.
	DeliveryStatusRetrying DeliveryStatus = "retrying"
)

// String returns the string representation of the DeliveryStatus.
func (d DeliveryStatus) String() string {
	return string(d)
}

// NotificationDelivery tracks the delivery status of an event notification.
type NotificationDelivery struct {
	// ID is the unique delivery tracking identifier
	ID string `json:"id"`

	// EventID is the event being delivered
	EventID string `json:"eventId"`

	// SubscriptionID is the subscription or record receiving the notification
	SubscriptionID string `json:"subscriptionId"`

	// SinkURL is the webhook endpoint
	SinkURL string `json:"sinkUrl"`

	// Status is the current delivery status
	Status DeliveryStatus `json:"status"`

	// Attempts is the number of delivery attempts made
	Attempts int `json:"attempts"`

	// MaxAttempts is the maximum number of delivery attempts
	MaxAttempts int `json:"maxAttempts"`

	// LastAttemptAt is the timestamp of the last delivery attempt
	LastAttemptAt time.Time `json:"lastAttemptAt,omitempty"`

	// NextAttemptAt is the scheduled time for the next retry
	NextAttemptAt time.Time `json:"nextAttemptAt,omitempty"`

	// LastError contains the error message from the last failed attempt
	LastError string `json:"lastError,omitempty"`

	// HTTPStatusCode is the HTTP status code from the last attempt
	HTTPStatusCode int `json:"httpStatusCode,omitempty"`

	// ResponseTime is the response time of the last attempt in milliseconds
	ResponseTime int64 `json:"responseTime,omitempty"`

	// CreatedAt is when the delivery was created
	CreatedAt time.Time `json:"createdAt"`

	// CompletedAt is when the delivery was completed (success or failure)
	CompletedAt time.Time `json:"completedAt,omitempty"`
}
