// Package adapter defines the uniform interface every network-core adapter
// implements. The gateway translates CAMARA requests into calls on this
// interface; each adapter speaks the 3GPP dialect of one concrete core.
package adapter

import (
	"context"
	"time"

	"github.com/piwi3910/camweave/internal/camara"
)

// Capability identifies an optional feature a core adapter may support.
type Capability string

const (
	// CapabilityQoD indicates support for AsSessionWithQoS sessions.
	CapabilityQoD Capability = "qod"

	// CapabilityLocation indicates support for location monitoring events.
	CapabilityLocation Capability = "location_retrieval"

	// CapabilityDeviceStatus indicates support for subscriber profile
	// lookups backing reachability and roaming.
	CapabilityDeviceStatus Capability = "device_status"

	// CapabilityTrafficInfluence indicates support for traffic influence
	// subscriptions.
	CapabilityTrafficInfluence Capability = "traffic_influence"
)

// QoDSession is the adapter-level view of an active QoS session.
type QoDSession struct {
	// SubscriptionID is the core-assigned AsSessionWithQoS identifier.
	SubscriptionID string

	// Device is the session owner with the private address already
	// defaulted.
	Device *camara.Device

	// ServerIPv4 is the application server address recovered from or fed
	// into the flow descriptors.
	ServerIPv4 string

	// QosProfile is the CAMARA profile name (the core's qosReference).
	QosProfile string

	// Duration is the usage threshold in seconds.
	Duration int

	// Sink receives session event notifications.
	Sink string
}

// LocationReport is the adapter-level view of a location answer.
type LocationReport struct {
	// Area is the reported shape already in CAMARA vocabulary.
	Area *camara.Area

	// EventTime is when the core produced the report.
	EventTime time.Time

	// AgeMinutes is the staleness the core attached, zero when fresh.
	AgeMinutes int
}

// RegistrationStatus is the subscriber's registration state in the core.
type RegistrationStatus string

const (
	Registered   RegistrationStatus = "REGISTERED"
	Deregistered RegistrationStatus = "DEREGISTERED"
)

// ConnectionStatus is the subscriber's connection state in the core.
type ConnectionStatus string

const (
	Connected ConnectionStatus = "CONNECTED"
	Idle      ConnectionStatus = "IDLE"
)

// UEProfile is the subscriber profile backing Device Status operations.
type UEProfile struct {
	Supi               string
	Msisdn             string
	RegistrationStatus RegistrationStatus
	ConnectionStatus   ConnectionStatus
	Plmn               *Plmn
	PduSessionCount    int
}

// Plmn is the serving network identity of a subscriber.
type Plmn struct {
	Mcc string
	Mnc string
}

// TrafficInfluenceResult is the adapter-level outcome of a traffic
// influence operation.
type TrafficInfluenceResult struct {
	// SubscriptionID is the core-assigned traffic influence identifier.
	SubscriptionID string
}

// Adapter is the operation set a network core exposes to the gateway.
// Every method issues at most one synchronous downstream call and returns
// tagged failures from the camara package; adapters never render wire
// errors themselves.
type Adapter interface {
	// Name returns the adapter type, e.g. "coresim" or "open5gs".
	Name() string

	// Capabilities lists what this core supports. Handlers reject
	// operations outside this set before dispatch.
	Capabilities() []Capability

	// Health verifies the core is reachable.
	Health(ctx context.Context) error

	// CreateQoDSession provisions a QoS session and returns the core's
	// subscription identifier.
	CreateQoDSession(ctx context.Context, session *QoDSession) (*QoDSession, error)

	// GetQoDSession fetches the core's view of an existing session.
	GetQoDSession(ctx context.Context, subscriptionID string) (*QoDSession, error)

	// ExtendQoDSession replaces the session's usage threshold with the new
	// total duration.
	ExtendQoDSession(ctx context.Context, subscriptionID string, session *QoDSession) error

	// DeleteQoDSession tears the session down.
	DeleteQoDSession(ctx context.Context, subscriptionID string) error

	// RetrieveLocation resolves the device's last known location via a
	// one-shot monitoring event subscription.
	RetrieveLocation(ctx context.Context, device *camara.Device, maxAgeSeconds int) (*LocationReport, error)

	// GetDeviceProfile resolves a device to its subscriber profile. The
	// implementation may fall back to a secondary telemetry lookup exactly
	// once before reporting the device unknown.
	GetDeviceProfile(ctx context.Context, device *camara.Device) (*UEProfile, error)

	// CreateTrafficInfluence provisions a traffic influence subscription.
	CreateTrafficInfluence(ctx context.Context, ti *camara.TrafficInfluence) (*TrafficInfluenceResult, error)

	// UpdateTrafficInfluence replaces an existing influence subscription.
	UpdateTrafficInfluence(ctx context.Context, subscriptionID string, ti *camara.TrafficInfluence) error

	// DeleteTrafficInfluence removes an influence subscription.
	DeleteTrafficInfluence(ctx context.Context, subscriptionID string) error

	// Close releases adapter resources.
	Close() error
}

// Supports reports whether the adapter advertises the capability.
func Supports(a Adapter, c Capability) bool {
	for _, have := range a.Capabilities() {
		if have == c {
			return true
		}
	}
	return false
}
