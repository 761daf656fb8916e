// Package camara defines the CAMARA-facing request and response contracts
// shared by all five API families (Quality-on-Demand, Location Retrieval,
// Device Status, SIM Swap, Traffic Influence), together with the pure
// validation rules that guard them.
//
// Validation here is side-effect free: every check either accepts the typed
// request or returns an *Error carrying the CAMARA {status, code, message}
// triple. Handlers never build error bodies themselves.
package camara

import (
	"fmt"
	"net"
	"regexp"
	"time"
)

// Phone number must be E.164 with a leading plus.
var phoneNumberRe = regexp.MustCompile(`^\+[1-9][0-9]{4,14}$`)

// QoS profile names are short identifier-like tokens.
var qosProfileRe = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,256}$`)

// Device identifies a subscriber by one or more identifier kinds.
// At least one identifier must be populated unless the caller is identified
// out-of-band, in which case none may be supplied.
type Device struct {
	PhoneNumber             string       `json:"phoneNumber,omitempty"`
	NetworkAccessIdentifier string       `json:"networkAccessIdentifier,omitempty"`
	IPv4Address             *DeviceIPv4  `json:"ipv4Address,omitempty"`
	IPv6Address             string       `json:"ipv6Address,omitempty"`
}

// DeviceIPv4 carries the public/private address pair for an IPv4-identified
// device. PrivateAddress defaults to PublicAddress when omitted; the default
// is applied by the translation layer before any downstream use.
type DeviceIPv4 struct {
	PublicAddress  string `json:"publicAddress,omitempty"`
	PrivateAddress string `json:"privateAddress,omitempty"`
	PublicPort     int    `json:"publicPort,omitempty"`
}

// Empty reports whether no identifier kind is populated.
func (d *Device) Empty() bool {
	if d == nil {
		return true
	}
	return d.PhoneNumber == "" &&
		d.NetworkAccessIdentifier == "" &&
		(d.IPv4Address == nil || d.IPv4Address.PublicAddress == "") &&
		d.IPv6Address == ""
}

// Validate checks identifier syntax for every populated kind.
func (d *Device) Validate() *Error {
	if d == nil {
		return nil
	}
	if d.PhoneNumber != "" && !phoneNumberRe.MatchString(d.PhoneNumber) {
		return InvalidArgument(fmt.Sprintf("phoneNumber %q is not E.164", d.PhoneNumber))
	}
	if d.IPv4Address != nil && d.IPv4Address.PublicAddress != "" {
		if ip := net.ParseIP(d.IPv4Address.PublicAddress); ip == nil || ip.To4() == nil {
			return InvalidArgument(fmt.Sprintf("ipv4Address.publicAddress %q is not a valid IPv4 address", d.IPv4Address.PublicAddress))
		}
	}
	if d.IPv4Address != nil && d.IPv4Address.PrivateAddress != "" {
		if ip := net.ParseIP(d.IPv4Address.PrivateAddress); ip == nil || ip.To4() == nil {
			return InvalidArgument(fmt.Sprintf("ipv4Address.privateAddress %q is not a valid IPv4 address", d.IPv4Address.PrivateAddress))
		}
	}
	if d.IPv6Address != "" {
		if ip := net.ParseIP(d.IPv6Address); ip == nil || ip.To4() != nil {
			return InvalidArgument(fmt.Sprintf("ipv6Address %q is not a valid IPv6 address", d.IPv6Address))
		}
	}
	return nil
}

// ApplyPrivateAddressDefault fills PrivateAddress from PublicAddress when
// the caller omitted it. This is a core requirement, not a display default:
// downstream subscription payloads must see the resolved pair.
func (d *Device) ApplyPrivateAddressDefault() {
	if d == nil || d.IPv4Address == nil {
		return
	}
	if d.IPv4Address.PrivateAddress == "" {
		d.IPv4Address.PrivateAddress = d.IPv4Address.PublicAddress
	}
}

// SingleIdentifier returns a copy of the device with exactly one identifier
// populated, preferring phone number, then NAI, then IPv4, then IPv6.
// Device Status responses echo the device this way.
func (d *Device) SingleIdentifier() *Device {
	if d == nil {
		return nil
	}
	switch {
	case d.PhoneNumber != "":
		return &Device{PhoneNumber: d.PhoneNumber}
	case d.NetworkAccessIdentifier != "":
		return &Device{NetworkAccessIdentifier: d.NetworkAccessIdentifier}
	case d.IPv4Address != nil && d.IPv4Address.PublicAddress != "":
		ipv4 := *d.IPv4Address
		return &Device{IPv4Address: &ipv4}
	case d.IPv6Address != "":
		return &Device{IPv6Address: d.IPv6Address}
	}
	return nil
}

// ApplicationServer is the peer endpoint of a QoD session.
type ApplicationServer struct {
	IPv4Address string `json:"ipv4Address,omitempty"`
	IPv6Address string `json:"ipv6Address,omitempty"`
}

// PortsSpec lists individual ports and/or ranges for flow selection.
type PortsSpec struct {
	Ranges []PortRange `json:"ranges,omitempty"`
	Ports  []int       `json:"ports,omitempty"`
}

// PortRange is an inclusive from/to port pair.
type PortRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// QosStatus is the lifecycle state of a QoD session.
type QosStatus string

const (
	QosStatusRequested   QosStatus = "REQUESTED"
	QosStatusAvailable   QosStatus = "AVAILABLE"
	QosStatusUnavailable QosStatus = "UNAVAILABLE"
)

// StatusInfo explains why a session left the AVAILABLE state.
type StatusInfo string

const (
	StatusInfoDurationExpired   StatusInfo = "DURATION_EXPIRED"
	StatusInfoNetworkTerminated StatusInfo = "NETWORK_TERMINATED"
	StatusInfoDeleteRequested   StatusInfo = "DELETE_REQUESTED"
)

// CreateSession is the QoD session creation request.
type CreateSession struct {
	Device            *Device            `json:"device,omitempty"`
	ApplicationServer *ApplicationServer `json:"applicationServer"`
	DevicePorts       *PortsSpec         `json:"devicePorts,omitempty"`
	ApplicationServerPorts *PortsSpec    `json:"applicationServerPorts,omitempty"`
	QosProfile        string             `json:"qosProfile"`
	Sink              string             `json:"sink,omitempty"`
	Duration          int                `json:"duration"`
}

// Validate enforces the QoD create contract.
func (r *CreateSession) Validate() *Error {
	if r.Device.Empty() {
		return MissingIdentifier("a device identifier is required")
	}
	if err := r.Device.Validate(); err != nil {
		return err
	}
	// Flow descriptors are built from the IPv4 pair, so an IPv6-only
	// server cannot be dispatched.
	if r.ApplicationServer == nil || r.ApplicationServer.IPv4Address == "" {
		return InvalidArgument("applicationServer.ipv4Address is required")
	}
	if ip := net.ParseIP(r.ApplicationServer.IPv4Address); ip == nil || ip.To4() == nil {
		return InvalidArgument(fmt.Sprintf("applicationServer.ipv4Address %q is not a valid IPv4 address", r.ApplicationServer.IPv4Address))
	}
	if !qosProfileRe.MatchString(r.QosProfile) {
		return InvalidArgument("qosProfile must match ^[a-zA-Z0-9_.-]{3,256}$")
	}
	if r.Duration < 1 {
		return InvalidArgument("duration must be at least 1 second")
	}
	return nil
}

// SessionInfo is the QoD session representation returned to callers.
type SessionInfo struct {
	SessionID         string             `json:"sessionId"`
	Device            *Device            `json:"device,omitempty"`
	ApplicationServer *ApplicationServer `json:"applicationServer"`
	DevicePorts       *PortsSpec         `json:"devicePorts,omitempty"`
	ApplicationServerPorts *PortsSpec    `json:"applicationServerPorts,omitempty"`
	QosProfile        string             `json:"qosProfile"`
	Sink              string             `json:"sink,omitempty"`
	Duration          int                `json:"duration"`
	StartedAt         time.Time          `json:"startedAt"`
	ExpiresAt         time.Time          `json:"expiresAt"`
	QosStatus         QosStatus          `json:"qosStatus"`
	StatusInfo        StatusInfo         `json:"statusInfo,omitempty"`
}

// ExtendSessionDuration asks for additional seconds on an active session.
type ExtendSessionDuration struct {
	RequestedAdditionalDuration int `json:"requestedAdditionalDuration"`
}

// Validate enforces the extend contract.
func (r *ExtendSessionDuration) Validate() *Error {
	if r.RequestedAdditionalDuration < 1 {
		return InvalidArgument("requestedAdditionalDuration must be at least 1 second")
	}
	return nil
}

// RetrieveSessions selects QoD sessions by device.
type RetrieveSessions struct {
	Device *Device `json:"device,omitempty"`
}

// Validate enforces the retrieve-sessions contract.
func (r *RetrieveSessions) Validate() *Error {
	if r.Device.Empty() {
		return MissingIdentifier("a device identifier is required")
	}
	return r.Device.Validate()
}

// AreaType discriminates the geographic area union.
type AreaType string

const (
	AreaTypeCircle  AreaType = "CIRCLE"
	AreaTypePolygon AreaType = "POLYGON"
)

// Point is a WGS84 coordinate.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks coordinate bounds.
func (p Point) Validate() *Error {
	if p.Latitude < -90 || p.Latitude > 90 {
		return InvalidArgument(fmt.Sprintf("latitude %v out of range [-90, 90]", p.Latitude))
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return InvalidArgument(fmt.Sprintf("longitude %v out of range [-180, 180]", p.Longitude))
	}
	return nil
}

// Area is the tagged union over circle and polygon shapes. Exactly one of
// the shape-specific field sets is populated according to AreaType.
type Area struct {
	AreaType AreaType `json:"areaType"`

	// Circle fields.
	Center *Point  `json:"center,omitempty"`
	Radius float64 `json:"radius,omitempty"`

	// Polygon fields. Boundary is ordered and carries 3 to 15 points.
	Boundary []Point `json:"boundary,omitempty"`
}

// Validate checks the populated shape.
func (a *Area) Validate() *Error {
	switch a.AreaType {
	case AreaTypeCircle:
		if a.Center == nil {
			return InvalidArgument("circle area requires a center")
		}
		if err := a.Center.Validate(); err != nil {
			return err
		}
		if a.Radius < 1 {
			return InvalidArgument("circle radius must be at least 1 meter")
		}
	case AreaTypePolygon:
		if len(a.Boundary) < 3 || len(a.Boundary) > 15 {
			return InvalidArgument("polygon boundary must have between 3 and 15 points")
		}
		for _, p := range a.Boundary {
			if err := p.Validate(); err != nil {
				return err
			}
		}
	default:
		return InvalidArgument(fmt.Sprintf("unknown areaType %q", a.AreaType))
	}
	return nil
}

// RetrieveLocation asks for the last known device location.
type RetrieveLocation struct {
	Device     *Device `json:"device,omitempty"`
	MaxAge     int     `json:"maxAge,omitempty"`
	MaxSurface int     `json:"maxSurface,omitempty"`
}

// Validate enforces the location retrieval contract. A missing device and
// an empty device object are distinct failures.
func (r *RetrieveLocation) Validate() *Error {
	if r.Device == nil {
		return MissingIdentifier("a device identifier is required")
	}
	if r.Device.Empty() {
		return DeviceUnidentifiable("the device object carries no usable identifier")
	}
	if err := r.Device.Validate(); err != nil {
		return err
	}
	if r.MaxSurface != 0 && r.MaxSurface < 1 {
		return InvalidArgument("maxSurface must be at least 1")
	}
	return nil
}

// Location is the location retrieval response.
type Location struct {
	LastLocationTime time.Time `json:"lastLocationTime"`
	Area             *Area     `json:"area"`
	Device           *Device   `json:"device,omitempty"`
}

// ConnectivityType enumerates reachability transports.
type ConnectivityType string

const (
	ConnectivityData ConnectivityType = "DATA"
	ConnectivitySMS  ConnectivityType = "SMS"
)

// RetrieveDeviceStatus is the shared request for the reachability and
// roaming retrieval endpoints.
type RetrieveDeviceStatus struct {
	Device *Device `json:"device,omitempty"`
}

// Validate enforces the device status retrieval contract.
func (r *RetrieveDeviceStatus) Validate() *Error {
	if r.Device.Empty() {
		return MissingIdentifier("a device identifier is required")
	}
	return r.Device.Validate()
}

// ReachabilityStatus is the reachability retrieval response.
// Connectivity is absent when the device is unreachable.
type ReachabilityStatus struct {
	LastStatusTime time.Time          `json:"lastStatusTime"`
	Reachable      bool               `json:"reachable"`
	Connectivity   []ConnectivityType `json:"connectivity,omitempty"`
	Device         *Device            `json:"device,omitempty"`
}

// RoamingStatus is the roaming retrieval response.
type RoamingStatus struct {
	LastStatusTime time.Time `json:"lastStatusTime"`
	Roaming        bool      `json:"roaming"`
	CountryCode    int       `json:"countryCode,omitempty"`
	CountryName    []string  `json:"countryName,omitempty"`
	Device         *Device   `json:"device,omitempty"`
}

// CreateSubscription is the device-status subscription creation request.
type CreateSubscription struct {
	Device    *Device    `json:"device,omitempty"`
	Sink      string     `json:"sink"`
	Types     []string   `json:"types,omitempty"`
	ExpiresAt *time.Time `json:"subscriptionExpireTime,omitempty"`
	MaxEvents int        `json:"subscriptionMaxEvents,omitempty"`
}

// Validate enforces the subscription contract.
func (r *CreateSubscription) Validate() *Error {
	if r.Device.Empty() {
		return MissingIdentifier("a device identifier is required")
	}
	if err := r.Device.Validate(); err != nil {
		return err
	}
	if r.Sink == "" {
		return InvalidArgument("sink is required")
	}
	return nil
}

// Subscription is the stored device-status subscription rendering.
type Subscription struct {
	SubscriptionID string     `json:"subscriptionId"`
	Device         *Device    `json:"device,omitempty"`
	Sink           string     `json:"sink"`
	Types          []string   `json:"types,omitempty"`
	StartsAt       time.Time  `json:"startsAt"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	MaxEvents      int        `json:"subscriptionMaxEvents,omitempty"`
}

// CheckSimSwap asks whether the SIM changed within maxAge hours.
type CheckSimSwap struct {
	PhoneNumber string `json:"phoneNumber,omitempty"`
	MaxAge      int    `json:"maxAge,omitempty"`
}

// CheckSimSwapInfo is the check response.
type CheckSimSwapInfo struct {
	Swapped bool `json:"swapped"`
}

// SimSwapInfo is the retrieve-date response. Exactly one of LatestSimChange
// and MonitoredPeriod is non-null.
type SimSwapInfo struct {
	LatestSimChange *time.Time `json:"latestSimChange"`
	MonitoredPeriod *int       `json:"monitoredPeriod"`
}

// RetrieveSimSwapDate asks when the SIM last changed.
type RetrieveSimSwapDate struct {
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// TrafficInfluenceState is the lifecycle state of a traffic influence
// resource.
type TrafficInfluenceState string

const (
	TIStateOrdered            TrafficInfluenceState = "ordered"
	TIStateCreated            TrafficInfluenceState = "created"
	TIStateActive             TrafficInfluenceState = "active"
	TIStateError              TrafficInfluenceState = "error"
	TIStateDeletionInProgress TrafficInfluenceState = "deletion in progress"
	TIStateDeleted            TrafficInfluenceState = "deleted"
)

// TrafficInfluence is a request to steer an application's traffic toward an
// edge zone. Device identification is accepted on create and patch but is
// stripped from every list and get rendering.
type TrafficInfluence struct {
	TrafficInfluenceID string                `json:"trafficInfluenceID,omitempty"`
	APIConsumerID      string                `json:"apiConsumerId,omitempty"`
	AppID              string                `json:"appId,omitempty"`
	AppInstanceID      string                `json:"appInstanceId,omitempty"`
	EdgeCloudRegion    string                `json:"edgeCloudRegion,omitempty"`
	EdgeCloudZoneID    string                `json:"edgeCloudZoneId,omitempty"`
	SourceTrafficFilters *SourceTrafficFilters `json:"sourceTrafficFilters,omitempty"`
	Device             *Device               `json:"device,omitempty"`
	NotificationSink   string                `json:"notificationSink,omitempty"`
	State              TrafficInfluenceState `json:"state,omitempty"`
}

// SourceTrafficFilters narrows the influenced flows by source port.
type SourceTrafficFilters struct {
	SourcePort int `json:"sourcePort,omitempty"`
}

// Validate enforces the create contract. requireDevice is set for the
// device-scoped creation endpoint.
func (t *TrafficInfluence) Validate(requireDevice bool) *Error {
	if t.AppID == "" {
		return InvalidArgument("appId is required")
	}
	if requireDevice && t.Device.Empty() {
		return MissingIdentifier("a device identifier is required")
	}
	if err := t.Device.Validate(); err != nil {
		return err
	}
	return nil
}

// Sanitized returns a copy with the device removed, for list and get
// renderings.
func (t *TrafficInfluence) Sanitized() *TrafficInfluence {
	out := *t
	out.Device = nil
	return &out
}
