// Package nef defines the 3GPP NEF wire contracts and the HTTP client used
// to reach a network core's exposure endpoints. The three northbound APIs
// covered are AsSessionWithQoS (TS 29.122), MonitoringEvent, and
// TrafficInfluence.
package nef

import (
	"fmt"
	"strings"
)

// Snssai identifies a network slice.
type Snssai struct {
	Sst int    `json:"sst"`
	Sd  string `json:"sd,omitempty"`
}

// FlowInfo carries the packet filter set for one flow.
type FlowInfo struct {
	FlowID           int      `json:"flowId"`
	FlowDescriptions []string `json:"flowDescriptions,omitempty"`
}

// UsageThreshold bounds a QoS session in time and volume.
type UsageThreshold struct {
	Duration       int `json:"duration,omitempty"`
	TotalVolume    int `json:"totalVolume,omitempty"`
	DownlinkVolume int `json:"downlinkVolume,omitempty"`
	UplinkVolume   int `json:"uplinkVolume,omitempty"`
}

// AsSessionWithQoSSubscription is the TS 29.122 QoS subscription resource.
// Self is assigned by the core and carries the subscription identifier as
// its last path segment.
type AsSessionWithQoSSubscription struct {
	Self                    string          `json:"self,omitempty"`
	SupportedFeatures       string          `json:"supportedFeatures,omitempty"`
	NotificationDestination string          `json:"notificationDestination,omitempty"`
	FlowInfo                []FlowInfo      `json:"flowInfo,omitempty"`
	QosReference            string          `json:"qosReference,omitempty"`
	UeIpv4Addr              string          `json:"ueIpv4Addr,omitempty"`
	UeIpv6Addr              string          `json:"ueIpv6Addr,omitempty"`
	Snssai                  *Snssai         `json:"snssai,omitempty"`
	Dnn                     string          `json:"dnn,omitempty"`
	UsageThreshold          *UsageThreshold `json:"usageThreshold,omitempty"`
}

// SubscriptionID extracts the core-assigned identifier from the Self link.
func (s *AsSessionWithQoSSubscription) SubscriptionID() (string, error) {
	return subscriptionIDFromSelf(s.Self)
}

// MonitoringType enumerates monitoring event kinds.
type MonitoringType string

// LocationReporting is the only monitoring type this gateway subscribes to.
const LocationReporting MonitoringType = "LOCATION_REPORTING"

// LocationType selects between cached and on-demand location.
type LocationType string

const (
	LastKnownLocation LocationType = "LAST_KNOWN_LOCATION"
	CurrentLocation   LocationType = "CURRENT_LOCATION"
)

// MonitoringEventSubscription is the TS 29.122 monitoring event request.
type MonitoringEventSubscription struct {
	Self                    string         `json:"self,omitempty"`
	ExternalID              string         `json:"externalId,omitempty"`
	Msisdn                  string         `json:"msisdn,omitempty"`
	Ipv4Addr                string         `json:"ipv4Addr,omitempty"`
	Ipv6Addr                string         `json:"ipv6Addr,omitempty"`
	NotificationDestination string         `json:"notificationDestination,omitempty"`
	MonitoringType          MonitoringType `json:"monitoringType"`
	MaximumNumberOfReports  int            `json:"maximumNumberOfReports,omitempty"`
	MonitorExpireTime       string         `json:"monitorExpireTime,omitempty"`
	LocationType            LocationType   `json:"locationType,omitempty"`
	RepPeriod               int            `json:"repPeriod,omitempty"`

	// The coresim core answers a subscription create with an immediate
	// report inline.
	MonitoringEventReports []MonitoringEventReport `json:"monitoringEventReports,omitempty"`
}

// PlmnID is the mcc/mnc pair of a mobile network.
type PlmnID struct {
	Mcc string `json:"mcc"`
	Mnc string `json:"mnc"`
}

// GeographicalCoordinates is a lon/lat pair as carried on the 3GPP wire.
type GeographicalCoordinates struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// PointList wraps the polygon coordinate list (3 to 15 points).
type PointList struct {
	GeographicalCoordinates []GeographicalCoordinates `json:"geographical_coords"`
}

// Polygon is the 3GPP polygon shape.
type Polygon struct {
	PointList PointList `json:"point_list"`
}

// GeographicArea is the area union inside a location report.
type GeographicArea struct {
	Polygon *Polygon `json:"polygon,omitempty"`
}

// AgeOfLocationInfo is the staleness of a reported location, in minutes.
type AgeOfLocationInfo struct {
	Duration int `json:"duration"`
}

// LocationInfo is the location payload of a monitoring event report.
type LocationInfo struct {
	AgeOfLocationInfo *AgeOfLocationInfo `json:"ageOfLocationInfo,omitempty"`
	CellID            string             `json:"cellId,omitempty"`
	PlmnID            *PlmnID            `json:"plmnId,omitempty"`
	GeographicArea    *GeographicArea    `json:"geographicArea,omitempty"`
}

// MonitoringEventReport is one report inside a monitoring subscription
// response or notification.
type MonitoringEventReport struct {
	ExternalID      string         `json:"externalId,omitempty"`
	Msisdn          string         `json:"msisdn,omitempty"`
	LocationInfo    *LocationInfo  `json:"locationInfo,omitempty"`
	LocFailureCause string         `json:"locFailureCause,omitempty"`
	MonitoringType  MonitoringType `json:"monitoringType,omitempty"`
	EventTime       string         `json:"eventTime,omitempty"`
}

// RouteToLocation names a target DNAI for traffic steering.
type RouteToLocation struct {
	Dnai string `json:"dnai"`
}

// TrafficInfluSub is the TS 29.522 traffic influence subscription.
type TrafficInfluSub struct {
	Self                    string            `json:"self,omitempty"`
	AfServiceID             string            `json:"afServiceId,omitempty"`
	AfAppID                 string            `json:"afAppId"`
	Dnn                     string            `json:"dnn,omitempty"`
	Snssai                  *Snssai           `json:"snssai,omitempty"`
	TrafficFilters          []FlowInfo        `json:"trafficFilters,omitempty"`
	Ipv4Addr                string            `json:"ipv4Addr,omitempty"`
	Ipv6Addr                string            `json:"ipv6Addr,omitempty"`
	NotificationDestination string            `json:"notificationDestination,omitempty"`
	TrafficRoutes           []RouteToLocation `json:"trafficRoutes,omitempty"`
	SuppFeat                string            `json:"suppFeat,omitempty"`
}

// SubscriptionID extracts the core-assigned identifier from the Self link.
func (s *TrafficInfluSub) SubscriptionID() (string, error) {
	return subscriptionIDFromSelf(s.Self)
}

func subscriptionIDFromSelf(self string) (string, error) {
	if self == "" {
		return "", fmt.Errorf("subscription has no self link")
	}
	trimmed := strings.TrimRight(self, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 || idx == len(trimmed)-1 {
		return "", fmt.Errorf("self link %q carries no subscription id", self)
	}
	return trimmed[idx+1:], nil
}
