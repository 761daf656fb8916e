// Package coresim implements the core adapter for the simulated 5G core.
// The simulator exposes the standard NEF northbound APIs plus a ue-identity
// service for subscriber lookups; when the identity service has no record,
// the adapter falls back once to the simulator's metrics exposition page.
package coresim

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/piwi3910/camweave/internal/adapter"
	"github.com/piwi3910/camweave/internal/camara"
	"github.com/piwi3910/camweave/internal/nef"
)

const (
	// supportedFeatures advertised on QoS subscriptions toward the simulator.
	qosSupportedFeatures = "0C"

	// defaultDnn is the data network name the simulator provisions UEs on.
	defaultDnn = "internet"

	// fallbackUeIP is used when the caller's address is outside the
	// simulator's UE pool.
	fallbackUeIP = "12.1.0.1"

	// profileTimeout bounds identity and profile lookups.
	profileTimeout = 5 * time.Second
)

// ueSubnet is the simulator's UE address pool.
var ueSubnet = func() *net.IPNet {
	_, n, _ := net.ParseCIDR("12.1.0.0/16")
	return n
}()

// Config configures the coresim adapter.
type Config struct {
	// QoSBaseURL, MonitoringBaseURL, TrafficBaseURL are the NEF endpoints.
	QoSBaseURL        string
	MonitoringBaseURL string
	TrafficBaseURL    string

	// UeIdentityBaseURL hosts the simulator's subscriber lookup service.
	UeIdentityBaseURL string

	// MetricsURL is the simulator's exposition page, used as the one-shot
	// profile fallback.
	MetricsURL string

	// ScsAsID names this gateway toward the core. Defaults to "nef".
	ScsAsID string

	// HomePlmn is the simulator's home network identity.
	HomeMcc string
	HomeMnc string

	Logger *zap.Logger
}

// Adapter talks to the simulated core.
type Adapter struct {
	cfg    Config
	client *nef.Client
	logger *zap.Logger
}

// New creates a coresim adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.QoSBaseURL == "" {
		return nil, fmt.Errorf("coresim: QoS base URL is required")
	}
	if cfg.ScsAsID == "" {
		cfg.ScsAsID = "nef"
	}
	if cfg.MonitoringBaseURL == "" {
		cfg.MonitoringBaseURL = cfg.QoSBaseURL
	}
	if cfg.TrafficBaseURL == "" {
		cfg.TrafficBaseURL = cfg.QoSBaseURL
	}
	if cfg.HomeMcc == "" {
		cfg.HomeMcc = "001"
	}
	if cfg.HomeMnc == "" {
		cfg.HomeMnc = "06"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client := nef.NewClient(nef.ClientConfig{
		QoSBaseURL:        cfg.QoSBaseURL,
		MonitoringBaseURL: cfg.MonitoringBaseURL,
		TrafficBaseURL:    cfg.TrafficBaseURL,
		ScsAsID:           cfg.ScsAsID,
		Logger:            logger.With(zap.String("adapter", "coresim")),
	})

	return &Adapter{cfg: cfg, client: client, logger: logger}, nil
}

// Name returns the adapter type.
func (a *Adapter) Name() string { return "coresim" }

// Capabilities lists what the simulator supports.
func (a *Adapter) Capabilities() []adapter.Capability {
	return []adapter.Capability{
		adapter.CapabilityQoD,
		adapter.CapabilityLocation,
		adapter.CapabilityDeviceStatus,
		adapter.CapabilityTrafficInfluence,
	}
}

// Health verifies the simulator answers on its identity endpoint.
func (a *Adapter) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, profileTimeout)
	defer cancel()
	_, err := a.client.GetRaw(ctx, a.cfg.QoSBaseURL)
	adapter.ObserveHealthCheck(a.Name(), err)
	if err != nil {
		return fmt.Errorf("coresim health check failed: %w", err)
	}
	return nil
}

// Close releases adapter resources.
func (a *Adapter) Close() error { return nil }

// ueIP picks the UE address for a session, constrained to the simulator's
// pool.
func ueIP(device *camara.Device) string {
	if device != nil && device.IPv4Address != nil && device.IPv4Address.PublicAddress != "" {
		if ip := net.ParseIP(device.IPv4Address.PublicAddress); ip != nil && ueSubnet.Contains(ip) {
			return device.IPv4Address.PublicAddress
		}
	}
	return fallbackUeIP
}

// CreateQoDSession provisions an AsSessionWithQoS subscription.
func (a *Adapter) CreateQoDSession(ctx context.Context, session *adapter.QoDSession) (*adapter.QoDSession, error) {
	start := time.Now()
	out, err := a.createQoDSession(ctx, session)
	adapter.ObserveOperation(a.Name(), "CreateQoDSession", start, err)
	return out, err
}

func (a *Adapter) createQoDSession(ctx context.Context, session *adapter.QoDSession) (*adapter.QoDSession, error) {
	ue := ueIP(session.Device)

	sub := &nef.AsSessionWithQoSSubscription{
		SupportedFeatures:       qosSupportedFeatures,
		NotificationDestination: session.Sink,
		QosReference:            session.QosProfile,
		UeIpv4Addr:              ue,
		Dnn:                     defaultDnn,
		FlowInfo: []nef.FlowInfo{{
			FlowID:           1,
			FlowDescriptions: []string{nef.SimpleFlowDescription(ue, session.ServerIPv4)},
		}},
		UsageThreshold: &nef.UsageThreshold{Duration: session.Duration},
	}

	created, err := a.client.CreateQoSSubscription(ctx, sub)
	if err != nil {
		return nil, err
	}
	id, err := created.SubscriptionID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", camara.ErrMalformedResponse, err)
	}

	result := *session
	result.SubscriptionID = id
	return &result, nil
}

// GetQoDSession fetches the core's view of a session and maps it back.
func (a *Adapter) GetQoDSession(ctx context.Context, subscriptionID string) (*adapter.QoDSession, error) {
	start := time.Now()
	out, err := a.getQoDSession(ctx, subscriptionID)
	adapter.ObserveOperation(a.Name(), "GetQoDSession", start, err)
	return out, err
}

func (a *Adapter) getQoDSession(ctx context.Context, subscriptionID string) (*adapter.QoDSession, error) {
	sub, err := a.client.GetQoSSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	session := &adapter.QoDSession{
		SubscriptionID: subscriptionID,
		QosProfile:     sub.QosReference,
		Sink:           sub.NotificationDestination,
	}
	if sub.UsageThreshold != nil {
		session.Duration = sub.UsageThreshold.Duration
	}
	if sub.UeIpv4Addr != "" {
		session.Device = &camara.Device{IPv4Address: &camara.DeviceIPv4{
			PublicAddress:  sub.UeIpv4Addr,
			PrivateAddress: sub.UeIpv4Addr,
		}}
	}
	if len(sub.FlowInfo) > 0 && len(sub.FlowInfo[0].FlowDescriptions) > 0 {
		session.ServerIPv4 = nef.ServerIPFromDescription(sub.FlowInfo[0].FlowDescriptions[0])
	}
	return session, nil
}

// ExtendQoDSession replaces the subscription with the new total duration.
func (a *Adapter) ExtendQoDSession(ctx context.Context, subscriptionID string, session *adapter.QoDSession) error {
	start := time.Now()
	err := a.extendQoDSession(ctx, subscriptionID, session)
	adapter.ObserveOperation(a.Name(), "ExtendQoDSession", start, err)
	return err
}

func (a *Adapter) extendQoDSession(ctx context.Context, subscriptionID string, session *adapter.QoDSession) error {
	ue := ueIP(session.Device)
	sub := &nef.AsSessionWithQoSSubscription{
		SupportedFeatures:       qosSupportedFeatures,
		NotificationDestination: session.Sink,
		QosReference:            session.QosProfile,
		UeIpv4Addr:              ue,
		Dnn:                     defaultDnn,
		FlowInfo: []nef.FlowInfo{{
			FlowID:           1,
			FlowDescriptions: []string{nef.SimpleFlowDescription(ue, session.ServerIPv4)},
		}},
		UsageThreshold: &nef.UsageThreshold{Duration: session.Duration},
	}
	_, err := a.client.UpdateQoSSubscription(ctx, subscriptionID, sub)
	return err
}

// DeleteQoDSession tears a session down.
func (a *Adapter) DeleteQoDSession(ctx context.Context, subscriptionID string) error {
	start := time.Now()
	err := a.client.DeleteQoSSubscription(ctx, subscriptionID)
	adapter.ObserveOperation(a.Name(), "DeleteQoDSession", start, err)
	return err
}

// externalID formats the monitoring-event subject as scsAsId:identifier.
func (a *Adapter) externalID(device *camara.Device) string {
	var ident string
	switch {
	case device.PhoneNumber != "":
		ident = device.PhoneNumber
	case device.NetworkAccessIdentifier != "":
		ident = device.NetworkAccessIdentifier
	case device.IPv4Address != nil && device.IPv4Address.PublicAddress != "":
		ident = device.IPv4Address.PublicAddress
	default:
		ident = device.IPv6Address
	}
	return a.cfg.ScsAsID + ":" + ident
}

// RetrieveLocation issues a one-shot LOCATION_REPORTING subscription and
// maps the inline report to the CAMARA area vocabulary.
func (a *Adapter) RetrieveLocation(ctx context.Context, device *camara.Device, maxAgeSeconds int) (*adapter.LocationReport, error) {
	start := time.Now()
	out, err := a.retrieveLocation(ctx, device)
	adapter.ObserveOperation(a.Name(), "RetrieveLocation", start, err)
	return out, err
}

func (a *Adapter) retrieveLocation(ctx context.Context, device *camara.Device) (*adapter.LocationReport, error) {
	sub := &nef.MonitoringEventSubscription{
		ExternalID:             a.externalID(device),
		MonitoringType:         nef.LocationReporting,
		MaximumNumberOfReports: 1,
		LocationType:           nef.LastKnownLocation,
	}
	created, err := a.client.CreateMonitoringSubscription(ctx, sub)
	if err != nil {
		return nil, err
	}
	if len(created.MonitoringEventReports) == 0 {
		return nil, fmt.Errorf("%w: monitoring subscription returned no report", camara.ErrMalformedResponse)
	}
	return mapLocationReport(&created.MonitoringEventReports[0])
}

// mapLocationReport converts a 3GPP report into the adapter view.
func mapLocationReport(report *nef.MonitoringEventReport) (*adapter.LocationReport, error) {
	if report.LocFailureCause != "" {
		return nil, fmt.Errorf("%w: location failure %s", camara.ErrDeviceNotFound, report.LocFailureCause)
	}
	if report.LocationInfo == nil || report.LocationInfo.GeographicArea == nil || report.LocationInfo.GeographicArea.Polygon == nil {
		return nil, fmt.Errorf("%w: report carries no geographic area", camara.ErrMalformedResponse)
	}

	coords := report.LocationInfo.GeographicArea.Polygon.PointList.GeographicalCoordinates
	boundary := make([]camara.Point, 0, len(coords))
	for _, c := range coords {
		boundary = append(boundary, camara.Point{Latitude: c.Lat, Longitude: c.Lon})
	}

	out := &adapter.LocationReport{
		Area: &camara.Area{AreaType: camara.AreaTypePolygon, Boundary: boundary},
	}
	if report.EventTime != "" {
		if t, err := time.Parse(time.RFC3339, report.EventTime); err == nil {
			out.EventTime = t
		}
	}
	if out.EventTime.IsZero() {
		out.EventTime = time.Now().UTC()
	}
	if report.LocationInfo.AgeOfLocationInfo != nil {
		out.AgeMinutes = report.LocationInfo.AgeOfLocationInfo.Duration
	}
	return out, nil
}

// CreateTrafficInfluence provisions a traffic influence subscription.
func (a *Adapter) CreateTrafficInfluence(ctx context.Context, ti *camara.TrafficInfluence) (*adapter.TrafficInfluenceResult, error) {
	start := time.Now()
	out, err := a.createTrafficInfluence(ctx, ti)
	adapter.ObserveOperation(a.Name(), "CreateTrafficInfluence", start, err)
	return out, err
}

func (a *Adapter) createTrafficInfluence(ctx context.Context, ti *camara.TrafficInfluence) (*adapter.TrafficInfluenceResult, error) {
	sub := a.buildTrafficInfluSub(ti)
	created, err := a.client.CreateTrafficInfluenceSubscription(ctx, sub)
	if err != nil {
		return nil, err
	}
	id, err := created.SubscriptionID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", camara.ErrMalformedResponse, err)
	}
	return &adapter.TrafficInfluenceResult{SubscriptionID: id}, nil
}

// UpdateTrafficInfluence replaces an influence subscription.
func (a *Adapter) UpdateTrafficInfluence(ctx context.Context, subscriptionID string, ti *camara.TrafficInfluence) error {
	start := time.Now()
	_, err := a.client.UpdateTrafficInfluenceSubscription(ctx, subscriptionID, a.buildTrafficInfluSub(ti))
	adapter.ObserveOperation(a.Name(), "UpdateTrafficInfluence", start, err)
	return err
}

// DeleteTrafficInfluence removes an influence subscription.
func (a *Adapter) DeleteTrafficInfluence(ctx context.Context, subscriptionID string) error {
	start := time.Now()
	err := a.client.DeleteTrafficInfluenceSubscription(ctx, subscriptionID)
	adapter.ObserveOperation(a.Name(), "DeleteTrafficInfluence", start, err)
	return err
}

func (a *Adapter) buildTrafficInfluSub(ti *camara.TrafficInfluence) *nef.TrafficInfluSub {
	sub := &nef.TrafficInfluSub{
		AfAppID:                 ti.AppID,
		AfServiceID:             ti.AppInstanceID,
		Dnn:                     defaultDnn,
		NotificationDestination: ti.NotificationSink,
	}
	if ti.EdgeCloudZoneID != "" {
		sub.TrafficRoutes = []nef.RouteToLocation{{Dnai: ti.EdgeCloudZoneID}}
	}
	if ti.Device != nil && ti.Device.IPv4Address != nil && ti.Device.IPv4Address.PublicAddress != "" {
		ue := ueIP(ti.Device)
		sub.Ipv4Addr = ue
		sub.TrafficFilters = []nef.FlowInfo{{
			FlowID:           1,
			FlowDescriptions: []string{nef.SimpleFlowDescription(ue, ue)},
		}}
	}
	if ti.Device != nil && ti.Device.IPv6Address != "" {
		sub.Ipv6Addr = ti.Device.IPv6Address
	}
	return sub
}

// identityURL builds a ue-identity service URL with the ip query attached.
func (a *Adapter) identityURL(path, ip string) string {
	return fmt.Sprintf("%s/ue-identity/v1/%s?ip=%s", a.cfg.UeIdentityBaseURL, path, url.QueryEscape(ip))
}

// GetDeviceProfile resolves a device through the identity service, falling
// back once to the metrics exposition page.
func (a *Adapter) GetDeviceProfile(ctx context.Context, device *camara.Device) (*adapter.UEProfile, error) {
	start := time.Now()
	out, err := a.getDeviceProfile(ctx, device)
	adapter.ObserveOperation(a.Name(), "GetDeviceProfile", start, err)
	return out, err
}

func (a *Adapter) getDeviceProfile(ctx context.Context, device *camara.Device) (*adapter.UEProfile, error) {
	ip := ""
	if device != nil && device.IPv4Address != nil {
		ip = device.IPv4Address.PublicAddress
	}
	if ip == "" {
		return nil, fmt.Errorf("%w: coresim resolves devices by IPv4 address", camara.ErrInvalidDevice)
	}

	ctx, cancel := context.WithTimeout(ctx, profileTimeout)
	defer cancel()

	if profile, err := a.lookupProfile(ctx, ip); err == nil {
		return profile, nil
	} else {
		a.logger.Debug("identity service lookup missed, trying metrics fallback",
			zap.String("ip", ip),
			zap.Error(err),
		)
	}

	// One fallback attempt against the exposition page, never more.
	imsi, err := a.imsiFromMetrics(ctx, ip)
	if err != nil {
		return nil, fmt.Errorf("%w: no profile for %s", camara.ErrDeviceNotFound, ip)
	}
	return simulatedProfile(imsi, a.cfg.HomeMcc, a.cfg.HomeMnc), nil
}

// ueIdentityResponse is the identity service's supi answer.
type ueIdentityResponse struct {
	Supi string `json:"supi"`
}

// ueProfileResponse is the identity service's profile answer.
type ueProfileResponse struct {
	Supi               string `json:"supi"`
	Msisdn             string `json:"msisdn"`
	RegistrationStatus string `json:"registrationStatus"`
	ConnectionStatus   string `json:"connectionStatus"`
	Plmn               *struct {
		Mcc string `json:"mcc"`
		Mnc string `json:"mnc"`
	} `json:"plmn"`
	PduSessions []struct {
		Dnn string `json:"dnn"`
	} `json:"pduSessions"`
}

// lookupProfile chains supi resolution and the profile fetch.
func (a *Adapter) lookupProfile(ctx context.Context, ip string) (*adapter.UEProfile, error) {
	var identity ueIdentityResponse
	if err := a.client.GetJSON(ctx, a.identityURL("supi", ip), &identity); err != nil {
		return nil, err
	}
	if identity.Supi == "" {
		return nil, fmt.Errorf("identity service returned no supi for %s", ip)
	}

	var resp ueProfileResponse
	if err := a.client.GetJSON(ctx, a.identityURL("profile", ip), &resp); err != nil {
		return nil, err
	}

	profile := &adapter.UEProfile{
		Supi:               resp.Supi,
		Msisdn:             resp.Msisdn,
		RegistrationStatus: adapter.RegistrationStatus(resp.RegistrationStatus),
		ConnectionStatus:   adapter.ConnectionStatus(resp.ConnectionStatus),
		PduSessionCount:    len(resp.PduSessions),
	}
	if resp.Plmn != nil {
		profile.Plmn = &adapter.Plmn{Mcc: resp.Plmn.Mcc, Mnc: resp.Plmn.Mnc}
	}
	return profile, nil
}

// simulatedProfile synthesizes the profile the simulator would hold for a
// UE known only through its metrics page. The msisdn derives from the
// trailing IMSI digits the way the simulator provisions test numbers.
func simulatedProfile(imsi, mcc, mnc string) *adapter.UEProfile {
	digits := imsi
	if len(digits) > 8 {
		digits = digits[len(digits)-8:]
	}
	return &adapter.UEProfile{
		Supi:               "imsi-" + strings.TrimPrefix(imsi, "imsi-"),
		Msisdn:             "+336" + digits,
		RegistrationStatus: adapter.Registered,
		ConnectionStatus:   adapter.Connected,
		Plmn:               &adapter.Plmn{Mcc: mcc, Mnc: mnc},
		PduSessionCount:    1,
	}
}
