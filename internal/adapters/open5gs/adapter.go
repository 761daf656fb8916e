// Package open5gs implements the core adapter for an Open5GS deployment
// fronted by a NEF. Open5GS provisions QoS through fixed PCC flow
// identifiers, so the CAMARA qosProfile names map onto a small static set.
package open5gs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/piwi3910/camweave/internal/adapter"
	"github.com/piwi3910/camweave/internal/camara"
	"github.com/piwi3910/camweave/internal/nef"
)

// supportedFeatures advertised on QoS subscriptions toward Open5GS.
const qosSupportedFeatures = "003C"

// flowIDs maps CAMARA profile names onto the PCC rule flow identifiers
// provisioned in the Open5GS policy configuration.
var flowIDs = map[string]int{
	"qos-e": 3,
	"qos-s": 4,
	"qos-m": 5,
	"qos-l": 6,
}

// Config configures the open5gs adapter.
type Config struct {
	QoSBaseURL        string
	MonitoringBaseURL string
	ScsAsID           string
	Logger            *zap.Logger
}

// Adapter talks to an Open5GS core through its NEF.
type Adapter struct {
	cfg    Config
	client *nef.Client
}

// New creates an open5gs adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.QoSBaseURL == "" {
		return nil, fmt.Errorf("open5gs: QoS base URL is required")
	}
	if cfg.ScsAsID == "" {
		cfg.ScsAsID = "nef"
	}
	if cfg.MonitoringBaseURL == "" {
		cfg.MonitoringBaseURL = cfg.QoSBaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client := nef.NewClient(nef.ClientConfig{
		QoSBaseURL:        cfg.QoSBaseURL,
		MonitoringBaseURL: cfg.MonitoringBaseURL,
		TrafficBaseURL:    cfg.QoSBaseURL,
		ScsAsID:           cfg.ScsAsID,
		Logger:            logger.With(zap.String("adapter", "open5gs")),
	})
	return &Adapter{cfg: cfg, client: client}, nil
}

// Name returns the adapter type.
func (a *Adapter) Name() string { return "open5gs" }

// Capabilities lists what this core supports. Open5GS has no traffic
// influence northbound and no subscriber profile service.
func (a *Adapter) Capabilities() []adapter.Capability {
	return []adapter.Capability{
		adapter.CapabilityQoD,
		adapter.CapabilityLocation,
	}
}

// Health verifies the NEF answers.
func (a *Adapter) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := a.client.GetRaw(ctx, a.cfg.QoSBaseURL)
	adapter.ObserveHealthCheck(a.Name(), err)
	if err != nil {
		return fmt.Errorf("open5gs health check failed: %w", err)
	}
	return nil
}

// Close releases adapter resources.
func (a *Adapter) Close() error { return nil }

func buildSubscription(session *adapter.QoDSession) (*nef.AsSessionWithQoSSubscription, error) {
	flowID, ok := flowIDs[session.QosProfile]
	if !ok {
		return nil, fmt.Errorf("invalid qosProfile %q for open5gs", session.QosProfile)
	}
	ue := ""
	if session.Device != nil && session.Device.IPv4Address != nil {
		ue = session.Device.IPv4Address.PublicAddress
	}
	if ue == "" {
		return nil, fmt.Errorf("%w: open5gs sessions require an IPv4 device address", camara.ErrInvalidDevice)
	}

	return &nef.AsSessionWithQoSSubscription{
		SupportedFeatures:       qosSupportedFeatures,
		NotificationDestination: session.Sink,
		QosReference:            session.QosProfile,
		UeIpv4Addr:              ue,
		FlowInfo: []nef.FlowInfo{{
			FlowID:           flowID,
			FlowDescriptions: nef.BuildFlowDescriptions(ue, session.ServerIPv4, nef.PortSet{}, nef.PortSet{}),
		}},
		UsageThreshold: &nef.UsageThreshold{Duration: session.Duration},
	}, nil
}

// CreateQoDSession provisions an AsSessionWithQoS subscription.
func (a *Adapter) CreateQoDSession(ctx context.Context, session *adapter.QoDSession) (*adapter.QoDSession, error) {
	start := time.Now()
	out, err := a.createQoDSession(ctx, session)
	adapter.ObserveOperation(a.Name(), "CreateQoDSession", start, err)
	return out, err
}

func (a *Adapter) createQoDSession(ctx context.Context, session *adapter.QoDSession) (*adapter.QoDSession, error) {
	sub, err := buildSubscription(session)
	if err != nil {
		return nil, err
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

// GetQoDSession fetches the core's view of a session.
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
	sub, err := buildSubscription(session)
	if err != nil {
		return err
	}
	_, err = a.client.UpdateQoSSubscription(ctx, subscriptionID, sub)
	return err
}

// DeleteQoDSession tears a session down.
func (a *Adapter) DeleteQoDSession(ctx context.Context, subscriptionID string) error {
	start := time.Now()
	err := a.client.DeleteQoSSubscription(ctx, subscriptionID)
	adapter.ObserveOperation(a.Name(), "DeleteQoDSession", start, err)
	return err
}

// RetrieveLocation subscribes by msisdn; Open5GS resolves subscribers by
// phone number only.
func (a *Adapter) RetrieveLocation(ctx context.Context, device *camara.Device, maxAgeSeconds int) (*adapter.LocationReport, error) {
	start := time.Now()
	out, err := a.retrieveLocation(ctx, device)
	adapter.ObserveOperation(a.Name(), "RetrieveLocation", start, err)
	return out, err
}

func (a *Adapter) retrieveLocation(ctx context.Context, device *camara.Device) (*adapter.LocationReport, error) {
	if device == nil || device.PhoneNumber == "" {
		return nil, fmt.Errorf("%w: open5gs resolves devices by phone number", camara.ErrInvalidDevice)
	}

	sub := &nef.MonitoringEventSubscription{
		Msisdn:                 strings.TrimPrefix(device.PhoneNumber, "+"),
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
	report := &created.MonitoringEventReports[0]
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

// GetDeviceProfile is unsupported; Open5GS exposes no profile service.
func (a *Adapter) GetDeviceProfile(ctx context.Context, device *camara.Device) (*adapter.UEProfile, error) {
	return nil, camara.ErrCapabilityNotSupported
}

// CreateTrafficInfluence is unsupported on this core.
func (a *Adapter) CreateTrafficInfluence(ctx context.Context, ti *camara.TrafficInfluence) (*adapter.TrafficInfluenceResult, error) {
	return nil, camara.ErrCapabilityNotSupported
}

// UpdateTrafficInfluence is unsupported on this core.
func (a *Adapter) UpdateTrafficInfluence(ctx context.Context, subscriptionID string, ti *camara.TrafficInfluence) error {
	return camara.ErrCapabilityNotSupported
}

// DeleteTrafficInfluence is unsupported on this core.
func (a *Adapter) DeleteTrafficInfluence(ctx context.Context, subscriptionID string) error {
	return camara.ErrCapabilityNotSupported
}
