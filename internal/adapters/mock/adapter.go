// Package mock provides an in-memory core adapter with realistic sample
// subscribers. This adapter is designed for:
// - Local development and testing without a network core
// - E2E testing in CI pipelines
// - API demonstrations and documentation
//
// All state lives in memory and responses are deterministic.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/piwi3910/camweave/internal/adapter"
	"github.com/piwi3910/camweave/internal/camara"
)

// Adapter is a mock implementation of the core adapter interface.
type Adapter struct {
	mu       sync.RWMutex
	sessions map[string]*adapter.QoDSession
	influences map[string]*camara.TrafficInfluence
	profiles map[string]*adapter.UEProfile
}

// New creates a mock adapter. Pass populateSampleData to pre-load
// subscriber profiles for the 12.1.0.0/16 test pool.
func New(populateSampleData bool) *Adapter {
	a := &Adapter{
		sessions:   make(map[string]*adapter.QoDSession),
		influences: make(map[string]*camara.TrafficInfluence),
		profiles:   make(map[string]*adapter.UEProfile),
	}
	if populateSampleData {
		a.populateSampleData()
	}
	return a
}

// populateSampleData loads deterministic subscriber profiles.
func (a *Adapter) populateSampleData() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.profiles["12.1.0.1"] = &adapter.UEProfile{
		Supi:               "imsi-001060000000001",
		Msisdn:             "+33600000001",
		RegistrationStatus: adapter.Registered,
		ConnectionStatus:   adapter.Connected,
		Plmn:               &adapter.Plmn{Mcc: "001", Mnc: "06"},
		PduSessionCount:    1,
	}
	a.profiles["12.1.0.2"] = &adapter.UEProfile{
		Supi:               "imsi-001060000000002",
		Msisdn:             "+33600000002",
		RegistrationStatus: adapter.Registered,
		ConnectionStatus:   adapter.Idle,
		Plmn:               &adapter.Plmn{Mcc: "001", Mnc: "06"},
		PduSessionCount:    0,
	}
	a.profiles["12.1.0.3"] = &adapter.UEProfile{
		Supi:               "imsi-208150000000003",
		Msisdn:             "+33600000003",
		RegistrationStatus: adapter.Registered,
		ConnectionStatus:   adapter.Connected,
		Plmn:               &adapter.Plmn{Mcc: "208", Mnc: "15"},
		PduSessionCount:    2,
	}
	a.profiles["12.1.0.4"] = &adapter.UEProfile{
		Supi:               "imsi-001060000000004",
		Msisdn:             "+33600000004",
		RegistrationStatus: adapter.Deregistered,
		ConnectionStatus:   adapter.Idle,
		Plmn:               &adapter.Plmn{Mcc: "001", Mnc: "06"},
		PduSessionCount:    0,
	}
	a.profiles["+33600000001"] = a.profiles["12.1.0.1"]
	a.profiles["+33600000002"] = a.profiles["12.1.0.2"]
	a.profiles["+33600000003"] = a.profiles["12.1.0.3"]
	a.profiles["+33600000004"] = a.profiles["12.1.0.4"]
}

// SetProfile installs or replaces a profile keyed by identifier. Tests use
// it to shape reachability and roaming answers.
func (a *Adapter) SetProfile(key string, profile *adapter.UEProfile) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.profiles[key] = profile
}

// Name returns the adapter type.
func (a *Adapter) Name() string { return "mock" }

// Capabilities lists everything; the mock supports all operations.
func (a *Adapter) Capabilities() []adapter.Capability {
	return []adapter.Capability{
		adapter.CapabilityQoD,
		adapter.CapabilityLocation,
		adapter.CapabilityDeviceStatus,
		adapter.CapabilityTrafficInfluence,
	}
}

// Health always succeeds.
func (a *Adapter) Health(ctx context.Context) error { return nil }

// Close releases nothing.
func (a *Adapter) Close() error { return nil }

// CreateQoDSession stores the session under a fresh identifier.
func (a *Adapter) CreateQoDSession(ctx context.Context, session *adapter.QoDSession) (*adapter.QoDSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	stored := *session
	stored.SubscriptionID = uuid.New().String()
	a.sessions[stored.SubscriptionID] = &stored
	adapter.UpdateSessionCount(a.Name(), len(a.sessions))
	return &stored, nil
}

// GetQoDSession returns the stored session.
func (a *Adapter) GetQoDSession(ctx context.Context, subscriptionID string) (*adapter.QoDSession, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	session, ok := a.sessions[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", camara.ErrDeviceNotFound, subscriptionID)
	}
	out := *session
	return &out, nil
}

// ExtendQoDSession replaces the stored duration.
func (a *Adapter) ExtendQoDSession(ctx context.Context, subscriptionID string, session *adapter.QoDSession) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	stored, ok := a.sessions[subscriptionID]
	if !ok {
		return fmt.Errorf("%w: session %s", camara.ErrDeviceNotFound, subscriptionID)
	}
	stored.Duration = session.Duration
	return nil
}

// DeleteQoDSession removes the stored session.
func (a *Adapter) DeleteQoDSession(ctx context.Context, subscriptionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.sessions[subscriptionID]; !ok {
		return fmt.Errorf("%w: session %s", camara.ErrDeviceNotFound, subscriptionID)
	}
	delete(a.sessions, subscriptionID)
	adapter.UpdateSessionCount(a.Name(), len(a.sessions))
	return nil
}

// RetrieveLocation answers with a fixed polygon around the test network's
// cell site for any known device.
func (a *Adapter) RetrieveLocation(ctx context.Context, device *camara.Device, maxAgeSeconds int) (*adapter.LocationReport, error) {
	if _, err := a.GetDeviceProfile(ctx, device); err != nil {
		return nil, err
	}
	return &adapter.LocationReport{
		Area: &camara.Area{
			AreaType: camara.AreaTypePolygon,
			Boundary: []camara.Point{
				{Latitude: 48.8566, Longitude: 2.3522},
				{Latitude: 48.8570, Longitude: 2.3610},
				{Latitude: 48.8500, Longitude: 2.3580},
			},
		},
		EventTime:  time.Now().UTC(),
		AgeMinutes: 1,
	}, nil
}

// GetDeviceProfile resolves against the in-memory profile table, trying
// phone number first, then the public IPv4 address.
func (a *Adapter) GetDeviceProfile(ctx context.Context, device *camara.Device) (*adapter.UEProfile, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if device != nil {
		if device.PhoneNumber != "" {
			if p, ok := a.profiles[device.PhoneNumber]; ok {
				out := *p
				return &out, nil
			}
		}
		if device.IPv4Address != nil && device.IPv4Address.PublicAddress != "" {
			if p, ok := a.profiles[device.IPv4Address.PublicAddress]; ok {
				out := *p
				return &out, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no profile for device", camara.ErrDeviceNotFound)
}

// CreateTrafficInfluence stores the resource under a fresh identifier.
func (a *Adapter) CreateTrafficInfluence(ctx context.Context, ti *camara.TrafficInfluence) (*adapter.TrafficInfluenceResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := uuid.New().String()
	stored := *ti
	a.influences[id] = &stored
	return &adapter.TrafficInfluenceResult{SubscriptionID: id}, nil
}

// UpdateTrafficInfluence replaces the stored resource.
func (a *Adapter) UpdateTrafficInfluence(ctx context.Context, subscriptionID string, ti *camara.TrafficInfluence) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.influences[subscriptionID]; !ok {
		return fmt.Errorf("%w: influence %s", camara.ErrDeviceNotFound, subscriptionID)
	}
	stored := *ti
	a.influences[subscriptionID] = &stored
	return nil
}

// DeleteTrafficInfluence removes the stored resource.
func (a *Adapter) DeleteTrafficInfluence(ctx context.Context, subscriptionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.influences[subscriptionID]; !ok {
		return fmt.Errorf("%w: influence %s", camara.ErrDeviceNotFound, subscriptionID)
	}
	delete(a.influences, subscriptionID)
	return nil
}
