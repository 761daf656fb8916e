// Package storage defines the session and subscription registry backing
// the gateway. Records are created only after a successful downstream
// dispatch, mutated on extend/patch, and flipped to a terminal state or
// removed on delete. A Redis-backed store serves production; an in-memory
// store serves offline deployments and tests.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/piwi3910/camweave/internal/camara"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrSessionNotFound indicates the QoD session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists indicates a session with the same ID already exists.
	ErrSessionExists = errors.New("session already exists")

	// ErrInfluenceNotFound indicates the traffic influence resource does
	// not exist.
	ErrInfluenceNotFound = errors.New("traffic influence not found")

	// ErrSubscriptionNotFound indicates the device-status subscription
	// does not exist.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrSwapRecordNotFound indicates no SIM swap record is cached for the
	// phone number.
	ErrSwapRecordNotFound = errors.New("sim swap record not found")

	// ErrInvalidSink indicates a notification sink that is not a valid
	// HTTP or HTTPS URL.
	ErrInvalidSink = errors.New("invalid notification sink")

	// ErrInvalidID indicates a record with an empty identifier.
	ErrInvalidID = errors.New("invalid record id")

	// ErrTerminalState indicates a mutation against a session or resource
	// already in a terminal state.
	ErrTerminalState = errors.New("record is in a terminal state")

	// ErrStorageUnavailable indicates the backing store cannot be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// SessionRecord is a stored QoD session together with its core-side
// correlation handle.
type SessionRecord struct {
	camara.SessionInfo

	// Core is the selector name of the adapter that owns the downstream
	// subscription.
	Core string `json:"core"`

	// CoreSubscriptionID is the NEF AsSessionWithQoS identifier.
	CoreSubscriptionID string `json:"coreSubscriptionId"`

	// ServerIPv4 is kept for rebuilding flow descriptors on extend.
	ServerIPv4 string `json:"serverIpv4"`
}

// Terminal reports whether the session can no longer be mutated.
func (r *SessionRecord) Terminal() bool {
	return r.QosStatus == camara.QosStatusUnavailable
}

// InfluenceRecord is a stored traffic influence resource.
type InfluenceRecord struct {
	camara.TrafficInfluence

	// Core is the selector name of the owning adapter.
	Core string `json:"core"`

	// CoreSubscriptionID is the NEF traffic influence identifier, empty
	// until the downstream subscription exists.
	CoreSubscriptionID string `json:"coreSubscriptionId,omitempty"`

	// CreatedAt is when the resource was accepted.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is the last mutation time.
	UpdatedAt time.Time `json:"updatedAt"`
}

// Terminal reports whether the resource can no longer be mutated.
func (r *InfluenceRecord) Terminal() bool {
	return r.State == camara.TIStateDeleted || r.State == camara.TIStateDeletionInProgress
}

// SubscriptionKind separates the two device-status subscription families.
type SubscriptionKind string

const (
	SubscriptionReachability SubscriptionKind = "reachability"
	SubscriptionRoaming      SubscriptionKind = "roaming"
)

// SubscriptionRecord is a stored device-status subscription.
type SubscriptionRecord struct {
	camara.Subscription

	// Kind is the subscription family.
	Kind SubscriptionKind `json:"kind"`

	// Core is the selector name of the owning adapter.
	Core string `json:"core"`
}

// SwapRecord caches the latest SIM change for a phone number. SIM swap
// entries are a derived cache keyed by phone number, not a session.
type SwapRecord struct {
	PhoneNumber     string    `json:"phoneNumber"`
	LatestSimChange time.Time `json:"latestSimChange"`
}

// Store is the registry contract. Implementations assume at-most-one
// writer per key; last write wins when instances share a backing store.
type Store interface {
	// CreateSession stores a new QoD session record.
	CreateSession(ctx context.Context, rec *SessionRecord) error

	// GetSession retrieves a session by its CAMARA identifier.
	GetSession(ctx context.Context, id string) (*SessionRecord, error)

	// UpdateSession replaces an existing session record.
	UpdateSession(ctx context.Context, rec *SessionRecord) error

	// DeleteSession removes a session record.
	DeleteSession(ctx context.Context, id string) error

	// ListSessions returns all stored sessions.
	ListSessions(ctx context.Context) ([]*SessionRecord, error)

	// CreateInfluence stores a new traffic influence record.
	CreateInfluence(ctx context.Context, rec *InfluenceRecord) error

	// GetInfluence retrieves an influence record by identifier.
	GetInfluence(ctx context.Context, id string) (*InfluenceRecord, error)

	// UpdateInfluence replaces an existing influence record.
	UpdateInfluence(ctx context.Context, rec *InfluenceRecord) error

	// DeleteInfluence removes an influence record.
	DeleteInfluence(ctx context.Context, id string) error

	// ListInfluences returns all stored influence records.
	ListInfluences(ctx context.Context) ([]*InfluenceRecord, error)

	// CreateSubscription stores a new device-status subscription.
	CreateSubscription(ctx context.Context, rec *SubscriptionRecord) error

	// GetSubscription retrieves a subscription by kind and identifier.
	GetSubscription(ctx context.Context, kind SubscriptionKind, id string) (*SubscriptionRecord, error)

	// DeleteSubscription removes a subscription.
	DeleteSubscription(ctx context.Context, kind SubscriptionKind, id string) error

	// ListSubscriptions returns all subscriptions of one kind.
	ListSubscriptions(ctx context.Context, kind SubscriptionKind) ([]*SubscriptionRecord, error)

	// PutSwap records the latest SIM change for a phone number.
	PutSwap(ctx context.Context, rec *SwapRecord) error

	// GetSwap retrieves the cached SIM change for a phone number.
	GetSwap(ctx context.Context, phoneNumber string) (*SwapRecord, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases store resources.
	Close() error
}
