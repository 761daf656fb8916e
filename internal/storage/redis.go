package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefixes
	sessionKeyPrefix      = "qod:session:"
	sessionSetKey         = "qod:sessions:active"
	influenceKeyPrefix    = "ti:resource:"
	influenceSetKey       = "ti:resources:all"
	subscriptionKeyPrefix = "devstatus:sub:"
	subscriptionSetPrefix = "devstatus:subs:"
	swapKeyPrefix         = "simswap:"

	// Registry keys never expire on their own; the expiry worker flips
	// state instead.
	recordTTL = 0
)

// RedisConfig holds configuration for the Redis connection.
type RedisConfig struct {
	// Addr is the Redis server address (host:port) for standalone mode.
	// Ignored if UseSentinel is true.
	Addr string

	// Password for Redis authentication.
	Password string

	// DB is the Redis database number (0-15).
	DB int

	// UseSentinel enables Redis Sentinel mode for high availability.
	UseSentinel bool

	// SentinelAddrs is the list of Sentinel server addresses.
	// Required if UseSentinel is true.
	SentinelAddrs []string

	// MasterName is the name of the Redis master in Sentinel mode.
	// Required if UseSentinel is true.
	MasterName string

	// MaxRetries is the maximum number of retries for failed commands.
	MaxRetries int

	// DialTimeout is the timeout for establishing connections.
	DialTimeout time.Duration

	// ReadTimeout is the timeout for socket reads.
	ReadTimeout time.Duration

	// WriteTimeout is the timeout for socket writes.
	WriteTimeout time.Duration

	// PoolSize is the maximum number of socket connections.
	PoolSize int

	// AllowInsecureSinks permits plain HTTP notification sinks. Development
	// only.
	AllowInsecureSinks bool
}

// DefaultRedisConfig returns a RedisConfig with sensible defaults.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		UseSentinel:  false,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	}
}

// RedisStore implements the Store interface using Redis as the backend.
// It supports both standalone Redis and Redis Sentinel for high
// availability.
//
// Data Model:
//   - qod:session:<id> (string) - QoD session record JSON
//   - qod:sessions:active (set) - Active session IDs
//   - ti:resource:<id> (string) - Traffic influence record JSON
//   - ti:resources:all (set) - Influence resource IDs
//   - devstatus:sub:<kind>:<id> (string) - Subscription record JSON
//   - devstatus:subs:<kind> (set) - Subscription IDs per kind
//   - simswap:<phoneNumber> (string) - SIM swap record JSON
type RedisStore struct {
	client redis.UniversalClient
	config *RedisConfig
}

// NewRedisStore creates a new RedisStore instance.
// It automatically configures Redis Sentinel if enabled in the config.
func NewRedisStore(cfg *RedisConfig) *RedisStore {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}

	var client redis.UniversalClient

	if cfg.UseSentinel {
		client = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    cfg.MasterName,
			SentinelAddrs: cfg.SentinelAddrs,
			Password:      cfg.Password,
			DB:            cfg.DB,
			MaxRetries:    cfg.MaxRetries,
			DialTimeout:   cfg.DialTimeout,
			ReadTimeout:   cfg.ReadTimeout,
			WriteTimeout:  cfg.WriteTimeout,
			PoolSize:      cfg.PoolSize,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			MaxRetries:   cfg.MaxRetries,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			PoolSize:     cfg.PoolSize,
		})
	}

	return &RedisStore{
		client: client,
		config: cfg,
	}
}

// Client exposes the underlying Redis client so the event queue and
// rate limiter can share the connection pool.
func (r *RedisStore) Client() redis.UniversalClient {
	return r.client
}

// validateSink checks a notification sink is a well-formed HTTP(S) URL.
func (r *RedisStore) validateSink(sink string) error {
	if sink == "" {
		return nil
	}
	u, err := url.Parse(sink)
	if err != nil {
		return fmt.Errorf("sink does not parse: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("sink %q has no host", sink)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if r.config.AllowInsecureSinks {
			return nil
		}
		return fmt.Errorf("plain HTTP sinks are not allowed")
	default:
		return fmt.Errorf("sink scheme %q is not supported", u.Scheme)
	}
}

// CreateSession stores a new QoD session record.
// Returns ErrSessionExists if the ID is already taken.
func (r *RedisStore) CreateSession(ctx context.Context, rec *SessionRecord) error {
	if rec.SessionID == "" {
		return fmt.Errorf("%w: empty session id", ErrInvalidID)
	}
	if err := r.validateSink(rec.Sink); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSink, err)
	}

	key := sessionKeyPrefix + rec.SessionID
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check session existence: %w", err)
	}
	if exists > 0 {
		return ErrSessionExists
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, key, data, recordTTL)
	pipe.SAdd(ctx, sessionSetKey, rec.SessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by its CAMARA identifier.
func (r *RedisStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	data, err := r.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &rec, nil
}

// UpdateSession replaces an existing session record.
func (r *RedisStore) UpdateSession(ctx context.Context, rec *SessionRecord) error {
	key := sessionKeyPrefix + rec.SessionID
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check session existence: %w", err)
	}
	if exists == 0 {
		return ErrSessionNotFound
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, key, data, recordTTL).Err(); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// DeleteSession removes a session record.
func (r *RedisStore) DeleteSession(ctx context.Context, id string) error {
	key := sessionKeyPrefix + id
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check session existence: %w", err)
	}
	if exists == 0 {
		return ErrSessionNotFound
	}

	pipe := r.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, sessionSetKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ListSessions returns all stored sessions.
func (r *RedisStore) ListSessions(ctx context.Context) ([]*SessionRecord, error) {
	ids, err := r.client.SMembers(ctx, sessionSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]*SessionRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := r.GetSession(ctx, id)
		if errors.Is(err, ErrSessionNotFound) {
			// Set member without a record; skip the stale entry.
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, rec)
	}
	return sessions, nil
}

// CreateInfluence stores a new traffic influence record.
func (r *RedisStore) CreateInfluence(ctx context.Context, rec *InfluenceRecord) error {
	if rec.TrafficInfluenceID == "" {
		return fmt.Errorf("%w: empty influence id", ErrInvalidID)
	}
	if err := r.validateSink(rec.NotificationSink); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSink, err)
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal influence: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, influenceKeyPrefix+rec.TrafficInfluenceID, data, recordTTL)
	pipe.SAdd(ctx, influenceSetKey, rec.TrafficInfluenceID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store influence: %w", err)
	}
	return nil
}

// GetInfluence retrieves an influence record by identifier.
func (r *RedisStore) GetInfluence(ctx context.Context, id string) (*InfluenceRecord, error) {
	data, err := r.client.Get(ctx, influenceKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrInfluenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get influence: %w", err)
	}

	var rec InfluenceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal influence: %w", err)
	}
	return &rec, nil
}

// UpdateInfluence replaces an existing influence record.
func (r *RedisStore) UpdateInfluence(ctx context.Context, rec *InfluenceRecord) error {
	key := influenceKeyPrefix + rec.TrafficInfluenceID
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check influence existence: %w", err)
	}
	if exists == 0 {
		return ErrInfluenceNotFound
	}

	rec.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal influence: %w", err)
	}
	if err := r.client.Set(ctx, key, data, recordTTL).Err(); err != nil {
		return fmt.Errorf("failed to update influence: %w", err)
	}
	return nil
}

// DeleteInfluence removes an influence record.
func (r *RedisStore) DeleteInfluence(ctx context.Context, id string) error {
	key := influenceKeyPrefix + id
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check influence existence: %w", err)
	}
	if exists == 0 {
		return ErrInfluenceNotFound
	}

	pipe := r.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, influenceSetKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete influence: %w", err)
	}
	return nil
}

// ListInfluences returns all stored influence records.
func (r *RedisStore) ListInfluences(ctx context.Context) ([]*InfluenceRecord, error) {
	ids, err := r.client.SMembers(ctx, influenceSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list influences: %w", err)
	}

	records := make([]*InfluenceRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := r.GetInfluence(ctx, id)
		if errors.Is(err, ErrInfluenceNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func subscriptionKey(kind SubscriptionKind, id string) string {
	return subscriptionKeyPrefix + string(kind) + ":" + id
}

// CreateSubscription stores a new device-status subscription.
func (r *RedisStore) CreateSubscription(ctx context.Context, rec *SubscriptionRecord) error {
	if rec.SubscriptionID == "" {
		return fmt.Errorf("%w: empty subscription id", ErrInvalidID)
	}
	if err := r.validateSink(rec.Sink); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSink, err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, subscriptionKey(rec.Kind, rec.SubscriptionID), data, recordTTL)
	pipe.SAdd(ctx, subscriptionSetPrefix+string(rec.Kind), rec.SubscriptionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store subscription: %w", err)
	}
	return nil
}

// GetSubscription retrieves a subscription by kind and identifier.
func (r *RedisStore) GetSubscription(ctx context.Context, kind SubscriptionKind, id string) (*SubscriptionRecord, error) {
	data, err := r.client.Get(ctx, subscriptionKey(kind, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	var rec SubscriptionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subscription: %w", err)
	}
	return &rec, nil
}

// DeleteSubscription removes a subscription.
func (r *RedisStore) DeleteSubscription(ctx context.Context, kind SubscriptionKind, id string) error {
	key := subscriptionKey(kind, id)
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check subscription existence: %w", err)
	}
	if exists == 0 {
		return ErrSubscriptionNotFound
	}

	pipe := r.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, subscriptionSetPrefix+string(kind), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

// ListSubscriptions returns all subscriptions of one kind.
func (r *RedisStore) ListSubscriptions(ctx context.Context, kind SubscriptionKind) ([]*SubscriptionRecord, error) {
	ids, err := r.client.SMembers(ctx, subscriptionSetPrefix+string(kind)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	records := make([]*SubscriptionRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := r.GetSubscription(ctx, kind, id)
		if errors.Is(err, ErrSubscriptionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// PutSwap records the latest SIM change for a phone number.
func (r *RedisStore) PutSwap(ctx context.Context, rec *SwapRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal swap record: %w", err)
	}
	if err := r.client.Set(ctx, swapKeyPrefix+rec.PhoneNumber, data, recordTTL).Err(); err != nil {
		return fmt.Errorf("failed to store swap record: %w", err)
	}
	return nil
}

// GetSwap retrieves the cached SIM change for a phone number.
func (r *RedisStore) GetSwap(ctx context.Context, phoneNumber string) (*SwapRecord, error) {
	data, err := r.client.Get(ctx, swapKeyPrefix+phoneNumber).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSwapRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get swap record: %w", err)
	}

	var rec SwapRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal swap record: %w", err)
	}
	return &rec, nil
}

// Ping verifies the Redis connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	return nil
}
