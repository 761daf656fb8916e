package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store implementation. It backs tests and
// single-instance deployments that run without Redis.
type MemoryStore struct {
	mu            sync.RWMutex
	sessions      map[string]*SessionRecord
	influences    map[string]*InfluenceRecord
	subscriptions map[string]*SubscriptionRecord
	swaps         map[string]*SwapRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:      make(map[string]*SessionRecord),
		influences:    make(map[string]*InfluenceRecord),
		subscriptions: make(map[string]*SubscriptionRecord),
		swaps:         make(map[string]*SwapRecord),
	}
}

func (m *MemoryStore) CreateSession(_ context.Context, rec *SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[rec.SessionID]; ok {
		return ErrSessionExists
	}
	cp := *rec
	m.sessions[rec.SessionID] = &cp
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (*SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) UpdateSession(_ context.Context, rec *SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[rec.SessionID]; !ok {
		return ErrSessionNotFound
	}
	cp := *rec
	m.sessions[rec.SessionID] = &cp
	return nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) ListSessions(_ context.Context) ([]*SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*SessionRecord, 0, len(m.sessions))
	for _, rec := range m.sessions {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) CreateInfluence(_ context.Context, rec *InfluenceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	cp := *rec
	m.influences[rec.TrafficInfluenceID] = &cp
	return nil
}

func (m *MemoryStore) GetInfluence(_ context.Context, id string) (*InfluenceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.influences[id]
	if !ok {
		return nil, ErrInfluenceNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) UpdateInfluence(_ context.Context, rec *InfluenceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.influences[rec.TrafficInfluenceID]; !ok {
		return ErrInfluenceNotFound
	}
	rec.UpdatedAt = time.Now().UTC()
	cp := *rec
	m.influences[rec.TrafficInfluenceID] = &cp
	return nil
}

func (m *MemoryStore) DeleteInfluence(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.influences[id]; !ok {
		return ErrInfluenceNotFound
	}
	delete(m.influences, id)
	return nil
}

func (m *MemoryStore) ListInfluences(_ context.Context) ([]*InfluenceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*InfluenceRecord, 0, len(m.influences))
	for _, rec := range m.influences {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) subKey(kind SubscriptionKind, id string) string {
	return string(kind) + ":" + id
}

func (m *MemoryStore) CreateSubscription(_ context.Context, rec *SubscriptionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.subscriptions[m.subKey(rec.Kind, rec.SubscriptionID)] = &cp
	return nil
}

func (m *MemoryStore) GetSubscription(_ context.Context, kind SubscriptionKind, id string) (*SubscriptionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.subscriptions[m.subKey(kind, id)]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) DeleteSubscription(_ context.Context, kind SubscriptionKind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := m.subKey(kind, id)
	if _, ok := m.subscriptions[key]; !ok {
		return ErrSubscriptionNotFound
	}
	delete(m.subscriptions, key)
	return nil
}

func (m *MemoryStore) ListSubscriptions(_ context.Context, kind SubscriptionKind) ([]*SubscriptionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*SubscriptionRecord, 0)
	for _, rec := range m.subscriptions {
		if rec.Kind != kind {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) PutSwap(_ context.Context, rec *SwapRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.swaps[rec.PhoneNumber] = &cp
	return nil
}

func (m *MemoryStore) GetSwap(_ context.Context, phoneNumber string) (*SwapRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.swaps[phoneNumber]
	if !ok {
		return nil, ErrSwapRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
