package clients

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps clients in process memory. One mutex serializes all
// writes, which trivially satisfies per-client apply ordering.
type MemoryStore struct {
	mu       sync.RWMutex
	clients  map[uuid.UUID]*Client
	byOrigin map[uuid.UUID]uuid.UUID
}

// NewMemoryStore returns an empty in-process client store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients:  make(map[uuid.UUID]*Client),
		byOrigin: make(map[uuid.UUID]uuid.UUID),
	}
}

func (m *MemoryStore) Create(_ context.Context, c *Client) error {
	if c == nil || c.ID == uuid.Nil {
		return ErrInvalidClient
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[c.ID]; ok {
		return ErrDuplicateClient
	}
	if c.OriginSessionID != nil {
		if _, ok := m.byOrigin[*c.OriginSessionID]; ok {
			return ErrDuplicateOrigin
		}
		m.byOrigin[*c.OriginSessionID] = c.ID
	}
	m.clients[c.ID] = c.clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.clients[id]
	if !ok {
		return nil, ErrClientNotFound
	}
	return c.clone(), nil
}

func (m *MemoryStore) FindByOrigin(_ context.Context, sessionID uuid.UUID) (*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byOrigin[sessionID]
	if !ok {
		return nil, ErrClientNotFound
	}
	return m.clients[id].clone(), nil
}

func (m *MemoryStore) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]*Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Client
	for _, c := range m.clients {
		if c.OwnerID == ownerID {
			out = append(out, c.clone())
		}
	}
	slices.SortFunc(out, func(a, b *Client) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.Name, b.Name))
	})
	return out, nil
}

func (m *MemoryStore) CountByOwner(_ context.Context, ownerID uuid.UUID) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, c := range m.clients {
		if c.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Apply(_ context.Context, clientID uuid.UUID, set MeasurementSet, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clients[clientID]
	if !ok {
		return false, ErrClientNotFound
	}
	if c.Measurements.hasSource(set.SourceID) {
		return false, nil
	}
	c.Measurements.push(set)
	c.UpdatedAt = now
	return true, nil
}
