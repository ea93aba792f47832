package capture

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fitcapture/pkg/linkcode"
)

// MemoryStore implements Store in process memory. A single mutex guards all
// sessions so Insert's expire-then-create is atomic.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	byCode   map[string]uuid.UUID
}

// NewMemoryStore returns an empty in-process session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[uuid.UUID]*Session),
		byCode:   make(map[string]uuid.UUID),
	}
}

func (m *MemoryStore) Insert(ctx context.Context, s *Session, now time.Time) ([]uuid.UUID, error) {
	if s == nil || s.ID == uuid.Nil || s.LinkCode == "" {
		return nil, ErrInvalidIssueRequest
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byCode[s.LinkCode]; taken {
		return nil, linkcode.ErrCodeTaken
	}

	var expired []uuid.UUID
	if s.ClientID != nil {
		for id, other := range m.sessions {
			if other.ClientID == nil || *other.ClientID != *s.ClientID || !other.Status.Live() {
				continue
			}
			other.Status = StatusExpired
			other.UpdatedAt = now
			expired = append(expired, id)
		}
	}

	m.sessions[s.ID] = s.Clone()
	m.byCode[s.LinkCode] = s.ID
	return expired, nil
}

func (m *MemoryStore) GetByCode(ctx context.Context, code string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byCode[code]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return m.sessions[id].Clone(), nil
}

func (m *MemoryStore) Update(ctx context.Context, id uuid.UUID, fn func(*Session) error) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s := stored.Clone()
	if err := fn(s); err != nil {
		return nil, err
	}
	// id and link code are immutable
	s.ID, s.LinkCode = stored.ID, stored.LinkCode
	m.sessions[id] = s.Clone()
	return s, nil
}

func (m *MemoryStore) ListByOwner(ctx context.Context, f ListFilter) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Session
	for _, s := range m.sessions {
		if s.OwnerID != f.OwnerID {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		out = append(out, s.Clone())
	}
	slices.SortFunc(out, func(a, b *Session) int {
		return b.IssuedAt.Compare(a.IssuedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryStore) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, s := range m.sessions {
		if s.NeedsExpiry(now) {
			s.Status = StatusExpired
			s.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ListUnreconciled(ctx context.Context, limit int) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Session
	for _, s := range m.sessions {
		if s.AwaitingLedger() || s.Promotable() {
			out = append(out, s.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *Session) int {
		return cmp.Compare(a.UpdatedAt.UnixNano(), b.UpdatedAt.UnixNano())
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) CountIssuedSince(ctx context.Context, ownerID uuid.UUID, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, s := range m.sessions {
		if s.OwnerID == ownerID && !s.IssuedAt.Before(since) {
			n++
		}
	}
	return n, nil
}
