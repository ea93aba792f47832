package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dmitrymomot/fitcapture/pkg/logger"
)

// Service is the client directory and the only writer of measurement ledgers.
type Service struct {
	store Store
	now   func() time.Time
	log   *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithClock replaces time.Now for ledger timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("clients"))
	return s
}

// NewClient is the input for manual client creation.
type NewClient struct {
	OwnerID uuid.UUID
	Name    string
	Gender  string
	Contact string
}

// Promotion is the input for turning a guest capture session into a client.
type Promotion struct {
	OwnerID   uuid.UUID
	SessionID uuid.UUID
	Name      string
	Contact   string
	Gender    string
	Set       MeasurementSet
}

// Get returns the client if it belongs to ownerID. Clients of other owners
// are reported as not found.
func (s *Service) Get(ctx context.Context, ownerID, clientID uuid.UUID) (*Client, error) {
	c, err := s.store.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != ownerID {
		return nil, ErrClientNotFound
	}
	return c, nil
}

// List returns all clients of ownerID, oldest first.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]*Client, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

// Count returns the number of clients of ownerID. Used as the plan counter
// for the clients resource.
func (s *Service) Count(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	return s.store.CountByOwner(ctx, ownerID)
}

// Create adds a client with an empty ledger.
func (s *Service) Create(ctx context.Context, in NewClient) (*Client, error) {
	name := NormalizeName(in.Name)
	if in.OwnerID == uuid.Nil || name == "" {
		return nil, ErrInvalidClient
	}
	now := s.now().UTC()
	c := &Client{
		ID:        uuid.New(),
		OwnerID:   in.OwnerID,
		Name:      name,
		Gender:    strings.TrimSpace(in.Gender),
		Contact:   strings.TrimSpace(in.Contact),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateFromSession creates the client for a guest session, seeded with the
// session's measurement set as current. It is idempotent on SessionID: a
// second call returns the client created by the first.
func (s *Service) CreateFromSession(ctx context.Context, p Promotion) (*Client, error) {
	if existing, err := s.store.FindByOrigin(ctx, p.SessionID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrClientNotFound) {
		return nil, err
	}

	name := NormalizeName(p.Name)
	contact := strings.TrimSpace(p.Contact)
	if p.OwnerID == uuid.Nil || p.SessionID == uuid.Nil || name == "" || contact == "" {
		return nil, ErrInvalidClient
	}
	if err := validateSet(p.Set); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sessionID := p.SessionID
	c := &Client{
		ID:              uuid.New(),
		OwnerID:         p.OwnerID,
		Name:            name,
		Gender:          strings.TrimSpace(p.Gender),
		Contact:         contact,
		OriginSessionID: &sessionID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	c.Measurements.push(p.Set)

	err := s.store.Create(ctx, c)
	switch {
	case err == nil:
		s.log.InfoContext(ctx, "client created from session",
			logger.ClientID(c.ID), logger.SessionID(p.SessionID), logger.OwnerID(p.OwnerID))
		return c, nil
	case errors.Is(err, ErrDuplicateOrigin):
		// Lost a race with a concurrent promotion of the same session.
		return s.store.FindByOrigin(ctx, p.SessionID)
	default:
		return nil, err
	}
}

// Apply records set as the client's current measurements, archiving the
// previous current set. Re-applying a set with the same SourceID is a no-op.
func (s *Service) Apply(ctx context.Context, clientID uuid.UUID, set MeasurementSet) error {
	if err := validateSet(set); err != nil {
		return err
	}
	applied, err := s.store.Apply(ctx, clientID, set, s.now().UTC())
	if err != nil {
		return err
	}
	if !applied {
		s.log.DebugContext(ctx, "measurement set already applied",
			logger.ClientID(clientID), slog.String("source_id", set.SourceID))
	}
	return nil
}

// RecordManual applies measurements typed in by the designer. values are
// taken as already validated; capture.Manager.RecordManual is the checked entry.
func (s *Service) RecordManual(ctx context.Context, ownerID, clientID uuid.UUID, values map[string]float64) (*Client, error) {
	if _, err := s.Get(ctx, ownerID, clientID); err != nil {
		return nil, err
	}
	set := MeasurementSet{
		Values:     values,
		Provenance: ProvenanceManual,
		Confidence: ManualConfidence,
		MeasuredAt: s.now().UTC(),
	}
	if err := s.Apply(ctx, clientID, set); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, clientID)
}

// NormalizeName trims, collapses inner whitespace and title-cases a person's name.
func NormalizeName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	return cases.Title(language.Und).String(name)
}

func validateSet(set MeasurementSet) error {
	if len(set.Values) == 0 {
		return fmt.Errorf("%w: no values", ErrInvalidMeasurementSet)
	}
	for k, v := range set.Values {
		if k == "" || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("%w: %q", ErrInvalidMeasurementSet, k)
		}
	}
	if set.Confidence < 0 || set.Confidence > 1 || math.IsNaN(set.Confidence) {
		return fmt.Errorf("%w: confidence %v", ErrInvalidMeasurementSet, set.Confidence)
	}
	if set.MeasuredAt.IsZero() {
		return fmt.Errorf("%w: missing measured_at", ErrInvalidMeasurementSet)
	}
	return nil
}
