package capture_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fitcapture/svc/capture"
	"github.com/dmitrymomot/fitcapture/svc/clients"
)

var base = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakyDirectory fails selected client operations on demand.
type flakyDirectory struct {
	capture.Directory
	failCreate atomic.Bool
	failApply  atomic.Bool
}

var errDirectoryDown = errors.New("directory down")

func (d *flakyDirectory) CreateFromSession(ctx context.Context, p clients.Promotion) (*clients.Client, error) {
	if d.failCreate.Load() {
		return nil, errDirectoryDown
	}
	return d.Directory.CreateFromSession(ctx, p)
}

func (d *flakyDirectory) Apply(ctx context.Context, clientID uuid.UUID, set clients.MeasurementSet) error {
	if d.failApply.Load() {
		return errDirectoryDown
	}
	return d.Directory.Apply(ctx, clientID, set)
}

type published struct {
	Type  string
	Event capture.Event
}

type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) Publish(_ context.Context, eventType string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{Type: eventType, Event: payload.(capture.Event)})
	return nil
}

func (r *recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	m       *capture.Manager
	store   *capture.MemoryStore
	clients *clients.Service
	dir     *flakyDirectory
	clk     *clock
	pub     *recorder
	owner   uuid.UUID
}

func setup(t *testing.T, opts ...capture.Option) *fixture {
	t.Helper()
	return setupWithConfig(t, capture.DefaultConfig(), opts...)
}

func setupWithConfig(t *testing.T, cfg capture.Config, opts ...capture.Option) *fixture {
	t.Helper()
	f := &fixture{
		store: capture.NewMemoryStore(),
		clk:   &clock{now: base},
		pub:   &recorder{},
		owner: uuid.New(),
	}
	f.clients = clients.NewService(clients.NewMemoryStore(), clients.WithClock(f.clk.Now))
	f.dir = &flakyDirectory{Directory: f.clients}

	opts = append([]capture.Option{capture.WithClock(f.clk.Now), capture.WithPublisher(f.pub)}, opts...)
	m, err := capture.NewManager(f.store, f.dir, cfg, opts...)
	require.NoError(t, err)
	f.m = m
	return f
}

func (f *fixture) client(t *testing.T, name string) *clients.Client {
	t.Helper()
	c, err := f.clients.Create(context.Background(), clients.NewClient{OwnerID: f.owner, Name: name, Gender: "female"})
	require.NoError(t, err)
	return c
}

func (f *fixture) issue(t *testing.T, clientID *uuid.UUID) *capture.Issued {
	t.Helper()
	issued, err := f.m.Issue(context.Background(), capture.IssueRequest{OwnerID: f.owner, ClientID: clientID})
	require.NoError(t, err)
	return issued
}

func (f *fixture) ledger(t *testing.T, clientID uuid.UUID) clients.Ledger {
	t.Helper()
	c, err := f.clients.Get(context.Background(), f.owner, clientID)
	require.NoError(t, err)
	return c.Measurements
}

func (f *fixture) stored(t *testing.T, code string) *capture.Session {
	t.Helper()
	s, err := f.store.GetByCode(context.Background(), code)
	require.NoError(t, err)
	return s
}

func ptr[T any](v T) *T { return &v }
