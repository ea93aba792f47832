package capture

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fitcapture/pkg/linkcode"
	"github.com/dmitrymomot/fitcapture/pkg/logger"
	"github.com/dmitrymomot/fitcapture/pkg/qrcode"
	"github.com/dmitrymomot/fitcapture/svc/clients"
)

// Directory is the client collaborator. Satisfied by *clients.Service.
type Directory interface {
	Get(ctx context.Context, ownerID, clientID uuid.UUID) (*clients.Client, error)
	Apply(ctx context.Context, clientID uuid.UUID, set clients.MeasurementSet) error
	CreateFromSession(ctx context.Context, p clients.Promotion) (*clients.Client, error)
	RecordManual(ctx context.Context, ownerID, clientID uuid.UUID, values map[string]float64) (*clients.Client, error)
}

// Manager owns the capture session lifecycle: issuance, lookup by code,
// measurement intake and the hand-off to the client ledger.
type Manager struct {
	store  Store
	dir    Directory
	intake *Intake
	codes  *linkcode.Generator
	cfg    Config
	now    func() time.Time
	pub    Publisher
	log    *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithClock replaces time.Now. Tests use it to move past expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger; nil keeps slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithPublisher sets where lifecycle events go. Events are dropped by default.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) {
		if p != nil {
			m.pub = p
		}
	}
}

// WithCodeGenerator overrides the generator built from Config.
func WithCodeGenerator(g *linkcode.Generator) Option {
	return func(m *Manager) {
		if g != nil {
			m.codes = g
		}
	}
}

// NewManager validates cfg and wires the manager.
func NewManager(store Store, dir Directory, cfg Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		store:  store,
		dir:    dir,
		intake: NewIntake(cfg.UnknownFields, cfg.DefaultConfidence),
		cfg:    cfg,
		now:    time.Now,
		pub:    noopPublisher{},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.codes == nil {
		m.codes = linkcode.New(
			linkcode.WithLength(cfg.CodeLength),
			linkcode.WithMaxAttempts(cfg.CodeMaxAttempts),
		)
	}
	m.log = m.log.With(logger.Component("capture"))
	return m, nil
}

// IssueRequest asks for a new session. A nil ClientID issues a quick scan.
type IssueRequest struct {
	OwnerID  uuid.UUID
	ClientID *uuid.UUID
}

// Issued is the result of Issue.
type Issued struct {
	Session     *Session
	SubjectName string
	Link        string
	QRCode      string      // PNG data URI of Link; empty if rendering failed
	Expired     []uuid.UUID // sessions of the same client expired by this issue
}

// Issue creates a pending session under a fresh link code. Issuing for a
// client expires that client's other live sessions in the same atomic step.
func (m *Manager) Issue(ctx context.Context, req IssueRequest) (*Issued, error) {
	if req.OwnerID == uuid.Nil {
		return nil, ErrInvalidIssueRequest
	}

	now := m.now().UTC()
	s := &Session{
		ID:        uuid.New(),
		OwnerID:   req.OwnerID,
		Guest:     req.ClientID == nil,
		Status:    StatusPending,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.cfg.SessionTTL),
		UpdatedAt: now,
	}
	if req.ClientID != nil {
		c, err := m.dir.Get(ctx, req.OwnerID, *req.ClientID)
		if err != nil {
			return nil, err
		}
		id := c.ID
		s.ClientID = &id
		s.SubjectName = c.Name
		s.SubjectGender = c.Gender
	}

	var expired []uuid.UUID
	code, err := m.codes.Unique(ctx, func(ctx context.Context, code string) error {
		s.LinkCode = code
		var err error
		expired, err = m.store.Insert(ctx, s, now)
		return err
	})
	if err != nil {
		if errors.Is(err, linkcode.ErrCodeSpaceExhausted) {
			m.log.ErrorContext(ctx, "link code space exhausted", logger.OwnerID(req.OwnerID), logger.Error(err))
			return nil, errors.Join(ErrCodeSpaceExhausted, err)
		}
		return nil, err
	}
	s.LinkCode = code

	for _, id := range expired {
		m.log.InfoContext(ctx, "session superseded", logger.SessionID(id), logger.ClientID(s.ClientID))
	}
	m.log.InfoContext(ctx, "session issued",
		logger.SessionID(s.ID), logger.LinkCode(code), logger.OwnerID(s.OwnerID), logger.ClientID(s.ClientID))
	m.publish(ctx, EventSessionIssued, s)

	link := m.Link(code)
	qr, err := qrcode.DataURI(link, m.cfg.QRSize)
	if err != nil {
		m.log.WarnContext(ctx, "qr code rendering failed", logger.SessionID(s.ID), logger.Error(err))
	}
	return &Issued{
		Session:     s,
		SubjectName: s.DisplayName(),
		Link:        link,
		QRCode:      qr,
		Expired:     expired,
	}, nil
}

// Link returns the public capture URL for code.
func (m *Manager) Link(code string) string {
	return strings.TrimRight(m.cfg.PublicURL, "/") + "/" + code
}

// ResolutionInvalid is reported for codes that match no session.
const ResolutionInvalid = "invalid"

// Resolution is the public view of a session addressed by code.
type Resolution struct {
	Status        string
	Message       string
	SubjectName   string
	SubjectGender string
	Guest         bool
	ExpiresAt     *time.Time
}

// Resolve looks a code up for the capture device. Unknown codes resolve to
// ResolutionInvalid rather than an error; only store failures are returned.
func (m *Manager) Resolve(ctx context.Context, code string) (Resolution, error) {
	s, err := m.load(ctx, code)
	if errors.Is(err, ErrSessionNotFound) {
		return Resolution{Status: ResolutionInvalid, Message: "This link is invalid."}, nil
	}
	if err != nil {
		return Resolution{}, err
	}

	r := Resolution{Status: string(s.Status)}
	switch s.Status {
	case StatusPending:
		expiresAt := s.ExpiresAt
		r.SubjectName = s.DisplayName()
		r.SubjectGender = s.SubjectGender
		r.Guest = s.Guest
		r.ExpiresAt = &expiresAt
	case StatusProcessing:
		r.Message = "Measurements for this link are being processed."
	case StatusExpired:
		r.Message = "This link has expired. Ask your designer for a new one."
	case StatusCompleted:
		r.Message = "Measurements for this link were already submitted."
	case StatusFailed:
		r.Message = "These measurements could not be processed. Ask your designer for a new link."
	}
	return r, nil
}

// GuestDetails identify the person measured on a quick scan.
type GuestDetails struct {
	Name    string
	Contact string
	Gender  string
}

func (g *GuestDetails) normalize() {
	g.Name = clients.NormalizeName(g.Name)
	g.Contact = strings.TrimSpace(g.Contact)
	g.Gender = strings.TrimSpace(g.Gender)
}

// Complete reports whether the details are enough to create a client.
func (g GuestDetails) Complete() bool {
	return g.Name != "" && g.Contact != ""
}

func (g GuestDetails) empty() bool {
	return g.Name == "" && g.Contact == "" && g.Gender == ""
}

// Submission is a measurement payload sent from the capture device.
type Submission struct {
	Measurements map[string]any
	Confidence   *float64
	Guest        *GuestDetails
}

// Outcome reports an accepted submission. The session is completed even when
// PromotionErr or LedgerErr is set; both can be retried.
type Outcome struct {
	Session      *Session
	Measurements map[string]float64
	Status       Status
	ClientID     *uuid.UUID
	PromotionErr error
	LedgerErr    error
}

// Submit runs intake against the session addressed by code.
//
// Payload errors leave the session pending. Well-formed values outside body
// bounds move it to failed. The completing write re-checks status and expiry
// under the session lock, so a submit racing past expires_at is rejected with
// ErrSessionExpired.
func (m *Manager) Submit(ctx context.Context, code string, sub Submission) (*Outcome, error) {
	s, err := m.load(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := acceptsIntake(s); err != nil {
		return nil, err
	}

	accepted, err := m.intake.Validate(sub.Measurements, sub.Confidence)
	if err != nil {
		m.log.InfoContext(ctx, "measurements rejected", logger.SessionID(s.ID), logger.Error(err))
		return nil, err
	}

	var guest GuestDetails
	if s.Guest && sub.Guest != nil {
		guest = *sub.Guest
		guest.normalize()
		if !guest.empty() && !guest.Complete() {
			return nil, ErrGuestDetailsIncomplete
		}
	}

	if err := m.intake.Check(accepted.Values); err != nil {
		if _, ferr := m.fail(ctx, s.ID, err.Error()); ferr != nil {
			return nil, ferr
		}
		return nil, err
	}

	now := m.now().UTC()
	done, err := m.store.Update(ctx, s.ID, func(cur *Session) error {
		if err := acceptsIntake(cur); err != nil {
			return err
		}
		if err := transition(ctx, cur, EventComplete, now); err != nil {
			return err
		}
		confidence := accepted.Confidence
		cur.Measurements = accepted.Values
		cur.Confidence = &confidence
		cur.MeasuredAt = &now
		if cur.Guest && guest.Complete() {
			cur.GuestName = guest.Name
			cur.GuestContact = guest.Contact
			cur.GuestGender = guest.Gender
		}
		return nil
	})
	if errors.Is(err, ErrSessionExpired) {
		if _, xerr := m.expire(ctx, s.ID); xerr != nil {
			m.log.WarnContext(ctx, "expiry write failed", logger.SessionID(s.ID), logger.Error(xerr))
		}
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, err
	}

	m.log.InfoContext(ctx, "measurements accepted",
		logger.SessionID(done.ID), logger.Count(len(done.Measurements)), slog.Float64("confidence", *done.Confidence))
	m.publish(ctx, EventSessionCompleted, done)

	out := &Outcome{Measurements: maps.Clone(done.Measurements), Status: done.Status}
	switch {
	case done.Guest && guest.Complete():
		if promoted, err := m.promote(ctx, done); err != nil {
			out.PromotionErr = err
		} else {
			done = promoted
		}
	case !done.Guest:
		if applied, err := m.applyLedger(ctx, done); err != nil {
			out.LedgerErr = err
		} else {
			done = applied
		}
	}
	out.Session = done
	out.ClientID = clonePtr(done.ClientID)
	return out, nil
}

// Fail records an explicit failure signal for a live session.
func (m *Manager) Fail(ctx context.Context, ownerID uuid.UUID, code, reason string) (*Session, error) {
	s, err := m.owned(ctx, ownerID, code)
	if err != nil {
		return nil, err
	}
	if s.Status == StatusExpired {
		return nil, ErrSessionExpired
	}
	if !canFire(ctx, s, EventFail, m.now().UTC()) {
		return nil, &StateError{Status: s.Status, Event: EventFail.Name()}
	}
	return m.fail(ctx, s.ID, strings.TrimSpace(reason))
}

// Promote retries guest promotion for a completed quick scan. details, if
// given, fill in or replace the guest fields stored at submit time.
// Promoting an already promoted session returns it unchanged.
func (m *Manager) Promote(ctx context.Context, ownerID uuid.UUID, code string, details *GuestDetails) (*Session, error) {
	s, err := m.owned(ctx, ownerID, code)
	if err != nil {
		return nil, err
	}
	if !s.Guest {
		return nil, ErrNotGuestSession
	}
	if s.Status != StatusCompleted {
		return nil, &StateError{Status: s.Status, Event: "promote"}
	}
	if s.ClientID != nil {
		return s, nil
	}

	if details != nil {
		d := *details
		d.normalize()
		s, err = m.store.Update(ctx, s.ID, func(cur *Session) error {
			if cur.ClientID != nil {
				return nil
			}
			if d.Name != "" {
				cur.GuestName = d.Name
			}
			if d.Contact != "" {
				cur.GuestContact = d.Contact
			}
			if d.Gender != "" {
				cur.GuestGender = d.Gender
			}
			cur.UpdatedAt = m.now().UTC()
			return nil
		})
		if err != nil {
			return nil, err
		}
		if s.ClientID != nil {
			return s, nil
		}
	}
	return m.promote(ctx, s)
}

// Reconcile pushes a completed session's measurements to its client when an
// earlier promotion or ledger apply failed. Both steps are idempotent.
func (m *Manager) Reconcile(ctx context.Context, ownerID uuid.UUID, code string) (*Session, error) {
	s, err := m.owned(ctx, ownerID, code)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusCompleted {
		return nil, &StateError{Status: s.Status, Event: "reconcile"}
	}
	return m.reconcile(ctx, s)
}

// RecordManual validates measurements typed in by the designer against the
// same catalogue, policy and body bounds as a capture submission, then
// records them on the client's ledger.
func (m *Manager) RecordManual(ctx context.Context, ownerID, clientID uuid.UUID, payload map[string]any) (*clients.Client, error) {
	accepted, err := m.intake.Validate(payload, nil)
	if err != nil {
		return nil, err
	}
	if err := m.intake.Check(accepted.Values); err != nil {
		return nil, err
	}
	c, err := m.dir.RecordManual(ctx, ownerID, clientID, accepted.Values)
	if err != nil {
		return nil, err
	}
	m.log.InfoContext(ctx, "manual measurements recorded", logger.ClientID(c.ID), logger.Count(len(accepted.Values)))
	return c, nil
}

// SweepResult summarizes one Sweep run.
type SweepResult struct {
	Expired    int
	Reconciled int
}

// Sweep expires stale live sessions and retries unreconciled completed ones.
// Expiry is enforced on every read regardless; sweeping keeps stored
// statuses fresh for listings and reports.
func (m *Manager) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	n, err := m.store.ExpireStale(ctx, m.now().UTC())
	if err != nil {
		return res, err
	}
	res.Expired = n

	pending, err := m.store.ListUnreconciled(ctx, m.cfg.SweepBatch)
	if err != nil {
		return res, err
	}
	for _, s := range pending {
		if _, err := m.reconcile(ctx, s); err != nil {
			m.log.WarnContext(ctx, "reconcile failed", logger.SessionID(s.ID), logger.Error(err))
			continue
		}
		res.Reconciled++
	}
	return res, nil
}

// ListForOwner returns the owner's sessions, newest first, with lazy expiry
// applied. Rows rewritten to expired are dropped when they no longer match
// the status filter.
func (m *Manager) ListForOwner(ctx context.Context, f ListFilter) ([]*Session, error) {
	sessions, err := m.store.ListByOwner(ctx, f)
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	out := sessions[:0]
	for _, s := range sessions {
		if s.NeedsExpiry(now) {
			if s, err = m.expire(ctx, s.ID); err != nil {
				return nil, err
			}
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// CountIssuedSince counts sessions ownerID issued at or after since.
func (m *Manager) CountIssuedSince(ctx context.Context, ownerID uuid.UUID, since time.Time) (int64, error) {
	return m.store.CountIssuedSince(ctx, ownerID, since)
}

// IssuedThisMonth counts sessions issued since the start of the current UTC
// month. It is the plan counter for capture sessions.
func (m *Manager) IssuedThisMonth(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	now := m.now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return m.store.CountIssuedSince(ctx, ownerID, start)
}

// load fetches a session by code and rewrites it to expired if its window
// has closed, so no caller ever observes a stale live status.
func (m *Manager) load(ctx context.Context, code string) (*Session, error) {
	code = linkcode.Normalize(code)
	if !m.codes.Valid(code) {
		return nil, ErrSessionNotFound
	}
	s, err := m.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if s.NeedsExpiry(m.now().UTC()) {
		return m.expire(ctx, s.ID)
	}
	return s, nil
}

func (m *Manager) owned(ctx context.Context, ownerID uuid.UUID, code string) (*Session, error) {
	s, err := m.load(ctx, code)
	if err != nil {
		return nil, err
	}
	if s.OwnerID != ownerID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) expire(ctx context.Context, id uuid.UUID) (*Session, error) {
	now := m.now().UTC()
	s, err := m.store.Update(ctx, id, func(cur *Session) error {
		if !cur.NeedsExpiry(now) {
			return nil
		}
		return transition(ctx, cur, EventExpire, now)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Manager) fail(ctx context.Context, id uuid.UUID, reason string) (*Session, error) {
	now := m.now().UTC()
	s, err := m.store.Update(ctx, id, func(cur *Session) error {
		if cur.NeedsExpiry(now) {
			return ErrSessionExpired
		}
		if err := transition(ctx, cur, EventFail, now); err != nil {
			return err
		}
		cur.FailureReason = reason
		return nil
	})
	if errors.Is(err, ErrSessionExpired) {
		if _, xerr := m.expire(ctx, id); xerr != nil {
			m.log.WarnContext(ctx, "expiry write failed", logger.SessionID(id), logger.Error(xerr))
		}
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, err
	}
	m.log.WarnContext(ctx, "session failed", logger.SessionID(id), slog.String("reason", reason))
	m.publish(ctx, EventSessionFailed, s)
	return s, nil
}

func (m *Manager) reconcile(ctx context.Context, s *Session) (*Session, error) {
	switch {
	case s.AwaitingPromotion():
		return m.promote(ctx, s)
	case s.AwaitingLedger():
		return m.applyLedger(ctx, s)
	}
	return s, nil
}

// promote creates the client for a completed guest session and binds it.
// CreateFromSession is idempotent on the session id, so a retry after a
// failed bind finds the client created by the earlier attempt.
func (m *Manager) promote(ctx context.Context, s *Session) (*Session, error) {
	guest := GuestDetails{Name: s.GuestName, Contact: s.GuestContact, Gender: s.GuestGender}
	if !guest.Complete() {
		return nil, ErrGuestDetailsIncomplete
	}

	c, err := m.dir.CreateFromSession(ctx, clients.Promotion{
		OwnerID:   s.OwnerID,
		SessionID: s.ID,
		Name:      guest.Name,
		Contact:   guest.Contact,
		Gender:    guest.Gender,
		Set:       measurementSet(s),
	})
	if err != nil {
		m.log.ErrorContext(ctx, "guest promotion failed", logger.SessionID(s.ID), logger.Error(err))
		return nil, errors.Join(ErrPromotionFailed, err)
	}

	now := m.now().UTC()
	bound, err := m.store.Update(ctx, s.ID, func(cur *Session) error {
		if cur.ClientID != nil {
			return nil
		}
		id := c.ID
		cur.ClientID = &id
		cur.SubjectName = c.Name
		cur.SubjectGender = c.Gender
		cur.PromotedAt = &now
		// The new client was seeded with this session's set.
		cur.LedgerAppliedAt = &now
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		m.log.ErrorContext(ctx, "binding promoted client failed",
			logger.SessionID(s.ID), logger.ClientID(c.ID), logger.Error(err))
		return nil, errors.Join(ErrPromotionFailed, err)
	}

	m.log.InfoContext(ctx, "guest promoted", logger.SessionID(s.ID), logger.ClientID(c.ID))
	m.publish(ctx, EventClientPromoted, bound)
	return bound, nil
}

func (m *Manager) applyLedger(ctx context.Context, s *Session) (*Session, error) {
	if err := m.dir.Apply(ctx, *s.ClientID, measurementSet(s)); err != nil {
		m.log.ErrorContext(ctx, "ledger apply failed",
			logger.SessionID(s.ID), logger.ClientID(s.ClientID), logger.Error(err))
		return nil, errors.Join(ErrLedgerApplyFailed, err)
	}

	now := m.now().UTC()
	applied, err := m.store.Update(ctx, s.ID, func(cur *Session) error {
		if cur.LedgerAppliedAt == nil {
			cur.LedgerAppliedAt = &now
			cur.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, errors.Join(ErrLedgerApplyFailed, err)
	}
	return applied, nil
}

func (m *Manager) publish(ctx context.Context, eventType string, s *Session) {
	if err := m.pub.Publish(ctx, eventType, eventOf(s, m.now().UTC())); err != nil {
		m.log.WarnContext(ctx, "event publish failed",
			logger.Event(eventType), logger.SessionID(s.ID), logger.Error(err))
	}
}

// acceptsIntake reports whether s may take a measurement submission.
func acceptsIntake(s *Session) error {
	switch s.Status {
	case StatusPending:
		return nil
	case StatusExpired:
		return ErrSessionExpired
	}
	return &StateError{Status: s.Status, Event: "submit"}
}

func measurementSet(s *Session) clients.MeasurementSet {
	set := clients.MeasurementSet{
		Values:     maps.Clone(s.Measurements),
		Provenance: clients.ProvenanceCaptureSession,
		SourceID:   s.ID.String(),
	}
	if s.Confidence != nil {
		set.Confidence = *s.Confidence
	}
	if s.MeasuredAt != nil {
		set.MeasuredAt = *s.MeasuredAt
	}
	return set
}
