package capture

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a capture session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
)

// Name implements statemachine.State.
func (s Status) Name() string { return string(s) }

// Live reports whether the session may still accept a transition.
func (s Status) Live() bool {
	return s == StatusPending || s == StatusProcessing
}

func (s Status) String() string { return string(s) }

// QuickScanSubject is shown instead of a client name on guest sessions.
const QuickScanSubject = "Quick Scan"

// Session is one code-addressable measurement-collection attempt.
// Sessions are never deleted; terminal sessions stay as an audit trail.
type Session struct {
	ID       uuid.UUID
	OwnerID  uuid.UUID
	ClientID *uuid.UUID // nil for quick scans until promotion
	Guest    bool

	// Snapshot of the client at issue time, shown on the capture device.
	SubjectName   string
	SubjectGender string

	GuestName    string
	GuestContact string
	GuestGender  string

	LinkCode      string
	Status        Status
	Measurements  map[string]float64
	Confidence    *float64
	MeasuredAt    *time.Time
	FailureReason string

	IssuedAt        time.Time
	ExpiresAt       time.Time
	LedgerAppliedAt *time.Time
	PromotedAt      *time.Time
	UpdatedAt       time.Time
}

// ExpiredAt reports whether the session's validity window has closed at now.
func (s *Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// NeedsExpiry reports whether a read at now must rewrite the session to expired.
func (s *Session) NeedsExpiry(now time.Time) bool {
	return s.Status.Live() && s.ExpiredAt(now)
}

// AwaitingPromotion reports whether a completed guest session has no client yet.
func (s *Session) AwaitingPromotion() bool {
	return s.Guest && s.Status == StatusCompleted && s.ClientID == nil
}

// Promotable reports whether the sweeper can promote s without designer input.
func (s *Session) Promotable() bool {
	return s.AwaitingPromotion() && s.GuestName != "" && s.GuestContact != ""
}

// AwaitingLedger reports whether a completed session's measurements have not
// reached the client's ledger yet.
func (s *Session) AwaitingLedger() bool {
	return s.Status == StatusCompleted && s.ClientID != nil && s.LedgerAppliedAt == nil
}

// DisplayName returns the subject shown to the capture device.
func (s *Session) DisplayName() string {
	if s.Guest && s.ClientID == nil {
		return QuickScanSubject
	}
	if s.SubjectName == "" {
		return QuickScanSubject
	}
	return s.SubjectName
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Measurements = maps.Clone(s.Measurements)
	c.ClientID = clonePtr(s.ClientID)
	c.Confidence = clonePtr(s.Confidence)
	c.MeasuredAt = clonePtr(s.MeasuredAt)
	c.LedgerAppliedAt = clonePtr(s.LedgerAppliedAt)
	c.PromotedAt = clonePtr(s.PromotedAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ListFilter narrows ListByOwner results.
type ListFilter struct {
	OwnerID uuid.UUID
	Status  Status // empty means any
	Limit   int    // 0 means no limit
}
