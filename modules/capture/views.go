package capture

import (
	"time"

	"github.com/google/uuid"

	capturesvc "github.com/dmitrymomot/fitcapture/svc/capture"
)

type sessionView struct {
	ID              uuid.UUID          `json:"id"`
	LinkCode        string             `json:"link_code"`
	Status          capturesvc.Status  `json:"status"`
	ClientID        *uuid.UUID         `json:"client_id,omitempty"`
	Guest           bool               `json:"is_guest_flow"`
	SubjectName     string             `json:"subject_name"`
	GuestName       string             `json:"guest_name,omitempty"`
	GuestContact    string             `json:"guest_contact,omitempty"`
	Measurements    map[string]float64 `json:"measurements,omitempty"`
	Confidence      *float64           `json:"confidence,omitempty"`
	MeasuredAt      *time.Time         `json:"measured_at,omitempty"`
	FailureReason   string             `json:"failure_reason,omitempty"`
	IssuedAt        time.Time          `json:"issued_at"`
	ExpiresAt       time.Time          `json:"expires_at"`
	PromotedAt      *time.Time         `json:"promoted_at,omitempty"`
	LedgerAppliedAt *time.Time         `json:"ledger_applied_at,omitempty"`
}

func newSessionView(s *capturesvc.Session) sessionView {
	return sessionView{
		ID:              s.ID,
		LinkCode:        s.LinkCode,
		Status:          s.Status,
		ClientID:        s.ClientID,
		Guest:           s.Guest,
		SubjectName:     s.DisplayName(),
		GuestName:       s.GuestName,
		GuestContact:    s.GuestContact,
		Measurements:    s.Measurements,
		Confidence:      s.Confidence,
		MeasuredAt:      s.MeasuredAt,
		FailureReason:   s.FailureReason,
		IssuedAt:        s.IssuedAt,
		ExpiresAt:       s.ExpiresAt,
		PromotedAt:      s.PromotedAt,
		LedgerAppliedAt: s.LedgerAppliedAt,
	}
}

type issuedView struct {
	LinkCode    string      `json:"link_code"`
	ExpiresAt   time.Time   `json:"expires_at"`
	SubjectName string      `json:"subject_name"`
	Link        string      `json:"link"`
	QRCode      string      `json:"qr_code,omitempty"`
	Session     sessionView `json:"session"`
	Superseded  []uuid.UUID `json:"superseded,omitempty"`
}

func newIssuedView(i *capturesvc.Issued) issuedView {
	return issuedView{
		LinkCode:    i.Session.LinkCode,
		ExpiresAt:   i.Session.ExpiresAt,
		SubjectName: i.SubjectName,
		Link:        i.Link,
		QRCode:      i.QRCode,
		Session:     newSessionView(i.Session),
		Superseded:  i.Expired,
	}
}

type resolutionView struct {
	Status        string     `json:"status"`
	Message       string     `json:"message,omitempty"`
	SubjectName   string     `json:"subject_name,omitempty"`
	SubjectGender string     `json:"subject_gender,omitempty"`
	Guest         *bool      `json:"is_guest_flow,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func newResolutionView(r capturesvc.Resolution) resolutionView {
	v := resolutionView{
		Status:        r.Status,
		Message:       r.Message,
		SubjectName:   r.SubjectName,
		SubjectGender: r.SubjectGender,
		ExpiresAt:     r.ExpiresAt,
	}
	if r.Status == string(capturesvc.StatusPending) {
		guest := r.Guest
		v.Guest = &guest
	}
	return v
}

// outcomeView is returned to the unauthenticated capture device, so it
// carries no client identifiers.
type outcomeView struct {
	Status           capturesvc.Status  `json:"status"`
	Measurements     map[string]float64 `json:"measurements"`
	PromotionPending bool               `json:"promotion_pending,omitempty"`
}

func newOutcomeView(o *capturesvc.Outcome) outcomeView {
	return outcomeView{
		Status:           o.Status,
		Measurements:     o.Measurements,
		PromotionPending: o.PromotionErr != nil,
	}
}
