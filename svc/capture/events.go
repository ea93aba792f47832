package capture

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventSessionIssued    = "session.issued"
	EventSessionCompleted = "session.completed"
	EventSessionFailed    = "session.failed"
	EventClientPromoted   = "client.promoted"
)

// Event is the payload published on lifecycle changes.
type Event struct {
	SessionID uuid.UUID  `json:"session_id"`
	OwnerID   uuid.UUID  `json:"owner_id"`
	ClientID  *uuid.UUID `json:"client_id,omitempty"`
	Status    Status     `json:"status"`
	At        time.Time  `json:"at"`
}

func eventOf(s *Session, at time.Time) Event {
	return Event{
		SessionID: s.ID,
		OwnerID:   s.OwnerID,
		ClientID:  clonePtr(s.ClientID),
		Status:    s.Status,
		At:        at,
	}
}

// Publisher delivers lifecycle events. Delivery is fire-and-forget.
// Satisfied by redis.Publisher.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) error { return nil }
