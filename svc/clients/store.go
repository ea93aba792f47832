package clients

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists clients and their measurement ledgers.
type Store interface {
	// Create inserts c. Returns ErrDuplicateOrigin when another client was
	// already promoted from the same session.
	Create(ctx context.Context, c *Client) error
	Get(ctx context.Context, id uuid.UUID) (*Client, error)
	FindByOrigin(ctx context.Context, sessionID uuid.UUID) (*Client, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Client, error)
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)

	// Apply pushes set onto the client's ledger atomically with respect to
	// other applies for the same client. It returns false without changes
	// when a set with the same non-empty SourceID was already applied.
	Apply(ctx context.Context, clientID uuid.UUID, set MeasurementSet, now time.Time) (bool, error)
}
