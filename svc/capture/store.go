package capture

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists capture sessions.
//
// Update is the only way to mutate a stored session: fn runs against a copy
// while the session is locked, and its changes are saved only if fn returns nil.
// This serializes every transition of one session.
type Store interface {
	// Insert saves a new session. When s has a client, every other live
	// session of that client is expired in the same atomic unit and their
	// ids returned. A link code already used by any session, live or
	// terminal, yields linkcode.ErrCodeTaken.
	Insert(ctx context.Context, s *Session, now time.Time) ([]uuid.UUID, error)

	GetByCode(ctx context.Context, code string) (*Session, error)
	Update(ctx context.Context, id uuid.UUID, fn func(*Session) error) (*Session, error)
	ListByOwner(ctx context.Context, f ListFilter) ([]*Session, error)

	// ExpireStale rewrites live sessions with expires_at <= now to expired.
	ExpireStale(ctx context.Context, now time.Time) (int, error)

	// ListUnreconciled returns completed sessions whose measurements have not
	// reached a client yet: unapplied ledgers and unpromoted guest sessions
	// that carry a name and contact. Guest sessions without details wait for
	// the designer and are not listed.
	ListUnreconciled(ctx context.Context, limit int) ([]*Session, error)

	CountIssuedSince(ctx context.Context, ownerID uuid.UUID, since time.Time) (int64, error)
}
