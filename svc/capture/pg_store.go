package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/fitcapture/pkg/linkcode"
	"github.com/dmitrymomot/fitcapture/pkg/pg"
)

const (
	linkCodeConstraint   = "capture_sessions_link_code_key"
	liveClientConstraint = "capture_sessions_live_client_idx"
)

// PGStore persists sessions in PostgreSQL.
// Insert serializes issuance per client with a transaction-scoped advisory
// lock; Update locks the session row with SELECT ... FOR UPDATE.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a session store backed by the capture_sessions table.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const sessionColumns = `id, owner_id, client_id, guest, subject_name, subject_gender,
	guest_name, guest_contact, guest_gender, link_code, status, measurements, confidence,
	measured_at, failure_reason, issued_at, expires_at, ledger_applied_at, promoted_at, updated_at`

func (s *PGStore) Insert(ctx context.Context, sess *Session, now time.Time) ([]uuid.UUID, error) {
	if sess == nil || sess.ID == uuid.Nil || sess.LinkCode == "" {
		return nil, ErrInvalidIssueRequest
	}

	var expired []uuid.UUID
	err := pg.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if sess.ClientID != nil {
			if err := pg.AdvisoryXactLock(ctx, tx, "capture_client:"+sess.ClientID.String()); err != nil {
				return fmt.Errorf("lock client sessions: %w", err)
			}
			rows, err := tx.Query(ctx, `
				UPDATE capture_sessions SET status = $2, updated_at = $3
				WHERE client_id = $1 AND status IN ('pending', 'processing')
				RETURNING id`,
				*sess.ClientID, string(StatusExpired), now,
			)
			if err != nil {
				return fmt.Errorf("expire live sessions: %w", err)
			}
			expired, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
			if err != nil {
				return fmt.Errorf("expire live sessions: %w", err)
			}
		}

		measurements, err := encodeMeasurements(sess.Measurements)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO capture_sessions (`+sessionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
			sess.ID, sess.OwnerID, sess.ClientID, sess.Guest, sess.SubjectName, sess.SubjectGender,
			sess.GuestName, sess.GuestContact, sess.GuestGender, sess.LinkCode, string(sess.Status), measurements,
			sess.Confidence, sess.MeasuredAt, sess.FailureReason, sess.IssuedAt, sess.ExpiresAt,
			sess.LedgerAppliedAt, sess.PromotedAt, sess.UpdatedAt,
		)
		switch {
		case pg.IsConstraintViolation(err, linkCodeConstraint):
			return linkcode.ErrCodeTaken
		case pg.IsConstraintViolation(err, liveClientConstraint):
			// Unreachable while the advisory lock holds; kept as a hard stop.
			return &StateError{Status: StatusPending, Event: "issue"}
		case err != nil:
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

func (s *PGStore) GetByCode(ctx context.Context, code string) (*Session, error) {
	return scanSession(s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM capture_sessions WHERE link_code = $1`, code))
}

func (s *PGStore) Update(ctx context.Context, id uuid.UUID, fn func(*Session) error) (*Session, error) {
	var out *Session
	err := pg.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		sess, err := scanSession(tx.QueryRow(ctx,
			`SELECT `+sessionColumns+` FROM capture_sessions WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := fn(sess); err != nil {
			return err
		}
		measurements, err := encodeMeasurements(sess.Measurements)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE capture_sessions SET
				client_id = $2, guest_name = $3, guest_contact = $4, guest_gender = $5,
				status = $6, measurements = $7, confidence = $8, measured_at = $9,
				failure_reason = $10, ledger_applied_at = $11, promoted_at = $12, updated_at = $13
			WHERE id = $1`,
			id, sess.ClientID, sess.GuestName, sess.GuestContact, sess.GuestGender,
			string(sess.Status), measurements, sess.Confidence, sess.MeasuredAt,
			sess.FailureReason, sess.LedgerAppliedAt, sess.PromotedAt, sess.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		out = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PGStore) ListByOwner(ctx context.Context, f ListFilter) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM capture_sessions WHERE owner_id = $1`
	args := []any{f.OwnerID}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	query += ` ORDER BY issued_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	return s.query(ctx, query, args...)
}

func (s *PGStore) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE capture_sessions SET status = $1, updated_at = $2
		WHERE status IN ('pending', 'processing') AND expires_at <= $2`,
		string(StatusExpired), now,
	)
	if err != nil {
		return 0, fmt.Errorf("expire stale sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PGStore) ListUnreconciled(ctx context.Context, limit int) ([]*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM capture_sessions
		WHERE status = 'completed' AND (
			(client_id IS NOT NULL AND ledger_applied_at IS NULL) OR
			(guest AND client_id IS NULL AND guest_name <> '' AND guest_contact <> '')
		)
		ORDER BY updated_at`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

func (s *PGStore) CountIssuedSince(ctx context.Context, ownerID uuid.UUID, since time.Time) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM capture_sessions WHERE owner_id = $1 AND issued_at >= $2`,
		ownerID, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count issued sessions: %w", err)
	}
	return n, nil
}

func (s *PGStore) query(ctx context.Context, query string, args ...any) ([]*Session, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func scanSession(row pgx.Row) (*Session, error) {
	var (
		s            Session
		status       string
		measurements []byte
	)
	err := row.Scan(&s.ID, &s.OwnerID, &s.ClientID, &s.Guest, &s.SubjectName, &s.SubjectGender,
		&s.GuestName, &s.GuestContact, &s.GuestGender, &s.LinkCode, &status, &measurements,
		&s.Confidence, &s.MeasuredAt, &s.FailureReason, &s.IssuedAt, &s.ExpiresAt,
		&s.LedgerAppliedAt, &s.PromotedAt, &s.UpdatedAt)
	if pg.IsNotFoundError(err) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	s.Status = Status(status)
	if len(measurements) > 0 {
		if err := json.Unmarshal(measurements, &s.Measurements); err != nil {
			return nil, fmt.Errorf("decode measurements: %w", err)
		}
	}
	return &s, nil
}

func encodeMeasurements(m map[string]float64) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode measurements: %w", err)
	}
	return raw, nil
}
