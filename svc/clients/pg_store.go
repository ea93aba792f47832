package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/fitcapture/pkg/pg"
)

const originConstraint = "clients_origin_session_id_key"

// PGStore persists clients in PostgreSQL. Ledger applies lock the client row
// with SELECT ... FOR UPDATE so concurrent applies for one client serialize.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a client store backed by Postgres.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const clientColumns = `id, owner_id, name, gender, contact, origin_session_id,
	current_set, last_measured_at, created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, c *Client) error {
	if c == nil || c.ID == uuid.Nil {
		return ErrInvalidClient
	}
	current, err := encodeSet(c.Measurements.Current)
	if err != nil {
		return err
	}

	return pg.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO clients (`+clientColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			c.ID, c.OwnerID, c.Name, c.Gender, c.Contact, c.OriginSessionID,
			current, c.Measurements.LastMeasuredAt, c.CreatedAt, c.UpdatedAt,
		)
		switch {
		case pg.IsConstraintViolation(err, originConstraint):
			return ErrDuplicateOrigin
		case pg.IsDuplicateKeyError(err):
			return ErrDuplicateClient
		case err != nil:
			return fmt.Errorf("insert client: %w", err)
		}
		for i, h := range c.Measurements.History {
			if err := insertHistory(ctx, tx, c.ID, i+1, h, c.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (*Client, error) {
	c, err := scanClient(s.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := s.loadHistory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PGStore) FindByOrigin(ctx context.Context, sessionID uuid.UUID) (*Client, error) {
	c, err := scanClient(s.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE origin_session_id = $1`, sessionID))
	if err != nil {
		return nil, err
	}
	if err := s.loadHistory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListByOwner returns clients without their history; callers needing the full
// ledger fetch a single client with Get.
func (s *PGStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Client, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE owner_id = $1 ORDER BY created_at, name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var out []*Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PGStore) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM clients WHERE owner_id = $1`, ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count clients: %w", err)
	}
	return n, nil
}

func (s *PGStore) Apply(ctx context.Context, clientID uuid.UUID, set MeasurementSet, now time.Time) (bool, error) {
	next, err := encodeSet(&set)
	if err != nil {
		return false, err
	}

	applied := false
	err = pg.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var raw []byte
		err := tx.QueryRow(ctx, `SELECT current_set FROM clients WHERE id = $1 FOR UPDATE`, clientID).Scan(&raw)
		if pg.IsNotFoundError(err) {
			return ErrClientNotFound
		}
		if err != nil {
			return fmt.Errorf("lock client: %w", err)
		}
		current, err := decodeSet(raw)
		if err != nil {
			return err
		}

		if set.SourceID != "" {
			if current != nil && current.SourceID == set.SourceID {
				return nil
			}
			var seen bool
			if err := tx.QueryRow(ctx, `
				SELECT EXISTS (SELECT 1 FROM client_measurement_history WHERE client_id = $1 AND source_id = $2)`,
				clientID, set.SourceID,
			).Scan(&seen); err != nil {
				return fmt.Errorf("check history: %w", err)
			}
			if seen {
				return nil
			}
		}

		if current != nil && len(current.Values) > 0 {
			var seq int
			if err := tx.QueryRow(ctx,
				`SELECT COALESCE(MAX(seq), 0) + 1 FROM client_measurement_history WHERE client_id = $1`,
				clientID,
			).Scan(&seq); err != nil {
				return fmt.Errorf("next history seq: %w", err)
			}
			if err := insertHistory(ctx, tx, clientID, seq, *current, now); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `
			UPDATE clients SET current_set = $2, last_measured_at = $3, updated_at = $4 WHERE id = $1`,
			clientID, next, set.MeasuredAt, now,
		); err != nil {
			return fmt.Errorf("update current set: %w", err)
		}
		applied = true
		return nil
	})
	return applied, err
}

func (s *PGStore) loadHistory(ctx context.Context, c *Client) error {
	rows, err := s.pool.Query(ctx, `
		SELECT measurement_values, provenance, confidence, measured_at, source_id
		FROM client_measurement_history WHERE client_id = $1 ORDER BY seq`, c.ID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	c.Measurements.History = []MeasurementSet{}
	for rows.Next() {
		var (
			h   MeasurementSet
			raw []byte
			src *string
		)
		if err := rows.Scan(&raw, &h.Provenance, &h.Confidence, &h.MeasuredAt, &src); err != nil {
			return fmt.Errorf("scan history: %w", err)
		}
		if err := json.Unmarshal(raw, &h.Values); err != nil {
			return fmt.Errorf("decode history values: %w", err)
		}
		if src != nil {
			h.SourceID = *src
		}
		c.Measurements.History = append(c.Measurements.History, h)
	}
	return rows.Err()
}

func insertHistory(ctx context.Context, tx pgx.Tx, clientID uuid.UUID, seq int, h MeasurementSet, archivedAt time.Time) error {
	values, err := json.Marshal(h.Values)
	if err != nil {
		return fmt.Errorf("encode history values: %w", err)
	}
	var src *string
	if h.SourceID != "" {
		src = &h.SourceID
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO client_measurement_history
			(client_id, seq, measurement_values, provenance, confidence, measured_at, source_id, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		clientID, seq, values, string(h.Provenance), h.Confidence, h.MeasuredAt, src, archivedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func scanClient(row pgx.Row) (*Client, error) {
	var (
		c       Client
		current []byte
	)
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Gender, &c.Contact, &c.OriginSessionID,
		&current, &c.Measurements.LastMeasuredAt, &c.CreatedAt, &c.UpdatedAt)
	if pg.IsNotFoundError(err) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan client: %w", err)
	}
	if c.Measurements.Current, err = decodeSet(current); err != nil {
		return nil, err
	}
	return &c, nil
}

func encodeSet(set *MeasurementSet) ([]byte, error) {
	if set == nil {
		return nil, nil
	}
	raw, err := json.Marshal(set)
	if err != nil {
		return nil, errors.Join(ErrInvalidMeasurementSet, err)
	}
	return raw, nil
}

func decodeSet(raw []byte) (*MeasurementSet, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var set MeasurementSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("decode measurement set: %w", err)
	}
	return &set, nil
}
