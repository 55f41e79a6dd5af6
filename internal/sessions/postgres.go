package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PGStore keeps sessions in the workflow_sessions table.
type PGStore struct {
	DB  *sql.DB
	TTL time.Duration
}

// NewPGStore returns a store over db. A non-positive ttl falls back to DefaultTTL.
func NewPGStore(db *sql.DB, ttl time.Duration) *PGStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PGStore{DB: db, TTL: ttl}
}

func (s *PGStore) Get(ctx context.Context, id string) (Record, error) {
	const query = `
SELECT payload, revision
FROM workflow_sessions
WHERE id = $1 AND (expires_at IS NULL OR expires_at > now())`

	var rec Record
	err := s.DB.QueryRowContext(ctx, query, Key(id)).Scan(&rec.Payload, &rec.Revision)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("pg get session: %w", err)
	}
	return rec, nil
}

func (s *PGStore) Set(ctx context.Context, id string, rec Record) error {
	expiresAt := time.Now().UTC().Add(s.TTL)

	if rec.Revision == 0 {
		const upsert = `
INSERT INTO workflow_sessions (id, payload, revision, updated_at, expires_at)
VALUES ($1, $2, 0, now(), $3)
ON CONFLICT (id) DO UPDATE
SET payload = EXCLUDED.payload,
    revision = EXCLUDED.revision,
    updated_at = now(),
    expires_at = EXCLUDED.expires_at`
		if _, err := s.DB.ExecContext(ctx, upsert, Key(id), rec.Payload, expiresAt); err != nil {
			return fmt.Errorf("pg set session: %w", err)
		}
		return nil
	}

	const update = `
UPDATE workflow_sessions
SET payload = $2, revision = $3, updated_at = now(), expires_at = $4
WHERE id = $1 AND revision = $5`
	res, err := s.DB.ExecContext(ctx, update, Key(id), rec.Payload, rec.Revision, expiresAt, rec.Revision-1)
	if err != nil {
		return fmt.Errorf("pg set session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pg set session: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM workflow_sessions WHERE id = $1`
	if _, err := s.DB.ExecContext(ctx, query, Key(id)); err != nil {
		return fmt.Errorf("pg delete session: %w", err)
	}
	return nil
}

// Lock takes a session-level advisory lock on a dedicated connection. The
// lock lives as long as that connection, so ttl is not used.
func (s *PGStore) Lock(ctx context.Context, id string, _ time.Duration) (Unlock, error) {
	conn, err := s.DB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("pg lock session: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, lockKey(id)).Scan(&acquired); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("pg lock session: %w", err)
	}
	if !acquired {
		_ = conn.Close()
		return nil, ErrLocked
	}

	return func(ctx context.Context) error {
		defer conn.Close()
		if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, lockKey(id)); err != nil {
			return fmt.Errorf("pg unlock session: %w", err)
		}
		return nil
	}, nil
}

// PurgeExpired deletes sessions past their expiry and returns how many.
func (s *PGStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM workflow_sessions WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("pg purge sessions: %w", err)
	}
	return res.RowsAffected()
}

var _ Store = (*PGStore)(nil)
