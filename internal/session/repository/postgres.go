package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samber/oops"

	"core-auth/internal/db"
	"core-auth/internal/session/domain"
)

const sessionColumns = `id, account_id, refresh_token_hash, created_at, expires_at, revoked_at, ip_address, user_agent`

const insertSession = `INSERT INTO sessions (id, account_id, refresh_token_hash, created_at, expires_at, ip_address, user_agent) VALUES ($1, $2, $3, $4, $5, $6, $7)`

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns a session repository that uses the given pool for persistence.
func NewPostgresRepository(pool db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: pool}
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	s, err := scanSession(r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").With("session_id", id).Wrap(err)
	}
	return s, nil
}

// GetByRefreshTokenHash returns the session whose stored hash equals hash, or nil if not found.
func (r *PostgresRepository) GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	s, err := scanSession(r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE refresh_token_hash = $1`, hash))
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_HASH_FAILED").Wrap(err)
	}
	return s, nil
}

// ListByAccount returns all sessions for the account, newest first. Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]*domain.Session, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, oops.Code("SESSION_LIST_FAILED").With("account_id", accountID).Wrap(err)
	}
	defer rows.Close()

	out := make([]*domain.Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, oops.Code("SESSION_SCAN_FAILED").With("account_id", accountID).Wrap(err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("SESSION_LIST_FAILED").With("account_id", accountID).Wrap(err)
	}
	return out, nil
}

// Create persists the session and returns the stored id. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) (string, error) {
	var id string
	err := r.db.QueryRow(ctx, insertSession+` RETURNING id`,
		s.ID, s.AccountID, s.RefreshTokenHash, s.CreatedAt, s.ExpiresAt, s.IPAddress, s.UserAgent,
	).Scan(&id)
	if err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").With("session_id", s.ID).Wrap(err)
	}
	return id, nil
}

// Revoke sets revoked_at on an active session.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, at)
	if err != nil {
		return false, oops.Code("SESSION_REVOKE_FAILED").With("session_id", id).Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}

// RevokeForAccount sets revoked_at on an active session owned by accountID.
func (r *PostgresRepository) RevokeForAccount(ctx context.Context, accountID, id string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE sessions SET revoked_at = $3 WHERE id = $1 AND account_id = $2 AND revoked_at IS NULL`,
		id, accountID, at)
	if err != nil {
		return false, oops.Code("SESSION_REVOKE_FAILED").With("session_id", id).With("account_id", accountID).Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}

// RevokeAllByAccount revokes all active sessions of the account, keeping exceptID when non-empty.
func (r *PostgresRepository) RevokeAllByAccount(ctx context.Context, accountID, exceptID string, at time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE sessions SET revoked_at = $3 WHERE account_id = $1 AND id <> $2 AND revoked_at IS NULL`,
		accountID, exceptID, at)
	if err != nil {
		return 0, oops.Code("SESSION_REVOKE_ALL_FAILED").With("account_id", accountID).Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteAllByAccount removes every session row of the account.
func (r *PostgresRepository) DeleteAllByAccount(ctx context.Context, accountID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_ALL_FAILED").With("account_id", accountID).Wrap(err)
	}
	return tag.RowsAffected(), nil
}

// Rotate deletes the old session and inserts next in one transaction. The delete
// matches on both id and hash, so of two concurrent rotations of the same session
// exactly one sees a deleted row; the other rolls back and returns false.
func (r *PostgresRepository) Rotate(ctx context.Context, oldID, oldHash string, next *domain.Session) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, oops.Code("SESSION_ROTATE_FAILED").With("session_id", oldID).Wrap(err)
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM sessions WHERE id = $1 AND refresh_token_hash = $2 AND revoked_at IS NULL`, oldID, oldHash)
	if err != nil {
		_ = tx.Rollback(ctx)
		return false, oops.Code("SESSION_ROTATE_FAILED").With("session_id", oldID).Wrap(err)
	}
	if tag.RowsAffected() != 1 {
		if err := tx.Rollback(ctx); err != nil {
			return false, oops.Code("SESSION_ROTATE_FAILED").With("session_id", oldID).Wrap(err)
		}
		return false, nil
	}

	if _, err := tx.Exec(ctx, insertSession,
		next.ID, next.AccountID, next.RefreshTokenHash, next.CreatedAt, next.ExpiresAt, next.IPAddress, next.UserAgent,
	); err != nil {
		_ = tx.Rollback(ctx)
		return false, oops.Code("SESSION_ROTATE_FAILED").With("session_id", oldID).With("next_session_id", next.ID).Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, oops.Code("SESSION_ROTATE_FAILED").With("session_id", oldID).Wrap(err)
	}
	return true, nil
}

// DeleteExpired removes sessions that expired before the given time.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, before)
	if err != nil {
		return 0, oops.Code("SESSION_PURGE_FAILED").Wrap(err)
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		s         domain.Session
		revokedAt pgtype.Timestamptz
	)
	if err := row.Scan(&s.ID, &s.AccountID, &s.RefreshTokenHash, &s.CreatedAt, &s.ExpiresAt,
		&revokedAt, &s.IPAddress, &s.UserAgent); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		s.RevokedAt = &t
	}
	return &s, nil
}
