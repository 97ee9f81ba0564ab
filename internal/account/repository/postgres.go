package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"core-auth/internal/account/domain"
	"core-auth/internal/db"
)

const accountColumns = `id, username, password_hash, created_at, updated_at`

type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns an account repository that uses the given pool for persistence.
func NewPostgresRepository(pool db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: pool}
}

// GetByID returns the account for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").With("account_id", id).Wrap(err)
	}
	return a, nil
}

// GetByUsername returns the account with the exact (case-sensitive) username, or nil if not found.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username))
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_USERNAME_FAILED").Wrap(err)
	}
	return a, nil
}

// Create persists the account and returns the stored id. The account must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Account) (string, error) {
	var id string
	err := r.db.QueryRow(ctx,
		`INSERT INTO accounts (id, username, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		a.ID, a.Username, a.PasswordHash, a.CreatedAt, a.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrUsernameTaken
		}
		return "", oops.Code("ACCOUNT_CREATE_FAILED").With("account_id", a.ID).Wrap(err)
	}
	return id, nil
}

// UpdateUsername renames the account. Returns false when no account has id.
func (r *PostgresRepository) UpdateUsername(ctx context.Context, id, username string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET username = $2, updated_at = $3 WHERE id = $1`, id, username, at)
	if err != nil {
		if isUniqueViolation(err) {
			return false, ErrUsernameTaken
		}
		return false, oops.Code("ACCOUNT_UPDATE_USERNAME_FAILED").With("account_id", id).Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdatePasswordHash replaces the stored hash. Returns false when no account has id.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, hash, at)
	if err != nil {
		return false, oops.Code("ACCOUNT_UPDATE_PASSWORD_FAILED").With("account_id", id).Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes the account. Returns false when no account has id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return false, oops.Code("ACCOUNT_DELETE_FAILED").With("account_id", id).Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	if err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
