package repository

import (
	"context"
	"time"

	"core-auth/internal/session/domain"
)

// Repository defines persistence for sessions. Lookups return (nil, nil) when no
// row matches; errors are reserved for storage failures.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error)
	// ListByAccount returns every session of the account, newest first.
	ListByAccount(ctx context.Context, accountID string) ([]*domain.Session, error)
	// Create inserts s and returns the id the store recorded.
	Create(ctx context.Context, s *domain.Session) (string, error)
	// Revoke marks the session revoked. Returns false when it was absent or already revoked.
	Revoke(ctx context.Context, id string, at time.Time) (bool, error)
	// RevokeForAccount is Revoke restricted to sessions owned by accountID.
	RevokeForAccount(ctx context.Context, accountID, id string, at time.Time) (bool, error)
	// RevokeAllByAccount revokes every active session of the account except exceptID (may be empty).
	RevokeAllByAccount(ctx context.Context, accountID, exceptID string, at time.Time) (int64, error)
	DeleteAllByAccount(ctx context.Context, accountID string) (int64, error)
	// Rotate atomically consumes the active session (oldID, oldHash) and inserts next.
	// Returns false, and inserts nothing, when that session no longer exists.
	Rotate(ctx context.Context, oldID, oldHash string, next *domain.Session) (bool, error)
	// DeleteExpired removes sessions whose refresh window closed before the given time.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
