package repository

import (
	"context"
	"errors"
	"time"

	"core-auth/internal/account/domain"
)

// ErrUsernameTaken is returned by Create and UpdateUsername when the username
// already belongs to another account.
var ErrUsernameTaken = errors.New("account: username already taken")

// Repository defines persistence for accounts. Lookups return (nil, nil) when
// no row matches; errors are reserved for storage failures.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
	// Create inserts a and returns the id the store recorded.
	Create(ctx context.Context, a *domain.Account) (string, error)
	UpdateUsername(ctx context.Context, id, username string, at time.Time) (bool, error)
	UpdatePasswordHash(ctx context.Context, id, hash string, at time.Time) (bool, error)
	// Delete removes the account. It fails while sessions still reference it.
	Delete(ctx context.Context, id string) (bool, error)
}
