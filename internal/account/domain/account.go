package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"core-auth/internal/autherr"
)

// IDPrefix marks account identifiers so they cannot be confused with session ids.
const IDPrefix = "acc_"

// Account is a registered login identity.
type Account struct {
	ID           string
	Username     string // unique, case-sensitive
	PasswordHash string // PHC-encoded; never exposed to callers
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate validates the account for persistence. Returns an error describing the first validation failure.
func (a *Account) Validate() error {
	if err := ValidateID(a.ID); err != nil {
		return err
	}
	if a.Username == "" {
		return errors.New("username is required")
	}
	if a.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	return nil
}

// NewID returns a fresh account identifier.
func NewID() string {
	return IDPrefix + uuid.NewString()
}

// ValidateID returns autherr.ErrInvalidAccountID unless id is IDPrefix followed by a UUID.
func ValidateID(id string) error {
	rest, ok := strings.CutPrefix(id, IDPrefix)
	if !ok {
		return autherr.ErrInvalidAccountID
	}
	if _, err := uuid.Parse(rest); err != nil {
		return autherr.ErrInvalidAccountID
	}
	return nil
}
