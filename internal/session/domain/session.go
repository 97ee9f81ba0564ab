package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"core-auth/internal/autherr"
)

// IDPrefix marks session identifiers.
const IDPrefix = "ses_"

// Session is one login of an account. The raw refresh secret is never stored,
// only its SHA-256 hash.
type Session struct {
	ID               string
	AccountID        string
	RefreshTokenHash string
	CreatedAt        time.Time
	ExpiresAt        time.Time
	RevokedAt        *time.Time // nil while active
	IPAddress        string
	UserAgent        string
}

// State is the lifecycle state of a session at a given instant.
type State int

const (
	StateActive State = iota + 1
	StateExpired
	StateRevoked
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateExpired:
		return "expired"
	case StateRevoked:
		return "revoked"
	}
	return "unknown"
}

// IsRevoked reports whether the session was explicitly revoked.
func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}

// IsExpiredAt reports whether the refresh window closed before now. A session is
// still usable at exactly ExpiresAt.
func (s *Session) IsExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// StateAt returns the session state at now. Revocation wins over expiry.
func (s *Session) StateAt(now time.Time) State {
	if s.IsRevoked() {
		return StateRevoked
	}
	if s.IsExpiredAt(now) {
		return StateExpired
	}
	return StateActive
}

// ClientInfo is the request metadata recorded on a session.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

type clientInfoKey struct{}

// WithClientInfo returns a context carrying the caller's request metadata.
func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientInfoKey{}, info)
}

// ClientInfoFrom returns the request metadata stored by WithClientInfo, or the zero value.
func ClientInfoFrom(ctx context.Context) ClientInfo {
	info, _ := ctx.Value(clientInfoKey{}).(ClientInfo)
	return info
}

// NewID returns a fresh session identifier.
func NewID() string {
	return IDPrefix + uuid.NewString()
}

// ValidateID returns autherr.ErrInvalidSessionID unless id is IDPrefix followed by a UUID.
func ValidateID(id string) error {
	rest, ok := strings.CutPrefix(id, IDPrefix)
	if !ok {
		return autherr.ErrInvalidSessionID
	}
	if _, err := uuid.Parse(rest); err != nil {
		return autherr.ErrInvalidSessionID
	}
	return nil
}
