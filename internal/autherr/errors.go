// Package autherr defines the two-tier error taxonomy returned by the auth core.
// A *ClientError carries a Kind the caller may act on and that is safe to expose.
// A *ServerError wraps an infrastructure failure whose detail is logged but never exposed.
package autherr

import (
	"errors"
	"fmt"
)

// Kind identifies a caller-facing failure.
type Kind int

const (
	KindInvalidCredentials Kind = iota + 1
	KindAccountLocked
	KindAccountNotFound
	KindAccountAlreadyExists
	KindInvalidRefreshToken
	KindExpiredRefreshToken
	KindInvalidAccessToken
	KindExpiredAccessToken
	KindInvalidSessionID
	KindInvalidAccountID
	KindAuthenticationRequired
	KindSessionNotFound
)

var kindNames = map[Kind]string{
	KindInvalidCredentials:     "invalid credentials",
	KindAccountLocked:          "account locked",
	KindAccountNotFound:        "account not found",
	KindAccountAlreadyExists:   "account already exists",
	KindInvalidRefreshToken:    "invalid refresh token",
	KindExpiredRefreshToken:    "expired refresh token",
	KindInvalidAccessToken:     "invalid access token",
	KindExpiredAccessToken:     "expired access token",
	KindInvalidSessionID:       "invalid session id",
	KindInvalidAccountID:       "invalid account id",
	KindAuthenticationRequired: "authentication required",
	KindSessionNotFound:        "session not found",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsAuthentication reports whether k concerns presented credentials or tokens.
func (k Kind) IsAuthentication() bool {
	switch k {
	case KindInvalidCredentials, KindInvalidAccessToken, KindExpiredAccessToken, KindAuthenticationRequired:
		return true
	}
	return false
}

// IsRefreshToken reports whether k concerns a refresh credential.
func (k Kind) IsRefreshToken() bool {
	return k == KindInvalidRefreshToken || k == KindExpiredRefreshToken
}

// IsAccount reports whether k concerns the account itself.
func (k Kind) IsAccount() bool {
	switch k {
	case KindAccountLocked, KindAccountNotFound, KindAccountAlreadyExists, KindInvalidAccountID:
		return true
	}
	return false
}

// IsSession reports whether k concerns a session record.
func (k Kind) IsSession() bool {
	return k == KindSessionNotFound || k == KindInvalidSessionID
}

// ClientError is a business-rule failure. Two ClientErrors match under errors.Is
// when their kinds are equal.
type ClientError struct {
	Kind Kind
}

func (e *ClientError) Error() string {
	return e.Kind.String()
}

// Is matches any *ClientError of the same kind.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	return ok && t.Kind == e.Kind
}

// Client returns a ClientError of the given kind.
func Client(kind Kind) *ClientError {
	return &ClientError{Kind: kind}
}

var (
	ErrInvalidCredentials     = Client(KindInvalidCredentials)
	ErrAccountLocked          = Client(KindAccountLocked)
	ErrAccountNotFound        = Client(KindAccountNotFound)
	ErrAccountAlreadyExists   = Client(KindAccountAlreadyExists)
	ErrInvalidRefreshToken    = Client(KindInvalidRefreshToken)
	ErrExpiredRefreshToken    = Client(KindExpiredRefreshToken)
	ErrInvalidAccessToken     = Client(KindInvalidAccessToken)
	ErrExpiredAccessToken     = Client(KindExpiredAccessToken)
	ErrInvalidSessionID       = Client(KindInvalidSessionID)
	ErrInvalidAccountID       = Client(KindInvalidAccountID)
	ErrAuthenticationRequired = Client(KindAuthenticationRequired)
	ErrSessionNotFound        = Client(KindSessionNotFound)
)

// PublicServerMessage is the only text a caller ever sees for a ServerError.
const PublicServerMessage = "internal error"

// ServerError wraps an infrastructure failure. Error returns the full detail for
// logs; Public returns the opaque message for callers.
type ServerError struct {
	Op  string
	Err error
}

func (e *ServerError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + PublicServerMessage
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}

// Public returns the caller-facing message.
func (e *ServerError) Public() string {
	return PublicServerMessage
}

// Server classifies err at the boundary of operation op. Nil stays nil, errors
// already carrying a ClientError or ServerError pass through unchanged and
// anything else is wrapped as a ServerError.
func Server(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ClientError
	if errors.As(err, &ce) {
		return err
	}
	var se *ServerError
	if errors.As(err, &se) {
		return err
	}
	return &ServerError{Op: op, Err: err}
}

// IsClient reports whether err carries a ClientError.
func IsClient(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// IsServer reports whether err carries a ServerError.
func IsServer(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}

// KindOf returns the client kind carried by err, or 0 when err is not a ClientError.
func KindOf(err error) Kind {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}
