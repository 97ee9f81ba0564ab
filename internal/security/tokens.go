package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"

	accountdomain "core-auth/internal/account/domain"
	"core-auth/internal/autherr"
	sessiondomain "core-auth/internal/session/domain"
)

// ErrEmptySecret is returned by NewTokenIssuer when no signing secret is configured.
var ErrEmptySecret = errors.New("security: token signing secret is empty")

// AccessClaims holds JWT claims for the access token. Issuer carries the name
// of the service the token was minted for.
type AccessClaims struct {
	jwt.RegisteredClaims
	AccountID string `json:"account_id"`
	SessionID string `json:"session_id"`
}

// TokenIssuer issues and verifies HS256 access tokens bound to a session.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
	now    func() time.Time
}

// NewTokenIssuer returns a TokenIssuer signing with secret. Access tokens live for ttl.
func NewTokenIssuer(secret []byte, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return &TokenIssuer{
		secret: secret,
		ttl:    ttl,
		// Expiry is checked by hand after the signature so that a forged token
		// is always reported as invalid, never as expired.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
		now: time.Now,
	}, nil
}

// TTL returns the access token lifetime.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// IssueAccess signs an access token for the session. expiresAt is truncated to
// whole seconds and equals the exp claim.
func (i *TokenIssuer) IssueAccess(accountID, sessionID, service string) (token string, expiresAt time.Time, err error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, oops.Code("TOKEN_JTI_FAILED").Wrap(err)
	}
	now := i.now().UTC()
	exp := jwt.NewNumericDate(now.Add(i.ttl))
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    service,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
		},
		AccountID: accountID,
		SessionID: sessionID,
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return token, exp.Time, nil
}

// VerifyAccess checks the signature and expiry of token and returns the account
// and session it is bound to. A token is still valid at exactly its exp second.
func (i *TokenIssuer) VerifyAccess(token string) (accountID, sessionID string, err error) {
	claims := &AccessClaims{}
	if _, err := i.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	}); err != nil {
		return "", "", autherr.ErrInvalidAccessToken
	}
	if claims.ExpiresAt == nil || claims.AccountID == "" || claims.SessionID == "" {
		return "", "", autherr.ErrInvalidAccessToken
	}
	if err := accountdomain.ValidateID(claims.AccountID); err != nil {
		return "", "", err
	}
	if err := sessiondomain.ValidateID(claims.SessionID); err != nil {
		return "", "", err
	}
	if i.now().After(claims.ExpiresAt.Time) {
		return "", "", autherr.ErrExpiredAccessToken
	}
	return claims.AccountID, claims.SessionID, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
