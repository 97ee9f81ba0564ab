package security

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accountdomain "core-auth/internal/account/domain"
	"core-auth/internal/autherr"
	sessiondomain "core-auth/internal/session/domain"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTokenIssuer_IssueAndVerify(t *testing.T) {
	i := NewTestTokenIssuer()
	accountID, sessionID := accountdomain.NewID(), sessiondomain.NewID()

	token, exp, err := i.IssueAccess(accountID, sessionID, "core-auth")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.True(t, exp.After(time.Now()))
	assert.Equal(t, 0, exp.Nanosecond(), "exp is whole seconds")

	gotAccount, gotSession, err := i.VerifyAccess(token)
	require.NoError(t, err)
	assert.Equal(t, accountID, gotAccount)
	assert.Equal(t, sessionID, gotSession)
}

func TestTokenIssuer_ClaimsCarryIssuerAndExpiry(t *testing.T) {
	i := NewTestTokenIssuer()
	token, exp, err := i.IssueAccess(accountdomain.NewID(), sessiondomain.NewID(), "billing")
	require.NoError(t, err)

	claims := &AccessClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	assert.Equal(t, "billing", claims.Issuer)
	assert.True(t, claims.ExpiresAt.Time.Equal(exp))
	assert.NotEmpty(t, claims.ID)
}

func TestTokenIssuer_ExpiryBoundary(t *testing.T) {
	i := NewTestTokenIssuer()
	issuedAt := time.Date(2026, 1, 2, 3, 4, 5, 600, time.UTC)
	i.SetClock(fixedClock(issuedAt))

	token, exp, err := i.IssueAccess(accountdomain.NewID(), sessiondomain.NewID(), "core-auth")
	require.NoError(t, err)

	i.SetClock(fixedClock(exp))
	_, _, err = i.VerifyAccess(token)
	assert.NoError(t, err, "valid at exactly exp")

	i.SetClock(fixedClock(exp.Add(time.Second)))
	_, _, err = i.VerifyAccess(token)
	assert.ErrorIs(t, err, autherr.ErrExpiredAccessToken)
}

func TestTokenIssuer_ForgedSignature(t *testing.T) {
	i := NewTestTokenIssuer()
	other, err := NewTokenIssuer([]byte("another-secret-another-secret-xx"), time.Hour)
	require.NoError(t, err)

	forged, _, err := other.IssueAccess(accountdomain.NewID(), sessiondomain.NewID(), "core-auth")
	require.NoError(t, err)

	_, _, err = i.VerifyAccess(forged)
	assert.ErrorIs(t, err, autherr.ErrInvalidAccessToken)
}

func TestTokenIssuer_ForgedAndExpiredIsInvalid(t *testing.T) {
	i := NewTestTokenIssuer()
	other, err := NewTokenIssuer([]byte("another-secret-another-secret-xx"), time.Minute)
	require.NoError(t, err)
	other.SetClock(fixedClock(time.Now().Add(-time.Hour)))

	forged, _, err := other.IssueAccess(accountdomain.NewID(), sessiondomain.NewID(), "core-auth")
	require.NoError(t, err)

	_, _, err = i.VerifyAccess(forged)
	assert.ErrorIs(t, err, autherr.ErrInvalidAccessToken)
}

func TestTokenIssuer_TamperedPayload(t *testing.T) {
	i := NewTestTokenIssuer()
	token, _, err := i.IssueAccess(accountdomain.NewID(), sessiondomain.NewID(), "core-auth")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	victim, _, err := i.IssueAccess(accountdomain.NewID(), sessiondomain.NewID(), "core-auth")
	require.NoError(t, err)
	parts[1] = strings.Split(victim, ".")[1]

	_, _, err = i.VerifyAccess(strings.Join(parts, "."))
	assert.ErrorIs(t, err, autherr.ErrInvalidAccessToken)
}

func TestTokenIssuer_RejectsOtherAlgorithms(t *testing.T) {
	i := NewTestTokenIssuer()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		AccountID:        accountdomain.NewID(),
		SessionID:        sessiondomain.NewID(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, _, err = i.VerifyAccess(token)
	assert.ErrorIs(t, err, autherr.ErrInvalidAccessToken)
}

func TestTokenIssuer_MalformedClaims(t *testing.T) {
	i := NewTestTokenIssuer()
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	sign := func(c AccessClaims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(testSecret))
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name   string
		claims AccessClaims
		want   error
	}{
		{
			name:   "missing exp",
			claims: AccessClaims{AccountID: accountdomain.NewID(), SessionID: sessiondomain.NewID()},
			want:   autherr.ErrInvalidAccessToken,
		},
		{
			name:   "missing account",
			claims: AccessClaims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}, SessionID: sessiondomain.NewID()},
			want:   autherr.ErrInvalidAccessToken,
		},
		{
			name:   "malformed account",
			claims: AccessClaims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}, AccountID: "user-1", SessionID: sessiondomain.NewID()},
			want:   autherr.ErrInvalidAccountID,
		},
		{
			name:   "malformed session",
			claims: AccessClaims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}, AccountID: accountdomain.NewID(), SessionID: "s1"},
			want:   autherr.ErrInvalidSessionID,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := i.VerifyAccess(sign(tt.claims))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTokenIssuer_Garbage(t *testing.T) {
	i := NewTestTokenIssuer()
	for _, token := range []string{"", "invalid-token", "a.b.c"} {
		_, _, err := i.VerifyAccess(token)
		assert.ErrorIs(t, err, autherr.ErrInvalidAccessToken, "token %q", token)
	}
}

func TestNewTokenIssuer_EmptySecret(t *testing.T) {
	_, err := NewTokenIssuer(nil, time.Minute)
	assert.ErrorIs(t, err, ErrEmptySecret)
}
