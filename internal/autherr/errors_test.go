package autherr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientError_IsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("login: %w", Client(KindInvalidCredentials))

	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.NotErrorIs(t, err, ErrAccountLocked)
	assert.Equal(t, KindInvalidCredentials, KindOf(err))
	assert.True(t, IsClient(err))
	assert.False(t, IsServer(err))
}

func TestServer_Classification(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, Server("op", nil))
	})

	t.Run("client passes through", func(t *testing.T) {
		err := Server("op", ErrSessionNotFound)
		assert.ErrorIs(t, err, ErrSessionNotFound)
		assert.False(t, IsServer(err))
	})

	t.Run("server passes through", func(t *testing.T) {
		inner := &ServerError{Op: "inner", Err: errors.New("boom")}
		err := Server("outer", inner)
		assert.Same(t, inner, err)
	})

	t.Run("other errors become server errors", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Server("session.create", cause)

		var se *ServerError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "session.create", se.Op)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "internal error", se.Public())
		assert.Contains(t, se.Error(), "connection refused")
		assert.Equal(t, Kind(0), KindOf(err))
	})
}

func TestKind_Groups(t *testing.T) {
	tests := []struct {
		kind    Kind
		auth    bool
		refresh bool
		account bool
		session bool
	}{
		{KindInvalidCredentials, true, false, false, false},
		{KindAccountLocked, false, false, true, false},
		{KindAccountNotFound, false, false, true, false},
		{KindAccountAlreadyExists, false, false, true, false},
		{KindInvalidRefreshToken, false, true, false, false},
		{KindExpiredRefreshToken, false, true, false, false},
		{KindInvalidAccessToken, true, false, false, false},
		{KindExpiredAccessToken, true, false, false, false},
		{KindInvalidSessionID, false, false, false, true},
		{KindInvalidAccountID, false, false, true, false},
		{KindAuthenticationRequired, true, false, false, false},
		{KindSessionNotFound, false, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.auth, tt.kind.IsAuthentication())
			assert.Equal(t, tt.refresh, tt.kind.IsRefreshToken())
			assert.Equal(t, tt.account, tt.kind.IsAccount())
			assert.Equal(t, tt.session, tt.kind.IsSession())
		})
	}
}

func TestKind_StringUnknown(t *testing.T) {
	assert.Equal(t, "kind(99)", Kind(99).String())
}
