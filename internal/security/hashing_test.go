package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewTestHasher()

	hash, err := h.Hash("secret123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	ok, err := h.Verify(hash, "secret123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasher_SaltedHashesDiffer(t *testing.T) {
	h := NewTestHasher()
	h1, err := h.Hash("samepassword")
	require.NoError(t, err)
	h2, err := h.Hash("samepassword")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestHasher_EmptyPasswordRoundTrip(t *testing.T) {
	h := NewTestHasher()
	hash, err := h.Hash("")
	require.NoError(t, err)

	ok, err := h.Verify(hash, "")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasher_VerifyMalformed(t *testing.T) {
	h := NewTestHasher()
	for name, hash := range map[string]string{
		"not a hash":      "not-a-valid-hash",
		"empty":           "",
		"wrong algorithm": "$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"bad version":     "$argon2id$vXX$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"bad params":      "$argon2id$v=19$m=x,t=1,p=4$c2FsdA$aGFzaA",
		"bad salt":        "$argon2id$v=19$m=65536,t=1,p=4$!!!$aGFzaA",
		"bad key":         "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$!!!",
		"zero threads":    "$argon2id$v=19$m=65536,t=1,p=0$c2FsdA$aGFzaA",
		"bcrypt garbage":  "$2b$10$short",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := h.Verify(hash, "password")
			assert.Error(t, err)
		})
	}
}

func TestHasher_VerifyLegacyBcrypt(t *testing.T) {
	h := NewTestHasher()
	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-pw"), bcrypt.MinCost)
	require.NoError(t, err)

	ok, err := h.Verify(string(legacy), "legacy-pw")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify(string(legacy), "other")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, h.NeedsRehash(string(legacy)))
}

func TestHasher_NeedsRehash(t *testing.T) {
	weak := NewHasher(HasherParams{Memory: 1024, Time: 1, Threads: 1})
	strong := NewHasher(HasherParams{Memory: 2048, Time: 2, Threads: 1})

	weakHash, err := weak.Hash("pw")
	require.NoError(t, err)
	strongHash, err := strong.Hash("pw")
	require.NoError(t, err)

	assert.True(t, strong.NeedsRehash(weakHash))
	assert.False(t, strong.NeedsRehash(strongHash))
	assert.False(t, weak.NeedsRehash(strongHash))
	assert.False(t, strong.NeedsRehash("garbage"))
}

func TestNewHasher_Defaults(t *testing.T) {
	h := NewHasher(HasherParams{})
	assert.Equal(t, DefaultHasherParams, h.Params())

	h = NewHasher(HasherParams{Memory: 4096})
	assert.Equal(t, uint32(4096), h.Params().Memory)
	assert.Equal(t, DefaultHasherParams.Time, h.Params().Time)
}
