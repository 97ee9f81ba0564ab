package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/samber/oops"
)

// RefreshSecretBytes is the entropy of a refresh secret (256 bits).
const RefreshSecretBytes = 32

// GenerateRefreshSecret returns a new opaque refresh secret, hex-encoded.
func GenerateRefreshSecret() (string, error) {
	b := make([]byte, RefreshSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("REFRESH_SECRET_FAILED").Wrap(err)
	}
	return hex.EncodeToString(b), nil
}

// HashRefreshSecret returns the SHA-256 hash of the refresh secret, hex-encoded.
// Only this value is stored; lookups hash the presented secret and match exactly.
func HashRefreshSecret(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}
