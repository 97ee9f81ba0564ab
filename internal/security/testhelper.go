package security

import "time"

// Test-only signing secret. Do not use in production.
const testSecret = "test-secret-0123456789abcdef0123456789abcdef"

// NewTestTokenIssuer returns a TokenIssuer with a fixed secret and a 15 minute TTL.
// For unit tests only. Callers must not use in production.
func NewTestTokenIssuer() *TokenIssuer {
	i, err := NewTokenIssuer([]byte(testSecret), 15*time.Minute)
	if err != nil {
		panic(err)
	}
	return i
}

// NewTestHasher returns a Hasher with minimal argon2id cost so tests stay fast.
// For unit tests only. Callers must not use in production.
func NewTestHasher() *Hasher {
	return NewHasher(HasherParams{Memory: 1024, Time: 1, Threads: 1})
}

// SetClock replaces the issuer's time source. For tests only.
func (i *TokenIssuer) SetClock(now func() time.Time) {
	i.now = now
}
