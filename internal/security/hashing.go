package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	saltLen = 16
	keyLen  = 32
)

// HasherParams are the argon2id cost parameters. Memory is in KiB.
type HasherParams struct {
	Memory  uint32
	Time    uint32
	Threads uint8
}

// DefaultHasherParams matches the OWASP argon2id baseline (64 MiB, 1 pass, 4 lanes).
var DefaultHasherParams = HasherParams{Memory: 64 * 1024, Time: 1, Threads: 4}

// Hasher hashes and verifies passwords using argon2id. Hashes written by an
// earlier bcrypt deployment still verify. Callers must not log or persist
// plaintext passwords.
type Hasher struct {
	params HasherParams
}

// NewHasher returns a Hasher with the given parameters. Zero fields fall back
// to DefaultHasherParams.
func NewHasher(p HasherParams) *Hasher {
	if p.Memory == 0 {
		p.Memory = DefaultHasherParams.Memory
	}
	if p.Time == 0 {
		p.Time = DefaultHasherParams.Time
	}
	if p.Threads == 0 {
		p.Threads = DefaultHasherParams.Threads
	}
	return &Hasher{params: p}
}

// Params returns the parameters new hashes are produced with.
func (h *Hasher) Params() HasherParams {
	return h.params
}

// Hash produces a PHC-encoded argon2id hash with a fresh random salt, so two
// hashes of the same password differ.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}
	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, keyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches hash. It returns an error only when
// hash is not a recognized encoding, which means the stored data is corrupt.
func (h *Hasher) Verify(hash, password string) (bool, error) {
	if isBcrypt(hash) {
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	ph, err := parseArgon2id(hash)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(password), ph.salt, ph.params.Time, ph.params.Memory, ph.params.Threads, uint32(len(ph.key)))
	return subtle.ConstantTimeCompare(key, ph.key) == 1, nil
}

// NeedsRehash reports whether hash should be replaced after a successful
// verification: bcrypt hashes and argon2id hashes weaker than the configured
// parameters do.
func (h *Hasher) NeedsRehash(hash string) bool {
	if isBcrypt(hash) {
		return true
	}
	ph, err := parseArgon2id(hash)
	if err != nil {
		return false
	}
	return ph.params.Memory < h.params.Memory ||
		ph.params.Time < h.params.Time ||
		ph.params.Threads < h.params.Threads
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

type phcHash struct {
	params HasherParams
	salt   []byte
	key    []byte
}

func parseArgon2id(encoded string) (*phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unrecognized hash encoding")
	}
	if parts[1] != "argon2id" {
		return nil, oops.Code("AUTH_INVALID_HASH").With("algorithm", parts[1]).Errorf("unsupported hash algorithm")
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return nil, oops.Code("AUTH_INVALID_HASH").With("version", version).Errorf("unsupported argon2 version")
	}
	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if threads == 0 || threads > 255 || iterations == 0 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid argon2 parameters")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(key) == 0 || len(key) > 1024 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid key length")
	}
	return &phcHash{
		params: HasherParams{Memory: memory, Time: iterations, Threads: uint8(threads)},
		salt:   salt,
		key:    key,
	}, nil
}
