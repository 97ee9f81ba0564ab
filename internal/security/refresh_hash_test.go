package security

import (
	"encoding/hex"
	"testing"
)

func TestGenerateRefreshSecret_Entropy(t *testing.T) {
	s1, err := GenerateRefreshSecret()
	if err != nil {
		t.Fatalf("GenerateRefreshSecret: %v", err)
	}
	s2, err := GenerateRefreshSecret()
	if err != nil {
		t.Fatalf("GenerateRefreshSecret: %v", err)
	}
	if s1 == s2 {
		t.Error("GenerateRefreshSecret returned the same secret twice")
	}
	raw, err := hex.DecodeString(s1)
	if err != nil {
		t.Fatalf("secret is not hex: %v", err)
	}
	if len(raw) != RefreshSecretBytes {
		t.Errorf("secret bytes = %d, want %d", len(raw), RefreshSecretBytes)
	}
}

func TestHashRefreshSecret_Consistent(t *testing.T) {
	secret := "test-refresh-secret-123"
	hash1 := HashRefreshSecret(secret)
	hash2 := HashRefreshSecret(secret)

	if hash1 != hash2 {
		t.Errorf("HashRefreshSecret not consistent: hash1 = %q, hash2 = %q", hash1, hash2)
	}
	if len(hash1) != 64 {
		t.Errorf("hash length = %d, want 64 (SHA-256 hex)", len(hash1))
	}
	if hash1 == secret {
		t.Error("hash must differ from the secret")
	}
}

func TestHashRefreshSecret_DifferentSecrets(t *testing.T) {
	if HashRefreshSecret("secret-1") == HashRefreshSecret("secret-2") {
		t.Error("HashRefreshSecret produced same hash for different secrets")
	}
}

func TestHashRefreshSecret_Empty(t *testing.T) {
	// sha256("")
	const want = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := HashRefreshSecret(""); got != want {
		t.Errorf("HashRefreshSecret(\"\") = %q, want %q", got, want)
	}
}
