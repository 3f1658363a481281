package hashing

import (
	"strings"
	"testing"

	"blog-service/internal/config"
)

func testHasher() *Hasher {
	cfg := &config.Config{}
	cfg.Hashing.Argon2MemoryCost = 8 * 1024
	cfg.Hashing.Argon2TimeCost = 1
	cfg.Hashing.Argon2Parallelism = 1
	return NewHasher(cfg)
}

func TestHashAndVerifyPassword(t *testing.T) {
	h := testHasher()

	encoded, err := h.HashPassword("correct-horse1")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("unexpected hash format: %s", encoded)
	}

	ok, err := h.VerifyPassword("correct-horse1", encoded)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Fatal("expected password to verify")
	}

	ok, err = h.VerifyPassword("wrong-password", encoded)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password to fail verification")
	}
}

func TestHashPasswordSaltsDiffer(t *testing.T) {
	h := testHasher()

	first, err := h.HashPassword("samepassword")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	second, err := h.HashPassword("samepassword")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct hashes for the same password")
	}
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	h := testHasher()

	cases := []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=8192$c2FsdA$a2V5",
	}
	for _, encoded := range cases {
		if _, err := h.VerifyPassword("password", encoded); err == nil {
			t.Errorf("expected error for hash %q", encoded)
		}
	}
}

func TestHashIdentifierStable(t *testing.T) {
	a := HashIdentifier("13800000000")
	b := HashIdentifier("13800000000")
	if a != b {
		t.Fatal("expected identical digests for identical input")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	if a == HashIdentifier("13800000001") {
		t.Fatal("expected different digests for different input")
	}
}
