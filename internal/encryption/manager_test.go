package encryption

import (
	"context"
	"strings"
	"testing"

	"blog-service/internal/config"
)

func newLocalManager() *Manager {
	return NewManager(&config.Config{}, nil)
}

func TestEncryptDecryptMobile(t *testing.T) {
	m := newLocalManager()
	ctx := context.Background()

	ciphertext, keyID, err := m.EncryptMobile(ctx, "13800000000")
	if err != nil {
		t.Fatalf("EncryptMobile: %v", err)
	}
	if keyID != "local" {
		t.Errorf("keyID = %q, want local when KMS is disabled", keyID)
	}
	if strings.Contains(ciphertext, "13800000000") {
		t.Fatal("ciphertext must not contain the plaintext")
	}

	plaintext, err := m.DecryptMobile(ctx, ciphertext)
	if err != nil {
		t.Fatalf("DecryptMobile: %v", err)
	}
	if plaintext != "13800000000" {
		t.Errorf("plaintext = %q, want 13800000000", plaintext)
	}
}

func TestEncryptMobileNonDeterministic(t *testing.T) {
	m := newLocalManager()
	ctx := context.Background()

	first, _, err := m.EncryptMobile(ctx, "13800000000")
	if err != nil {
		t.Fatalf("EncryptMobile: %v", err)
	}
	second, _, err := m.EncryptMobile(ctx, "13800000000")
	if err != nil {
		t.Fatalf("EncryptMobile: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct ciphertexts for the same plaintext")
	}
}

func TestDecryptMobileRejectsGarbage(t *testing.T) {
	m := newLocalManager()

	for _, ciphertext := range []string{"", "nodot", "a.b", "!!!.###"} {
		if _, err := m.DecryptMobile(context.Background(), ciphertext); err == nil {
			t.Errorf("expected error for ciphertext %q", ciphertext)
		}
	}
}
