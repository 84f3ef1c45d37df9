package encryption

import (
	"strings"
	"testing"
)

func TestGenerateKey(t *testing.T) {
	k1, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	k2, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if k1 == k2 {
		t.Error("two generated keys are identical")
	}
	if _, err := NewEncryptor(k1); err != nil {
		t.Errorf("NewEncryptor rejected a generated key: %v", err)
	}
}

func TestEncryptDecrypt(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	enc, err := NewEncryptor(key)
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	plaintext := "lastfm-api-key-123"
	sealed, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if sealed == plaintext {
		t.Error("ciphertext equals plaintext")
	}

	got, err := enc.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != plaintext {
		t.Errorf("Decrypt = %q, want %q", got, plaintext)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	k1, _ := GenerateKey()
	k2, _ := GenerateKey()
	e1, err := NewEncryptor(k1)
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	e2, err := NewEncryptor(k2)
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	sealed, err := e1.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := e2.Decrypt(sealed); err == nil {
		t.Error("Decrypt succeeded with the wrong key")
	}
}

func TestDecrypt_Garbage(t *testing.T) {
	key, _ := GenerateKey()
	enc, err := NewEncryptor(key)
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	if _, err := enc.Decrypt("not base64 at all!!!"); err == nil {
		t.Error("Decrypt accepted invalid base64")
	}
	if _, err := enc.Decrypt("c2hvcnQ="); err == nil {
		t.Error("Decrypt accepted a too-short ciphertext")
	}
}

func TestNewEncryptor_RawKey(t *testing.T) {
	raw := strings.Repeat("k", 32)
	if _, err := NewEncryptor(raw); err != nil {
		t.Errorf("NewEncryptor rejected a raw 32-byte key: %v", err)
	}
}

func TestNewEncryptor_Invalid(t *testing.T) {
	if _, err := NewEncryptor(""); err == nil {
		t.Error("NewEncryptor accepted an empty key")
	}
	if _, err := NewEncryptor("dG9vc2hvcnQ="); err == nil {
		t.Error("NewEncryptor accepted a short key")
	}
}
