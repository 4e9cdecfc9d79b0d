package backup

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}

	plaintext := []byte("the quick brown fox")
	encrypted, err := Encrypt(plaintext, "correct horse", salt)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(encrypted, plaintext) {
		t.Error("ciphertext contains plaintext")
	}

	decrypted, err := Decrypt(encrypted, "correct horse")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("round trip = %q, want %q", decrypted, plaintext)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	salt, _ := GenerateSalt()
	encrypted, err := Encrypt([]byte("secret"), "right", salt)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, err := Decrypt(encrypted, "wrong"); err == nil {
		t.Error("decrypt with wrong passphrase succeeded")
	}
}

func TestDecryptTampered(t *testing.T) {
	salt, _ := GenerateSalt()
	encrypted, err := Encrypt([]byte("secret"), "pass", salt)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	encrypted[len(encrypted)-1] ^= 0xff
	if _, err := Decrypt(encrypted, "pass"); err == nil {
		t.Error("decrypt of tampered data succeeded")
	}
}

func TestDecryptTruncated(t *testing.T) {
	if _, err := Decrypt([]byte("too short"), "pass"); err == nil {
		t.Error("decrypt of truncated data succeeded")
	}
}

func TestEncryptBadSalt(t *testing.T) {
	if _, err := Encrypt([]byte("data"), "pass", []byte("short")); err == nil {
		t.Error("encrypt with undersized salt succeeded")
	}
}

func TestGenerateSaltUnique(t *testing.T) {
	a, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	b, _ := GenerateSalt()
	if bytes.Equal(a, b) {
		t.Error("two salts identical")
	}
	if len(a) != saltSize {
		t.Errorf("salt length = %d, want %d", len(a), saltSize)
	}
}
