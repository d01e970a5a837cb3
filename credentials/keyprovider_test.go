package credentials

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestEnvKeyProvider_GetKey(t *testing.T) {
	const envVar = "TEST_REELKIT_ENCRYPTION_KEY"

	t.Run("valid key", func(t *testing.T) {
		t.Setenv(envVar, testKeyHex)
		key, err := NewEnvKeyProvider(envVar).GetKey()
		if err != nil {
			t.Fatalf("GetKey() error = %v", err)
		}
		want, _ := hex.DecodeString(testKeyHex)
		if !bytes.Equal(key, want) {
			t.Error("GetKey() returned wrong key")
		}
	})

	tests := []struct {
		name  string
		value string
	}{
		{"missing env var", ""},
		{"invalid hex", "not-valid-hex"},
		{"wrong length", "0123456789abcdef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(envVar, tt.value)
			if _, err := NewEnvKeyProvider(envVar).GetKey(); err == nil {
				t.Error("GetKey() expected error")
			}
		})
	}
}

func TestPassphraseKeyProvider(t *testing.T) {
	salt := []byte("0123456789abcdef")

	a, err := NewPassphraseKeyProvider("correct horse", salt).GetKey()
	if err != nil {
		t.Fatalf("GetKey() error = %v", err)
	}
	if len(a) != keyLength {
		t.Errorf("key length = %d, want %d", len(a), keyLength)
	}
	b, _ := NewPassphraseKeyProvider("correct horse", salt).GetKey()
	if !bytes.Equal(a, b) {
		t.Error("same passphrase and salt should derive the same key")
	}
	c, _ := NewPassphraseKeyProvider("battery staple", salt).GetKey()
	if bytes.Equal(a, c) {
		t.Error("different passphrases should derive different keys")
	}

	if _, err := NewPassphraseKeyProvider("", salt).GetKey(); err == nil {
		t.Error("expected error for empty passphrase")
	}
	if _, err := NewPassphraseKeyProvider("p", nil).GetKey(); err == nil {
		t.Error("expected error for empty salt")
	}
}

func TestLoadOrCreateSalt(t *testing.T) {
	dir := t.TempDir()
	first, err := LoadOrCreateSalt(dir)
	if err != nil {
		t.Fatalf("LoadOrCreateSalt() error = %v", err)
	}
	second, err := LoadOrCreateSalt(dir)
	if err != nil {
		t.Fatalf("LoadOrCreateSalt() error = %v", err)
	}
	if len(first) != 16 || !bytes.Equal(first, second) {
		t.Errorf("salt not persisted: %x vs %x", first, second)
	}
}

func TestKeyringKeyProvider_Mock(t *testing.T) {
	keyring.MockInit()

	p := NewKeyringKeyProvider()
	first, err := p.GetKey()
	if err != nil {
		t.Fatalf("GetKey() error = %v", err)
	}
	second, err := p.GetKey()
	if err != nil {
		t.Fatalf("GetKey() error = %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("keyring key should be stable across calls")
	}

	if err := p.Forget(); err != nil {
		t.Fatalf("Forget() error = %v", err)
	}
	third, _ := p.GetKey()
	if bytes.Equal(first, third) {
		t.Error("a new key should be generated after Forget")
	}
}

func TestDefaultKeyProvider_EnvFirst(t *testing.T) {
	t.Setenv(EnvEncryptionKey, testKeyHex)
	p, err := DefaultKeyProvider(t.TempDir())
	if err != nil {
		t.Fatalf("DefaultKeyProvider() error = %v", err)
	}
	if _, ok := p.(*EnvKeyProvider); !ok {
		t.Errorf("provider = %T, want *EnvKeyProvider", p)
	}
}
