// Package credentials stores render service API keys in
// ~/.reelkit/credentials.yaml, encrypted with AES-GCM.
//
// The encryption key lives in the system keyring. For CI set
// REELKIT_ENCRYPTION_KEY to 64 hex characters; on hosts without a keyring
// REELKIT_PASSPHRASE derives the key with Argon2id.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/reelkit/config"
)

const (
	DefaultCredentialsFile = "credentials.yaml"

	// EnvAPIKey overrides any stored key.
	EnvAPIKey = "REELKIT_API_KEY"
)

var (
	ErrNoCredentials      = errors.New("no credentials stored")
	ErrEncryptionFailed   = errors.New("encryption failed")
	ErrInvalidCredentials = errors.New("invalid credentials format")
)

// Entry is the stored credential for one render target.
type Entry struct {
	APIKey      string    `yaml:"api_key"`
	Transport   string    `yaml:"transport,omitempty"`
	Subject     string    `yaml:"subject,omitempty"`
	LastUpdated time.Time `yaml:"last_updated"`
}

type credentialsFile struct {
	Renderers map[string]Entry `yaml:"renderers"`
}

// Store reads and writes the credentials file.
type Store struct {
	dir      string
	key      []byte
	provider KeyProvider
}

// NewStore opens the store in the reelkit config directory with the default key provider.
func NewStore() (*Store, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("getting credentials directory: %w", err)
	}
	provider, err := DefaultKeyProvider(dir)
	if err != nil {
		return nil, fmt.Errorf("initializing key provider: %w", err)
	}
	return NewStoreAt(dir, provider)
}

// NewStoreAt opens the store in dir using provider.
func NewStoreAt(dir string, provider KeyProvider) (*Store, error) {
	key, err := provider.GetKey()
	if err != nil {
		return nil, fmt.Errorf("getting encryption key: %w", err)
	}
	return &Store{dir: dir, key: key, provider: provider}, nil
}

// Path returns the credentials file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, DefaultCredentialsFile)
}

// KeyStorage describes where the encryption key is kept.
func (s *Store) KeyStorage() string {
	return s.provider.Description()
}

// Save stores e for target, replacing any previous entry.
func (s *Store) Save(target string, e Entry) error {
	if target == "" || e.APIKey == "" {
		return fmt.Errorf("%w: target and API key are required", ErrInvalidCredentials)
	}
	file, err := s.read()
	if err != nil && !errors.Is(err, ErrNoCredentials) {
		return err
	}

	encrypted, err := s.encrypt(e.APIKey)
	if err != nil {
		return fmt.Errorf("encrypting API key: %w", err)
	}
	e.APIKey = encrypted
	e.LastUpdated = time.Now().UTC()
	file.Renderers[target] = e
	return s.write(file)
}

// Load returns the decrypted entry for target.
func (s *Store) Load(target string) (*Entry, error) {
	file, err := s.read()
	if err != nil {
		return nil, err
	}
	e, ok := file.Renderers[target]
	if !ok {
		return nil, ErrNoCredentials
	}
	key, err := s.decrypt(e.APIKey)
	if err != nil {
		return nil, fmt.Errorf("decrypting API key: %w", err)
	}
	e.APIKey = key
	return &e, nil
}

// Delete removes target. Deleting a missing target is not an error.
func (s *Store) Delete(target string) error {
	file, err := s.read()
	if errors.Is(err, ErrNoCredentials) {
		return nil
	}
	if err != nil {
		return err
	}
	delete(file.Renderers, target)
	if len(file.Renderers) == 0 {
		if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing credentials file: %w", err)
		}
		return nil
	}
	return s.write(file)
}

// Targets lists stored targets in sorted order.
func (s *Store) Targets() ([]string, error) {
	file, err := s.read()
	if errors.Is(err, ErrNoCredentials) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	targets := make([]string, 0, len(file.Renderers))
	for t := range file.Renderers {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets, nil
}

// APIKey returns $REELKIT_API_KEY when set, else the stored key for target.
// A target with nothing stored yields "" and no error.
func (s *Store) APIKey(target string) (string, error) {
	if key := os.Getenv(EnvAPIKey); key != "" {
		return key, nil
	}
	e, err := s.Load(target)
	if errors.Is(err, ErrNoCredentials) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return e.APIKey, nil
}

func (s *Store) read() (*credentialsFile, error) {
	file := &credentialsFile{Renderers: map[string]Entry{}}
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return file, ErrNoCredentials
		}
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	if err := yaml.Unmarshal(data, file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if file.Renderers == nil {
		file.Renderers = map[string]Entry{}
	}
	return file, nil
}

func (s *Store) write(file *credentialsFile) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}
	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}
	if err := os.WriteFile(s.Path(), data, 0600); err != nil {
		return fmt.Errorf("writing credentials file: %w", err)
	}
	return nil
}

func (s *Store) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: creating cipher: %v", ErrEncryptionFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: creating GCM: %v", ErrEncryptionFailed, err)
	}
	return gcm, nil
}

// encrypt returns base64(nonce || ciphertext).
func (s *Store) encrypt(plaintext string) (string, error) {
	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: generating nonce: %v", ErrEncryptionFailed, err)
	}
	return base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, []byte(plaintext), nil)), nil
}

func (s *Store) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: decoding base64: %v", ErrEncryptionFailed, err)
	}
	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrEncryptionFailed)
	}
	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: decryption failed: %v", ErrEncryptionFailed, err)
	}
	return string(plaintext), nil
}

// MaskAPIKey keeps the first four characters visible.
func MaskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return strings.Repeat("*", len(apiKey))
	}
	return apiKey[:4] + strings.Repeat("*", 8) + "..."
}
