// Package credential stores digestcast secrets in the operating system
// keyring so configuration files can reference them as "keyring:<name>".
package credential

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/99designs/keyring"
)

const serviceName = "digestcast"

// ErrNotFound is returned when no secret is stored under the requested name.
var ErrNotFound = errors.New("credential not found")

// Store reads and writes named secrets.
type Store struct {
	ring keyring.Keyring
}

// Open returns a Store backed by the first available system keyring. The
// encrypted file backend under stateDir is the fallback on headless hosts.
func Open(stateDir string) (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(stateDir, "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("digestcast-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Store{ring: ring}, nil
}

// NewStore wraps an existing keyring, typically an in-memory one in tests.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Get retrieves a secret by name.
func (s *Store) Get(name string) (string, error) {
	name = strings.TrimSpace(name)
	item, err := s.ring.Get(name)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %q (store it with `digestcast credential set %s`)", ErrNotFound, name, name)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", name, err)
	}
	return string(item.Data), nil
}

// Set stores value under name, replacing any previous value.
func (s *Store) Set(name, value string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("credential name must not be empty")
	}
	err := s.ring.Set(keyring.Item{
		Key:         name,
		Data:        []byte(value),
		Label:       serviceName + " " + name,
		Description: "digestcast secret",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", name, err)
	}
	return nil
}

// Delete removes the secret stored under name.
func (s *Store) Delete(name string) error {
	name = strings.TrimSpace(name)
	err := s.ring.Remove(name)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", name, err)
	}
	return nil
}

// Names lists stored secret names.
func (s *Store) Names() ([]string, error) {
	keys, err := s.ring.Keys()
	if err != nil {
		return nil, fmt.Errorf("listing credentials: %w", err)
	}
	return keys, nil
}
