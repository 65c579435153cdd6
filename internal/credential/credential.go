// Package credential stores the backend auth token, either in the local
// state database or in the system keyring.
package credential

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/99designs/keyring"
	"github.com/cristianoliveira/pharmacy-notify/internal/config"
	pnerrors "github.com/cristianoliveira/pharmacy-notify/internal/errors"
	"github.com/cristianoliveira/pharmacy-notify/internal/storage"
)

const serviceName = "pharmacy-notify"

// Store holds the auth token.
type Store interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// KVStore keeps the token under storage.KeyAuthToken.
type KVStore struct {
	kv storage.KV
}

// NewKVStore returns a Store backed by kv.
func NewKVStore(kv storage.KV) *KVStore {
	return &KVStore{kv: kv}
}

func (s *KVStore) Token(ctx context.Context) (string, error) {
	tok, err := s.kv.Get(ctx, storage.KeyAuthToken)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && tok == "") {
		return "", pnerrors.ErrNotAuthenticated
	}
	return tok, err
}

func (s *KVStore) SetToken(ctx context.Context, token string) error {
	return s.kv.Set(ctx, storage.KeyAuthToken, token)
}

func (s *KVStore) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, storage.KeyAuthToken)
}

// Keyring keeps the token in the system keyring.
type Keyring struct {
	ring keyring.Keyring
}

// NewKeyring wraps an opened keyring.
func NewKeyring(ring keyring.Keyring) *Keyring {
	return &Keyring{ring: ring}
}

// OpenKeyring opens the system keyring, falling back to an encrypted file
// under configDir.
func OpenKeyring(configDir string) (*Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(configDir, "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt(serviceName + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyring(ring), nil
}

func (k *Keyring) Token(_ context.Context) (string, error) {
	item, err := k.ring.Get(storage.KeyAuthToken)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", pnerrors.ErrNotAuthenticated
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", storage.KeyAuthToken, err)
	}
	return string(item.Data), nil
}

func (k *Keyring) SetToken(_ context.Context, token string) error {
	err := k.ring.Set(keyring.Item{
		Key:         storage.KeyAuthToken,
		Data:        []byte(token),
		Label:       "pharmacy-notify auth token",
		Description: "backend API token",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", storage.KeyAuthToken, err)
	}
	return nil
}

func (k *Keyring) Clear(_ context.Context) error {
	err := k.ring.Remove(storage.KeyAuthToken)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", storage.KeyAuthToken, err)
	}
	return nil
}

// FromConfig selects the store named by credential_backend.
func FromConfig(kv storage.KV) (Store, error) {
	switch strings.ToLower(config.Get("credential_backend", "store")) {
	case "keyring":
		return OpenKeyring(config.Get("config_dir", ""))
	default:
		return NewKVStore(kv), nil
	}
}
