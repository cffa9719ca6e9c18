package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringStore is a Medium backed by one OS keyring entry. Platform
// keyrings limit entry size, so it suits caches holding a few accounts.
type KeyringStore struct {
	service string
	user    string
}

// NewKeyringStore creates a KeyringStore for the entry service/user.
func NewKeyringStore(service, user string) *KeyringStore {
	return &KeyringStore{service: service, user: user}
}

// Load reads the entry. A missing entry is an empty cache.
func (k *KeyringStore) Load(_ context.Context) ([]byte, error) {
	v, err := keyring.Get(k.service, k.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("keyring get %s/%s: %w", k.service, k.user, err)
	}
	return []byte(v), nil
}

// Save overwrites the entry.
func (k *KeyringStore) Save(_ context.Context, data []byte) error {
	if err := keyring.Set(k.service, k.user, string(data)); err != nil {
		return fmt.Errorf("keyring set %s/%s: %w", k.service, k.user, err)
	}
	return nil
}

// Clear deletes the entry. Clearing a missing entry is not an error.
func (k *KeyringStore) Clear() error {
	err := keyring.Delete(k.service, k.user)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete %s/%s: %w", k.service, k.user, err)
	}
	return nil
}

var _ Medium = (*KeyringStore)(nil)
