package secret

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the keyring service used when a reference names
// only the entry.
const DefaultKeyringService = "tokenops"

// KeyringProvider resolves references from the OS keyring. A reference is
// either "service/user" or just "user" under the provider's service.
type KeyringProvider struct {
	service string
}

// NewKeyringProvider creates a KeyringProvider. An empty service means
// DefaultKeyringService.
func NewKeyringProvider(service string) *KeyringProvider {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringProvider{service: service}
}

// Name returns "keyring".
func (p *KeyringProvider) Name() string { return "keyring" }

// Resolve reads the keyring entry named by ref.
func (p *KeyringProvider) Resolve(_ context.Context, ref string) (string, error) {
	service, user := p.service, ref
	if i := strings.IndexByte(ref, '/'); i > 0 {
		service, user = ref[:i], ref[i+1:]
	}
	if user == "" {
		return "", fmt.Errorf("keyring reference %q has no entry name", ref)
	}
	v, err := keyring.Get(service, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: keyring entry %s/%s", ErrNotFound, service, user)
	}
	if err != nil {
		return "", fmt.Errorf("keyring %s/%s: %w", service, user, err)
	}
	return v, nil
}

// Close is a no-op.
func (p *KeyringProvider) Close() error { return nil }

var _ Provider = (*KeyringProvider)(nil)
