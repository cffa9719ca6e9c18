package tokencache

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// CredentialType discriminates credential entities.
type CredentialType string

const (
	CredentialTypeAccessToken  CredentialType = "AccessToken"
	CredentialTypeRefreshToken CredentialType = "RefreshToken"
	CredentialTypeIDToken      CredentialType = "IdToken"
)

// Authority types recorded on accounts.
const (
	AuthorityTypeAAD  = "MSSTS"
	AuthorityTypeADFS = "ADFS"
	AuthorityTypeB2C  = "B2C"
)

// TenantProfile is one tenant's view of an account.
type TenantProfile struct {
	TenantID       string `json:"tenant_id"`
	LocalAccountID string `json:"local_account_id,omitempty"`
	IsHomeTenant   bool   `json:"is_home_tenant"`
}

// Account identifies a signed-in principal. HomeAccountID + Environment is
// unique in a Store.
type Account struct {
	HomeAccountID  string
	Environment    string
	Realm          string
	LocalAccountID string
	Username       string
	Name           string
	AuthorityType  string

	// IDTokenClaims holds the claims of the most recent ID token.
	IDTokenClaims map[string]any

	// TenantProfiles maps tenant ID to that tenant's view of the account.
	TenantProfiles map[string]TenantProfile
}

// Key returns the account's cache key.
func (a Account) Key() string {
	return AccountKey(a.HomeAccountID, a.Environment)
}

// Validate checks the fields the key depends on.
func (a Account) Validate() error {
	if a.HomeAccountID == "" || a.Environment == "" {
		return fmt.Errorf("%w: account requires home_account_id and environment", ErrInvalidEntity)
	}
	return nil
}

// clone returns a deep enough copy that the caller cannot reach store state.
func (a Account) clone() Account {
	a.IDTokenClaims = cloneClaims(a.IDTokenClaims)
	if a.TenantProfiles != nil {
		a.TenantProfiles = maps.Clone(a.TenantProfiles)
	}
	return a
}

// cloneClaims copies decoded JSON claims, including nested objects and
// arrays.
func cloneClaims(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneClaimValue(v)
	}
	return out
}

func cloneClaimValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneClaims(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneClaimValue(e)
		}
		return out
	case []string:
		return slices.Clone(v)
	default:
		return v
	}
}

// Credential holds the fields shared by every token entity.
type Credential struct {
	HomeAccountID string
	Environment   string
	ClientID      string
	// Secret is the token value itself.
	Secret string
}

func (c Credential) validate(kind CredentialType) error {
	if c.Environment == "" || c.ClientID == "" || c.Secret == "" {
		return fmt.Errorf("%w: %s requires environment, client_id and secret", ErrInvalidEntity, kind)
	}
	return nil
}

// AccessToken is a cached access token.
type AccessToken struct {
	Credential
	CredentialType CredentialType
	Realm          string
	// Target is the space-delimited scope set the token was granted for.
	Target            string
	TokenType         string
	CachedAt          time.Time
	ExpiresOn         time.Time
	ExtendedExpiresOn time.Time
	// RefreshOn, when set, is the time after which the token should be
	// refreshed proactively even though it is still valid.
	RefreshOn time.Time
}

// Key returns the access token's cache key.
func (t AccessToken) Key() string {
	return AccessTokenKey(t.HomeAccountID, t.Environment, t.ClientID, t.Realm, t.Target)
}

// normalize stamps the credential type and truncates timestamps to whole
// seconds, which is the precision the serialized form keeps.
func (t AccessToken) normalize() AccessToken {
	t.CredentialType = CredentialTypeAccessToken
	t.CachedAt = normalizeTime(t.CachedAt)
	t.ExpiresOn = normalizeTime(t.ExpiresOn)
	t.ExtendedExpiresOn = normalizeTime(t.ExtendedExpiresOn)
	t.RefreshOn = normalizeTime(t.RefreshOn)
	return t
}

// Scopes returns the token's target as a set.
func (t AccessToken) Scopes() ScopeSet {
	return ParseTarget(t.Target)
}

// Validate enforces ExpiresOn > CachedAt and the key fields.
func (t AccessToken) Validate() error {
	if err := t.Credential.validate(CredentialTypeAccessToken); err != nil {
		return err
	}
	if !t.ExpiresOn.After(t.CachedAt) {
		return fmt.Errorf("%w: access token expires_on must be after cached_at", ErrInvalidEntity)
	}
	return nil
}

// Expired reports whether the token is unusable at now given a safety buffer.
func (t AccessToken) Expired(now time.Time, buffer time.Duration) bool {
	return !now.Add(buffer).Before(t.ExpiresOn)
}

// WithinExtendedExpiry reports whether the token is past ExpiresOn but still
// inside its outage grace window at now.
func (t AccessToken) WithinExtendedExpiry(now time.Time) bool {
	return !now.Before(t.ExpiresOn) && now.Before(t.ExtendedExpiresOn)
}

// ShouldRefresh reports whether RefreshOn has passed at now.
func (t AccessToken) ShouldRefresh(now time.Time) bool {
	return !t.RefreshOn.IsZero() && !now.Before(t.RefreshOn)
}

// RefreshToken is a cached refresh token. It is bound to neither a tenant nor
// a scope set.
type RefreshToken struct {
	Credential
	CredentialType CredentialType
	// FamilyID is set when the token may be shared across a family of clients.
	FamilyID string
}

// Key returns the refresh token's cache key.
func (t RefreshToken) Key() string {
	id := t.ClientID
	if t.FamilyID != "" {
		id = t.FamilyID
	}
	return RefreshTokenKey(t.HomeAccountID, t.Environment, id)
}

// Validate checks the key fields.
func (t RefreshToken) Validate() error {
	if err := t.Credential.validate(CredentialTypeRefreshToken); err != nil {
		return err
	}
	if t.HomeAccountID == "" {
		return fmt.Errorf("%w: refresh token requires home_account_id", ErrInvalidEntity)
	}
	return nil
}

// AppMetadata records which family, if any, a client belongs to in an
// environment. One per (client_id, environment).
type AppMetadata struct {
	ClientID    string
	Environment string
	FamilyID    string
}

// Key returns the app metadata's cache key.
func (m AppMetadata) Key() string {
	return AppMetadataKey(m.Environment, m.ClientID)
}

// Validate checks the key fields.
func (m AppMetadata) Validate() error {
	if m.ClientID == "" || m.Environment == "" {
		return fmt.Errorf("%w: app metadata requires client_id and environment", ErrInvalidEntity)
	}
	return nil
}

// inAliases reports whether env equals one of aliases, ignoring case. An
// empty alias list matches every environment.
func inAliases(env string, aliases []string) bool {
	if len(aliases) == 0 {
		return true
	}
	for _, a := range aliases {
		if strings.EqualFold(env, a) {
			return true
		}
	}
	return false
}

// normalizeTime drops sub-second precision and location so that entities
// compare equal after a serialize round trip.
func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return time.Unix(t.Unix(), 0).UTC()
}
