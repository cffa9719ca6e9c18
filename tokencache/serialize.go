package tokencache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/jonwraymond/tokenops/observe"
)

// Serialized form. Field names follow the cache format shared by the MSAL
// family of libraries so that a cache file can be read by either side.
type cacheDocument struct {
	Account      map[string]accountRecord      `json:"Account"`
	AccessToken  map[string]accessTokenRecord  `json:"AccessToken"`
	RefreshToken map[string]refreshTokenRecord `json:"RefreshToken"`
	IDToken      map[string]idTokenRecord      `json:"IdToken"`
	AppMetadata  map[string]appMetadataRecord  `json:"AppMetadata"`
}

type accountRecord struct {
	HomeAccountID  string          `json:"home_account_id"`
	Environment    string          `json:"environment"`
	Realm          string          `json:"realm"`
	LocalAccountID string          `json:"local_account_id"`
	Username       string          `json:"username"`
	Name           string          `json:"name,omitempty"`
	AuthorityType  string          `json:"authority_type"`
	TenantProfiles []TenantProfile `json:"tenant_profiles,omitempty"`
	IDTokenClaims  map[string]any  `json:"id_token_claims,omitempty"`
}

type accessTokenRecord struct {
	HomeAccountID     string `json:"home_account_id"`
	Environment       string `json:"environment"`
	CredentialType    string `json:"credential_type"`
	ClientID          string `json:"client_id"`
	Secret            string `json:"secret"`
	Realm             string `json:"realm"`
	Target            string `json:"target"`
	TokenType         string `json:"token_type,omitempty"`
	CachedAt          string `json:"cached_at"`
	ExpiresOn         string `json:"expires_on"`
	ExtendedExpiresOn string `json:"extended_expires_on,omitempty"`
	RefreshOn         string `json:"refresh_on,omitempty"`
}

type refreshTokenRecord struct {
	HomeAccountID  string `json:"home_account_id"`
	Environment    string `json:"environment"`
	CredentialType string `json:"credential_type"`
	ClientID       string `json:"client_id"`
	Secret         string `json:"secret"`
	FamilyID       string `json:"family_id,omitempty"`
}

type idTokenRecord struct {
	HomeAccountID  string `json:"home_account_id"`
	Environment    string `json:"environment"`
	CredentialType string `json:"credential_type"`
	ClientID       string `json:"client_id"`
	Secret         string `json:"secret"`
	Realm          string `json:"realm"`
}

type appMetadataRecord struct {
	ClientID    string `json:"client_id"`
	Environment string `json:"environment"`
	FamilyID    string `json:"family_id,omitempty"`
}

// Serialize encodes the whole store. The output is deterministic: map keys
// are sorted and every top-level section is present even when empty.
func (s *Store) Serialize() ([]byte, error) {
	s.mu.RLock()
	doc := cacheDocument{
		Account:      make(map[string]accountRecord, len(s.accounts)),
		AccessToken:  make(map[string]accessTokenRecord, len(s.accessTokens)),
		RefreshToken: make(map[string]refreshTokenRecord, len(s.refreshTokens)),
		IDToken:      make(map[string]idTokenRecord, len(s.idTokens)),
		AppMetadata:  make(map[string]appMetadataRecord, len(s.appMetadata)),
	}
	for k, a := range s.accounts {
		doc.Account[k] = toAccountRecord(a)
	}
	for k, t := range s.accessTokens {
		doc.AccessToken[k] = accessTokenRecord{
			HomeAccountID:     t.HomeAccountID,
			Environment:       t.Environment,
			CredentialType:    string(CredentialTypeAccessToken),
			ClientID:          t.ClientID,
			Secret:            t.Secret,
			Realm:             t.Realm,
			Target:            t.Target,
			TokenType:         t.TokenType,
			CachedAt:          formatUnix(t.CachedAt),
			ExpiresOn:         formatUnix(t.ExpiresOn),
			ExtendedExpiresOn: formatUnix(t.ExtendedExpiresOn),
			RefreshOn:         formatUnix(t.RefreshOn),
		}
	}
	for k, t := range s.refreshTokens {
		doc.RefreshToken[k] = refreshTokenRecord{
			HomeAccountID:  t.HomeAccountID,
			Environment:    t.Environment,
			CredentialType: string(CredentialTypeRefreshToken),
			ClientID:       t.ClientID,
			Secret:         t.Secret,
			FamilyID:       t.FamilyID,
		}
	}
	for k, t := range s.idTokens {
		doc.IDToken[k] = idTokenRecord{
			HomeAccountID:  t.HomeAccountID,
			Environment:    t.Environment,
			CredentialType: string(CredentialTypeIDToken),
			ClientID:       t.ClientID,
			Secret:         t.Secret,
			Realm:          t.Realm,
		}
	}
	for k, m := range s.appMetadata {
		doc.AppMetadata[k] = appMetadataRecord(m)
	}
	s.mu.RUnlock()

	return json.MarshalIndent(doc, "", "  ")
}

// Deserialize replaces the store's contents with data. The input is fully
// parsed before anything is swapped, so on error the store is unchanged.
// Empty input yields an empty store. Entities that fail validation are
// skipped and logged; keys are recomputed from entity fields.
func (s *Store) Deserialize(data []byte) error {
	next := NewStore()
	if len(bytes.TrimSpace(data)) > 0 {
		var doc cacheDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedCache, err)
		}
		if err := next.load(doc, s.logger); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = next.accounts
	s.accessTokens = next.accessTokens
	s.refreshTokens = next.refreshTokens
	s.idTokens = next.idTokens
	s.appMetadata = next.appMetadata
	return nil
}

// load fills an unshared store from doc.
func (s *Store) load(doc cacheDocument, logger observe.Logger) error {
	skip := func(section, key string, err error) {
		logger.Warn(context.Background(), "skipping invalid cache entity",
			observe.Field{Key: "section", Value: section},
			observe.Field{Key: "key", Value: key},
			observe.Field{Key: "error", Value: err},
		)
	}

	for k, r := range doc.Account {
		a := fromAccountRecord(r)
		if err := a.Validate(); err != nil {
			skip("Account", k, err)
			continue
		}
		s.accounts[a.Key()] = a
	}

	for k, r := range doc.AccessToken {
		t := AccessToken{
			Credential: Credential{
				HomeAccountID: r.HomeAccountID,
				Environment:   r.Environment,
				ClientID:      r.ClientID,
				Secret:        r.Secret,
			},
			Realm:     r.Realm,
			Target:    r.Target,
			TokenType: r.TokenType,
		}
		var err error
		if t.CachedAt, err = parseUnix("cached_at", r.CachedAt); err != nil {
			return err
		}
		if t.ExpiresOn, err = parseUnix("expires_on", r.ExpiresOn); err != nil {
			return err
		}
		if t.ExtendedExpiresOn, err = parseUnix("extended_expires_on", r.ExtendedExpiresOn); err != nil {
			return err
		}
		if t.RefreshOn, err = parseUnix("refresh_on", r.RefreshOn); err != nil {
			return err
		}
		t = t.normalize()
		if err := t.Validate(); err != nil {
			skip("AccessToken", k, err)
			continue
		}
		s.accessTokens[t.Key()] = t
	}

	for k, r := range doc.RefreshToken {
		t := RefreshToken{
			Credential: Credential{
				HomeAccountID: r.HomeAccountID,
				Environment:   r.Environment,
				ClientID:      r.ClientID,
				Secret:        r.Secret,
			},
			CredentialType: CredentialTypeRefreshToken,
			FamilyID:       r.FamilyID,
		}
		if err := t.Validate(); err != nil {
			skip("RefreshToken", k, err)
			continue
		}
		s.refreshTokens[t.Key()] = t
	}

	for k, r := range doc.IDToken {
		t := NewIDToken(Credential{
			HomeAccountID: r.HomeAccountID,
			Environment:   r.Environment,
			ClientID:      r.ClientID,
			Secret:        r.Secret,
		}, r.Realm)
		if err := t.Validate(); err != nil {
			skip("IdToken", k, err)
			continue
		}
		s.idTokens[t.Key()] = t
	}

	for k, r := range doc.AppMetadata {
		m := AppMetadata(r)
		if err := m.Validate(); err != nil {
			skip("AppMetadata", k, err)
			continue
		}
		s.appMetadata[m.Key()] = m
	}

	return nil
}

func toAccountRecord(a Account) accountRecord {
	r := accountRecord{
		HomeAccountID:  a.HomeAccountID,
		Environment:    a.Environment,
		Realm:          a.Realm,
		LocalAccountID: a.LocalAccountID,
		Username:       a.Username,
		Name:           a.Name,
		AuthorityType:  a.AuthorityType,
		IDTokenClaims:  a.IDTokenClaims,
	}
	for _, p := range a.TenantProfiles {
		r.TenantProfiles = append(r.TenantProfiles, p)
	}
	sort.Slice(r.TenantProfiles, func(i, j int) bool {
		return r.TenantProfiles[i].TenantID < r.TenantProfiles[j].TenantID
	})
	return r
}

func fromAccountRecord(r accountRecord) Account {
	a := Account{
		HomeAccountID:  r.HomeAccountID,
		Environment:    r.Environment,
		Realm:          r.Realm,
		LocalAccountID: r.LocalAccountID,
		Username:       r.Username,
		Name:           r.Name,
		AuthorityType:  r.AuthorityType,
		IDTokenClaims:  r.IDTokenClaims,
	}
	if len(r.TenantProfiles) > 0 {
		a.TenantProfiles = make(map[string]TenantProfile, len(r.TenantProfiles))
		for _, p := range r.TenantProfiles {
			a.TenantProfiles[p.TenantID] = p
		}
	}
	return a
}

// formatUnix renders t as decimal unix seconds; the zero time renders as "".
func formatUnix(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.Unix(), 10)
}

func parseUnix(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %w", ErrMalformedCache, field, err)
	}
	return time.Unix(n, 0).UTC(), nil
}
