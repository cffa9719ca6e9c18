package tokencache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Seconds is a duration in whole seconds. It decodes from either a JSON
// number or a numeric string, since providers send both.
type Seconds int64

// UnmarshalJSON implements json.Unmarshaler.
func (s *Seconds) UnmarshalJSON(b []byte) error {
	str := strings.Trim(string(b), `"`)
	if str == "" || str == "null" {
		*s = 0
		return nil
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid seconds value %s: %w", b, err)
	}
	*s = Seconds(n)
	return nil
}

// Duration converts s to a time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(s) * time.Second
}

// TokenResponse is a parsed token endpoint success response.
type TokenResponse struct {
	AccessToken  string  `json:"access_token"`
	TokenType    string  `json:"token_type"`
	RefreshToken string  `json:"refresh_token,omitempty"`
	IDToken      string  `json:"id_token,omitempty"`
	ClientInfo   string  `json:"client_info,omitempty"`
	Scope        string  `json:"scope,omitempty"`
	ExpiresIn    Seconds `json:"expires_in"`
	ExtExpiresIn Seconds `json:"ext_expires_in,omitempty"`
	RefreshIn    Seconds `json:"refresh_in,omitempty"`
	// FamilyID ("foci") marks the refresh token as shareable within a family.
	FamilyID string `json:"foci,omitempty"`
}

var _ json.Unmarshaler = (*Seconds)(nil)

// AddResponseParams carries what the cache needs besides the response
// itself to build entities.
type AddResponseParams struct {
	ClientID string
	// Environment is the authority host the tokens were issued by.
	Environment string
	// Realm is the tenant segment of the authority. Multi-tenant aliases
	// (common, organizations, consumers) are replaced by the ID token's tid.
	Realm         string
	AuthorityType string
	// HomeAccountID is used when the response carries no client_info, for
	// example when refreshing for a known account.
	HomeAccountID string
	// RequestedScopes become the access token's target when the response
	// omits scope.
	RequestedScopes []string
	Response        *TokenResponse
}

// CacheRecord holds the entities AddResponse wrote.
type CacheRecord struct {
	AccessToken AccessToken
	// Account and IDToken are nil for app-only responses.
	Account *Account
	IDToken *IDToken
}

var multiTenantRealms = map[string]bool{
	"":              true,
	"common":        true,
	"organizations": true,
	"consumers":     true,
}

// AddResponse converts a token response into entities and writes them in
// one critical section. Older access tokens for the same account, client
// and realm whose scopes overlap the new one are removed.
func (s *Store) AddResponse(ctx context.Context, p AddResponseParams) (CacheRecord, error) {
	resp := p.Response
	if resp == nil || resp.AccessToken == "" {
		return CacheRecord{}, fmt.Errorf("%w: token response has no access_token", ErrInvalidEntity)
	}
	if p.ClientID == "" || p.Environment == "" {
		return CacheRecord{}, fmt.Errorf("%w: client id and environment are required", ErrInvalidEntity)
	}

	var (
		claims    IDTokenClaims
		hasClaims bool
	)
	if resp.IDToken != "" {
		c, err := ParseIDToken(resp.IDToken)
		if err != nil {
			return CacheRecord{}, err
		}
		claims, hasClaims = c, true
	}

	ci, err := DecodeClientInfo(resp.ClientInfo)
	if err != nil {
		return CacheRecord{}, err
	}
	home := ci.HomeAccountID()
	if home == "" {
		home = p.HomeAccountID
	}
	if home == "" && hasClaims && claims.ObjectID != "" && claims.TenantID != "" {
		home = claims.ObjectID + "." + claims.TenantID
	}

	realm := p.Realm
	if multiTenantRealms[strings.ToLower(realm)] && hasClaims && claims.TenantID != "" {
		realm = claims.TenantID
	}

	target := resp.Scope
	if target == "" {
		target = JoinScopes(p.RequestedScopes)
	}
	target = withoutReserved(target)

	now := normalizeTime(s.now())
	at := AccessToken{
		Credential: Credential{
			HomeAccountID: home,
			Environment:   p.Environment,
			ClientID:      p.ClientID,
			Secret:        resp.AccessToken,
		},
		Realm:     realm,
		Target:    target,
		TokenType: resp.TokenType,
		CachedAt:  now,
		ExpiresOn: now.Add(resp.ExpiresIn.Duration()),
	}
	if resp.ExtExpiresIn > 0 {
		at.ExtendedExpiresOn = now.Add(resp.ExtExpiresIn.Duration())
	}
	if resp.RefreshIn > 0 {
		at.RefreshOn = now.Add(resp.RefreshIn.Duration())
	}
	at = at.normalize()
	if err := at.Validate(); err != nil {
		return CacheRecord{}, err
	}

	rec := CacheRecord{AccessToken: at}

	var rt *RefreshToken
	if resp.RefreshToken != "" && home != "" {
		rt = &RefreshToken{
			Credential: Credential{
				HomeAccountID: home,
				Environment:   p.Environment,
				ClientID:      p.ClientID,
				Secret:        resp.RefreshToken,
			},
			CredentialType: CredentialTypeRefreshToken,
			FamilyID:       resp.FamilyID,
		}
	}

	var account *Account
	if hasClaims && home != "" {
		idt := NewIDToken(Credential{
			HomeAccountID: home,
			Environment:   p.Environment,
			ClientID:      p.ClientID,
			Secret:        resp.IDToken,
		}, realm)
		rec.IDToken = &idt

		authorityType := p.AuthorityType
		if authorityType == "" {
			authorityType = AuthorityTypeAAD
		}
		a := NewAccount(home, p.Environment, realm, authorityType, claims)
		account = &a
	}

	meta := AppMetadata{ClientID: p.ClientID, Environment: p.Environment, FamilyID: resp.FamilyID}

	s.access(ctx, p.ClientID, home, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()

		scopes := at.Scopes()
		deleteWhere(s.accessTokens, func(old AccessToken) bool {
			return strings.EqualFold(old.HomeAccountID, at.HomeAccountID) &&
				strings.EqualFold(old.Environment, at.Environment) &&
				strings.EqualFold(old.ClientID, at.ClientID) &&
				strings.EqualFold(old.Realm, at.Realm) &&
				old.Scopes().Intersects(scopes)
		})
		s.accessTokens[at.Key()] = at

		if rt != nil {
			s.refreshTokens[rt.Key()] = *rt
		}
		if rec.IDToken != nil {
			s.idTokens[rec.IDToken.Key()] = *rec.IDToken
		}
		if account != nil {
			merged := *account
			if existing, ok := s.accounts[account.Key()]; ok {
				merged = existing.merge(*account)
			}
			s.accounts[merged.Key()] = merged
			out := merged.clone()
			rec.Account = &out
		}
		s.appMetadata[meta.Key()] = meta
		return true
	})

	return rec, nil
}

func withoutReserved(target string) string {
	fields := strings.Fields(target)
	kept := fields[:0]
	for _, f := range fields {
		reserved := false
		for _, r := range ReservedScopes {
			if strings.EqualFold(f, r) {
				reserved = true
				break
			}
		}
		if !reserved {
			kept = append(kept, f)
		}
	}
	return JoinScopes(kept)
}
