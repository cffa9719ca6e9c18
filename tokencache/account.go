package tokencache

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// ClientInfo is the decoded client_info value the provider returns alongside
// user tokens. Its uid/utid pair forms the home account ID.
type ClientInfo struct {
	UID  string `json:"uid"`
	UTID string `json:"utid"`
}

// HomeAccountID returns "<uid>.<utid>", or "" when either part is missing.
func (c ClientInfo) HomeAccountID() string {
	if c.UID == "" || c.UTID == "" {
		return ""
	}
	return c.UID + "." + c.UTID
}

// DecodeClientInfo decodes a base64url (padded or raw) JSON client_info value.
func DecodeClientInfo(raw string) (ClientInfo, error) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "=")
	if raw == "" {
		return ClientInfo{}, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		// Some providers send standard base64.
		if b, err = base64.RawStdEncoding.DecodeString(raw); err != nil {
			return ClientInfo{}, fmt.Errorf("%w: %w", ErrMalformedClientInfo, err)
		}
	}
	var ci ClientInfo
	if err := json.Unmarshal(b, &ci); err != nil {
		return ClientInfo{}, fmt.Errorf("%w: %w", ErrMalformedClientInfo, err)
	}
	return ci, nil
}

// NewAccount builds an account from ID token claims. realm is the tenant the
// token was issued for; it becomes the account's home tenant profile when
// the home account ID ends with it.
func NewAccount(homeAccountID, environment, realm, authorityType string, claims IDTokenClaims) Account {
	acc := Account{
		HomeAccountID:  homeAccountID,
		Environment:    environment,
		Realm:          realm,
		LocalAccountID: claims.LocalAccountID(),
		Username:       claims.Username(),
		Name:           claims.Name,
		AuthorityType:  authorityType,
		IDTokenClaims:  claims.Raw,
	}
	if realm != "" {
		acc.TenantProfiles = map[string]TenantProfile{
			realm: {
				TenantID:       realm,
				LocalAccountID: acc.LocalAccountID,
				IsHomeTenant:   strings.HasSuffix(strings.ToLower(homeAccountID), "."+strings.ToLower(realm)),
			},
		}
	}
	return acc
}

// merge folds b into a, keeping a's identity and unioning tenant profiles.
// Non-empty descriptive fields of b win, since b is the newer response.
func (a Account) merge(b Account) Account {
	out := a.clone()
	if b.Realm != "" {
		out.Realm = b.Realm
	}
	if b.LocalAccountID != "" {
		out.LocalAccountID = b.LocalAccountID
	}
	if b.Username != "" {
		out.Username = b.Username
	}
	if b.Name != "" {
		out.Name = b.Name
	}
	if b.AuthorityType != "" {
		out.AuthorityType = b.AuthorityType
	}
	if b.IDTokenClaims != nil {
		out.IDTokenClaims = b.IDTokenClaims
	}
	for id, p := range b.TenantProfiles {
		if out.TenantProfiles == nil {
			out.TenantProfiles = make(map[string]TenantProfile)
		}
		out.TenantProfiles[id] = p
	}
	return out
}
