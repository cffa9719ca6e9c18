package tokencache

import "strings"

// KeySeparator joins the segments of a cache key.
const KeySeparator = "-"

// buildKey lowercases and joins segments. Empty segments are kept so that
// every field stays at a fixed position.
func buildKey(segments ...string) string {
	return strings.ToLower(strings.Join(segments, KeySeparator))
}

// AccountKey is <home_account_id>-<environment>.
func AccountKey(homeAccountID, environment string) string {
	return buildKey(homeAccountID, environment)
}

// CredentialKey is
// <home_account_id>-<environment>-<credential_type>-<client_id>-<realm>-<target>.
func CredentialKey(homeAccountID, environment string, credType CredentialType, clientID, realm, target string) string {
	return buildKey(homeAccountID, environment, string(credType), clientID, realm, target)
}

// AccessTokenKey returns the key of an access token.
func AccessTokenKey(homeAccountID, environment, clientID, realm, target string) string {
	return CredentialKey(homeAccountID, environment, CredentialTypeAccessToken, clientID, realm, target)
}

// RefreshTokenKey returns the key of a refresh token. familyOrClientID is the
// family ID for family refresh tokens and the client ID otherwise. Refresh
// tokens are neither tenant- nor scope-bound, so realm and target are blank.
func RefreshTokenKey(homeAccountID, environment, familyOrClientID string) string {
	return CredentialKey(homeAccountID, environment, CredentialTypeRefreshToken, familyOrClientID, "", "")
}

// IDTokenKey returns the key of an ID token. Target is blank.
func IDTokenKey(homeAccountID, environment, clientID, realm string) string {
	return CredentialKey(homeAccountID, environment, CredentialTypeIDToken, clientID, realm, "")
}

// AppMetadataKey is appmetadata-<environment>-<client_id>.
func AppMetadataKey(environment, clientID string) string {
	return buildKey("appmetadata", environment, clientID)
}
