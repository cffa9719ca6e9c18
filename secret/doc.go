// Package secret resolves client secrets referenced from configuration.
//
// Configuration values may name a secret instead of embedding it:
//   - Full value:  secretref:env:APP_CLIENT_SECRET
//   - Keyring:     secretref:keyring:tokenops/contoso-app
//   - Inline use:  Basic secretref:env:APP_CLIENT_SECRET
//
// ${VAR} references are expanded first and must be set (see
// ExpandEnvStrict). Providers are looked up by the scheme after
// "secretref:"; Builtin registers the env and keyring providers.
package secret
