// Package auth acquires OAuth2/OIDC tokens for an application, reusing cached
// tokens whenever possible.
//
// A Client owns one token cache (tokencache.Store), one instance-discovery
// resolver, and the throttling and interaction-required caches that protect
// the identity provider from repeated doomed requests. Nothing is shared
// between clients, so several independent clients can live in one process.
//
// Silent acquisition (Client.AcquireTokenSilent) never prompts. It returns a
// cached access token when one covers the requested scopes, otherwise redeems
// a cached refresh token, otherwise fails with an interaction-required error:
//
//	res, err := client.AcquireTokenSilent(ctx, auth.SilentParams{
//		Scopes:  []string{"User.Read"},
//		Account: account,
//	})
//	if auth.IsInteractionRequired(err) {
//		// run an interactive flow, then AcquireTokenByGrant
//	}
//
// Every failure is an *Error whose Kind tells the caller whether to prompt,
// back off, or give up. Grant wire encodings are produced by BuildParams from
// a closed set of Grant variants; HTTPTokenEndpoint posts them to the
// authority's token endpoint.
package auth
