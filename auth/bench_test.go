package auth

import (
	"context"
	"testing"
)

// BenchmarkClient_AcquireTokenSilent_CacheHit measures a silent call served
// from the cache without a network round trip.
func BenchmarkClient_AcquireTokenSilent_CacheHit(b *testing.B) {
	h := newHarness(b, nil)
	acct := h.signIn(b)
	ctx := WithCorrelationID(context.Background(), "bench")
	p := SilentParams{Scopes: []string{"User.Read"}, Account: acct}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := h.client.AcquireTokenSilent(ctx, p); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkClient_AcquireTokenSilent_Concurrent measures parallel cache
// hits for one account.
func BenchmarkClient_AcquireTokenSilent_Concurrent(b *testing.B) {
	h := newHarness(b, nil)
	acct := h.signIn(b)
	p := SilentParams{Scopes: []string{"User.Read"}, Account: acct}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			_, _ = h.client.AcquireTokenSilent(ctx, p)
		}
	})
}

// BenchmarkParseAuthority measures authority URL parsing.
func BenchmarkParseAuthority(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = ParseAuthority(testAuthority)
	}
}

// BenchmarkClassifyResponse measures mapping a provider error payload.
func BenchmarkClassifyResponse(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = classifyResponse(400, "invalid_grant", "AADSTS70000: expired", 0)
	}
}
