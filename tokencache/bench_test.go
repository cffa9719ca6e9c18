package tokencache

import (
	"context"
	"fmt"
	"testing"
)

// benchStore returns a store holding n accounts, each with an access
// token, a refresh token and an ID token.
func benchStore(b *testing.B, n int) *Store {
	b.Helper()
	ctx := context.Background()
	s, _ := newTestStore()
	for i := 0; i < n; i++ {
		home := fmt.Sprintf("uid-%d.tenant-1", i)
		if err := s.UpsertAccount(ctx, Account{HomeAccountID: home, Environment: "login.example.com", Realm: "tenant-1"}); err != nil {
			b.Fatal(err)
		}
		if err := s.UpsertAccessToken(ctx, testAccessToken(home, "login.example.com", "client-1", "tenant-1", "user.read mail.read", epoch)); err != nil {
			b.Fatal(err)
		}
		if err := s.UpsertRefreshToken(ctx, testRefreshToken(home, "login.example.com", "client-1", "")); err != nil {
			b.Fatal(err)
		}
		idt := NewIDToken(Credential{HomeAccountID: home, Environment: "login.example.com", ClientID: "client-1", Secret: "id-" + home}, "tenant-1")
		if err := s.UpsertIDToken(ctx, idt); err != nil {
			b.Fatal(err)
		}
	}
	return s
}

// BenchmarkStore_FindAccessToken measures the lookup a silent call makes
// before touching the network.
func BenchmarkStore_FindAccessToken(b *testing.B) {
	for _, size := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("accounts=%d", size), func(b *testing.B) {
			s := benchStore(b, size)
			ctx := context.Background()
			q := AccessTokenQuery{
				ClientID:      "client-1",
				HomeAccountID: fmt.Sprintf("uid-%d.tenant-1", size/2),
				Realm:         "tenant-1",
				Scopes:        []string{"User.Read"},
				Aliases:       []string{"login.example.com"},
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = s.FindAccessToken(ctx, q)
			}
		})
	}
}

// BenchmarkStore_FindAccessToken_Concurrent measures parallel lookups.
func BenchmarkStore_FindAccessToken_Concurrent(b *testing.B) {
	s := benchStore(b, 100)
	ctx := context.Background()
	q := AccessTokenQuery{
		ClientID:      "client-1",
		HomeAccountID: "uid-50.tenant-1",
		Scopes:        []string{"user.read"},
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = s.FindAccessToken(ctx, q)
		}
	})
}

// BenchmarkStore_Serialize measures encoding the cache document.
func BenchmarkStore_Serialize(b *testing.B) {
	s := benchStore(b, 100)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Serialize()
	}
}

// BenchmarkStore_Deserialize measures loading the cache document, which a
// persistence hook does before every access.
func BenchmarkStore_Deserialize(b *testing.B) {
	data, err := benchStore(b, 100).Serialize()
	if err != nil {
		b.Fatal(err)
	}
	s := NewStore()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Deserialize(data); err != nil {
			b.Fatal(err)
		}
	}
}
