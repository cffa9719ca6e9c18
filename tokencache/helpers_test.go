package tokencache

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestStore(opts ...Option) (*Store, *fakeClock) {
	clk := &fakeClock{now: epoch}
	return NewStore(append([]Option{WithClock(clk.Now)}, opts...)...), clk
}

func signIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign id token: %v", err)
	}
	return raw
}

func encodeClientInfo(t *testing.T, uid, utid string) string {
	t.Helper()
	b, err := json.Marshal(ClientInfo{UID: uid, UTID: utid})
	if err != nil {
		t.Fatalf("marshal client info: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func testAccessToken(home, env, client, realm, target string, cachedAt time.Time) AccessToken {
	return AccessToken{
		Credential: Credential{
			HomeAccountID: home,
			Environment:   env,
			ClientID:      client,
			Secret:        "at-" + target,
		},
		Realm:             realm,
		Target:            target,
		TokenType:         "Bearer",
		CachedAt:          cachedAt,
		ExpiresOn:         cachedAt.Add(time.Hour),
		ExtendedExpiresOn: cachedAt.Add(2 * time.Hour),
	}
}

func testRefreshToken(home, env, client, family string) RefreshToken {
	return RefreshToken{
		Credential: Credential{
			HomeAccountID: home,
			Environment:   env,
			ClientID:      client,
			Secret:        "rt-" + client + family,
		},
		FamilyID: family,
	}
}
