package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/tokenops/auth"
	"github.com/jonwraymond/tokenops/observe"
	"github.com/jonwraymond/tokenops/persist"
	"github.com/jonwraymond/tokenops/tokencache"
)

const (
	testClientID = "client-1"
	testHome     = "uid-1.tenant-1"
	testEnv      = "127.0.0.1"
	testRealm    = "tenant-1"
)

// tokenServer is an authority on loopback. Discovery answers 404 so the host
// becomes its own alias.
type tokenServer struct {
	*httptest.Server
	calls   atomic.Int32
	respond func(w http.ResponseWriter, r *http.Request)
}

func newTokenServer(t *testing.T, respond func(w http.ResponseWriter, r *http.Request)) *tokenServer {
	t.Helper()
	ts := &tokenServer{respond: respond}
	mux := http.NewServeMux()
	mux.HandleFunc("/discovery", http.NotFound)
	mux.HandleFunc("/"+testRealm+"/oauth2/v2.0/token", func(w http.ResponseWriter, r *http.Request) {
		ts.calls.Add(1)
		ts.respond(w, r)
	})
	ts.Server = httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func writeConfig(t *testing.T, dir, serverURL string) string {
	t.Helper()
	cfg := fmt.Sprintf("client_id: %s\nauthority: %s/%s\ndiscovery_endpoint: %s/discovery\nmax_attempts: 1\n",
		testClientID, serverURL, testRealm, serverURL)
	path := filepath.Join(dir, "client.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// seedCache writes an account for testHome with the given tokens.
func seedCache(t *testing.T, path string, at *tokencache.AccessToken, rt *tokencache.RefreshToken) {
	t.Helper()
	ctx := context.Background()
	store := tokencache.NewStore(tokencache.WithHook(persist.NewHook(persist.NewFileStore(path), observe.NopLogger())))

	account := tokencache.NewAccount(testHome, testEnv, testRealm, tokencache.AuthorityTypeAAD, tokencache.IDTokenClaims{
		ObjectID:          "uid-1",
		TenantID:          testRealm,
		PreferredUsername: "ada@example.com",
		Name:              "Ada Lovelace",
	})
	if err := store.UpsertAccount(ctx, account); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	if at != nil {
		if err := store.UpsertAccessToken(ctx, *at); err != nil {
			t.Fatalf("seed access token: %v", err)
		}
	}
	if rt != nil {
		if err := store.UpsertRefreshToken(ctx, *rt); err != nil {
			t.Fatalf("seed refresh token: %v", err)
		}
	}
}

func accessToken(secret, target string, expiresIn time.Duration) *tokencache.AccessToken {
	now := time.Now()
	return &tokencache.AccessToken{
		Credential: tokencache.Credential{
			HomeAccountID: testHome,
			Environment:   testEnv,
			ClientID:      testClientID,
			Secret:        secret,
		},
		Realm:             testRealm,
		Target:            target,
		TokenType:         "Bearer",
		CachedAt:          now.Add(-time.Minute),
		ExpiresOn:         now.Add(expiresIn),
		ExtendedExpiresOn: now.Add(expiresIn),
	}
}

func refreshToken(secret string) *tokencache.RefreshToken {
	return &tokencache.RefreshToken{
		Credential: tokencache.Credential{
			HomeAccountID: testHome,
			Environment:   testEnv,
			ClientID:      testClientID,
			Secret:        secret,
		},
	}
}

func execute(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestAccountsAndTokens(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")

	code, out, _ := execute(t, "--cache", cachePath, "accounts")
	if code != exitOK || !strings.Contains(out, "No accounts cached.") {
		t.Fatalf("accounts on empty cache = %d %q", code, out)
	}

	seedCache(t, cachePath, accessToken("at-secret", "User.Read", time.Hour), refreshToken("rt-secret"))

	code, out, stderr := execute(t, "--cache", cachePath, "accounts")
	if code != exitOK {
		t.Fatalf("accounts exit = %d, stderr %q", code, stderr)
	}
	for _, want := range []string{testHome, testEnv, "ada@example.com", "Ada Lovelace"} {
		if !strings.Contains(out, want) {
			t.Errorf("accounts output missing %q:\n%s", want, out)
		}
	}

	code, out, stderr = execute(t, "--cache", cachePath, "tokens")
	if code != exitOK {
		t.Fatalf("tokens exit = %d, stderr %q", code, stderr)
	}
	for _, want := range []string{"access", "refresh", "User.Read"} {
		if !strings.Contains(out, want) {
			t.Errorf("tokens output missing %q:\n%s", want, out)
		}
	}
	for _, secret := range []string{"at-secret", "rt-secret"} {
		if strings.Contains(out, secret) {
			t.Errorf("tokens output leaks %q", secret)
		}
	}

	code, out, _ = execute(t, "--cache", cachePath, "tokens", "--home", "someone-else")
	if code != exitOK || !strings.Contains(out, "No tokens cached.") {
		t.Errorf("tokens --home filter = %d %q", code, out)
	}
}

func TestAcquire_CacheHit(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")
	srv := newTokenServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unexpected", http.StatusInternalServerError)
	})
	configPath := writeConfig(t, dir, srv.URL)
	seedCache(t, cachePath, accessToken("at-cached", "User.Read", time.Hour), refreshToken("rt-1"))

	code, out, stderr := execute(t, "--cache", cachePath, "--config", configPath,
		"acquire", "--home", testHome, "--scope", "User.Read", "--show-token")
	if code != exitOK {
		t.Fatalf("acquire exit = %d, stderr %q", code, stderr)
	}
	if !strings.Contains(out, "source: cache") || !strings.Contains(out, "access_token: at-cached") {
		t.Errorf("acquire output = %q", out)
	}
	if n := srv.calls.Load(); n != 0 {
		t.Errorf("token endpoint calls = %d, want 0", n)
	}
}

func TestAcquire_RefreshesAndPersists(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")
	srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != "rt-1" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_request"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token_type":    "Bearer",
			"access_token":  "at-fresh",
			"refresh_token": "rt-2",
			"expires_in":    3600,
			"scope":         "Mail.Read",
		})
	})
	configPath := writeConfig(t, dir, srv.URL)
	seedCache(t, cachePath, accessToken("at-old", "User.Read", time.Hour), refreshToken("rt-1"))

	args := []string{"--cache", cachePath, "--config", configPath,
		"acquire", "--home", testHome, "--scope", "Mail.Read", "--show-token"}
	code, out, stderr := execute(t, args...)
	if code != exitOK {
		t.Fatalf("acquire exit = %d, stderr %q", code, stderr)
	}
	if !strings.Contains(out, "source: identity_provider") || !strings.Contains(out, "access_token: at-fresh") {
		t.Errorf("acquire output = %q", out)
	}

	// The new token was written back to the file, so a second process hits it.
	code, out, stderr = execute(t, args...)
	if code != exitOK {
		t.Fatalf("second acquire exit = %d, stderr %q", code, stderr)
	}
	if !strings.Contains(out, "source: cache") {
		t.Errorf("second acquire output = %q", out)
	}
	if n := srv.calls.Load(); n != 1 {
		t.Errorf("token endpoint calls = %d, want 1", n)
	}
}

func TestAcquire_InteractionRequired(t *testing.T) {
	tests := []struct {
		name    string
		rt      *tokencache.RefreshToken
		respond func(w http.ResponseWriter, r *http.Request)
	}{
		{
			name: "no refresh token",
		},
		{
			name: "refresh token rejected",
			rt:   refreshToken("rt-revoked"),
			respond: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"revoked"}`))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cachePath := filepath.Join(dir, "cache.json")
			respond := tt.respond
			if respond == nil {
				respond = func(w http.ResponseWriter, _ *http.Request) {
					http.Error(w, "unexpected", http.StatusInternalServerError)
				}
			}
			srv := newTokenServer(t, respond)
			configPath := writeConfig(t, dir, srv.URL)
			seedCache(t, cachePath, nil, tt.rt)

			code, _, stderr := execute(t, "--cache", cachePath, "--config", configPath,
				"acquire", "--home", testHome, "--scope", "User.Read")
			if code != exitInteractionRequired {
				t.Errorf("exit = %d, want %d (stderr %q)", code, exitInteractionRequired, stderr)
			}
			if !strings.Contains(stderr, "Error:") {
				t.Errorf("stderr = %q", stderr)
			}
		})
	}
}

func TestRemoveAccount(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")
	srv := newTokenServer(t, http.NotFound)
	configPath := writeConfig(t, dir, srv.URL)
	seedCache(t, cachePath, accessToken("at-1", "User.Read", time.Hour), refreshToken("rt-1"))

	code, out, stderr := execute(t, "--cache", cachePath, "--config", configPath, "remove-account", testHome)
	if code != exitOK {
		t.Fatalf("remove-account exit = %d, stderr %q", code, stderr)
	}
	if !strings.Contains(out, "Removed account "+testHome) {
		t.Errorf("remove-account output = %q", out)
	}

	_, out, _ = execute(t, "--cache", cachePath, "accounts")
	if !strings.Contains(out, "No accounts cached.") {
		t.Errorf("accounts after remove = %q", out)
	}
	_, out, _ = execute(t, "--cache", cachePath, "tokens")
	if !strings.Contains(out, "No tokens cached.") {
		t.Errorf("tokens after remove = %q", out)
	}

	code, _, _ = execute(t, "--cache", cachePath, "--config", configPath, "remove-account", testHome)
	if code != exitError {
		t.Errorf("removing an unknown account exit = %d, want %d", code, exitError)
	}
}

func TestConfigRequired(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.json")
	for _, args := range [][]string{
		{"--cache", cachePath, "remove-account", testHome},
		{"--cache", cachePath, "acquire", "--home", testHome, "--scope", "User.Read"},
	} {
		code, _, stderr := execute(t, args...)
		if code != exitError || !strings.Contains(stderr, "--config is required") {
			t.Errorf("%v = %d %q", args, code, stderr)
		}
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain", errors.New("boom"), exitError},
		{"interaction", &auth.Error{Kind: auth.KindInteraction}, exitInteractionRequired},
		{"invalid grant", fmt.Errorf("acquire: %w", &auth.Error{Kind: auth.KindInvalidGrant}), exitInteractionRequired},
		{"throttled", &auth.Error{Kind: auth.KindThrottled, RetryAfter: time.Minute}, exitThrottled},
		{"service", &auth.Error{Kind: auth.KindService}, exitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDoctor(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		cachePath := filepath.Join(t.TempDir(), "cache.json")
		seedCache(t, cachePath, nil, refreshToken("rt-1"))

		code, out, stderr := execute(t, "--cache", cachePath, "doctor")
		if code != exitOK {
			t.Fatalf("doctor exit = %d, stderr %q", code, stderr)
		}
		if !strings.Contains(out, "readable") || !strings.Contains(out, "overall: healthy") {
			t.Errorf("doctor output = %q", out)
		}
	})

	t.Run("account without refresh token", func(t *testing.T) {
		cachePath := filepath.Join(t.TempDir(), "cache.json")
		seedCache(t, cachePath, nil, nil)

		code, out, stderr := execute(t, "--cache", cachePath, "doctor")
		if code != exitOK {
			t.Fatalf("doctor exit = %d, stderr %q", code, stderr)
		}
		if !strings.Contains(out, "degraded") || !strings.Contains(out, "overall: degraded") {
			t.Errorf("doctor output = %q", out)
		}
	})

	t.Run("malformed cache", func(t *testing.T) {
		cachePath := filepath.Join(t.TempDir(), "cache.json")
		if err := os.WriteFile(cachePath, []byte("{not json"), 0o600); err != nil {
			t.Fatal(err)
		}

		code, out, _ := execute(t, "--cache", cachePath, "doctor")
		if code != exitError {
			t.Errorf("doctor exit = %d, want %d", code, exitError)
		}
		if !strings.Contains(out, "malformed") || !strings.Contains(out, "overall: unhealthy") {
			t.Errorf("doctor output = %q", out)
		}
	})

	t.Run("authority not discoverable", func(t *testing.T) {
		dir := t.TempDir()
		cachePath := filepath.Join(dir, "cache.json")
		srv := newTokenServer(t, http.NotFound)
		configPath := writeConfig(t, dir, srv.URL)

		code, out, _ := execute(t, "--cache", cachePath, "--config", configPath, "doctor")
		if code != exitError {
			t.Errorf("doctor exit = %d, want %d", code, exitError)
		}
		if !strings.Contains(out, "discovery") || !strings.Contains(out, "overall: unhealthy") {
			t.Errorf("doctor output = %q", out)
		}
	})
}
