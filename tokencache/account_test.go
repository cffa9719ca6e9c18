package tokencache

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestDecodeClientInfo(t *testing.T) {
	raw := encodeClientInfo(t, "uid", "utid")
	padded := base64.URLEncoding.EncodeToString([]byte(`{"uid":"uid","utid":"utid"}`))
	std := base64.StdEncoding.EncodeToString([]byte(`{"uid":"u+/","utid":"t"}`))

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{"raw url", raw, "uid.utid", nil},
		{"padded", padded, "uid.utid", nil},
		{"std alphabet", std, "u+/.t", nil},
		{"empty", "", "", nil},
		{"not base64", "%%%", "", ErrMalformedClientInfo},
		{"not json", base64.RawURLEncoding.EncodeToString([]byte("nope")), "", ErrMalformedClientInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ci, err := DecodeClientInfo(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeClientInfo: %v", err)
			}
			if got := ci.HomeAccountID(); got != tt.want {
				t.Errorf("HomeAccountID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewAccount(t *testing.T) {
	claims := IDTokenClaims{
		Subject:           "sub",
		ObjectID:          "oid",
		TenantID:          "utid",
		Name:              "Ada",
		PreferredUsername: "ada@example.com",
		Raw:               map[string]any{"oid": "oid"},
	}

	home := NewAccount("oid.utid", "login.example.com", "utid", "", claims)
	if home.LocalAccountID != "oid" || home.Username != "ada@example.com" || home.Name != "Ada" {
		t.Errorf("unexpected account: %+v", home)
	}
	if p := home.TenantProfiles["utid"]; !p.IsHomeTenant || p.LocalAccountID != "oid" {
		t.Errorf("home tenant profile = %+v", p)
	}

	guest := NewAccount("oid.utid", "login.example.com", "other", "", claims)
	if guest.TenantProfiles["other"].IsHomeTenant {
		t.Error("guest tenant marked as home")
	}

	merged := home.merge(guest)
	if len(merged.TenantProfiles) != 2 || merged.Realm != "other" {
		t.Errorf("merged = %+v", merged)
	}
	if len(home.TenantProfiles) != 1 {
		t.Error("merge mutated its receiver")
	}
}
