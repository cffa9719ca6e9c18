package tokencache

import (
	"reflect"
	"testing"
)

func TestScopeSet(t *testing.T) {
	granted := ParseTarget("User.Read  Mail.Read Calendars.Read")

	tests := []struct {
		name      string
		requested []string
		want      bool
	}{
		{"subset", []string{"user.read", "MAIL.READ"}, true},
		{"equal", []string{"calendars.read", "mail.read", "user.read"}, true},
		{"superset", []string{"user.read", "files.read"}, false},
		{"empty", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := granted.ContainsAll(NewScopeSet(tt.requested...)); got != tt.want {
				t.Errorf("ContainsAll(%v) = %v, want %v", tt.requested, got, tt.want)
			}
		})
	}
}

func TestScopeSet_Intersects(t *testing.T) {
	a := NewScopeSet("a", "b")
	if !a.Intersects(NewScopeSet("B", "c")) {
		t.Error("expected intersection on b")
	}
	if a.Intersects(NewScopeSet("c")) {
		t.Error("unexpected intersection")
	}
}

func TestScopeSet_WithoutReserved(t *testing.T) {
	got := NewScopeSet("openid", "Profile", "offline_access", "user.read").WithoutReserved().Sorted()
	if want := []string{"user.read"}; !reflect.DeepEqual(got, want) {
		t.Errorf("WithoutReserved = %v, want %v", got, want)
	}
}

func TestJoinScopes(t *testing.T) {
	got := JoinScopes([]string{"User.Read", " ", "mail.read", "user.read"})
	if want := "User.Read mail.read"; got != want {
		t.Errorf("JoinScopes = %q, want %q", got, want)
	}
}

func TestNormalizeScopes(t *testing.T) {
	got := NormalizeScopes([]string{"Mail.Read", "openid", "user.read", "mail.read"})
	if want := []string{"mail.read", "user.read"}; !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeScopes = %v, want %v", got, want)
	}
}
