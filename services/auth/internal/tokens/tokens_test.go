package tokens

import (
	"strings"
	"testing"
	"time"
)

func newService() Service {
	return Service{
		Secret:          []byte("test-jwt-secret-32-bytes-padded!"),
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}
}

func TestNewAccessToken_Roundtrip(t *testing.T) {
	svc := newService()
	now := time.Now().UTC()

	tok, exp, err := svc.NewAccessToken("user-1", "admin", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok == "" {
		t.Fatal("expected non-empty token")
	}
	if !exp.After(now) {
		t.Fatalf("expected expiry after now, got %v", exp)
	}

	claims, err := svc.ParseAccessToken(tok)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.Subject != "user-1" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: subject=%q role=%q", claims.Subject, claims.Role)
	}
}

func TestNewAccessToken_MissingSecret(t *testing.T) {
	svc := Service{Secret: nil, AccessTokenTTL: time.Hour}
	if _, _, err := svc.NewAccessToken("user-1", "user", time.Now()); err == nil {
		t.Fatal("expected error when secret is empty")
	}
}

func TestNewAccessToken_ZeroTimeUsesNow(t *testing.T) {
	svc := newService()
	before := time.Now().Add(-time.Second)
	tok, exp, err := svc.NewAccessToken("user-1", "user", time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exp.After(before) {
		t.Fatalf("expected expiry after %v, got %v", before, exp)
	}
	if _, err := svc.ParseAccessToken(tok); err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
}

func TestParseAccessToken_Rejections(t *testing.T) {
	svc := newService()
	valid, _, err := svc.NewAccessToken("user-1", "user", time.Now())
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	parts := strings.Split(valid, ".")
	if len(parts) != 3 {
		t.Fatal("expected 3 JWT parts")
	}

	expiredSvc := Service{Secret: svc.Secret, AccessTokenTTL: -time.Hour}
	expired, _, err := expiredSvc.NewAccessToken("user-1", "user", time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}

	cases := []struct {
		name    string
		service Service
		token   string
	}{
		{"expired", svc, expired},
		{"wrong secret", Service{Secret: []byte("different-secret-32-bytes-padded"), AccessTokenTTL: time.Hour}, valid},
		{"malformed", svc, "not-a-jwt"},
		{"tampered payload", svc, parts[0] + ".dGFtcGVyZWQ." + parts[2]},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.service.ParseAccessToken(tc.token); err == nil {
				t.Fatal("expected ParseAccessToken to fail")
			}
		})
	}
}

func TestNewRefreshToken_Unique(t *testing.T) {
	raw1, hash1, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	raw2, hash2, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	if raw1 == "" || hash1 == "" {
		t.Fatal("expected non-empty raw and hash")
	}
	if raw1 == raw2 || hash1 == hash2 {
		t.Fatal("expected unique tokens per call")
	}
}

func TestHashToken_MatchesStoredForm(t *testing.T) {
	raw, hash, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	if HashToken(raw) != hash {
		t.Fatal("HashToken(raw) must equal the hash returned at mint time")
	}
	// sha256 hex
	if len(hash) != 64 {
		t.Fatalf("expected 64-char hash, got %d", len(hash))
	}
}
