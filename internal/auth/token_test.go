package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestTokens(t *testing.T, now func() time.Time) *TokenService {
	t.Helper()
	svc, err := NewTokenService(testSecret, WithTokenClock(now))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	if _, err := NewTokenService(nil); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestIssueAndDecodeRoundTrip(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTokens(t, func() time.Time { return base })

	userID, tenantID := uuid.New(), uuid.New()
	token, issued, err := svc.IssueAccess(userID, tenantID)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if issued.ID == "" {
		t.Fatal("expected a jti on issued claims")
	}

	claims, err := svc.Decode(token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.UserID != userID || claims.TenantID != tenantID {
		t.Fatalf("claims = %v/%v, want %v/%v", claims.UserID, claims.TenantID, userID, tenantID)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Fatalf("token type = %q, want access", claims.TokenType)
	}
	if claims.ID != issued.ID {
		t.Fatalf("jti = %q, want %q", claims.ID, issued.ID)
	}
	if got := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time); got != defaultAccessTTL {
		t.Fatalf("lifetime = %v, want %v", got, defaultAccessTTL)
	}
}

func TestIssueRejectsNilIDs(t *testing.T) {
	svc := newTestTokens(t, time.Now)
	if _, _, err := svc.IssueAccess(uuid.Nil, uuid.New()); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if _, _, err := svc.IssueRefresh(uuid.New(), uuid.Nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestDecodeExpiredToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestTokens(t, func() time.Time { return now })

	token, _, err := svc.IssueAccess(uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	// Advance past the access TTL.
	now = now.Add(defaultAccessTTL + time.Minute)
	if _, err := svc.Decode(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}

	// DecodeExpired still verifies the signature but accepts the expiry.
	claims, err := svc.DecodeExpired(token)
	if err != nil {
		t.Fatalf("DecodeExpired: %v", err)
	}
	if claims.ID == "" {
		t.Fatal("expected jti from expired decode")
	}
}

func TestDecodeRejectsWrongKey(t *testing.T) {
	svc := newTestTokens(t, time.Now)
	other, err := NewTokenService([]byte("another-secret-another-secret-xx"))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	token, _, err := other.IssueAccess(uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := svc.Decode(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
	// The signature check also applies to the expiry-tolerant path.
	if _, err := svc.DecodeExpired(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("DecodeExpired err = %v, want ErrInvalidToken", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	svc := newTestTokens(t, time.Now)
	for _, token := range []string{"", "  ", "not-a-token", "a.b.c"} {
		if _, err := svc.Decode(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Decode(%q) err = %v, want ErrInvalidToken", token, err)
		}
	}
}

func TestIssuePair(t *testing.T) {
	svc := newTestTokens(t, time.Now)
	pair, err := svc.IssuePair(uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if pair.TokenType != "Bearer" {
		t.Fatalf("token type = %q, want Bearer", pair.TokenType)
	}
	if pair.ExpiresIn != int64(defaultAccessTTL/time.Second) {
		t.Fatalf("expires_in = %d, want %d", pair.ExpiresIn, int64(defaultAccessTTL/time.Second))
	}

	access, err := svc.Decode(pair.AccessToken)
	if err != nil {
		t.Fatalf("decode access: %v", err)
	}
	refresh, err := svc.Decode(pair.RefreshToken)
	if err != nil {
		t.Fatalf("decode refresh: %v", err)
	}
	if access.TokenType != TokenTypeAccess || refresh.TokenType != TokenTypeRefresh {
		t.Fatalf("types = %q/%q", access.TokenType, refresh.TokenType)
	}
	if access.ID == refresh.ID {
		t.Fatal("access and refresh must carry distinct jtis")
	}
}

func TestVerifyType(t *testing.T) {
	svc := newTestTokens(t, time.Now)
	_, claims, err := svc.IssueRefresh(uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if err := VerifyType(claims, TokenTypeRefresh); err != nil {
		t.Fatalf("VerifyType refresh: %v", err)
	}
	if err := VerifyType(claims, TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
	if err := VerifyType(nil, TokenTypeAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("nil claims err = %v, want ErrInvalidToken", err)
	}
}
