package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type fakeRevocationStore struct {
	blacklist   map[string]BlacklistedToken
	revocations map[uuid.UUID]time.Time
}

func newFakeRevocationStore() *fakeRevocationStore {
	return &fakeRevocationStore{
		blacklist:   make(map[string]BlacklistedToken),
		revocations: make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeRevocationStore) InsertBlacklisted(_ context.Context, token BlacklistedToken) error {
	if _, exists := f.blacklist[token.JTI]; !exists {
		f.blacklist[token.JTI] = token
	}
	return nil
}

func (f *fakeRevocationStore) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	_, ok := f.blacklist[jti]
	return ok, nil
}

func (f *fakeRevocationStore) DeleteExpiredBlacklisted(_ context.Context, before time.Time) (int64, error) {
	var removed int64
	for jti, token := range f.blacklist {
		if token.ExpiresAt.Before(before) {
			delete(f.blacklist, jti)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeRevocationStore) UpsertRevocation(_ context.Context, userID uuid.UUID, revokedAt time.Time) error {
	if existing, ok := f.revocations[userID]; !ok || revokedAt.After(existing) {
		f.revocations[userID] = revokedAt
	}
	return nil
}

func (f *fakeRevocationStore) RevocationTime(_ context.Context, userID uuid.UUID) (time.Time, bool, error) {
	at, ok := f.revocations[userID]
	return at, ok, nil
}

func claimsAt(userID uuid.UUID, issuedAt time.Time, jti string) *Claims {
	return &Claims{
		UserID:    userID,
		TenantID:  uuid.New(),
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(15 * time.Minute)),
		},
	}
}

func TestRevokeBlacklistsJTI(t *testing.T) {
	ctx := context.Background()
	store := newFakeRevocationStore()
	rev := NewRevoker(store)

	claims := claimsAt(uuid.New(), time.Now().UTC(), "jti-1")
	if err := rev.Revoke(ctx, claims, "logout"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	revoked, err := rev.IsRevoked(ctx, claims)
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if !revoked {
		t.Fatal("expected blacklisted token to be revoked")
	}
	if store.blacklist["jti-1"].Reason != "logout" {
		t.Fatalf("reason = %q, want logout", store.blacklist["jti-1"].Reason)
	}
}

func TestRevokeWithoutJTIIsNoop(t *testing.T) {
	ctx := context.Background()
	store := newFakeRevocationStore()
	rev := NewRevoker(store)

	if err := rev.Revoke(ctx, nil, "logout"); err != nil {
		t.Fatalf("Revoke nil claims: %v", err)
	}
	if err := rev.Revoke(ctx, claimsAt(uuid.New(), time.Now(), ""), "logout"); err != nil {
		t.Fatalf("Revoke empty jti: %v", err)
	}
	if len(store.blacklist) != 0 {
		t.Fatalf("expected empty blacklist, got %d entries", len(store.blacklist))
	}
}

func TestRevokeAllCutoff(t *testing.T) {
	ctx := context.Background()
	store := newFakeRevocationStore()
	cutoff := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rev := NewRevoker(store, WithRevokerClock(func() time.Time { return cutoff }))

	userID := uuid.New()
	if err := rev.RevokeAll(ctx, userID); err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}

	cases := []struct {
		name     string
		issuedAt time.Time
		want     bool
	}{
		{"issued before cutoff", cutoff.Add(-time.Hour), true},
		{"issued exactly at cutoff", cutoff, true},
		{"issued after cutoff", cutoff.Add(time.Second), false},
	}
	for _, tc := range cases {
		revoked, err := rev.IsRevoked(ctx, claimsAt(userID, tc.issuedAt, uuid.NewString()))
		if err != nil {
			t.Fatalf("%s: IsRevoked: %v", tc.name, err)
		}
		if revoked != tc.want {
			t.Fatalf("%s: revoked = %v, want %v", tc.name, revoked, tc.want)
		}
	}
}

func TestRevokeAllDoesNotAffectOtherUsers(t *testing.T) {
	ctx := context.Background()
	store := newFakeRevocationStore()
	rev := NewRevoker(store)

	victim, bystander := uuid.New(), uuid.New()
	if err := rev.RevokeAll(ctx, victim); err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}

	revoked, err := rev.IsRevoked(ctx, claimsAt(bystander, time.Now().Add(-time.Hour), uuid.NewString()))
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if revoked {
		t.Fatal("another user's tokens must not be revoked")
	}
}

func TestIsRevokedUntouchedToken(t *testing.T) {
	ctx := context.Background()
	rev := NewRevoker(newFakeRevocationStore())

	revoked, err := rev.IsRevoked(ctx, claimsAt(uuid.New(), time.Now(), uuid.NewString()))
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if revoked {
		t.Fatal("fresh token should not be revoked")
	}
}

func TestCleanupExpiredKeepsLiveEntries(t *testing.T) {
	ctx := context.Background()
	store := newFakeRevocationStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rev := NewRevoker(store, WithRevokerClock(func() time.Time { return now }))

	expired := claimsAt(uuid.New(), now.Add(-time.Hour), "expired")
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
	live := claimsAt(uuid.New(), now, "live")

	if err := rev.Revoke(ctx, expired, "logout"); err != nil {
		t.Fatalf("Revoke expired: %v", err)
	}
	if err := rev.Revoke(ctx, live, "logout"); err != nil {
		t.Fatalf("Revoke live: %v", err)
	}

	removed, err := rev.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok := store.blacklist["live"]; !ok {
		t.Fatal("live entry must survive cleanup")
	}
}
