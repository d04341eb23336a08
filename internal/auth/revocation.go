package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RevocationStore persists the jti blacklist and per-user revocation marks.
type RevocationStore interface {
	InsertBlacklisted(ctx context.Context, token BlacklistedToken) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	DeleteExpiredBlacklisted(ctx context.Context, before time.Time) (int64, error)
	UpsertRevocation(ctx context.Context, userID uuid.UUID, revokedAt time.Time) error
	RevocationTime(ctx context.Context, userID uuid.UUID) (time.Time, bool, error)
}

// Revoker invalidates tokens before their natural expiry. Individual tokens
// go on the jti blacklist; RevokeAll stamps a per-user cutoff that rejects
// every token issued at or before it.
type Revoker struct {
	store RevocationStore
	now   func() time.Time
}

// RevokerOption configures Revoker.
type RevokerOption func(*Revoker)

// WithRevokerClock overrides the time source. Intended for tests.
func WithRevokerClock(now func() time.Time) RevokerOption {
	return func(r *Revoker) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRevoker constructs a Revoker over the given store.
func NewRevoker(store RevocationStore, opts ...RevokerOption) *Revoker {
	r := &Revoker{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Revoke blacklists the single token described by claims. Tokens without a
// jti cannot be blacklisted and the call is a no-op.
func (r *Revoker) Revoke(ctx context.Context, claims *Claims, reason string) error {
	if claims == nil || claims.ID == "" {
		return nil
	}
	expires := r.now().UTC()
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	return r.store.InsertBlacklisted(ctx, BlacklistedToken{
		JTI:           claims.ID,
		UserID:        claims.UserID,
		TokenType:     claims.TokenType,
		ExpiresAt:     expires,
		BlacklistedAt: r.now().UTC(),
		Reason:        reason,
	})
}

// RevokeAll invalidates every outstanding session of the user by stamping
// the revocation cutoff at the current time.
func (r *Revoker) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return r.store.UpsertRevocation(ctx, userID, r.now().UTC())
}

// IsRevoked reports whether the token is individually blacklisted or was
// issued at or before the user's revoke-all cutoff. Timestamps compare at
// second resolution; an exact tie counts as revoked.
func (r *Revoker) IsRevoked(ctx context.Context, claims *Claims) (bool, error) {
	if claims == nil {
		return false, nil
	}
	if claims.ID != "" {
		listed, err := r.store.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			return false, err
		}
		if listed {
			return true, nil
		}
	}
	if claims.IssuedAt == nil {
		return false, nil
	}
	revokedAt, ok, err := r.store.RevocationTime(ctx, claims.UserID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return claims.IssuedAt.Time.Unix() <= revokedAt.Unix(), nil
}

// CleanupExpired removes blacklist rows whose tokens have expired anyway.
func (r *Revoker) CleanupExpired(ctx context.Context) (int64, error) {
	return r.store.DeleteExpiredBlacklisted(ctx, r.now().UTC())
}
