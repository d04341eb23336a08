package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"storegrid.io/internal/auth"
)

var _ auth.RevocationStore = (*Store)(nil)

// InsertBlacklisted records a revoked token. Re-blacklisting the same jti
// is a no-op so logout stays idempotent.
func (s *Store) InsertBlacklisted(ctx context.Context, token auth.BlacklistedToken) error {
	_, err := s.db.ExecContext(ctx, `
		insert into blacklisted_tokens (jti, user_id, token_type, expires_at, blacklisted_at, reason)
		values ($1, $2, $3, $4, $5, $6)
		on conflict (jti) do nothing
	`, token.JTI, token.UserID, token.TokenType, token.ExpiresAt, token.BlacklistedAt, nullIfEmpty(token.Reason))
	return err
}

func (s *Store) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		select 1 from blacklisted_tokens where jti = $1
	`, jti).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) DeleteExpiredBlacklisted(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		delete from blacklisted_tokens where expires_at < $1
	`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpsertRevocation moves the user's revoke-all cutoff forward. The cutoff
// never moves backwards even if calls race.
func (s *Store) UpsertRevocation(ctx context.Context, userID uuid.UUID, revokedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_token_revocations (user_id, revoked_at, updated_at)
		values ($1, $2, now())
		on conflict (user_id) do update
		set revoked_at = greatest(user_token_revocations.revoked_at, excluded.revoked_at),
		    updated_at = now()
	`, userID, revokedAt)
	return err
}

func (s *Store) RevocationTime(ctx context.Context, userID uuid.UUID) (time.Time, bool, error) {
	var revokedAt time.Time
	err := s.db.QueryRowContext(ctx, `
		select revoked_at from user_token_revocations where user_id = $1
	`, userID).Scan(&revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return revokedAt, true, nil
}
