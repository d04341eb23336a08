package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service implements the account flows: login, register, bootstrap, token
// refresh, logout and tenant switching. It owns no HTTP concerns; handlers
// translate its sentinel errors to status codes.
type Service struct {
	store   ServiceStore
	tokens  *TokenService
	revoker *Revoker
	now     func() time.Time
}

// ServiceOption configures Service.
type ServiceOption func(*Service)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs the account service.
func NewService(store ServiceStore, tokens *TokenService, revoker *Revoker, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		tokens:  tokens,
		revoker: revoker,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Revoker exposes the underlying revoker for background cleanup wiring.
func (s *Service) Revoker() *Revoker { return s.revoker }

// Login authenticates the user against one of their tenants and issues a
// token pair. Unknown emails and wrong passwords both come back as
// ErrInvalidCredentials so callers cannot probe for accounts.
func (s *Service) Login(ctx context.Context, email, password string, tenantID uuid.UUID) (User, TokenPair, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return User{}, TokenPair{}, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, TokenPair{}, ErrInvalidCredentials
		}
		return User{}, TokenPair{}, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return User{}, TokenPair{}, err
	}
	if !user.IsActive {
		return User{}, TokenPair{}, ErrUserInactive
	}

	if err := s.checkTenantAccess(ctx, user.ID, tenantID, false); err != nil {
		return User{}, TokenPair{}, err
	}

	pair, err := s.tokens.IssuePair(user.ID, tenantID)
	if err != nil {
		return User{}, TokenPair{}, err
	}
	return user, pair, nil
}

// RegisterParams is the input for Register and Bootstrap.
type RegisterParams struct {
	Email      string
	Password   string
	FullName   string
	TenantName string
	TenantSlug string
}

// Register provisions a new user with a fresh trial tenant, seeds the
// default roles, grants the registrant Owner tenant-wide and signs them in.
func (s *Service) Register(ctx context.Context, params RegisterParams) (User, Tenant, TokenPair, error) {
	params.Email = normalizeEmail(params.Email)
	if params.Email == "" {
		return User{}, Tenant{}, TokenPair{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(params.TenantName) == "" {
		return User{}, Tenant{}, TokenPair{}, fmt.Errorf("%w: tenant name is required", ErrInvalidInput)
	}
	slug := normalizeSlug(params.TenantSlug)
	if slug == "" {
		slug = normalizeSlug(params.TenantName)
	}
	if slug == "" {
		return User{}, Tenant{}, TokenPair{}, fmt.Errorf("%w: tenant slug is required", ErrInvalidInput)
	}

	hash, err := HashPassword(params.Password)
	if err != nil {
		return User{}, Tenant{}, TokenPair{}, err
	}

	user, tenant, err := s.store.CreateAccount(ctx, AccountSetup{
		Email:        params.Email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(params.FullName),
		TenantName:   strings.TrimSpace(params.TenantName),
		TenantSlug:   slug,
	})
	if err != nil {
		return User{}, Tenant{}, TokenPair{}, err
	}

	pair, err := s.tokens.IssuePair(user.ID, tenant.ID)
	if err != nil {
		return User{}, Tenant{}, TokenPair{}, err
	}
	return user, tenant, pair, nil
}

// Bootstrap is Register restricted to an empty installation. Once any user
// exists the endpoint is closed.
func (s *Service) Bootstrap(ctx context.Context, params RegisterParams) (User, Tenant, TokenPair, error) {
	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return User{}, Tenant{}, TokenPair{}, err
	}
	if count > 0 {
		return User{}, Tenant{}, TokenPair{}, fmt.Errorf("%w: already bootstrapped", ErrForbidden)
	}
	return s.Register(ctx, params)
}

// Refresh rotates a refresh token into a new pair. The used refresh token
// is blacklisted so it cannot be replayed, and user, tenant and membership
// are re-validated before anything is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.Decode(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	if err := VerifyType(claims, TokenTypeRefresh); err != nil {
		return TokenPair{}, fmt.Errorf("%w: wrong token type", ErrInvalidToken)
	}
	revoked, err := s.revoker.IsRevoked(ctx, claims)
	if err != nil {
		return TokenPair{}, err
	}
	if revoked {
		return TokenPair{}, fmt.Errorf("%w: token revoked", ErrUnauthorized)
	}

	user, err := s.store.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrUserNotFound
		}
		return TokenPair{}, err
	}
	if !user.IsActive {
		return TokenPair{}, ErrUserInactive
	}
	if err := s.checkTenantAccess(ctx, user.ID, claims.TenantID, false); err != nil {
		return TokenPair{}, err
	}

	if err := s.revoker.Revoke(ctx, claims, "refresh_rotation"); err != nil {
		return TokenPair{}, err
	}
	return s.tokens.IssuePair(user.ID, claims.TenantID)
}

// Logout blacklists the presented token. An expired token is still recorded
// and a token the service cannot decode is ignored, so logout never fails
// from the caller's point of view.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	claims, err := s.tokens.DecodeExpired(rawToken)
	if err != nil {
		return nil
	}
	return s.revoker.Revoke(ctx, claims, "logout")
}

// LogoutAll invalidates every session of the user across all devices.
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	return s.revoker.RevokeAll(ctx, userID)
}

// SwitchTenant issues a token pair for another tenant the user belongs to.
func (s *Service) SwitchTenant(ctx context.Context, userID, tenantID uuid.UUID) (TokenPair, error) {
	if err := s.checkTenantAccess(ctx, userID, tenantID, true); err != nil {
		return TokenPair{}, err
	}
	return s.tokens.IssuePair(userID, tenantID)
}

// checkTenantAccess validates tenant state and membership. Switching into a
// suspended or canceled tenant is rejected; login only rejects deleted
// tenants and leaves the rest to per-request resolution.
func (s *Service) checkTenantAccess(ctx context.Context, userID, tenantID uuid.UUID, strict bool) error {
	if tenantID == uuid.Nil {
		return fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	}
	tenant, err := s.store.TenantByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrTenantNotFound
		}
		return err
	}
	if tenant.Deleted() {
		return ErrTenantNotFound
	}
	if strict {
		if tenant.Status == TenantSuspended {
			return ErrTenantSuspended
		}
		if tenant.Status == TenantCanceled {
			return fmt.Errorf("%w: tenant is canceled", ErrTenantAccessDenied)
		}
	}
	if _, err := s.store.Membership(ctx, userID, tenantID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrTenantAccessDenied
		}
		return err
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeSlug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastDash := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case r == '-' || r == ' ' || r == '_':
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
