package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	defaultIssuer     = "storegrid"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour
)

// Claims is the full claim set carried by every token the service signs.
type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	TokenType string    `json:"type"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies access and refresh tokens with a single
// symmetric HS256 key. All dependencies are passed explicitly; nothing is
// read from the environment.
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// TokenOption configures TokenService.
type TokenOption func(*TokenService)

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(d time.Duration) TokenOption {
	return func(s *TokenService) {
		if d > 0 {
			s.accessTTL = d
		}
	}
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(d time.Duration) TokenOption {
	return func(s *TokenService) {
		if d > 0 {
			s.refreshTTL = d
		}
	}
}

// WithIssuer overrides the iss claim.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) {
		if issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithTokenClock overrides the time source. Intended for tests.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenService constructs a TokenService. The secret must not be empty.
func NewTokenService(secret []byte, opts ...TokenOption) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	s := &TokenService{
		secret:     secret,
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// IssueAccess signs a short-lived access token for the user in the tenant.
func (s *TokenService) IssueAccess(userID, tenantID uuid.UUID) (string, *Claims, error) {
	return s.issue(userID, tenantID, TokenTypeAccess, s.accessTTL)
}

// IssueRefresh signs a long-lived refresh token for the user in the tenant.
func (s *TokenService) IssueRefresh(userID, tenantID uuid.UUID) (string, *Claims, error) {
	return s.issue(userID, tenantID, TokenTypeRefresh, s.refreshTTL)
}

// IssuePair issues matching access and refresh tokens.
func (s *TokenService) IssuePair(userID, tenantID uuid.UUID) (TokenPair, error) {
	access, _, err := s.IssueAccess(userID, tenantID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := s.IssueRefresh(userID, tenantID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL / time.Second),
	}, nil
}

func (s *TokenService) issue(userID, tenantID uuid.UUID, tokenType string, ttl time.Duration) (string, *Claims, error) {
	if userID == uuid.Nil || tenantID == uuid.Nil {
		return "", nil, fmt.Errorf("%w: user and tenant ids are required", ErrInvalidInput)
	}
	now := s.now().UTC()
	claims := Claims{
		UserID:    userID,
		TenantID:  tenantID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, &claims, nil
}

// Decode verifies signature and expiry and returns the claims. Expired
// tokens fail with ErrTokenExpired, everything else with ErrInvalidToken.
func (s *TokenService) Decode(token string) (*Claims, error) {
	return s.parse(token)
}

// DecodeExpired verifies the signature but skips expiry validation. Used by
// logout, which still blacklists tokens that have already run out.
func (s *TokenService) DecodeExpired(token string) (*Claims, error) {
	return s.parse(token, jwt.WithoutClaimsValidation())
}

func (s *TokenService) parse(token string, extra ...jwt.ParserOption) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	opts := append([]jwt.ParserOption{
		jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }),
	}, extra...)
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := validateClaims(claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func validateClaims(claims *Claims) error {
	if claims.UserID == uuid.Nil || claims.TenantID == uuid.Nil {
		return errors.New("required claims missing")
	}
	if claims.TokenType != TokenTypeAccess && claims.TokenType != TokenTypeRefresh {
		return fmt.Errorf("unexpected token type: %s", claims.TokenType)
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return errors.New("timestamps missing")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}

// VerifyType checks the type claim against the expected token class.
func VerifyType(claims *Claims, want string) error {
	if claims == nil || claims.TokenType != want {
		return ErrInvalidToken
	}
	return nil
}
