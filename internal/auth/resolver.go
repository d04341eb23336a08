package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Resolver turns a bearer token into a fully validated request identity and,
// when asked, a store selection. Every check runs against the database on
// every request: revoking a session, removing a membership or suspending a
// tenant takes effect on the next call, not at token expiry.
type Resolver struct {
	tokens  *TokenService
	store   IdentityStore
	revoker *Revoker
}

// NewResolver constructs a Resolver.
func NewResolver(tokens *TokenService, store IdentityStore, revoker *Revoker) *Resolver {
	return &Resolver{tokens: tokens, store: store, revoker: revoker}
}

// ResolveIdentity validates the raw access token and loads user, tenant and
// membership. The checks run in a fixed order and the first failure wins:
// signature/expiry, token type, revocation, user exists, user active,
// tenant exists and not deleted, tenant not suspended, membership.
func (r *Resolver) ResolveIdentity(ctx context.Context, rawToken string) (Identity, error) {
	claims, err := r.tokens.Decode(rawToken)
	if err != nil {
		return Identity{}, err
	}
	if err := VerifyType(claims, TokenTypeAccess); err != nil {
		return Identity{}, fmt.Errorf("%w: wrong token type", ErrInvalidToken)
	}
	if r.revoker != nil {
		revoked, err := r.revoker.IsRevoked(ctx, claims)
		if err != nil {
			return Identity{}, err
		}
		if revoked {
			return Identity{}, fmt.Errorf("%w: token revoked", ErrUnauthorized)
		}
	}

	user, err := r.store.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, ErrUserNotFound
		}
		return Identity{}, err
	}
	if !user.IsActive {
		return Identity{}, ErrUserInactive
	}

	tenant, err := r.store.TenantByID(ctx, claims.TenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, ErrTenantNotFound
		}
		return Identity{}, err
	}
	if tenant.Deleted() {
		return Identity{}, ErrTenantNotFound
	}
	if tenant.Status == TenantSuspended {
		return Identity{}, ErrTenantSuspended
	}

	membership, err := r.store.Membership(ctx, user.ID, tenant.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, ErrTenantAccessDenied
		}
		return Identity{}, err
	}

	return Identity{User: user, Tenant: tenant, Membership: membership}, nil
}

// ResolveStore validates the store selection header value against the
// resolved identity. Unknown, deleted, foreign-tenant and inactive stores
// all come back as ErrStoreNotFound; a valid store the user is not assigned
// to is ErrStoreAccessDenied.
func (r *Resolver) ResolveStore(ctx context.Context, ident Identity, storeID string) (Store, error) {
	id, err := uuid.Parse(storeID)
	if err != nil {
		return Store{}, fmt.Errorf("%w: invalid store id", ErrStoreNotFound)
	}

	store, err := r.store.StoreByID(ctx, ident.Tenant.ID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Store{}, ErrStoreNotFound
		}
		return Store{}, err
	}
	if !store.IsActive {
		return Store{}, fmt.Errorf("%w: store is inactive", ErrStoreNotFound)
	}

	if _, err := r.store.StoreAssignment(ctx, ident.User.ID, store.ID, ident.Tenant.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Store{}, ErrStoreAccessDenied
		}
		return Store{}, err
	}
	return store, nil
}
