package auth

import (
	"context"

	"github.com/google/uuid"
)

// IdentityStore is the read surface the per-request resolvers depend on.
// Implementations must take tenant and user ids as explicit parameters;
// nothing is inferred from ambient state.
type IdentityStore interface {
	UserByID(ctx context.Context, id uuid.UUID) (User, error)
	TenantByID(ctx context.Context, id uuid.UUID) (Tenant, error)
	Membership(ctx context.Context, userID, tenantID uuid.UUID) (Membership, error)
	// StoreByID returns a store only if it belongs to the tenant and is not
	// soft-deleted.
	StoreByID(ctx context.Context, tenantID, storeID uuid.UUID) (Store, error)
	StoreAssignment(ctx context.Context, userID, storeID, tenantID uuid.UUID) (StoreAssignment, error)
}

// GrantStore feeds the permission aggregator.
type GrantStore interface {
	// AssignedRoleIDs returns role ids from tenant-wide assignments plus,
	// when storeID is non-nil, assignments scoped to exactly that store.
	AssignedRoleIDs(ctx context.Context, userID, tenantID uuid.UUID, storeID *uuid.UUID) ([]uuid.UUID, error)
	RolePermissionNames(ctx context.Context, roleIDs []uuid.UUID) ([]string, error)
}

// AccountSetup carries everything needed to provision a new user with a
// fresh tenant in one transaction.
type AccountSetup struct {
	Email        string
	PasswordHash string
	FullName     string
	TenantName   string
	TenantSlug   string
}

// ServiceStore is the persistence surface of the account service.
type ServiceStore interface {
	IdentityStore

	UserByEmail(ctx context.Context, email string) (User, error)
	CountUsers(ctx context.Context) (int64, error)
	// CreateAccount creates user, tenant, membership, the default role set
	// and the Owner assignment atomically.
	CreateAccount(ctx context.Context, setup AccountSetup) (User, Tenant, error)
}
