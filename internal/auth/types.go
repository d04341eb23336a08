package auth

import (
	"time"

	"github.com/google/uuid"
)

// TenantStatus is the lifecycle state of a tenant account.
type TenantStatus string

const (
	TenantTrial     TenantStatus = "trial"
	TenantActive    TenantStatus = "active"
	TenantSuspended TenantStatus = "suspended"
	TenantCanceled  TenantStatus = "canceled"
)

// User is a person that can sign in. A user may belong to several tenants.
type User struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	FullName      string     `json:"full_name"`
	IsActive      bool       `json:"is_active"`
	EmailVerified bool       `json:"email_verified"`
	VerifiedAt    *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Tenant is an isolated customer account. Soft delete sets DeletedAt and
// forces Status to canceled in the same statement.
type Tenant struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	Slug        string       `json:"slug"`
	Status      TenantStatus `json:"status"`
	TrialEndsAt *time.Time   `json:"trial_ends_at,omitempty"`
	DeletedAt   *time.Time   `json:"deleted_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Deleted reports whether the tenant has been soft-deleted.
func (t Tenant) Deleted() bool { return t.DeletedAt != nil }

// Membership links a user to a tenant. It is the sole gate for tenant access:
// no membership row means no access regardless of what a token claims.
type Membership struct {
	UserID    uuid.UUID  `json:"user_id"`
	TenantID  uuid.UUID  `json:"tenant_id"`
	JoinedAt  time.Time  `json:"joined_at"`
	InvitedBy *uuid.UUID `json:"invited_by,omitempty"`
}

// Store is a physical or virtual sales location inside a tenant.
type Store struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  uuid.UUID  `json:"tenant_id"`
	Name      string     `json:"name"`
	IsActive  bool       `json:"is_active"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// StoreAssignment grants a user access to one store within their tenant.
type StoreAssignment struct {
	UserID    uuid.UUID `json:"user_id"`
	StoreID   uuid.UUID `json:"store_id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Role is a tenant-scoped named set of permissions. System roles are seeded
// at registration and cannot be renamed or deleted.
type Role struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	IsSystemRole bool      `json:"is_system_role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Permission is one entry of the closed, code-defined catalog.
type Permission struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
	Description string    `json:"description,omitempty"`
}

// RoleAssignment binds a role to a user. A nil StoreID means the grant is
// tenant-wide; a concrete StoreID scopes it to that single store.
type RoleAssignment struct {
	UserID     uuid.UUID  `json:"user_id"`
	RoleID     uuid.UUID  `json:"role_id"`
	TenantID   uuid.UUID  `json:"tenant_id"`
	StoreID    *uuid.UUID `json:"store_id,omitempty"`
	AssignedAt time.Time  `json:"assigned_at"`
	AssignedBy *uuid.UUID `json:"assigned_by,omitempty"`
}

// Identity is the terminal state of a successful per-request resolution.
type Identity struct {
	User       User
	Tenant     Tenant
	Membership Membership
}

// TokenPair is what login, register, refresh and switch-tenant hand back.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// BlacklistedToken is a single revoked token, keyed by jti.
type BlacklistedToken struct {
	JTI           string    `json:"jti"`
	UserID        uuid.UUID `json:"user_id"`
	TokenType     string    `json:"token_type"`
	ExpiresAt     time.Time `json:"expires_at"`
	BlacklistedAt time.Time `json:"blacklisted_at"`
	Reason        string    `json:"reason,omitempty"`
}

// TenantUpdate carries optional tenant field changes.
type TenantUpdate struct {
	Name   *string
	Status *TenantStatus
}

// StoreUpdate carries optional store field changes.
type StoreUpdate struct {
	Name     *string
	IsActive *bool
}

// RoleUpdate carries optional role field changes.
type RoleUpdate struct {
	Name        *string
	Description *string
}
