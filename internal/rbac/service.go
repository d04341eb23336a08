// Package rbac manages tenant-scoped roles, their permission grants and
// role assignments to users.
package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"storegrid.io/internal/auth"
)

// Store is the persistence surface for role management. All operations are
// tenant-scoped through explicit parameters.
type Store interface {
	CreateRole(ctx context.Context, tenantID uuid.UUID, name, description string, system bool) (auth.Role, error)
	ListRoles(ctx context.Context, tenantID uuid.UUID) ([]auth.Role, error)
	GetRole(ctx context.Context, tenantID, roleID uuid.UUID) (auth.Role, error)
	UpdateRole(ctx context.Context, roleID uuid.UUID, upd auth.RoleUpdate) (auth.Role, error)
	DeleteRole(ctx context.Context, roleID uuid.UUID) error

	SetRolePermissions(ctx context.Context, roleID uuid.UUID, names []string) error
	RolePermissions(ctx context.Context, roleID uuid.UUID) ([]string, error)
	ListPermissions(ctx context.Context) ([]auth.Permission, error)

	CreateAssignment(ctx context.Context, assignment auth.RoleAssignment) (auth.RoleAssignment, error)
	DeleteAssignment(ctx context.Context, userID, roleID uuid.UUID, storeID *uuid.UUID) error
	ListAssignments(ctx context.Context, tenantID, userID uuid.UUID) ([]auth.RoleAssignment, error)
}

// Service validates role operations before they reach the store. It leans
// on auth.IdentityStore to confirm that assignment targets actually belong
// to the tenant.
type Service struct {
	store Store
	dir   auth.IdentityStore
}

// NewService constructs the role management service.
func NewService(store Store, dir auth.IdentityStore) (*Service, error) {
	if store == nil {
		return nil, errors.New("rbac store is required")
	}
	if dir == nil {
		return nil, errors.New("identity store is required")
	}
	return &Service{store: store, dir: dir}, nil
}

// CreateRole adds a custom role to the tenant. Roles created through the
// API are never system roles.
func (s *Service) CreateRole(ctx context.Context, tenantID uuid.UUID, name, description string) (auth.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return auth.Role{}, fmt.Errorf("%w: role name is required", auth.ErrInvalidInput)
	}
	return s.store.CreateRole(ctx, tenantID, name, strings.TrimSpace(description), false)
}

// ListRoles returns all roles of the tenant.
func (s *Service) ListRoles(ctx context.Context, tenantID uuid.UUID) ([]auth.Role, error) {
	return s.store.ListRoles(ctx, tenantID)
}

// GetRole returns one role of the tenant.
func (s *Service) GetRole(ctx context.Context, tenantID, roleID uuid.UUID) (auth.Role, error) {
	return s.store.GetRole(ctx, tenantID, roleID)
}

// UpdateRole changes role fields. System roles keep their name; only the
// description may change.
func (s *Service) UpdateRole(ctx context.Context, tenantID, roleID uuid.UUID, upd auth.RoleUpdate) (auth.Role, error) {
	role, err := s.store.GetRole(ctx, tenantID, roleID)
	if err != nil {
		return auth.Role{}, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return auth.Role{}, fmt.Errorf("%w: role name is required", auth.ErrInvalidInput)
		}
		if role.IsSystemRole && name != role.Name {
			return auth.Role{}, fmt.Errorf("%w: system roles cannot be renamed", auth.ErrForbidden)
		}
		upd.Name = &name
	}
	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		upd.Description = &desc
	}
	return s.store.UpdateRole(ctx, roleID, upd)
}

// DeleteRole removes a custom role and its assignments. System roles cannot
// be deleted.
func (s *Service) DeleteRole(ctx context.Context, tenantID, roleID uuid.UUID) error {
	role, err := s.store.GetRole(ctx, tenantID, roleID)
	if err != nil {
		return err
	}
	if role.IsSystemRole {
		return fmt.Errorf("%w: system roles cannot be deleted", auth.ErrForbidden)
	}
	return s.store.DeleteRole(ctx, roleID)
}

// SetRolePermissions replaces the role's grants with the given catalog
// names. Unknown names are rejected before touching the store.
func (s *Service) SetRolePermissions(ctx context.Context, tenantID, roleID uuid.UUID, names []string) error {
	if _, err := s.store.GetRole(ctx, tenantID, roleID); err != nil {
		return err
	}
	deduped := dedupe(names)
	for _, name := range deduped {
		if !auth.KnownPermission(name) {
			return fmt.Errorf("%w: unknown permission %s", auth.ErrInvalidInput, name)
		}
	}
	return s.store.SetRolePermissions(ctx, roleID, deduped)
}

// RolePermissions lists the permission names granted to the role.
func (s *Service) RolePermissions(ctx context.Context, tenantID, roleID uuid.UUID) ([]string, error) {
	if _, err := s.store.GetRole(ctx, tenantID, roleID); err != nil {
		return nil, err
	}
	return s.store.RolePermissions(ctx, roleID)
}

// ListPermissions returns the seeded catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]auth.Permission, error) {
	return s.store.ListPermissions(ctx)
}

// AssignRole grants a role to a user, tenant-wide when storeID is nil or
// scoped to one store otherwise. The role and store must belong to the
// tenant and the user must be a member.
func (s *Service) AssignRole(ctx context.Context, tenantID, userID, roleID uuid.UUID, storeID, assignedBy *uuid.UUID) (auth.RoleAssignment, error) {
	if _, err := s.store.GetRole(ctx, tenantID, roleID); err != nil {
		return auth.RoleAssignment{}, err
	}
	if _, err := s.dir.Membership(ctx, userID, tenantID); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return auth.RoleAssignment{}, fmt.Errorf("%w: user is not a member of the tenant", auth.ErrInvalidInput)
		}
		return auth.RoleAssignment{}, err
	}
	if storeID != nil {
		if _, err := s.dir.StoreByID(ctx, tenantID, *storeID); err != nil {
			if errors.Is(err, auth.ErrNotFound) {
				return auth.RoleAssignment{}, fmt.Errorf("%w: store does not belong to the tenant", auth.ErrInvalidInput)
			}
			return auth.RoleAssignment{}, err
		}
	}
	return s.store.CreateAssignment(ctx, auth.RoleAssignment{
		UserID:     userID,
		RoleID:     roleID,
		TenantID:   tenantID,
		StoreID:    storeID,
		AssignedBy: assignedBy,
	})
}

// RevokeRole removes a role assignment in the given scope.
func (s *Service) RevokeRole(ctx context.Context, tenantID, userID, roleID uuid.UUID, storeID *uuid.UUID) error {
	if _, err := s.store.GetRole(ctx, tenantID, roleID); err != nil {
		return err
	}
	return s.store.DeleteAssignment(ctx, userID, roleID, storeID)
}

// UserAssignments lists role assignments of the user within the tenant.
func (s *Service) UserAssignments(ctx context.Context, tenantID, userID uuid.UUID) ([]auth.RoleAssignment, error) {
	return s.store.ListAssignments(ctx, tenantID, userID)
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
