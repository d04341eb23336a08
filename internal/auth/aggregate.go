package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// PermissionSet is the effective permission union for one user in one
// request scope.
type PermissionSet map[string]struct{}

// Has reports whether the set contains the permission.
func (ps PermissionSet) Has(name string) bool {
	_, ok := ps[name]
	return ok
}

// HasAny reports whether at least one of the permissions is present.
func (ps PermissionSet) HasAny(names ...string) bool {
	for _, name := range names {
		if ps.Has(name) {
			return true
		}
	}
	return false
}

// Missing returns the permissions from names that are absent, in input order.
func (ps PermissionSet) Missing(names ...string) []string {
	var missing []string
	for _, name := range names {
		if !ps.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Names returns the sorted permission names.
func (ps PermissionSet) Names() []string {
	out := make([]string, 0, len(ps))
	for name := range ps {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Require enforces a permission check. With requireAll every named
// permission must be present and the error lists all that are missing;
// otherwise one match suffices.
func (ps PermissionSet) Require(requireAll bool, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	if requireAll {
		if missing := ps.Missing(names...); len(missing) > 0 {
			return fmt.Errorf("%w: missing %s", ErrInsufficientPermissions, strings.Join(missing, ", "))
		}
		return nil
	}
	if ps.HasAny(names...) {
		return nil
	}
	if len(names) == 1 {
		return fmt.Errorf("%w: missing %s", ErrInsufficientPermissions, names[0])
	}
	return fmt.Errorf("%w: requires one of %s", ErrInsufficientPermissions, strings.Join(names, ", "))
}

// Aggregator computes effective permissions from role assignments. The
// result is the union of tenant-wide grants and, when a store is selected,
// grants scoped to exactly that store. Grants scoped to other stores never
// leak in.
type Aggregator struct {
	grants GrantStore
}

// NewAggregator constructs an Aggregator.
func NewAggregator(grants GrantStore) *Aggregator {
	return &Aggregator{grants: grants}
}

// Aggregate resolves the permission set for the user in the tenant, with
// storeID narrowing the scope when non-nil. A user with no matching role
// assignments gets an empty set, not an error.
func (a *Aggregator) Aggregate(ctx context.Context, userID, tenantID uuid.UUID, storeID *uuid.UUID) (PermissionSet, error) {
	roleIDs, err := a.grants.AssignedRoleIDs(ctx, userID, tenantID, storeID)
	if err != nil {
		return nil, err
	}
	set := make(PermissionSet)
	if len(roleIDs) == 0 {
		return set, nil
	}
	names, err := a.grants.RolePermissionNames(ctx, roleIDs)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set, nil
}
