package auth

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"
)

type fakeGrantStore struct {
	tenantWide map[uuid.UUID][]uuid.UUID            // userID -> role ids with store_id null
	perStore   map[uuid.UUID]map[uuid.UUID][]uuid.UUID // userID -> storeID -> role ids
	rolePerms  map[uuid.UUID][]string
	err        error
}

func newFakeGrantStore() *fakeGrantStore {
	return &fakeGrantStore{
		tenantWide: make(map[uuid.UUID][]uuid.UUID),
		perStore:   make(map[uuid.UUID]map[uuid.UUID][]uuid.UUID),
		rolePerms:  make(map[uuid.UUID][]string),
	}
}

func (f *fakeGrantStore) AssignedRoleIDs(_ context.Context, userID, _ uuid.UUID, storeID *uuid.UUID) ([]uuid.UUID, error) {
	if f.err != nil {
		return nil, f.err
	}
	ids := append([]uuid.UUID(nil), f.tenantWide[userID]...)
	if storeID != nil {
		ids = append(ids, f.perStore[userID][*storeID]...)
	}
	return ids, nil
}

func (f *fakeGrantStore) RolePermissionNames(_ context.Context, roleIDs []uuid.UUID) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	var names []string
	for _, id := range roleIDs {
		names = append(names, f.rolePerms[id]...)
	}
	return names, nil
}

func grantStore(f *fakeGrantStore, userID uuid.UUID, storeID *uuid.UUID, perms ...string) uuid.UUID {
	roleID := uuid.New()
	f.rolePerms[roleID] = perms
	if storeID == nil {
		f.tenantWide[userID] = append(f.tenantWide[userID], roleID)
		return roleID
	}
	if f.perStore[userID] == nil {
		f.perStore[userID] = make(map[uuid.UUID][]uuid.UUID)
	}
	f.perStore[userID][*storeID] = append(f.perStore[userID][*storeID], roleID)
	return roleID
}

func TestAggregateUnionsTenantAndStoreGrants(t *testing.T) {
	ctx := context.Background()
	f := newFakeGrantStore()
	userID, tenantID := uuid.New(), uuid.New()
	storeA, storeB := uuid.New(), uuid.New()

	grantStore(f, userID, nil, PermProductsView, PermOrdersView)
	grantStore(f, userID, &storeA, PermOrdersCreate)
	grantStore(f, userID, &storeB, PermOrdersRefund)

	agg := NewAggregator(f)

	// Tenant scope: only tenant-wide grants.
	set, err := agg.Aggregate(ctx, userID, tenantID, nil)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	want := []string{PermOrdersView, PermProductsView}
	if !reflect.DeepEqual(set.Names(), want) {
		t.Fatalf("tenant scope = %v, want %v", set.Names(), want)
	}

	// Store A scope: tenant-wide plus store A, never store B.
	set, err = agg.Aggregate(ctx, userID, tenantID, &storeA)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if !set.Has(PermOrdersCreate) {
		t.Fatal("store-scoped grant missing in its own store")
	}
	if set.Has(PermOrdersRefund) {
		t.Fatal("grant for another store leaked into store A")
	}
	if !set.Has(PermProductsView) {
		t.Fatal("tenant-wide grant must apply inside a store")
	}
}

func TestAggregateNoAssignments(t *testing.T) {
	agg := NewAggregator(newFakeGrantStore())
	set, err := agg.Aggregate(context.Background(), uuid.New(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(set) != 0 {
		t.Fatalf("expected empty set, got %v", set.Names())
	}
	// Empty means denied, not an error.
	if err := set.Require(false, PermOrdersView); !errors.Is(err, ErrInsufficientPermissions) {
		t.Fatalf("err = %v, want ErrInsufficientPermissions", err)
	}
}

func TestAggregatePropagatesStoreError(t *testing.T) {
	f := newFakeGrantStore()
	f.err = errors.New("connection reset")
	agg := NewAggregator(f)
	if _, err := agg.Aggregate(context.Background(), uuid.New(), uuid.New(), nil); err == nil {
		t.Fatal("expected error from failing store")
	}
}

func TestPermissionSetRequire(t *testing.T) {
	set := PermissionSet{
		PermOrdersView:   {},
		PermProductsView: {},
	}

	if err := set.Require(false, PermOrdersView); err != nil {
		t.Fatalf("any-mode with held permission: %v", err)
	}
	if err := set.Require(false, PermOrdersRefund, PermProductsView); err != nil {
		t.Fatalf("any-mode with one held permission: %v", err)
	}
	if err := set.Require(true, PermOrdersView, PermProductsView); err != nil {
		t.Fatalf("all-mode with all held: %v", err)
	}

	err := set.Require(true, PermOrdersView, PermOrdersRefund, PermPaymentsRefund)
	if !errors.Is(err, ErrInsufficientPermissions) {
		t.Fatalf("err = %v, want ErrInsufficientPermissions", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, PermOrdersRefund) || !strings.Contains(msg, PermPaymentsRefund) {
		t.Fatalf("all-mode error should list every missing permission: %q", msg)
	}

	if err := set.Require(false); err != nil {
		t.Fatalf("empty requirement must pass: %v", err)
	}
}
