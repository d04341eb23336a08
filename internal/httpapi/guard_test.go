package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"storegrid.io/internal/auth"
)

func TestGuardDeniesWithoutGrant(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.get(t, "/v1/tenant", f.accessToken(t), "")
	assertErrorCode(t, rec, http.StatusForbidden, "insufficient_permissions")
	body := decodeBody(t, rec)
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, auth.PermTenantsView) {
		t.Fatalf("message = %q, want it to name %s", msg, auth.PermTenantsView)
	}
}

func TestGuardAllowsTenantWideGrant(t *testing.T) {
	f := newAPIFixture(t)
	f.backend.grantPermission(f.user.ID, nil, auth.PermTenantsView)

	rec := f.get(t, "/v1/tenant", f.accessToken(t), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["slug"] != f.tenant.Slug {
		t.Fatalf("slug = %v, want %s", body["slug"], f.tenant.Slug)
	}
}

// A grant scoped to one store only takes effect when that store is
// selected; without the header the aggregation sees tenant-wide grants only.
func TestStoreScopedGrantRequiresSelection(t *testing.T) {
	f := newAPIFixture(t)
	token := f.accessToken(t)

	store := auth.Store{ID: uuid.New(), TenantID: f.tenant.ID, Name: "Main", IsActive: true}
	f.backend.stores[store.ID] = store
	f.backend.storeUsers[[2]uuid.UUID{f.user.ID, store.ID}] = auth.StoreAssignment{UserID: f.user.ID, StoreID: store.ID, TenantID: f.tenant.ID}
	f.backend.grantPermission(f.user.ID, &store.ID, auth.PermTenantsView)

	assertErrorCode(t, f.get(t, "/v1/tenant", token, ""), http.StatusForbidden, "insufficient_permissions")

	rec := f.get(t, "/v1/tenant", token, store.ID.String())
	if rec.Code != http.StatusOK {
		t.Fatalf("scoped request status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestGuardFreshAggregationPerRequest(t *testing.T) {
	f := newAPIFixture(t)
	token := f.accessToken(t)
	f.backend.grantPermission(f.user.ID, nil, auth.PermTenantsView)

	if rec := f.get(t, "/v1/tenant", token, ""); rec.Code != http.StatusOK {
		t.Fatalf("granted request status = %d", rec.Code)
	}

	// Dropping the assignment takes effect on the very next request.
	f.backend.tenantRoles[f.user.ID] = nil
	assertErrorCode(t, f.get(t, "/v1/tenant", token, ""), http.StatusForbidden, "insufficient_permissions")
}

func TestGuardWithoutIdentity(t *testing.T) {
	f := newAPIFixture(t)
	api := New(Options{Perms: auth.NewAggregator(f.backend)})

	var called bool
	h := api.requirePermission(auth.PermRolesView)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/roles", nil))
	assertErrorCode(t, rec, http.StatusUnauthorized, "unauthorized")
	if called {
		t.Fatal("handler must not run without an identity")
	}
}

func TestRequireAllListsEveryMissingPermission(t *testing.T) {
	f := newAPIFixture(t)
	api := New(Options{Perms: auth.NewAggregator(f.backend)})
	f.backend.grantPermission(f.user.ID, nil, auth.PermRolesView)

	h := api.requireAllPermissions(auth.PermRolesView, auth.PermRolesEdit, auth.PermRolesDelete)(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	ident := auth.Identity{User: f.user, Tenant: f.tenant}
	req := httptest.NewRequest(http.MethodGet, "/v1/roles", nil)
	req = req.WithContext(auth.ContextWithIdentity(req.Context(), ident))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assertErrorCode(t, rec, http.StatusForbidden, "insufficient_permissions")
	msg, _ := decodeBody(t, rec)["message"].(string)
	if strings.Contains(msg, auth.PermRolesView) {
		t.Fatalf("message %q must not list the held permission", msg)
	}
	if !strings.Contains(msg, auth.PermRolesEdit) || !strings.Contains(msg, auth.PermRolesDelete) {
		t.Fatalf("message %q must list both missing permissions", msg)
	}
}
