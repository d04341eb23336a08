package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"storegrid.io/internal/auth"
)

// requirePermission guards a route with a permission check in "any" mode:
// one of the named permissions suffices. Effective permissions are
// aggregated fresh per request from the caller's role assignments, scoped
// to the selected store when one is set.
func (a *API) requirePermission(perms ...string) func(http.Handler) http.Handler {
	return a.guard(false, perms...)
}

// requireAllPermissions guards a route requiring every named permission.
func (a *API) requireAllPermissions(perms ...string) func(http.Handler) http.Handler {
	return a.guard(true, perms...)
}

func (a *API) guard(requireAll bool, perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}
			var storeID *uuid.UUID
			if store, ok := auth.ActiveStoreFromContext(r.Context()); ok {
				storeID = &store.ID
			}
			set, err := a.perms.Aggregate(r.Context(), ident.User.ID, ident.Tenant.ID, storeID)
			if err != nil {
				handleAuthError(w, r, err)
				return
			}
			if err := set.Require(requireAll, perms...); err != nil {
				handleAuthError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
