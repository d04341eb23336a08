// Package httpapi is the HTTP transport of the service: routing,
// middleware, request decoding and the error-to-status mapping.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storegrid.io/internal/auth"
	"storegrid.io/internal/obs"
	"storegrid.io/internal/rbac"
)

// Directory is the tenant/store/user management surface the handlers call
// beyond the auth and rbac services.
type Directory interface {
	UpdateTenant(ctx context.Context, id uuid.UUID, upd auth.TenantUpdate) (auth.Tenant, error)
	SoftDeleteTenant(ctx context.Context, id uuid.UUID) error

	CreateStore(ctx context.Context, tenantID uuid.UUID, name string) (auth.Store, error)
	ListStores(ctx context.Context, tenantID uuid.UUID) ([]auth.Store, error)
	StoreByID(ctx context.Context, tenantID, storeID uuid.UUID) (auth.Store, error)
	UpdateStore(ctx context.Context, tenantID, storeID uuid.UUID, upd auth.StoreUpdate) (auth.Store, error)
	SoftDeleteStore(ctx context.Context, tenantID, storeID uuid.UUID) error
	AssignUserToStore(ctx context.Context, tenantID, storeID, userID uuid.UUID) (auth.StoreAssignment, error)
	RemoveUserFromStore(ctx context.Context, tenantID, storeID, userID uuid.UUID) error

	ListTenantUsers(ctx context.Context, tenantID uuid.UUID) ([]auth.User, error)
}

// Options wires the API's collaborators.
type Options struct {
	Log       *zap.Logger
	Auth      *auth.Service
	Resolver  *auth.Resolver
	Perms     *auth.Aggregator
	Roles     *rbac.Service
	Directory Directory
	DB        *sql.DB
	Version   string

	RateLimitBurst int
	RateLimitRPS   int
	MaxBodyBytes   int64
}

// API is the HTTP layer.
type API struct {
	log       *zap.Logger
	auth      *auth.Service
	resolver  *auth.Resolver
	perms     *auth.Aggregator
	roles     *rbac.Service
	directory Directory
	db        *sql.DB
	version   string
}

// New constructs the API.
func New(opts Options) *API {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &API{
		log:       log,
		auth:      opts.Auth,
		resolver:  opts.Resolver,
		perms:     opts.Perms,
		roles:     opts.Roles,
		directory: opts.Directory,
		db:        opts.DB,
		version:   opts.Version,
	}
}

// Handler builds the full middleware chain and route tree.
func (a *API) Handler(opts Options) http.Handler {
	r := chi.NewRouter()

	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	burst, rps := opts.RateLimitBurst, opts.RateLimitRPS
	if burst <= 0 {
		burst = 100
	}
	if rps <= 0 {
		rps = 50
	}

	r.Use(RequestID)
	r.Use(Logging(a.log))
	r.Use(func(next http.Handler) http.Handler {
		return obs.Instrument(next, func(req *http.Request) string {
			if rctx := chi.RouteContext(req.Context()); rctx != nil {
				return rctx.RoutePattern()
			}
			return ""
		})
	})
	r.Use(SecurityHeaders)
	r.Use(CORS)
	r.Use(MaxBodyBytes(maxBody))
	r.Use(RateLimit(burst, rps))
	r.Use(a.withAuth)
	r.Use(a.withStore)

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReadyz)
	r.Get("/v1/info", a.handleInfo)
	r.Handle("/metrics", obs.Handler())

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/login", a.handleLogin)
		r.Post("/register", a.handleRegister)
		r.Post("/bootstrap", a.handleBootstrap)
		r.Post("/refresh", a.handleRefresh)

		r.Post("/logout", a.handleLogout)
		r.Post("/logout-all", a.handleLogoutAll)
		r.Post("/switch-tenant", a.handleSwitchTenant)
		r.Get("/me", a.handleMe)
		r.Get("/permissions", a.handleMyPermissions)
	})

	r.Route("/v1/tenant", func(r chi.Router) {
		r.With(a.requirePermission(auth.PermTenantsView)).Get("/", a.handleGetTenant)
		r.With(a.requirePermission(auth.PermTenantsEdit)).Patch("/", a.handleUpdateTenant)
		r.With(a.requirePermission(auth.PermTenantsManage)).Delete("/", a.handleDeleteTenant)
	})

	r.Route("/v1/stores", func(r chi.Router) {
		r.With(a.requirePermission(auth.PermStoresView)).Get("/", a.handleListStores)
		r.With(a.requirePermission(auth.PermStoresCreate)).Post("/", a.handleCreateStore)
		r.Route("/{storeID}", func(r chi.Router) {
			r.With(a.requirePermission(auth.PermStoresView)).Get("/", a.handleGetStore)
			r.With(a.requirePermission(auth.PermStoresEdit)).Patch("/", a.handleUpdateStore)
			r.With(a.requirePermission(auth.PermStoresDelete)).Delete("/", a.handleDeleteStore)
			r.With(a.requirePermission(auth.PermStoresManageUsers)).Post("/users", a.handleAssignStoreUser)
			r.With(a.requirePermission(auth.PermStoresManageUsers)).Delete("/users/{userID}", a.handleRemoveStoreUser)
		})
	})

	r.Route("/v1/users", func(r chi.Router) {
		r.With(a.requirePermission(auth.PermUsersView)).Get("/", a.handleListUsers)
		r.Route("/{userID}/roles", func(r chi.Router) {
			r.With(a.requirePermission(auth.PermUsersManageRoles, auth.PermRolesView)).Get("/", a.handleListUserRoles)
			r.With(a.requirePermission(auth.PermUsersManageRoles)).Post("/", a.handleAssignRole)
			r.With(a.requirePermission(auth.PermUsersManageRoles)).Delete("/{roleID}", a.handleRevokeRole)
		})
	})

	r.Route("/v1/roles", func(r chi.Router) {
		r.With(a.requirePermission(auth.PermRolesView)).Get("/", a.handleListRoles)
		r.With(a.requirePermission(auth.PermRolesCreate)).Post("/", a.handleCreateRole)
		r.Route("/{roleID}", func(r chi.Router) {
			r.With(a.requirePermission(auth.PermRolesView)).Get("/", a.handleGetRole)
			r.With(a.requirePermission(auth.PermRolesEdit)).Patch("/", a.handleUpdateRole)
			r.With(a.requirePermission(auth.PermRolesDelete)).Delete("/", a.handleDeleteRole)
			r.With(a.requirePermission(auth.PermRolesView)).Get("/permissions", a.handleRolePermissions)
			r.With(a.requirePermission(auth.PermRolesEdit)).Put("/permissions", a.handleSetRolePermissions)
		})
	})

	r.With(a.requirePermission(auth.PermPermissionsView)).Get("/v1/permissions", a.handleListPermissions)

	return r
}
