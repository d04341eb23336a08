package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"storegrid.io/internal/audit"
	"storegrid.io/internal/auth"
	"storegrid.io/internal/obs"
)

type loginRequest struct {
	Email    string    `json:"email"`
	Password string    `json:"password"`
	TenantID uuid.UUID `json:"tenant_id"`
}

type registerRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"full_name"`
	TenantName string `json:"tenant_name"`
	TenantSlug string `json:"tenant_slug"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type switchTenantRequest struct {
	TenantID uuid.UUID `json:"tenant_id"`
}

type sessionResponse struct {
	User   auth.User      `json:"user"`
	Tenant *auth.Tenant   `json:"tenant,omitempty"`
	Tokens auth.TokenPair `json:"tokens"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if req.TenantID == uuid.Nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", "tenant_id is required")
		return
	}

	user, pair, err := a.auth.Login(r.Context(), req.Email, req.Password, req.TenantID)
	if err != nil {
		obs.ObserveLogin("denied")
		handleAuthError(w, r, err)
		return
	}
	obs.ObserveLogin("ok")

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id":   user.ID.String(),
		"tenant_id": req.TenantID.String(),
	})

	writeJSON(w, http.StatusOK, sessionResponse{User: user, Tokens: pair})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	a.register(w, r, false)
}

// handleBootstrap provisions the very first account of an empty
// installation. It is closed as soon as any user exists.
func (a *API) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	a.register(w, r, true)
}

func (a *API) register(w http.ResponseWriter, r *http.Request, bootstrap bool) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	params := auth.RegisterParams{
		Email:      req.Email,
		Password:   req.Password,
		FullName:   req.FullName,
		TenantName: req.TenantName,
		TenantSlug: req.TenantSlug,
	}

	var (
		user   auth.User
		tenant auth.Tenant
		pair   auth.TokenPair
		err    error
	)
	if bootstrap {
		user, tenant, pair, err = a.auth.Bootstrap(r.Context(), params)
	} else {
		user, tenant, pair, err = a.auth.Register(r.Context(), params)
	}
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	event := "auth.register"
	if bootstrap {
		event = "auth.bootstrap"
	}
	_ = audit.LogEvent(r.Context(), event, map[string]any{
		"user_id":     user.ID.String(),
		"tenant_id":   tenant.ID.String(),
		"tenant_slug": tenant.Slug,
	})

	writeJSON(w, http.StatusCreated, sessionResponse{User: user, Tenant: &tenant, Tokens: pair})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if req.RefreshToken == "" {
		writeError(w, r, http.StatusBadRequest, "validation_error", "refresh_token is required")
		return
	}

	pair, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		obs.ObserveRefresh("denied")
		handleAuthError(w, r, err)
		return
	}
	obs.ObserveRefresh("ok")

	writeJSON(w, http.StatusOK, pair)
}

// handleLogout blacklists the presented access token. An already expired
// token logs out without error.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.TokenFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	if err := a.auth.Logout(r.Context(), token); err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

// handleLogoutAll moves the caller's revocation cutoff to now, cutting off
// every token issued so far on all devices.
func (a *API) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	if err := a.auth.LogoutAll(r.Context(), ident.User.ID); err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.logout_all", nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (a *API) handleSwitchTenant(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req switchTenantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if req.TenantID == uuid.Nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", "tenant_id is required")
		return
	}

	pair, err := a.auth.SwitchTenant(r.Context(), ident.User.ID, req.TenantID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.switch_tenant", map[string]any{
		"to_tenant_id": req.TenantID.String(),
	})

	writeJSON(w, http.StatusOK, pair)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":       ident.User,
		"tenant":     ident.Tenant,
		"membership": ident.Membership,
	})
}

// handleMyPermissions returns the caller's effective permission names,
// scoped to the selected store when X-Store-ID is set.
func (a *API) handleMyPermissions(w http.ResponseWriter, r *http.Request) {
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

	resp := map[string]any{"permissions": set.Names()}
	if storeID != nil {
		resp["store_id"] = storeID.String()
	}
	writeJSON(w, http.StatusOK, resp)
}
