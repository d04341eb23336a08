package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"storegrid.io/internal/audit"
	"storegrid.io/internal/auth"
)

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "storegrid-api",
		"version": a.version,
	})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if a.db != nil {
		if err := a.db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "storegrid-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- tenant ---

type tenantUpdateRequest struct {
	Name   *string `json:"name"`
	Status *string `json:"status"`
}

func (a *API) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, ident.Tenant)
}

func (a *API) handleUpdateTenant(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	var req tenantUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	upd := auth.TenantUpdate{Name: req.Name}
	if req.Status != nil {
		status := auth.TenantStatus(strings.TrimSpace(*req.Status))
		switch status {
		case auth.TenantTrial, auth.TenantActive, auth.TenantSuspended, auth.TenantCanceled:
			upd.Status = &status
		default:
			writeError(w, r, http.StatusBadRequest, "validation_error", "unknown tenant status")
			return
		}
	}
	if upd.Name == nil && upd.Status == nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", "no fields to update")
		return
	}

	tenant, err := a.directory.UpdateTenant(r.Context(), ident.Tenant.ID, upd)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "tenant.updated", map[string]any{
		"tenant_id": tenant.ID.String(),
	})
	writeJSON(w, http.StatusOK, tenant)
}

func (a *API) handleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	if err := a.directory.SoftDeleteTenant(r.Context(), ident.Tenant.ID); err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "tenant.deleted", map[string]any{
		"tenant_id": ident.Tenant.ID.String(),
	})
	w.WriteHeader(http.StatusNoContent)
}

// --- stores ---

type storeCreateRequest struct {
	Name string `json:"name"`
}

type storeUpdateRequest struct {
	Name     *string `json:"name"`
	IsActive *bool   `json:"is_active"`
}

type storeUserRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

func (a *API) handleListStores(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	stores, err := a.directory.ListStores(r.Context(), ident.Tenant.ID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stores": stores})
}

func (a *API) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	var req storeCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "validation_error", "name is required")
		return
	}

	store, err := a.directory.CreateStore(r.Context(), ident.Tenant.ID, strings.TrimSpace(req.Name))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "store.created", map[string]any{
		"store_id": store.ID.String(),
		"name":     store.Name,
	})
	w.Header().Set("Location", "/v1/stores/"+store.ID.String())
	writeJSON(w, http.StatusCreated, store)
}

func (a *API) handleGetStore(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())
	storeID, err := pathUUID(r, "storeID")
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	store, err := a.directory.StoreByID(r.Context(), ident.Tenant.ID, storeID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, store)
}

func (a *API) handleUpdateStore(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())
	storeID, err := pathUUID(r, "storeID")
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	var req storeUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if req.Name == nil && req.IsActive == nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", "no fields to update")
		return
	}

	store, err := a.directory.UpdateStore(r.Context(), ident.Tenant.ID, storeID, auth.StoreUpdate{
		Name:     req.Name,
		IsActive: req.IsActive,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "store.updated", map[string]any{
		"store_id": store.ID.String(),
	})
	writeJSON(w, http.StatusOK, store)
}

func (a *API) handleDeleteStore(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())
	storeID, err := pathUUID(r, "storeID")
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	if err := a.directory.SoftDeleteStore(r.Context(), ident.Tenant.ID, storeID); err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "store.deleted", map[string]any{
		"store_id": storeID.String(),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAssignStoreUser(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())
	storeID, err := pathUUID(r, "storeID")
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	var req storeUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if req.UserID == uuid.Nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", "user_id is required")
		return
	}

	assignment, err := a.directory.AssignUserToStore(r.Context(), ident.Tenant.ID, storeID, req.UserID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "store.user_assigned", map[string]any{
		"store_id":       storeID.String(),
		"target_user_id": req.UserID.String(),
	})
	writeJSON(w, http.StatusCreated, assignment)
}

func (a *API) handleRemoveStoreUser(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())
	storeID, err := pathUUID(r, "storeID")
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	userID, err := pathUUID(r, "userID")
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	if err := a.directory.RemoveUserFromStore(r.Context(), ident.Tenant.ID, storeID, userID); err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "store.user_removed", map[string]any{
		"store_id":       storeID.String(),
		"target_user_id": userID.String(),
	})
	w.WriteHeader(http.StatusNoContent)
}

// --- users ---

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	users, err := a.directory.ListTenantUsers(r.Context(), ident.Tenant.ID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// --- helpers ---

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, auth.ErrNotFound
	}
	return id, nil
}
