package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"storegrid.io/internal/audit"
	"storegrid.io/internal/auth"
)

type roleCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type roleUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type rolePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

type roleAssignRequest struct {
	RoleID  uuid.UUID  `json:"role_id"`
	StoreID *uuid.UUID `json:"store_id"`
}

func (a *API) handleListRoles(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	roles, err := a.roles.ListRoles(r.Context(), ident.Tenant.ID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (a *API) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())

	var req roleCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "validation_error", "name is required")
		return
	}

	role, err := a.roles.CreateRole(r.Context(), ident.Tenant.ID, strings.TrimSpace(req.Name), strings.TrimSpace(req.Description))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "role.created", map[string]any{
		"role_id": role.ID.String(),
		"name":    role.Name,
	})
	w.Header().Set("Location", "/v1/roles/"+role.ID.String())
	writeJSON(w, http.StatusCreated, role)
}

func (a *API) handleGetRole(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())
	roleID, err := pathUUID(r, "roleID")
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	role, err := a.roles.GetRole(r.Context(), ident.Tenant.ID, roleID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (a *API) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())
	roleID, err := pathUUID(r, "roleID")
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	var req roleUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if req.Name == nil && req.Description == nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", "no fields to update")
		return
	}

	role, err := a.roles.UpdateRole(r.Context(), ident.Tenant.ID, roleID, auth.RoleUpdate{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "role.updated", map[string]any{
		"role_id": role.ID.String(),
	})
	writeJSON(w, http.StatusOK, role)
}

func (a *API) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())
	roleID, err := pathUUID(r, "roleID")
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	if err := a.roles.DeleteRole(r.Context(), ident.Tenant.ID, roleID); err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "role.deleted", map[string]any{
		"role_id": roleID.String(),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRolePermissions(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())
	roleID, err := pathUUID(r, "roleID")
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	names, err := a.roles.RolePermissions(r.Context(), ident.Tenant.ID, roleID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": names})
}

// handleSetRolePermissions replaces the role's permission set wholesale.
func (a *API) handleSetRolePermissions(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())
	roleID, err := pathUUID(r, "roleID")
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	var req rolePermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	if err := a.roles.SetRolePermissions(r.Context(), ident.Tenant.ID, roleID, req.Permissions); err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "role.permissions_set", map[string]any{
		"role_id": roleID.String(),
		"count":   len(req.Permissions),
	})
	writeJSON(w, http.StatusOK, map[string]any{"permissions": req.Permissions})
}

func (a *API) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := a.roles.ListPermissions(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

// --- user role assignments ---

func (a *API) handleListUserRoles(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())
	userID, err := pathUUID(r, "userID")
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	assignments, err := a.roles.UserAssignments(r.Context(), ident.Tenant.ID, userID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

func (a *API) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())
	userID, err := pathUUID(r, "userID")
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	var req roleAssignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if req.RoleID == uuid.Nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", "role_id is required")
		return
	}

	assignedBy := ident.User.ID
	assignment, err := a.roles.AssignRole(r.Context(), ident.Tenant.ID, userID, req.RoleID, req.StoreID, &assignedBy)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	fields := map[string]any{
		"target_user_id": userID.String(),
		"role_id":        req.RoleID.String(),
	}
	if req.StoreID != nil {
		fields["store_id"] = req.StoreID.String()
	}
	_ = audit.LogEvent(r.Context(), "role.assigned", fields)

	writeJSON(w, http.StatusCreated, assignment)
}

func (a *API) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.IdentityFromContext(r.Context())
	userID, err := pathUUID(r, "userID")
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	roleID, err := pathUUID(r, "roleID")
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	var storeID *uuid.UUID
	if raw := strings.TrimSpace(r.URL.Query().Get("store_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "validation_error", "store_id must be a UUID")
			return
		}
		storeID = &id
	}

	if err := a.roles.RevokeRole(r.Context(), ident.Tenant.ID, userID, roleID, storeID); err != nil {
		handleAuthError(w, r, err)
		return
	}

	fields := map[string]any{
		"target_user_id": userID.String(),
		"role_id":        roleID.String(),
	}
	if storeID != nil {
		fields["store_id"] = storeID.String()
	}
	_ = audit.LogEvent(r.Context(), "role.revoked", fields)

	w.WriteHeader(http.StatusNoContent)
}
