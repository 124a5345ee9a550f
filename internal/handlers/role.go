package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/petroasset/apiserver/internal/services"
	"github.com/petroasset/apiserver/types"
)

// RoleUseCases is the part of services.RoleService the role routes use.
type RoleUseCases interface {
	List(ctx context.Context, search string, page types.Page) (types.Paginated[types.Role], error)
	Get(ctx context.Context, id string) (types.Role, error)
	Create(ctx context.Context, in services.RoleInput) (types.Role, error)
	Update(ctx context.Context, id string, in services.RoleUpdateInput) (types.Role, error)
	Delete(ctx context.Context, id string) error
	AddPermission(ctx context.Context, id, name string) (types.Role, error)
	RemovePermission(ctx context.Context, id, name string) (types.Role, error)
	ReplacePermissions(ctx context.Context, id string, names []string) (types.Role, error)
	Permissions() []types.Permission
}

type RoleHandler struct {
	roles RoleUseCases
}

func NewRoleHandler(roles RoleUseCases) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// RoleRouter registers role routes on the given router.
func RoleRouter(r chi.Router, roles RoleUseCases, guard *Guard) {
	handler := NewRoleHandler(roles)
	view := guard.RequirePermission(types.PermViewRole)
	update := guard.RequirePermission(types.PermUpdateRole)

	r.With(view).Get("/", handler.List)
	r.With(view).Get("/permissions", handler.Permissions)
	r.With(guard.RequirePermission(types.PermCreateRole)).Post("/", handler.Create)
	r.Route("/{roleId}", func(r chi.Router) {
		r.With(view).Get("/", handler.Get)
		r.With(update).Put("/", handler.Update)
		r.With(guard.RequirePermission(types.PermDeleteRole)).Delete("/", handler.Delete)
		r.With(update).Post("/permissions", handler.AddPermission)
		r.With(update).Delete("/permissions", handler.RemovePermission)
		r.With(update).Put("/permissions", handler.ReplacePermissions)
	})
}

func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.roles.List(r.Context(), queryValue(r, "search"), page)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Get all roles successfully", result)
}

func (h *RoleHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "Get all permissions successfully", h.roles.Permissions())
}

func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	role, err := h.roles.Get(r.Context(), chi.URLParam(r, "roleId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Get role detail successfully", role)
}

func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.RoleInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	role, err := h.roles.Create(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Create role successfully", role)
}

func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req services.RoleUpdateInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	role, err := h.roles.Update(r.Context(), chi.URLParam(r, "roleId"), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Update role successfully", role)
}

func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.roles.Delete(r.Context(), chi.URLParam(r, "roleId")); err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Delete role successfully", nil)
}

type permissionRequest struct {
	Permission string `json:"permission"`
}

type permissionsRequest struct {
	Permissions []string `json:"permissions"`
}

func (h *RoleHandler) AddPermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	role, err := h.roles.AddPermission(r.Context(), chi.URLParam(r, "roleId"), req.Permission)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Add permission successfully", role)
}

func (h *RoleHandler) RemovePermission(w http.ResponseWriter, r *http.Request) {
	var req permissionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	role, err := h.roles.RemovePermission(r.Context(), chi.URLParam(r, "roleId"), req.Permission)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Remove permission successfully", role)
}

func (h *RoleHandler) ReplacePermissions(w http.ResponseWriter, r *http.Request) {
	var req permissionsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	role, err := h.roles.ReplacePermissions(r.Context(), chi.URLParam(r, "roleId"), req.Permissions)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Update permissions successfully", role)
}
