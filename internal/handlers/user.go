package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/petroasset/apiserver/internal/services"
	"github.com/petroasset/apiserver/internal/storage"
	"github.com/petroasset/apiserver/types"
)

// UserUseCases is the part of services.UserService the user routes use.
type UserUseCases interface {
	List(ctx context.Context, filter types.UserFilter) (types.Paginated[types.User], error)
	GetByID(ctx context.Context, id string) (types.User, error)
	Create(ctx context.Context, in services.CreateUserInput) (types.User, error)
	Update(ctx context.Context, id string, in services.UpdateUserInput) (types.User, error)
	AssignRole(ctx context.Context, id, roleID string) (types.User, error)
	ChangeStatus(ctx context.Context, actorID, id string, status types.UserStatus) (types.User, error)
	UploadAvatar(ctx context.Context, userID string, upload services.ImageUpload) (types.User, error)
	OpenAvatar(ctx context.Context, userID string) (storage.Object, error)
}

type UserHandler struct {
	users UserUseCases
}

func NewUserHandler(users UserUseCases) *UserHandler {
	return &UserHandler{users: users}
}

// UserRouter registers user administration routes on the given router.
func UserRouter(r chi.Router, users UserUseCases, guard *Guard) {
	handler := NewUserHandler(users)
	view := guard.RequirePermission(types.PermViewUser)
	update := guard.RequirePermission(types.PermUpdateUser)

	r.With(view).Get("/", handler.List)
	r.With(guard.RequirePermission(types.PermCreateUser)).Post("/", handler.Create)
	r.Post("/avatar", handler.UploadAvatar)
	r.Route("/{userId}", func(r chi.Router) {
		r.With(view).Get("/", handler.Get)
		r.With(update).Put("/", handler.Update)
		r.With(update).Patch("/role", handler.AssignRole)
		r.With(update).Patch("/status", handler.ChangeStatus)
		r.Get("/avatar", handler.Avatar)
	})
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.users.List(r.Context(), types.UserFilter{
		Search: queryValue(r, "search"),
		RoleID: queryValue(r, "roleId", "role_id"),
		Status: types.UserStatus(queryValue(r, "status")),
		Page:   page,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Get all users successfully", result)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Get user detail successfully", user)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.CreateUserInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	user, err := h.users.Create(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Create user successfully", user)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req services.UpdateUserInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	user, err := h.users.Update(r.Context(), chi.URLParam(r, "userId"), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Update user successfully", user)
}

type assignRoleRequest struct {
	RoleID string `json:"roleId"`
}

func (h *UserHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	var req assignRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	user, err := h.users.AssignRole(r.Context(), chi.URLParam(r, "userId"), req.RoleID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Assign role successfully", user)
}

type userStatusRequest struct {
	Status string `json:"status"`
}

func (h *UserHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req userStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	user, err := h.users.ChangeStatus(r.Context(), actor.ID, chi.URLParam(r, "userId"), types.UserStatus(req.Status))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Update user status successfully", user)
}

// UploadAvatar replaces the current user's avatar.
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	current, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	upload, file, err := readImageUpload(w, r, formFieldAvatar)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer file.Close()

	user, err := h.users.UploadAvatar(r.Context(), current.ID, upload)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Upload avatar successfully", user)
}

func (h *UserHandler) Avatar(w http.ResponseWriter, r *http.Request) {
	obj, err := h.users.OpenAvatar(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeObject(w, r, obj)
}
