package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/petroasset/apiserver/internal/services"
	"github.com/petroasset/apiserver/types"
)

// AuthUseCases is the part of services.AuthService the auth routes use.
type AuthUseCases interface {
	Register(ctx context.Context, in services.RegisterInput) (types.User, error)
	Login(ctx context.Context, in services.LoginInput) (services.TokenPair, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (services.TokenPair, error)
	Logout(ctx context.Context, token string) error
	GetInfo(ctx context.Context, userID string) (types.User, error)
	ChangePassword(ctx context.Context, userID string, in services.ChangePasswordInput) error
	LoginHistory(ctx context.Context, userID string) ([]types.LoginHistory, error)
}

// AuthHandler provides the JWT authentication endpoints.
type AuthHandler struct {
	auth AuthUseCases
}

func NewAuthHandler(auth AuthUseCases) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, auth AuthUseCases, guard *Guard) {
	handler := NewAuthHandler(auth)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/refresh-token", handler.RefreshToken)
	r.Group(func(r chi.Router) {
		r.Use(guard.Authenticate)
		r.Get("/get-info", handler.GetInfo)
		r.Post("/change-password", handler.ChangePassword)
		r.Post("/logout", handler.Logout)
		r.Get("/login-history", handler.LoginHistory)
	})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	user, err := h.auth.Register(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Register successful", user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	req.IPAddress = clientIP(r)
	req.UserAgent = r.UserAgent()

	pair, err := h.auth.Login(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Login successfully", pair)
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken trades the refresh token in the body plus the (possibly
// expired) access token in the Authorization header for a new pair.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	accessToken, _ := bearerToken(r)

	pair, err := h.auth.Refresh(r.Context(), accessToken, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Refresh token successfully", pair)
}

func (h *AuthHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	current, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	user, err := h.auth.GetInfo(r.Context(), current.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Get info successfully", user)
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	current, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req services.ChangePasswordInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.auth.ChangePassword(r.Context(), current.ID, req); err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Change password successfully", nil)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), tokenFromContext(r.Context())); err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Logout successfully", nil)
}

func (h *AuthHandler) LoginHistory(w http.ResponseWriter, r *http.Request) {
	current, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	entries, err := h.auth.LoginHistory(r.Context(), current.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Login history retrieved successfully", entries)
}
