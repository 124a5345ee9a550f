package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/petroasset/apiserver/internal/apperr"
	"github.com/petroasset/apiserver/types"
	"go.uber.org/zap"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	internalErrorMessage = "Internal Server Error"
	maxJSONBodyBytes     = 1 << 20
)

type contextKey string

const (
	contextUserKey  contextKey = "user"
	contextTokenKey contextKey = "token"
	contextAuditKey contextKey = "audit"
)

// SuccessResponse is the envelope of every successful response.
type SuccessResponse struct {
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
}

// ErrorResponse is the envelope of every failed response.
type ErrorResponse struct {
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

func withUser(ctx context.Context, user types.User, token string) context.Context {
	ctx = context.WithValue(ctx, contextUserKey, user)
	if audit := auditFromContext(ctx); audit != nil {
		audit.userID = user.ID
	}
	return context.WithValue(ctx, contextTokenKey, token)
}

func userFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok
}

// currentUser returns the authenticated user. Routes calling it sit behind
// Guard.Authenticate, so a missing user is reported as unauthorized.
func currentUser(r *http.Request) (types.User, error) {
	user, ok := userFromContext(r.Context())
	if !ok || user.ID == "" {
		return types.User{}, apperr.Unauthorized("User not authenticated")
	}
	return user, nil
}

func tokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(contextTokenKey).(string)
	return token
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, SuccessResponse{
		Status:     statusSuccess,
		StatusCode: status,
		Message:    message,
		Data:       data,
	})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	if audit := auditFromContext(r.Context()); audit != nil {
		audit.errMessage = message
	}
	writeJSON(w, status, ErrorResponse{
		Status:     statusError,
		StatusCode: status,
		Message:    message,
	})
}

// respondError translates err into the error envelope. Internal errors are
// logged and hidden behind a generic message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal {
		zap.L().Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		if audit := auditFromContext(r.Context()); audit != nil {
			audit.errMessage = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Status:     statusError,
			StatusCode: http.StatusInternalServerError,
			Message:    internalErrorMessage,
		})
		return
	}

	var appErr *apperr.Error
	message := err.Error()
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	writeError(w, r, kind.HTTPStatus(), message)
}

// decodeJSON reads a JSON request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.BadRequest("Request body is required")
		}
		return apperr.BadRequest("Invalid request body")
	}
	return nil
}

// parsePage reads page and pageSize (or limit) from the query string.
func parsePage(r *http.Request) (types.Page, error) {
	query := r.URL.Query()
	number, err := optionalInt(query.Get("page"), "page")
	if err != nil {
		return types.Page{}, err
	}
	sizeRaw := query.Get("pageSize")
	if sizeRaw == "" {
		sizeRaw = query.Get("limit")
	}
	size, err := optionalInt(sizeRaw, "pageSize")
	if err != nil {
		return types.Page{}, err
	}
	return types.NewPage(number, size), nil
}

func optionalInt(raw, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.BadRequest("Invalid %s", field)
	}
	return value, nil
}

func optionalIntPtr(raw, field string) (*int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	value, err := optionalInt(raw, field)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// queryValue returns the first non-empty query parameter among names.
func queryValue(r *http.Request, names ...string) string {
	query := r.URL.Query()
	for _, name := range names {
		if value := strings.TrimSpace(query.Get(name)); value != "" {
			return value
		}
	}
	return ""
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

// clientIP returns the request's remote address without the port.
// middleware.RealIP has already applied forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
