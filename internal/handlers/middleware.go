package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/petroasset/apiserver/internal/services"
	"github.com/petroasset/apiserver/types"
	"go.uber.org/zap"
)

// Authenticator resolves the user behind an access token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (types.User, error)
}

// Guard holds the authentication and authorization middleware.
type Guard struct {
	auth       Authenticator
	authorizer *services.Authorizer
}

func NewGuard(auth Authenticator, authorizer *services.Authorizer) *Guard {
	if authorizer == nil {
		authorizer = services.NewAuthorizer()
	}
	return &Guard{auth: auth, authorizer: authorizer}
}

// Authenticate requires a valid bearer token and stores the user in the
// request context.
func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return g.authenticate(next, false)
}

// AuthenticateStream also accepts the token from the "token" query
// parameter, since browser EventSource clients cannot set headers.
func (g *Guard) AuthenticateStream(next http.Handler) http.Handler {
	return g.authenticate(next, true)
}

func (g *Guard) authenticate(next http.Handler, allowQuery bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil && allowQuery {
			token = strings.TrimSpace(r.URL.Query().Get("token"))
		}

		user, err := g.auth.Authenticate(r.Context(), token)
		if err != nil {
			respondError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user, token)))
	})
}

// RequirePermission passes requests whose user holds at least one of perms.
func (g *Guard) RequirePermission(perms ...types.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userFromContext(r.Context())
			var subject *types.User
			if ok {
				subject = &user
			}
			if err := g.authorizer.CheckPermission(subject, perms...); err != nil {
				respondError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole passes requests whose user's role is one of roles.
func (g *Guard) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userFromContext(r.Context())
			var subject *types.User
			if ok {
				subject = &user
			}
			if err := g.authorizer.CheckRole(subject, roles...); err != nil {
				respondError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger writes one access log line per request, at a level chosen
// by the status class.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			state, r := ensureAuditState(r)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.Int("status", status),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", redactQuery(r)),
				zap.String("ip", clientIP(r)),
				zap.String("user-agent", r.UserAgent()),
				zap.Duration("latency", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}
			if state.userID != "" {
				fields = append(fields, zap.String("user_id", state.userID))
			}

			switch {
			case status >= 500:
				logger.Error("Server error", fields...)
			case status >= 400:
				logger.Warn("Client error", fields...)
			default:
				logger.Info("Request", fields...)
			}
		})
	}
}

func redactQuery(r *http.Request) string {
	query := r.URL.Query()
	if query.Has("token") {
		query.Set("token", "REDACTED")
		return query.Encode()
	}
	return r.URL.RawQuery
}

// AuditRecorder accepts finished request logs.
type AuditRecorder interface {
	Enqueue(entry types.RequestLog)
}

// auditState collects details discovered while a request is handled. It is
// shared by pointer so inner handlers can fill it in.
type auditState struct {
	userID     string
	errMessage string
}

func auditFromContext(ctx context.Context) *auditState {
	state, _ := ctx.Value(contextAuditKey).(*auditState)
	return state
}

// ensureAuditState returns the request's audit state, attaching a new one
// when no outer middleware has.
func ensureAuditState(r *http.Request) (*auditState, *http.Request) {
	if state := auditFromContext(r.Context()); state != nil {
		return state, r
	}
	state := &auditState{}
	return state, r.WithContext(context.WithValue(r.Context(), contextAuditKey, state))
}

// AuditLog records every request through recorder once it completes. JSON
// bodies are captured with credential fields removed.
func AuditLog(recorder AuditRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			body := captureJSONBody(r)

			state, r := ensureAuditState(r)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			recorder.Enqueue(types.RequestLog{
				UserID:         state.userID,
				Method:         r.Method,
				Path:           r.URL.Path,
				StatusCode:     status,
				IPAddress:      clientIP(r),
				UserAgent:      r.UserAgent(),
				RequestBody:    body,
				ResponseTimeMS: time.Since(start).Milliseconds(),
				ErrorMessage:   state.errMessage,
			})
		})
	}
}

// captureJSONBody reads a JSON body for the audit log and replaces it so
// the handler can still decode it.
func captureJSONBody(r *http.Request) json.RawMessage {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBodyBytes))
	if err != nil {
		return nil
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return services.SanitizeBody(data)
}
