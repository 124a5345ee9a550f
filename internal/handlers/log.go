package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/petroasset/apiserver/internal/services"
	"github.com/petroasset/apiserver/types"
)

// LogUseCases is the part of services.LogService the audit log routes use.
type LogUseCases interface {
	List(ctx context.Context, in services.LogListInput) (types.Paginated[types.RequestLog], error)
	Get(ctx context.Context, id string) (types.RequestLog, error)
	Delete(ctx context.Context, id string) error
	ClearOld(ctx context.Context, days int) (int64, error)
}

type LogHandler struct {
	logs LogUseCases
}

func NewLogHandler(logs LogUseCases) *LogHandler {
	return &LogHandler{logs: logs}
}

// LogRouter registers audit log routes on the given router.
func LogRouter(r chi.Router, logs LogUseCases, guard *Guard) {
	handler := NewLogHandler(logs)
	remove := guard.RequirePermission(types.PermDeleteAuditLog)

	r.With(guard.RequirePermission(types.PermViewAuditLog)).Get("/", handler.List)
	r.With(guard.RequirePermission(types.PermViewAuditLog)).Get("/{id}", handler.Get)
	r.With(remove).Delete("/{id}", handler.Delete)
	r.With(remove).Post("/clear-old", handler.ClearOld)
}

func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.logs.List(r.Context(), services.LogListInput{
		Method:     queryValue(r, "method"),
		StatusCode: queryValue(r, "statusCode", "status_code"),
		UserID:     queryValue(r, "userId", "user_id"),
		From:       queryValue(r, "startDate"),
		To:         queryValue(r, "endDate"),
		Page:       page,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Get logs successfully", result)
}

func (h *LogHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.logs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Get log detail successfully", entry)
}

func (h *LogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.logs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Delete log successfully", nil)
}

type clearOldLogsRequest struct {
	DaysToKeep int `json:"daysToKeep"`
}

type clearOldLogsResponse struct {
	DeletedCount int64 `json:"deletedCount"`
}

// ClearOld deletes entries older than daysToKeep. An empty body keeps the
// default retention.
func (h *LogHandler) ClearOld(w http.ResponseWriter, r *http.Request) {
	var req clearOldLogsRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
	}

	deleted, err := h.logs.ClearOld(r.Context(), req.DaysToKeep)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Clear old logs successfully", clearOldLogsResponse{DeletedCount: deleted})
}
