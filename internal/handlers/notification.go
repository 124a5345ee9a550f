package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/petroasset/apiserver/internal/realtime"
	"github.com/petroasset/apiserver/internal/services"
	"github.com/petroasset/apiserver/types"
	"go.uber.org/zap"
)

const streamHeartbeat = 30 * time.Second

// NotificationUseCases is the part of services.NotificationService the
// notification routes use.
type NotificationUseCases interface {
	Create(ctx context.Context, actorID string, in services.NotificationInput) (types.Notification, error)
	CreateBulk(ctx context.Context, actorID string, in services.BulkNotificationInput) ([]types.Notification, error)
	List(ctx context.Context, recipientID string, in services.NotificationListInput) (types.Paginated[types.Notification], error)
	UnreadCount(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, recipientID, id string) (types.Notification, error)
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	Delete(ctx context.Context, recipientID, id string) error
}

type NotificationHandler struct {
	notifications NotificationUseCases
	sessions      realtime.Registry

	closeOnce sync.Once
	closing   chan struct{}
}

func NewNotificationHandler(notifications NotificationUseCases, sessions realtime.Registry) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		sessions:      sessions,
		closing:       make(chan struct{}),
	}
}

// CloseStreams ends every open stream. http.Server.Shutdown does not
// interrupt active responses, so it is registered as a shutdown hook.
func (h *NotificationHandler) CloseStreams() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// NotificationRouter registers the notification CRUD routes. Every route
// acts on the authenticated user's own notifications. The stream route is
// mounted separately since it must bypass the request timeout.
func NotificationRouter(r chi.Router, handler *NotificationHandler, guard *Guard) {
	r.Get("/", handler.List)
	r.Post("/", handler.Create)
	r.With(guard.RequirePermission(types.PermCreateNotification)).Post("/bulk", handler.CreateBulk)
	r.Get("/unread-count", handler.UnreadCount)
	r.Put("/read-all", handler.MarkAllRead)
	r.Put("/{notificationId}/read", handler.MarkRead)
	r.Delete("/{notificationId}", handler.Delete)
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	page, err := parsePage(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.notifications.List(r.Context(), user.ID, services.NotificationListInput{
		IsRead:   queryValue(r, "isRead", "is_read"),
		Type:     queryValue(r, "type"),
		Category: queryValue(r, "category"),
		Page:     page,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Get notifications successfully", result)
}

func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req services.NotificationInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	created, err := h.notifications.Create(r.Context(), user.ID, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Create notification successfully", created)
}

func (h *NotificationHandler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req services.BulkNotificationInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	created, err := h.notifications.CreateBulk(r.Context(), user.ID, req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Create notifications successfully", created)
}

type unreadCountResponse struct {
	Count int `json:"count"`
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	count, err := h.notifications.UnreadCount(r.Context(), user.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Get unread count successfully", unreadCountResponse{Count: count})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	n, err := h.notifications.MarkRead(r.Context(), user.ID, chi.URLParam(r, "notificationId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Marked as read successfully", n)
}

type markAllReadResponse struct {
	UpdatedCount int64 `json:"updatedCount"`
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	count, err := h.notifications.MarkAllRead(r.Context(), user.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Marked all as read successfully", markAllReadResponse{UpdatedCount: count})
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.notifications.Delete(r.Context(), user.ID, chi.URLParam(r, "notificationId")); err != nil {
		respondError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Delete notification successfully", nil)
}

// Stream holds the user's live server-sent event stream open. Opening a
// stream replaces any previous stream of the same user.
func (h *NotificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	// The stream outlives the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	session := h.sessions.Register(user.ID)
	defer h.sessions.Unregister(session)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	connected, err := realtime.NewEvent(realtime.EventConnected, map[string]string{"session_id": session.ID})
	if err == nil {
		writeEvent(w, connected)
	}
	if err := rc.Flush(); err != nil {
		zap.L().Warn("stream flush unsupported", zap.Error(err))
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.closing:
			return
		case event, ok := <-session.Events:
			if !ok {
				return
			}
			writeEvent(w, event)
			if err := rc.Flush(); err != nil {
				return
			}
		case <-heartbeat.C:
			fmt.Fprint(w, ": keepalive\n\n")
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, event realtime.Event) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data)
}
