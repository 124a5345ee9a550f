package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/petroasset/apiserver/internal/realtime"
	"github.com/petroasset/apiserver/internal/services"
	"github.com/petroasset/apiserver/types"
)

type sseEvent struct {
	name string
	data string
}

// readEvent returns the next named event, skipping keepalive comments.
func readEvent(t *testing.T, reader *bufio.Reader) sseEvent {
	t.Helper()
	var event sseEvent
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			event.data = strings.TrimPrefix(line, "data: ")
		case line == "" && event.name != "":
			return event
		}
	}
}

func TestNotificationStream(t *testing.T) {
	hub := realtime.NewHub(nil)
	guard := testGuard()
	handler := NewNotificationHandler(nil, hub)

	router := chi.NewRouter()
	router.With(guard.AuthenticateStream).Get("/notifications/stream", handler.Stream)
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/notifications/stream?token=clerk-token", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	if event := readEvent(t, reader); event.name != realtime.EventConnected {
		t.Fatalf("expected connected event, got %+v", event)
	}

	event, err := realtime.NewEvent(realtime.EventNewNotification, types.Notification{ID: "n-1", Title: "Low stock alert"})
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	if !hub.Send("clerk", event) {
		t.Fatal("expected a live session for clerk")
	}
	got := readEvent(t, reader)
	if got.name != realtime.EventNewNotification || !strings.Contains(got.data, "Low stock alert") {
		t.Fatalf("unexpected event %+v", got)
	}

	hub.Evict("clerk", "Logged out")
	got = readEvent(t, reader)
	if got.name != realtime.EventForceLogout || !strings.Contains(got.data, "Logged out") {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestNotificationStreamRequiresToken(t *testing.T) {
	handler := NewNotificationHandler(nil, realtime.NewHub(nil))
	router := chi.NewRouter()
	router.With(testGuard().AuthenticateStream).Get("/notifications/stream", handler.Stream)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notifications/stream", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

type fakeNotifications struct {
	NotificationUseCases
	createdBy string
	input     services.NotificationInput
}

func (f *fakeNotifications) Create(_ context.Context, actorID string, in services.NotificationInput) (types.Notification, error) {
	f.createdBy = actorID
	f.input = in
	return types.Notification{ID: "n-1", RecipientID: in.RecipientID, Title: in.Title}, nil
}

func TestBulkNotificationRequiresPermission(t *testing.T) {
	guard := testGuard()
	notifications := &fakeNotifications{}
	router := chi.NewRouter()
	router.Route("/notifications", func(r chi.Router) {
		r.Use(guard.Authenticate)
		NotificationRouter(r, NewNotificationHandler(notifications, realtime.NewHub(nil)), guard)
	})

	rec := doRequest(t, router, http.MethodPost, "/notifications/bulk", "clerk-token", services.BulkNotificationInput{
		RecipientIDs: []string{"admin"},
		Title:        "Shift change",
		Message:      "Handover at 18:00",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/notifications", "clerk-token", services.NotificationInput{
		RecipientID: "admin",
		Title:       "Shift change",
		Message:     "Handover at 18:00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	if notifications.createdBy != "clerk" || notifications.input.RecipientID != "admin" {
		t.Fatalf("service saw %q %+v", notifications.createdBy, notifications.input)
	}
}
