// Package realtime keeps one live event stream per user.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	EventConnected       = "connected"
	EventForceLogout     = "force_logout"
	EventNewNotification = "new_notification"

	sessionBuffer = 64
)

// Event is one server-sent event.
type Event struct {
	Type string
	Data []byte
}

// NewEvent encodes payload as the event data.
func NewEvent(eventType string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Data: data}, nil
}

// Session is a user's live stream. Events is closed when the session is
// evicted or unregistered.
type Session struct {
	ID     string
	UserID string
	Events chan Event
}

// Registry maps users to their single live session.
type Registry interface {
	// Register opens a session for the user, evicting any previous one.
	Register(userID string) *Session
	Lookup(userID string) (*Session, bool)
	// Evict sends a force_logout event to the user's session and closes it.
	Evict(userID, reason string) bool
	// Unregister closes the session if it is still the user's current one.
	Unregister(session *Session)
	// Send delivers an event without blocking. It reports whether the user
	// had a session with room for the event.
	Send(userID string, event Event) bool
}

// Hub is the in-process Registry.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *zap.Logger
}

var _ Registry = (*Hub)(nil)

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

func (h *Hub) Register(userID string) *Session {
	session := &Session{
		ID:     uuid.NewString(),
		UserID: userID,
		Events: make(chan Event, sessionBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if previous, ok := h.sessions[userID]; ok {
		h.closeLocked(previous, "Logged in from another session")
	}
	h.sessions[userID] = session
	h.logger.Debug("session registered", zap.String("user_id", userID), zap.String("session_id", session.ID), zap.Int("total", len(h.sessions)))
	return session
}

func (h *Hub) Lookup(userID string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	session, ok := h.sessions[userID]
	return session, ok
}

func (h *Hub) Evict(userID, reason string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	session, ok := h.sessions[userID]
	if !ok {
		return false
	}
	h.closeLocked(session, reason)
	delete(h.sessions, userID)
	h.logger.Info("session evicted", zap.String("user_id", userID), zap.String("session_id", session.ID))
	return true
}

func (h *Hub) Unregister(session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	current, ok := h.sessions[session.UserID]
	if !ok || current != session {
		return
	}
	close(session.Events)
	delete(h.sessions, session.UserID)
	h.logger.Debug("session unregistered", zap.String("user_id", session.UserID), zap.String("session_id", session.ID))
}

func (h *Hub) Send(userID string, event Event) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	session, ok := h.sessions[userID]
	if !ok {
		return false
	}
	select {
	case session.Events <- event:
		return true
	default:
		h.logger.Warn("session buffer full, dropping event", zap.String("user_id", userID), zap.String("event", event.Type))
		return false
	}
}

// Len returns the number of live sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// closeLocked queues a force_logout event and closes the channel. The
// caller holds h.mu.
func (h *Hub) closeLocked(session *Session, reason string) {
	event, err := NewEvent(EventForceLogout, map[string]string{"message": reason})
	if err == nil {
		select {
		case session.Events <- event:
		default:
		}
	}
	close(session.Events)
}
