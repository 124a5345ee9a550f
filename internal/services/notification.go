package services

import (
	"context"
	"errors"
	"strings"

	"github.com/petroasset/apiserver/internal/apperr"
	"github.com/petroasset/apiserver/internal/realtime"
	"github.com/petroasset/apiserver/internal/store"
	"github.com/petroasset/apiserver/types"
	"go.uber.org/zap"
)

const stockAlertCategory = "INVENTORY"

// NotificationRepository defines persistence operations for notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n types.Notification) (types.Notification, error)
	CreateMany(ctx context.Context, items []types.Notification) ([]types.Notification, error)
	List(ctx context.Context, filter types.NotificationFilter) ([]types.Notification, int, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, id, recipientID string) (types.Notification, error)
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	Delete(ctx context.Context, id, recipientID string) error
}

// RecipientDirectory finds notification recipients.
type RecipientDirectory interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	ListIDsWithPermission(ctx context.Context, perms []types.Permission) ([]string, error)
}

// EventSender pushes events to a user's live stream.
type EventSender interface {
	Send(userID string, event realtime.Event) bool
}

// NotificationInput creates one notification.
type NotificationInput struct {
	RecipientID string `json:"recipientId"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	RelatedID   string `json:"relatedId"`
	Link        string `json:"link"`
}

// BulkNotificationInput sends the same notification to many recipients.
type BulkNotificationInput struct {
	RecipientIDs []string `json:"recipientIds"`
	Title        string   `json:"title"`
	Message      string   `json:"message"`
	Type         string   `json:"type"`
	Category     string   `json:"category"`
	RelatedID    string   `json:"relatedId"`
	Link         string   `json:"link"`
}

// NotificationListInput holds raw listing filters for the current user.
type NotificationListInput struct {
	IsRead   string
	Type     string
	Category string
	Page     types.Page
}

// NotificationService stores notifications and pushes them to live streams.
type NotificationService struct {
	repo       NotificationRepository
	recipients RecipientDirectory
	events     EventSender
	logger     *zap.Logger
}

func NewNotificationService(repo NotificationRepository, recipients RecipientDirectory, events EventSender, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, recipients: recipients, events: events, logger: logger}
}

func parseNotificationType(value string) (types.NotificationType, error) {
	if strings.TrimSpace(value) == "" {
		return types.NotificationInfo, nil
	}
	t := types.NotificationType(strings.ToUpper(strings.TrimSpace(value)))
	if !t.Valid() {
		return "", apperr.BadRequest("Invalid type. Must be one of: INFO, WARNING, ERROR, SUCCESS")
	}
	return t, nil
}

func (s *NotificationService) push(n types.Notification) {
	if s.events == nil {
		return
	}
	event, err := realtime.NewEvent(realtime.EventNewNotification, n)
	if err != nil {
		s.logger.Warn("encode notification event", zap.String("notification_id", n.ID), zap.Error(err))
		return
	}
	s.events.Send(n.RecipientID, event)
}

// Create stores a notification for one recipient and pushes it live.
func (s *NotificationService) Create(ctx context.Context, actorID string, in NotificationInput) (types.Notification, error) {
	recipient := strings.TrimSpace(in.RecipientID)
	title := strings.TrimSpace(in.Title)
	message := strings.TrimSpace(in.Message)
	if recipient == "" || title == "" || message == "" {
		return types.Notification{}, apperr.BadRequest("recipientId, title, and message are required")
	}
	kind, err := parseNotificationType(in.Type)
	if err != nil {
		return types.Notification{}, err
	}
	if _, err := s.recipients.GetByID(ctx, recipient); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Notification{}, apperr.NotFound("Recipient user not found")
		}
		return types.Notification{}, apperr.Internal(err, "load recipient")
	}

	created, err := s.repo.Create(ctx, types.Notification{
		RecipientID: recipient,
		Title:       title,
		Message:     message,
		Type:        kind,
		Category:    strings.TrimSpace(in.Category),
		RelatedID:   strings.TrimSpace(in.RelatedID),
		Link:        strings.TrimSpace(in.Link),
		CreatedBy:   actorID,
	})
	if err != nil {
		return types.Notification{}, apperr.Internal(err, "create notification")
	}
	s.push(created)
	return created, nil
}

// CreateBulk stores one notification per distinct recipient in a single
// transaction and pushes each live.
func (s *NotificationService) CreateBulk(ctx context.Context, actorID string, in BulkNotificationInput) ([]types.Notification, error) {
	title := strings.TrimSpace(in.Title)
	message := strings.TrimSpace(in.Message)
	if len(in.RecipientIDs) == 0 || title == "" || message == "" {
		return nil, apperr.BadRequest("recipientIds, title, and message are required")
	}
	kind, err := parseNotificationType(in.Type)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(in.RecipientIDs))
	items := make([]types.Notification, 0, len(in.RecipientIDs))
	for _, id := range in.RecipientIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, err := s.recipients.GetByID(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, apperr.NotFound("Recipient user not found: %s", id)
			}
			return nil, apperr.Internal(err, "load recipient")
		}
		items = append(items, types.Notification{
			RecipientID: id,
			Title:       title,
			Message:     message,
			Type:        kind,
			Category:    strings.TrimSpace(in.Category),
			RelatedID:   strings.TrimSpace(in.RelatedID),
			Link:        strings.TrimSpace(in.Link),
			CreatedBy:   actorID,
		})
	}
	if len(items) == 0 {
		return nil, apperr.BadRequest("recipientIds, title, and message are required")
	}
	return s.createMany(ctx, items)
}

func (s *NotificationService) createMany(ctx context.Context, items []types.Notification) ([]types.Notification, error) {
	created, err := s.repo.CreateMany(ctx, items)
	if err != nil {
		return nil, apperr.Internal(err, "create notifications")
	}
	for _, n := range created {
		s.push(n)
	}
	return created, nil
}

// PublishStockAlert fans a low-stock alert out as a WARNING notification to
// every active user who can view inventory.
func (s *NotificationService) PublishStockAlert(ctx context.Context, alert types.StockAlert) error {
	ids, err := s.recipients.ListIDsWithPermission(ctx, []types.Permission{types.PermViewInventory, types.PermissionAll})
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	items := make([]types.Notification, len(ids))
	for i, id := range ids {
		items[i] = types.Notification{
			RecipientID: id,
			Title:       "Low stock alert",
			Message:     alert.Message,
			Type:        types.NotificationWarning,
			Category:    stockAlertCategory,
			RelatedID:   alert.InventoryID,
			Link:        "/inventory/" + alert.InventoryID,
		}
	}
	if _, err := s.createMany(ctx, items); err != nil {
		return err
	}
	s.logger.Info("stock alert delivered", zap.String("inventory_id", alert.InventoryID), zap.Int("recipients", len(ids)))
	return nil
}

func (s *NotificationService) List(ctx context.Context, recipientID string, in NotificationListInput) (types.Paginated[types.Notification], error) {
	filter := types.NotificationFilter{
		RecipientID: recipientID,
		Category:    strings.TrimSpace(in.Category),
		Page:        types.NewPage(in.Page.Number, in.Page.Size),
	}
	switch strings.ToLower(strings.TrimSpace(in.IsRead)) {
	case "":
	case "true":
		read := true
		filter.IsRead = &read
	case "false":
		read := false
		filter.IsRead = &read
	default:
		return types.Paginated[types.Notification]{}, apperr.BadRequest("isRead must be true or false")
	}
	if in.Type != "" {
		kind, err := parseNotificationType(in.Type)
		if err != nil {
			return types.Paginated[types.Notification]{}, err
		}
		filter.Type = kind
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return types.Paginated[types.Notification]{}, apperr.Internal(err, "list notifications")
	}
	return types.NewPaginated(filter.Page, items, total), nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	count, err := s.repo.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, apperr.Internal(err, "count unread notifications")
	}
	return count, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, recipientID, id string) (types.Notification, error) {
	n, err := s.repo.MarkRead(ctx, id, recipientID)
	if err != nil {
		return types.Notification{}, mapNotFound(err, "Notification not found")
	}
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	count, err := s.repo.MarkAllRead(ctx, recipientID)
	if err != nil {
		return 0, apperr.Internal(err, "mark notifications read")
	}
	return count, nil
}

func (s *NotificationService) Delete(ctx context.Context, recipientID, id string) error {
	if err := s.repo.Delete(ctx, id, recipientID); err != nil {
		return mapNotFound(err, "Notification not found")
	}
	return nil
}
