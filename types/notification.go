package types

import "time"

// NotificationType is the severity shown to the recipient.
type NotificationType string

const (
	NotificationInfo    NotificationType = "INFO"
	NotificationWarning NotificationType = "WARNING"
	NotificationError   NotificationType = "ERROR"
	NotificationSuccess NotificationType = "SUCCESS"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationInfo, NotificationWarning, NotificationError, NotificationSuccess:
		return true
	}
	return false
}

// Notification is a message addressed to one user.
type Notification struct {
	ID          string           `json:"id" db:"id"`
	RecipientID string           `json:"recipientId" db:"recipient_id"`
	Title       string           `json:"title" db:"title"`
	Message     string           `json:"message" db:"message"`
	Type        NotificationType `json:"type" db:"type"`
	Category    string           `json:"category,omitempty" db:"category"`
	RelatedID   string           `json:"relatedId,omitempty" db:"related_id"`
	Link        string           `json:"link,omitempty" db:"link"`
	IsRead      bool             `json:"isRead" db:"is_read"`
	ReadAt      *time.Time       `json:"readAt,omitempty" db:"read_at"`
	CreatedBy   string           `json:"createdBy,omitempty" db:"created_by"`
	CreatedAt   time.Time        `json:"createdAt" db:"created_at"`
}

// NotificationFilter narrows a recipient's notification listing.
type NotificationFilter struct {
	RecipientID string
	IsRead      *bool
	Type        NotificationType
	Category    string
	Page        Page
}
