package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/petroasset/apiserver/internal/db"
	"github.com/petroasset/apiserver/types"
)

// NotificationRepository handles persistence for user notifications.
type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, recipient_id, title, message, type, category, related_id, link, is_read, read_at, created_by, created_at`

func scanNotification(row rowScanner) (types.Notification, error) {
	var (
		n         types.Notification
		readAt    sql.NullTime
		createdBy sql.NullString
	)
	if err := row.Scan(
		&n.ID,
		&n.RecipientID,
		&n.Title,
		&n.Message,
		&n.Type,
		&n.Category,
		&n.RelatedID,
		&n.Link,
		&n.IsRead,
		&readAt,
		&createdBy,
		&n.CreatedAt,
	); err != nil {
		return types.Notification{}, err
	}
	n.ReadAt = timePtr(readAt)
	n.CreatedBy = createdBy.String
	return n, nil
}

func insertNotification(ctx context.Context, q queryer, n *types.Notification) error {
	n.ID = uuid.NewString()
	n.CreatedAt = time.Now().UTC()
	if n.Type == "" {
		n.Type = types.NotificationInfo
	}

	const query = `
		INSERT INTO notifications (id, recipient_id, title, message, type, category, related_id, link, is_read, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9, $10)`
	_, err := q.ExecContext(
		ctx,
		query,
		n.ID,
		n.RecipientID,
		n.Title,
		n.Message,
		n.Type,
		n.Category,
		n.RelatedID,
		n.Link,
		nullString(n.CreatedBy),
		n.CreatedAt,
	)
	return err
}

func (r *NotificationRepository) Create(ctx context.Context, n types.Notification) (types.Notification, error) {
	if err := insertNotification(ctx, r.db, &n); err != nil {
		return types.Notification{}, err
	}
	return n, nil
}

// CreateMany inserts one notification per entry in a single transaction.
func (r *NotificationRepository) CreateMany(ctx context.Context, items []types.Notification) ([]types.Notification, error) {
	if len(items) == 0 {
		return []types.Notification{}, nil
	}
	created := make([]types.Notification, len(items))
	copy(created, items)
	err := db.InTx(ctx, r.db, func(tx *sql.Tx) error {
		for i := range created {
			if err := insertNotification(ctx, tx, &created[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *NotificationRepository) List(ctx context.Context, filter types.NotificationFilter) ([]types.Notification, int, error) {
	var c conditions
	c.add("recipient_id = ?", filter.RecipientID)
	if filter.IsRead != nil {
		c.add("is_read = ?", *filter.IsRead)
	}
	if filter.Type != "" {
		c.add("type = ?", filter.Type)
	}
	if filter.Category != "" {
		c.add("category = ?", filter.Category)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM notifications`+c.where(), c.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	where := c.where()
	limit := c.page(filter.Page.Limit(), filter.Page.Offset())
	rows, err := r.db.QueryContext(ctx, `SELECT `+notificationColumns+` FROM notifications`+where+` ORDER BY created_at DESC`+limit, c.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]types.Notification, 0, filter.Page.Limit())
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	const query = `SELECT COUNT(1) FROM notifications WHERE recipient_id = $1 AND is_read = FALSE`
	var count int
	if err := r.db.QueryRowContext(ctx, query, recipientID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// MarkRead marks one notification read. Notifications owned by another
// recipient are reported as not found.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string) (types.Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Notification{}, ErrNotFound
	}
	const query = `
		UPDATE notifications
		SET is_read = TRUE, read_at = COALESCE(read_at, $1)
		WHERE id = $2 AND recipient_id = $3
		RETURNING ` + notificationColumns
	n, err := scanNotification(r.db.QueryRowContext(ctx, query, time.Now().UTC(), id, recipientID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Notification{}, ErrNotFound
		}
		return types.Notification{}, err
	}
	return n, nil
}

// MarkAllRead marks every unread notification of the recipient read and
// returns how many changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	const query = `UPDATE notifications SET is_read = TRUE, read_at = $1 WHERE recipient_id = $2 AND is_read = FALSE`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), recipientID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *NotificationRepository) Delete(ctx context.Context, id, recipientID string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
