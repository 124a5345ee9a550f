package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/petroasset/apiserver/types"
)

// LoginHistoryRepository records login attempts.
type LoginHistoryRepository struct {
	db *sql.DB
}

func NewLoginHistoryRepository(db *sql.DB) *LoginHistoryRepository {
	return &LoginHistoryRepository{db: db}
}

func (r *LoginHistoryRepository) Create(ctx context.Context, entry types.LoginHistory) (types.LoginHistory, error) {
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now().UTC()

	const query = `
		INSERT INTO login_history (id, user_id, ip_address, user_agent, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(ctx, query, entry.ID, entry.UserID, entry.IPAddress, entry.UserAgent, entry.Success, entry.CreatedAt); err != nil {
		return types.LoginHistory{}, err
	}
	return entry, nil
}

// ListByUser returns the newest limit entries for the user.
func (r *LoginHistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]types.LoginHistory, error) {
	const query = `
		SELECT id, user_id, ip_address, user_agent, success, created_at
		FROM login_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.LoginHistory, 0, limit)
	for rows.Next() {
		var entry types.LoginHistory
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.IPAddress, &entry.UserAgent, &entry.Success, &entry.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, entry)
	}
	return items, rows.Err()
}
