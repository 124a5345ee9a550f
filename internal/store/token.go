package store

import (
	"context"
	"database/sql"
	"time"
)

// TokenBlacklistRepository is the durable record of revoked access tokens.
type TokenBlacklistRepository struct {
	db *sql.DB
}

func NewTokenBlacklistRepository(db *sql.DB) *TokenBlacklistRepository {
	return &TokenBlacklistRepository{db: db}
}

// Add revokes token until expiresAt. Revoking the same token twice is a no-op.
func (r *TokenBlacklistRepository) Add(ctx context.Context, token, userID string, expiresAt time.Time) error {
	const query = `
		INSERT INTO blacklist_tokens (token, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, token, nullString(userID), expiresAt, time.Now().UTC())
	return err
}

func (r *TokenBlacklistRepository) Contains(ctx context.Context, token string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM blacklist_tokens WHERE token = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, token).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// DeleteExpired drops entries whose token can no longer authenticate anyway.
func (r *TokenBlacklistRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM blacklist_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
