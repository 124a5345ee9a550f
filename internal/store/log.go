package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/petroasset/apiserver/types"
)

// LogRepository handles persistence for request audit logs.
type LogRepository struct {
	db *sql.DB
}

func NewLogRepository(db *sql.DB) *LogRepository {
	return &LogRepository{db: db}
}

const logColumns = `id, user_id, method, path, status_code, ip_address, user_agent, request_body, response_time_ms, error_message, created_at`

func scanLog(row rowScanner) (types.RequestLog, error) {
	var (
		entry  types.RequestLog
		userID sql.NullString
		body   []byte
	)
	if err := row.Scan(
		&entry.ID,
		&userID,
		&entry.Method,
		&entry.Path,
		&entry.StatusCode,
		&entry.IPAddress,
		&entry.UserAgent,
		&body,
		&entry.ResponseTimeMS,
		&entry.ErrorMessage,
		&entry.CreatedAt,
	); err != nil {
		return types.RequestLog{}, err
	}
	entry.UserID = userID.String
	if len(body) > 0 {
		entry.RequestBody = body
	}
	return entry, nil
}

func (r *LogRepository) Create(ctx context.Context, entry types.RequestLog) (types.RequestLog, error) {
	entry.ID = uuid.NewString()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var body any
	if len(entry.RequestBody) > 0 {
		body = []byte(entry.RequestBody)
	}

	const query = `
		INSERT INTO logs (id, user_id, method, path, status_code, ip_address, user_agent, request_body, response_time_ms, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		entry.ID,
		nullString(entry.UserID),
		entry.Method,
		entry.Path,
		entry.StatusCode,
		entry.IPAddress,
		entry.UserAgent,
		body,
		entry.ResponseTimeMS,
		entry.ErrorMessage,
		entry.CreatedAt,
	); err != nil {
		return types.RequestLog{}, err
	}
	return entry, nil
}

func (r *LogRepository) List(ctx context.Context, filter types.LogFilter) ([]types.RequestLog, int, error) {
	var c conditions
	if filter.Method != "" {
		c.add("method = ?", filter.Method)
	}
	if filter.StatusCode != 0 {
		c.add("status_code = ?", filter.StatusCode)
	}
	if filter.UserID != "" {
		if _, err := uuid.Parse(filter.UserID); err != nil {
			return []types.RequestLog{}, 0, nil
		}
		c.add("user_id = ?", filter.UserID)
	}
	if filter.From != nil {
		c.add("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		c.add("created_at <= ?", *filter.To)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM logs`+c.where(), c.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	where := c.where()
	limit := c.page(filter.Page.Limit(), filter.Page.Offset())
	rows, err := r.db.QueryContext(ctx, `SELECT `+logColumns+` FROM logs`+where+` ORDER BY created_at DESC`+limit, c.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]types.RequestLog, 0, filter.Page.Limit())
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *LogRepository) GetByID(ctx context.Context, id string) (types.RequestLog, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.RequestLog{}, ErrNotFound
	}
	entry, err := scanLog(r.db.QueryRowContext(ctx, `SELECT `+logColumns+` FROM logs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.RequestLog{}, ErrNotFound
		}
		return types.RequestLog{}, err
	}
	return entry, nil
}

func (r *LogRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM logs WHERE id = $1`, id)
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

// DeleteOlderThan removes every log created before cutoff and returns how
// many rows were removed.
func (r *LogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
