package store

import (
	"context"
	"database/sql"
)

// SequenceRepository hands out monotonic counter values.
type SequenceRepository struct {
	db *sql.DB
}

func NewSequenceRepository(db *sql.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// Next increments the named counter and returns its new value, creating the
// counter at 1 when absent. The increment is a single upsert so concurrent
// callers never observe the same value.
func (r *SequenceRepository) Next(ctx context.Context, name string) (int, error) {
	const query = `
		INSERT INTO sequences (name, value)
		VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = sequences.value + 1
		RETURNING value`
	var value int
	if err := r.db.QueryRowContext(ctx, query, name).Scan(&value); err != nil {
		return 0, err
	}
	return value, nil
}
