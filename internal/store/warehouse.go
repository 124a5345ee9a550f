package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/petroasset/apiserver/types"
)

// WarehouseRepository handles persistence for warehouses.
type WarehouseRepository struct {
	db *sql.DB
}

func NewWarehouseRepository(db *sql.DB) *WarehouseRepository {
	return &WarehouseRepository{db: db}
}

const warehouseColumns = `id, code, name, location, capacity, status, description, created_at, updated_at`

func scanWarehouse(row rowScanner) (types.Warehouse, error) {
	var warehouse types.Warehouse
	err := row.Scan(
		&warehouse.ID,
		&warehouse.Code,
		&warehouse.Name,
		&warehouse.Location,
		&warehouse.Capacity,
		&warehouse.Status,
		&warehouse.Description,
		&warehouse.CreatedAt,
		&warehouse.UpdatedAt,
	)
	return warehouse, err
}

func (r *WarehouseRepository) List(ctx context.Context, filter types.WarehouseFilter) ([]types.Warehouse, int, error) {
	var c conditions
	if filter.Status != "" {
		c.add("status = ?", filter.Status)
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		c.add("(name ILIKE ? OR location ILIKE ? OR code ILIKE ?)", pattern, pattern, pattern)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM warehouses`+c.where(), c.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	where := c.where()
	limit := c.page(filter.Page.Limit(), filter.Page.Offset())
	rows, err := r.db.QueryContext(ctx, `SELECT `+warehouseColumns+` FROM warehouses`+where+` ORDER BY created_at DESC`+limit, c.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]types.Warehouse, 0, filter.Page.Limit())
	for rows.Next() {
		warehouse, err := scanWarehouse(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, warehouse)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *WarehouseRepository) getOne(ctx context.Context, where string, args ...any) (types.Warehouse, error) {
	warehouse, err := scanWarehouse(r.db.QueryRowContext(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE `+where, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Warehouse{}, ErrNotFound
		}
		return types.Warehouse{}, err
	}
	return warehouse, nil
}

func (r *WarehouseRepository) GetByID(ctx context.Context, id string) (types.Warehouse, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Warehouse{}, ErrNotFound
	}
	return r.getOne(ctx, "id = $1", id)
}

func (r *WarehouseRepository) GetByCode(ctx context.Context, code string) (types.Warehouse, error) {
	return r.getOne(ctx, "code = $1", code)
}

func (r *WarehouseRepository) GetByNameAndLocation(ctx context.Context, name, location string) (types.Warehouse, error) {
	return r.getOne(ctx, "name = $1 AND location = $2", name, location)
}

func (r *WarehouseRepository) Create(ctx context.Context, warehouse types.Warehouse) (types.Warehouse, error) {
	now := time.Now().UTC()
	warehouse.ID = uuid.NewString()
	warehouse.CreatedAt = now
	warehouse.UpdatedAt = now

	const query = `
		INSERT INTO warehouses (id, code, name, location, capacity, status, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		warehouse.ID,
		warehouse.Code,
		warehouse.Name,
		warehouse.Location,
		warehouse.Capacity,
		warehouse.Status,
		warehouse.Description,
		warehouse.CreatedAt,
		warehouse.UpdatedAt,
	); err != nil {
		return types.Warehouse{}, mapWriteError(err)
	}
	return warehouse, nil
}

func (r *WarehouseRepository) Update(ctx context.Context, warehouse types.Warehouse) (types.Warehouse, error) {
	warehouse.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE warehouses
		SET name = $1,
			location = $2,
			capacity = $3,
			status = $4,
			description = $5,
			updated_at = $6
		WHERE id = $7`
	result, err := r.db.ExecContext(
		ctx,
		query,
		warehouse.Name,
		warehouse.Location,
		warehouse.Capacity,
		warehouse.Status,
		warehouse.Description,
		warehouse.UpdatedAt,
		warehouse.ID,
	)
	if err != nil {
		return types.Warehouse{}, mapWriteError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Warehouse{}, err
	}
	if affected == 0 {
		return types.Warehouse{}, ErrNotFound
	}
	return warehouse, nil
}

func (r *WarehouseRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM warehouses WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
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

// CountInventory returns the number of inventory rows held by the warehouse.
func (r *WarehouseRepository) CountInventory(ctx context.Context, warehouseID string) (int, error) {
	const query = `SELECT COUNT(1) FROM inventory WHERE warehouse_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, warehouseID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
