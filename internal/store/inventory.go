package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/petroasset/apiserver/internal/db"
	"github.com/petroasset/apiserver/types"
)

// InventoryRepository handles persistence for inventory rows and their
// append-only ledger.
type InventoryRepository struct {
	db *sql.DB
}

func NewInventoryRepository(db *sql.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

const inventoryColumns = `id, code, warehouse_id, equipment_id, quantity, stock_status, last_updated`

func scanInventory(row rowScanner) (types.Inventory, error) {
	var inv types.Inventory
	err := row.Scan(
		&inv.ID,
		&inv.Code,
		&inv.WarehouseID,
		&inv.EquipmentID,
		&inv.Quantity,
		&inv.StockStatus,
		&inv.LastUpdated,
	)
	return inv, err
}

func (r *InventoryRepository) getOne(ctx context.Context, where string, args ...any) (types.Inventory, error) {
	inv, err := scanInventory(r.db.QueryRowContext(ctx, `SELECT `+inventoryColumns+` FROM inventory WHERE `+where, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Inventory{}, ErrNotFound
		}
		return types.Inventory{}, err
	}
	return inv, nil
}

func (r *InventoryRepository) GetByID(ctx context.Context, id string) (types.Inventory, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Inventory{}, ErrNotFound
	}
	return r.getOne(ctx, "id = $1", id)
}

func (r *InventoryRepository) GetByCode(ctx context.Context, code string) (types.Inventory, error) {
	return r.getOne(ctx, "code = $1", code)
}

func (r *InventoryRepository) GetByPair(ctx context.Context, warehouseID, equipmentID string) (types.Inventory, error) {
	return r.getOne(ctx, "warehouse_id = $1 AND equipment_id = $2", warehouseID, equipmentID)
}

// Receive adds change.Quantity to the pair and appends a RECEIVE ledger
// entry in the same transaction. When change.InventoryCode is set and the
// pair has no row yet, the row is created with that code.
func (r *InventoryRepository) Receive(ctx context.Context, change types.StockChange) (types.Inventory, types.LedgerEntry, error) {
	if change.Quantity <= 0 {
		return types.Inventory{}, types.LedgerEntry{}, fmt.Errorf("quantity must be positive")
	}

	var (
		inv   types.Inventory
		entry types.LedgerEntry
	)
	err := db.InTx(ctx, r.db, func(tx *sql.Tx) error {
		now := time.Now().UTC()

		var row *sql.Row
		if change.InventoryCode != "" {
			const upsert = `
				INSERT INTO inventory (id, code, warehouse_id, equipment_id, quantity, stock_status, last_updated)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (warehouse_id, equipment_id)
				DO UPDATE SET quantity = inventory.quantity + EXCLUDED.quantity, last_updated = EXCLUDED.last_updated
				RETURNING ` + inventoryColumns
			row = tx.QueryRowContext(ctx, upsert,
				uuid.NewString(),
				change.InventoryCode,
				change.WarehouseID,
				change.EquipmentID,
				change.Quantity,
				types.ClassifyStock(change.Quantity),
				now,
			)
		} else {
			const update = `
				UPDATE inventory
				SET quantity = quantity + $1, last_updated = $2
				WHERE warehouse_id = $3 AND equipment_id = $4
				RETURNING ` + inventoryColumns
			row = tx.QueryRowContext(ctx, update, change.Quantity, now, change.WarehouseID, change.EquipmentID)
		}

		var err error
		inv, err = scanInventory(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return mapWriteError(err)
		}

		if err := setStockStatus(ctx, tx, &inv); err != nil {
			return err
		}
		entry, err = appendLedger(ctx, tx, inv.ID, change, now)
		return err
	})
	if err != nil {
		return types.Inventory{}, types.LedgerEntry{}, err
	}
	return inv, entry, nil
}

// Dispatch subtracts change.Quantity from the pair and appends a DISPATCH
// ledger entry in the same transaction. The decrement only applies when
// enough stock is present; otherwise an *InsufficientStockError is returned
// and nothing is written.
func (r *InventoryRepository) Dispatch(ctx context.Context, change types.StockChange) (types.Inventory, types.LedgerEntry, error) {
	if change.Quantity <= 0 {
		return types.Inventory{}, types.LedgerEntry{}, fmt.Errorf("quantity must be positive")
	}

	var (
		inv   types.Inventory
		entry types.LedgerEntry
	)
	err := db.InTx(ctx, r.db, func(tx *sql.Tx) error {
		now := time.Now().UTC()

		const update = `
			UPDATE inventory
			SET quantity = quantity - $1, last_updated = $2
			WHERE warehouse_id = $3 AND equipment_id = $4 AND quantity >= $1
			RETURNING ` + inventoryColumns
		var err error
		inv, err = scanInventory(tx.QueryRowContext(ctx, update, change.Quantity, now, change.WarehouseID, change.EquipmentID))
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return mapWriteError(err)
			}
			var available int
			const current = `SELECT quantity FROM inventory WHERE warehouse_id = $1 AND equipment_id = $2`
			if err := tx.QueryRowContext(ctx, current, change.WarehouseID, change.EquipmentID).Scan(&available); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return ErrNotFound
				}
				return err
			}
			return &InsufficientStockError{Available: available, Requested: change.Quantity}
		}

		if err := setStockStatus(ctx, tx, &inv); err != nil {
			return err
		}
		entry, err = appendLedger(ctx, tx, inv.ID, change, now)
		return err
	})
	if err != nil {
		return types.Inventory{}, types.LedgerEntry{}, err
	}
	return inv, entry, nil
}

func setStockStatus(ctx context.Context, tx *sql.Tx, inv *types.Inventory) error {
	status := types.ClassifyStock(inv.Quantity)
	if status == inv.StockStatus {
		return nil
	}
	const query = `UPDATE inventory SET stock_status = $1 WHERE id = $2`
	if _, err := tx.ExecContext(ctx, query, status, inv.ID); err != nil {
		return err
	}
	inv.StockStatus = status
	return nil
}

func appendLedger(ctx context.Context, tx *sql.Tx, inventoryID string, change types.StockChange, now time.Time) (types.LedgerEntry, error) {
	if change.Movement == nil {
		return types.LedgerEntry{}, fmt.Errorf("stock change has no movement")
	}
	entry := types.LedgerEntry{
		ID:          uuid.NewString(),
		InventoryID: inventoryID,
		Movement:    change.Movement,
		Quantity:    change.Quantity,
		ActorID:     change.ActorID,
		Notes:       change.Notes,
		CreatedAt:   now,
	}

	const query = `
		INSERT INTO inventory_ledger (id, inventory_id, movement_type, quantity, counterpart, movement_date, actor_id, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := tx.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.InventoryID,
		entry.Movement.Type(),
		entry.Quantity,
		entry.Movement.Counterpart(),
		entry.Movement.Date(),
		nullString(entry.ActorID),
		entry.Notes,
		entry.CreatedAt,
	); err != nil {
		return types.LedgerEntry{}, err
	}
	return entry, nil
}

func (r *InventoryRepository) List(ctx context.Context, filter types.InventoryFilter) ([]types.InventoryItem, int, error) {
	var c conditions
	if filter.WarehouseID != "" {
		c.add("i.warehouse_id = ?", filter.WarehouseID)
	}
	if filter.ItemType != "" {
		c.add("e.type = ?", filter.ItemType)
	}
	if filter.SKU != "" {
		c.add("e.code ILIKE ?", likePattern(filter.SKU))
	}
	if filter.QuantityMin != nil {
		c.add("i.quantity >= ?", *filter.QuantityMin)
	}
	if filter.QuantityMax != nil {
		c.add("i.quantity <= ?", *filter.QuantityMax)
	}
	if filter.StockStatus != "" {
		c.add("i.stock_status = ?", filter.StockStatus)
	}

	const from = `
		FROM inventory i
		JOIN warehouses w ON w.id = i.warehouse_id
		JOIN equipment e ON e.id = i.equipment_id`

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1)`+from+c.where(), c.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	where := c.where()
	limit := c.page(filter.Page.Limit(), filter.Page.Offset())
	query := `
		SELECT i.id, i.code, i.equipment_id, e.name, e.type, e.code, i.quantity,
			w.name, w.location, i.warehouse_id, w.code, i.stock_status, i.last_updated` +
		from + where + `
		ORDER BY i.last_updated DESC` + limit
	rows, err := r.db.QueryContext(ctx, query, c.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]types.InventoryItem, 0, filter.Page.Limit())
	for rows.Next() {
		var (
			item              types.InventoryItem
			warehouseLocation string
		)
		if err := rows.Scan(
			&item.ID,
			&item.InventoryCode,
			&item.EquipmentID,
			&item.ItemName,
			&item.Category,
			&item.SKU,
			&item.QuantityAvailable,
			&item.WarehouseName,
			&warehouseLocation,
			&item.WarehouseID,
			&item.WarehouseCode,
			&item.StockStatus,
			&item.LastUpdated,
		); err != nil {
			return nil, 0, err
		}
		item.EquipmentCode = item.SKU
		item.WarehouseLocation = item.WarehouseName + " - " + warehouseLocation
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

const ledgerColumns = `l.id, l.inventory_id, l.movement_type, l.counterpart, l.movement_date, l.quantity, l.actor_id, l.notes, l.created_at`

func scanLedgerEntry(dest []any, row rowScanner) (types.LedgerEntry, error) {
	var (
		entry        types.LedgerEntry
		movementType types.MovementType
		counterpart  string
		movementDate time.Time
		actorID      sql.NullString
	)
	base := []any{
		&entry.ID,
		&entry.InventoryID,
		&movementType,
		&counterpart,
		&movementDate,
		&entry.Quantity,
		&actorID,
		&entry.Notes,
		&entry.CreatedAt,
	}
	if err := row.Scan(append(base, dest...)...); err != nil {
		return types.LedgerEntry{}, err
	}
	movement, err := types.NewMovement(movementType, counterpart, movementDate)
	if err != nil {
		return types.LedgerEntry{}, err
	}
	entry.Movement = movement
	entry.ActorID = actorID.String
	return entry, nil
}

// RecentLedger returns the newest n entries for one inventory row.
func (r *InventoryRepository) RecentLedger(ctx context.Context, inventoryID string, n int) ([]types.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM inventory_ledger l WHERE l.inventory_id = $1 ORDER BY l.created_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, inventoryID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]types.LedgerEntry, 0, n)
	for rows.Next() {
		entry, err := scanLedgerEntry(nil, rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *InventoryRepository) ListLedger(ctx context.Context, filter types.LedgerFilter) ([]types.LedgerEntry, int, error) {
	var c conditions
	if filter.InventoryID != "" {
		c.add("l.inventory_id = ?", filter.InventoryID)
	}
	if filter.MovementType != "" {
		c.add("l.movement_type = ?", filter.MovementType)
	}
	if filter.From != nil {
		c.add("l.created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		c.add("l.created_at <= ?", *filter.To)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM inventory_ledger l`+c.where(), c.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	where := c.where()
	limit := c.page(filter.Page.Limit(), filter.Page.Offset())
	query := `
		SELECT ` + ledgerColumns + `,
			i.code, i.quantity, i.stock_status, w.code, w.name, w.location, e.code, e.name, e.type
		FROM inventory_ledger l
		JOIN inventory i ON i.id = l.inventory_id
		JOIN warehouses w ON w.id = i.warehouse_id
		JOIN equipment e ON e.id = i.equipment_id` + where + `
		ORDER BY l.created_at DESC` + limit
	rows, err := r.db.QueryContext(ctx, query, c.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := make([]types.LedgerEntry, 0, filter.Page.Limit())
	for rows.Next() {
		var summary types.LedgerInventory
		entry, err := scanLedgerEntry([]any{
			&summary.Code,
			&summary.Quantity,
			&summary.StockStatus,
			&summary.WarehouseCode,
			&summary.WarehouseName,
			&summary.Location,
			&summary.EquipmentCode,
			&summary.EquipmentName,
			&summary.EquipmentType,
		}, rows)
		if err != nil {
			return nil, 0, err
		}
		summary.ID = entry.InventoryID
		entry.Inventory = &summary
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
