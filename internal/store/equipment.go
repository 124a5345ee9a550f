package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/petroasset/apiserver/internal/db"
	"github.com/petroasset/apiserver/types"
)

// EquipmentRepository handles persistence for equipment and its
// maintenance history.
type EquipmentRepository struct {
	db *sql.DB
}

func NewEquipmentRepository(db *sql.DB) *EquipmentRepository {
	return &EquipmentRepository{db: db}
}

const equipmentColumns = `
	id, code, name, serial_number, type, model, manufacturer, status, location, description,
	install_date, last_maintenance_date, next_maintenance_date, specifications, image_key,
	is_deleted, created_at, updated_at`

func scanEquipment(row rowScanner) (types.Equipment, error) {
	var (
		equipment       types.Equipment
		installDate     sql.NullTime
		lastMaintenance sql.NullTime
		nextMaintenance sql.NullTime
		specsJSON       []byte
	)
	if err := row.Scan(
		&equipment.ID,
		&equipment.Code,
		&equipment.Name,
		&equipment.SerialNumber,
		&equipment.Type,
		&equipment.Model,
		&equipment.Manufacturer,
		&equipment.Status,
		&equipment.Location,
		&equipment.Description,
		&installDate,
		&lastMaintenance,
		&nextMaintenance,
		&specsJSON,
		&equipment.ImageKey,
		&equipment.IsDeleted,
		&equipment.CreatedAt,
		&equipment.UpdatedAt,
	); err != nil {
		return types.Equipment{}, err
	}
	equipment.InstallDate = timePtr(installDate)
	equipment.LastMaintenanceDate = timePtr(lastMaintenance)
	equipment.NextMaintenanceDate = timePtr(nextMaintenance)
	equipment.Specifications = map[string]any{}
	_ = json.Unmarshal(specsJSON, &equipment.Specifications)
	return equipment, nil
}

func (r *EquipmentRepository) List(ctx context.Context, filter types.EquipmentFilter) ([]types.Equipment, int, error) {
	var c conditions
	c.add("is_deleted = ?", false)
	if filter.Type != "" {
		c.add("type = ?", filter.Type)
	}
	if filter.Status != "" {
		c.add("status = ?", filter.Status)
	}
	if filter.Location != "" {
		c.add("location ILIKE ?", likePattern(filter.Location))
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		c.add("(name ILIKE ? OR code ILIKE ? OR serial_number ILIKE ?)", pattern, pattern, pattern)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM equipment`+c.where(), c.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	where := c.where()
	limit := c.page(filter.Page.Limit(), filter.Page.Offset())
	rows, err := r.db.QueryContext(ctx, `SELECT `+equipmentColumns+` FROM equipment`+where+` ORDER BY created_at DESC`+limit, c.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]types.Equipment, 0, filter.Page.Limit())
	for rows.Next() {
		equipment, err := scanEquipment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, equipment)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *EquipmentRepository) getBy(ctx context.Context, column, value string) (types.Equipment, error) {
	query := `SELECT ` + equipmentColumns + ` FROM equipment WHERE ` + column + ` = $1`
	equipment, err := scanEquipment(r.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Equipment{}, ErrNotFound
		}
		return types.Equipment{}, err
	}
	return equipment, nil
}

// GetByID returns the row including soft-deleted equipment.
func (r *EquipmentRepository) GetByID(ctx context.Context, id string) (types.Equipment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Equipment{}, ErrNotFound
	}
	return r.getBy(ctx, "id", id)
}

func (r *EquipmentRepository) GetByCode(ctx context.Context, code string) (types.Equipment, error) {
	return r.getBy(ctx, "code", code)
}

func (r *EquipmentRepository) GetByName(ctx context.Context, name string) (types.Equipment, error) {
	return r.getBy(ctx, "name", name)
}

func (r *EquipmentRepository) GetBySerialNumber(ctx context.Context, serial string) (types.Equipment, error) {
	return r.getBy(ctx, "serial_number", serial)
}

func (r *EquipmentRepository) Create(ctx context.Context, equipment types.Equipment) (types.Equipment, error) {
	now := time.Now().UTC()
	equipment.ID = uuid.NewString()
	equipment.CreatedAt = now
	equipment.UpdatedAt = now
	if equipment.Specifications == nil {
		equipment.Specifications = map[string]any{}
	}
	specsJSON, err := json.Marshal(equipment.Specifications)
	if err != nil {
		return types.Equipment{}, err
	}

	const query = `
		INSERT INTO equipment (
			id, code, name, serial_number, type, model, manufacturer, status, location, description,
			install_date, last_maintenance_date, next_maintenance_date, specifications, image_key,
			is_deleted, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		equipment.ID,
		equipment.Code,
		equipment.Name,
		equipment.SerialNumber,
		equipment.Type,
		equipment.Model,
		equipment.Manufacturer,
		equipment.Status,
		equipment.Location,
		equipment.Description,
		nullTime(equipment.InstallDate),
		nullTime(equipment.LastMaintenanceDate),
		nullTime(equipment.NextMaintenanceDate),
		specsJSON,
		equipment.ImageKey,
		equipment.IsDeleted,
		equipment.CreatedAt,
		equipment.UpdatedAt,
	); err != nil {
		return types.Equipment{}, mapWriteError(err)
	}
	return equipment, nil
}

func (r *EquipmentRepository) Update(ctx context.Context, equipment types.Equipment) (types.Equipment, error) {
	equipment.UpdatedAt = time.Now().UTC()
	if equipment.Specifications == nil {
		equipment.Specifications = map[string]any{}
	}
	specsJSON, err := json.Marshal(equipment.Specifications)
	if err != nil {
		return types.Equipment{}, err
	}

	const query = `
		UPDATE equipment
		SET name = $1,
			serial_number = $2,
			type = $3,
			model = $4,
			manufacturer = $5,
			status = $6,
			location = $7,
			description = $8,
			install_date = $9,
			last_maintenance_date = $10,
			next_maintenance_date = $11,
			specifications = $12,
			image_key = $13,
			is_deleted = $14,
			updated_at = $15
		WHERE id = $16`
	result, err := r.db.ExecContext(
		ctx,
		query,
		equipment.Name,
		equipment.SerialNumber,
		equipment.Type,
		equipment.Model,
		equipment.Manufacturer,
		equipment.Status,
		equipment.Location,
		equipment.Description,
		nullTime(equipment.InstallDate),
		nullTime(equipment.LastMaintenanceDate),
		nullTime(equipment.NextMaintenanceDate),
		specsJSON,
		equipment.ImageKey,
		equipment.IsDeleted,
		equipment.UpdatedAt,
		equipment.ID,
	)
	if err != nil {
		return types.Equipment{}, mapWriteError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Equipment{}, err
	}
	if affected == 0 {
		return types.Equipment{}, ErrNotFound
	}
	return equipment, nil
}

// AddMaintenance appends a maintenance record and advances the equipment's
// last maintenance date when the record is newer.
func (r *EquipmentRepository) AddMaintenance(ctx context.Context, record types.MaintenanceRecord) (types.MaintenanceRecord, error) {
	record.ID = uuid.NewString()
	record.CreatedAt = time.Now().UTC()

	err := db.InTx(ctx, r.db, func(tx *sql.Tx) error {
		const insert = `
			INSERT INTO maintenance_history (id, equipment_id, date, maintenance_type, description, performed_by, cost, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		if _, err := tx.ExecContext(
			ctx,
			insert,
			record.ID,
			record.EquipmentID,
			record.Date,
			record.MaintenanceType,
			record.Description,
			record.PerformedBy,
			record.Cost,
			record.CreatedAt,
		); err != nil {
			return err
		}

		const touch = `
			UPDATE equipment
			SET last_maintenance_date = GREATEST(COALESCE(last_maintenance_date, $1), $1),
				updated_at = $2
			WHERE id = $3`
		result, err := tx.ExecContext(ctx, touch, record.Date, record.CreatedAt, record.EquipmentID)
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
	})
	if err != nil {
		return types.MaintenanceRecord{}, err
	}
	return record, nil
}

func (r *EquipmentRepository) ListMaintenance(ctx context.Context, filter types.MaintenanceFilter) ([]types.MaintenanceRecord, int, error) {
	var c conditions
	if filter.EquipmentID != "" {
		c.add("m.equipment_id = ?", filter.EquipmentID)
	}
	if filter.From != nil {
		c.add("m.date >= ?", *filter.From)
	}
	if filter.To != nil {
		c.add("m.date <= ?", *filter.To)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM maintenance_history m`+c.where(), c.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	where := c.where()
	limit := c.page(filter.Page.Limit(), filter.Page.Offset())
	query := `
		SELECT m.id, m.equipment_id, m.date, m.maintenance_type, m.description, m.performed_by, m.cost, m.created_at,
			e.code, e.name, e.type, e.model, e.serial_number
		FROM maintenance_history m
		JOIN equipment e ON e.id = m.equipment_id` + where + `
		ORDER BY m.date DESC` + limit
	rows, err := r.db.QueryContext(ctx, query, c.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	records := make([]types.MaintenanceRecord, 0, filter.Page.Limit())
	for rows.Next() {
		var (
			record  types.MaintenanceRecord
			summary types.EquipmentSummary
		)
		if err := rows.Scan(
			&record.ID,
			&record.EquipmentID,
			&record.Date,
			&record.MaintenanceType,
			&record.Description,
			&record.PerformedBy,
			&record.Cost,
			&record.CreatedAt,
			&summary.Code,
			&summary.Name,
			&summary.Type,
			&summary.Model,
			&summary.SerialNumber,
		); err != nil {
			return nil, 0, err
		}
		summary.ID = record.EquipmentID
		record.Equipment = &summary
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
