package services

import (
	"context"
	"errors"
	"strings"

	"github.com/petroasset/apiserver/internal/apperr"
	"github.com/petroasset/apiserver/internal/store"
	"github.com/petroasset/apiserver/types"
	"go.uber.org/zap"
)

// WarehouseRepository defines persistence operations for warehouses.
type WarehouseRepository interface {
	List(ctx context.Context, filter types.WarehouseFilter) ([]types.Warehouse, int, error)
	GetByID(ctx context.Context, id string) (types.Warehouse, error)
	GetByCode(ctx context.Context, code string) (types.Warehouse, error)
	GetByNameAndLocation(ctx context.Context, name, location string) (types.Warehouse, error)
	Create(ctx context.Context, warehouse types.Warehouse) (types.Warehouse, error)
	Update(ctx context.Context, warehouse types.Warehouse) (types.Warehouse, error)
	Delete(ctx context.Context, id string) error
	CountInventory(ctx context.Context, warehouseID string) (int, error)
}

// WarehouseInput creates a warehouse.
type WarehouseInput struct {
	Name        string `json:"name"`
	Location    string `json:"location"`
	Capacity    int    `json:"capacity"`
	Status      string `json:"status"`
	Description string `json:"description"`
}

// WarehouseUpdateInput changes a warehouse. Nil fields are left unchanged.
type WarehouseUpdateInput struct {
	Name        *string `json:"name"`
	Location    *string `json:"location"`
	Capacity    *int    `json:"capacity"`
	Status      *string `json:"status"`
	Description *string `json:"description"`
}

// WarehouseService encapsulates warehouse use-cases.
type WarehouseService struct {
	repo   WarehouseRepository
	codes  CodeGenerator
	logger *zap.Logger
}

func NewWarehouseService(repo WarehouseRepository, codes CodeGenerator, logger *zap.Logger) *WarehouseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WarehouseService{repo: repo, codes: codes, logger: logger}
}

func parseWarehouseStatus(value string) (types.WarehouseStatus, error) {
	status := types.WarehouseStatus(strings.ToUpper(strings.TrimSpace(value)))
	if !status.Valid() {
		return "", apperr.BadRequest("Invalid status. Must be one of: ACTIVE, MAINTENANCE")
	}
	return status, nil
}

func (s *WarehouseService) ensureUnique(ctx context.Context, name, location, exceptID string) error {
	existing, err := s.repo.GetByNameAndLocation(ctx, name, location)
	if err == nil && existing.ID != exceptID {
		return apperr.BadRequest("Warehouse with this name and location already exists")
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return apperr.Internal(err, "check warehouse name")
	}
	return nil
}

func (s *WarehouseService) Create(ctx context.Context, in WarehouseInput) (types.Warehouse, error) {
	name := strings.TrimSpace(in.Name)
	location := strings.TrimSpace(in.Location)
	if name == "" || location == "" || in.Capacity == 0 {
		return types.Warehouse{}, apperr.BadRequest("name, location, and capacity are required")
	}
	if in.Capacity < 0 {
		return types.Warehouse{}, apperr.BadRequest("Capacity must be greater than 0")
	}
	status := types.WarehouseActive
	if in.Status != "" {
		parsed, err := parseWarehouseStatus(in.Status)
		if err != nil {
			return types.Warehouse{}, err
		}
		status = parsed
	}
	if err := s.ensureUnique(ctx, name, location, ""); err != nil {
		return types.Warehouse{}, err
	}

	code, err := s.codes.NextID(ctx, types.SequenceWarehouse)
	if err != nil {
		return types.Warehouse{}, apperr.Internal(err, "failed to generate warehouse id")
	}
	created, err := s.repo.Create(ctx, types.Warehouse{
		Code:        code,
		Name:        name,
		Location:    location,
		Capacity:    in.Capacity,
		Status:      status,
		Description: strings.TrimSpace(in.Description),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.Warehouse{}, apperr.BadRequest("Warehouse with this name and location already exists")
		}
		return types.Warehouse{}, apperr.Internal(err, "create warehouse")
	}
	s.logger.Info("warehouse created", zap.String("warehouse_id", created.ID), zap.String("code", created.Code))
	return created, nil
}

func (s *WarehouseService) List(ctx context.Context, filter types.WarehouseFilter) (types.Paginated[types.Warehouse], error) {
	filter.Page = types.NewPage(filter.Page.Number, filter.Page.Size)
	if filter.Status != "" {
		status, err := parseWarehouseStatus(string(filter.Status))
		if err != nil {
			return types.Paginated[types.Warehouse]{}, err
		}
		filter.Status = status
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return types.Paginated[types.Warehouse]{}, apperr.Internal(err, "list warehouses")
	}
	return types.NewPaginated(filter.Page, items, total), nil
}

// Get resolves a warehouse by row id or WH code.
func (s *WarehouseService) Get(ctx context.Context, ref string) (types.Warehouse, error) {
	warehouse, found, err := resolveRef(ctx, ref, s.repo.GetByID, s.repo.GetByCode)
	if err != nil {
		return types.Warehouse{}, apperr.Internal(err, "load warehouse")
	}
	if !found {
		return types.Warehouse{}, apperr.NotFound("Warehouse not found")
	}
	return warehouse, nil
}

func (s *WarehouseService) Update(ctx context.Context, ref string, in WarehouseUpdateInput) (types.Warehouse, error) {
	warehouse, err := s.Get(ctx, ref)
	if err != nil {
		return types.Warehouse{}, err
	}
	renamed := false
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return types.Warehouse{}, apperr.BadRequest("name cannot be empty")
		}
		renamed = renamed || name != warehouse.Name
		warehouse.Name = name
	}
	if in.Location != nil {
		location := strings.TrimSpace(*in.Location)
		if location == "" {
			return types.Warehouse{}, apperr.BadRequest("location cannot be empty")
		}
		renamed = renamed || location != warehouse.Location
		warehouse.Location = location
	}
	if renamed {
		if err := s.ensureUnique(ctx, warehouse.Name, warehouse.Location, warehouse.ID); err != nil {
			return types.Warehouse{}, err
		}
	}
	if in.Capacity != nil {
		if *in.Capacity <= 0 {
			return types.Warehouse{}, apperr.BadRequest("Capacity must be greater than 0")
		}
		warehouse.Capacity = *in.Capacity
	}
	if in.Status != nil {
		status, err := parseWarehouseStatus(*in.Status)
		if err != nil {
			return types.Warehouse{}, err
		}
		warehouse.Status = status
	}
	setString(&warehouse.Description, in.Description)
	return s.save(ctx, warehouse)
}

func (s *WarehouseService) save(ctx context.Context, warehouse types.Warehouse) (types.Warehouse, error) {
	updated, err := s.repo.Update(ctx, warehouse)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.Warehouse{}, apperr.BadRequest("Warehouse with this name and location already exists")
		}
		return types.Warehouse{}, mapNotFound(err, "Warehouse not found")
	}
	return updated, nil
}

// ChangeStatus toggles a warehouse between ACTIVE and MAINTENANCE.
func (s *WarehouseService) ChangeStatus(ctx context.Context, ref, status string) (types.Warehouse, error) {
	if strings.TrimSpace(status) == "" {
		return types.Warehouse{}, apperr.BadRequest("status is required")
	}
	parsed, err := parseWarehouseStatus(status)
	if err != nil {
		return types.Warehouse{}, err
	}
	warehouse, err := s.Get(ctx, ref)
	if err != nil {
		return types.Warehouse{}, err
	}
	warehouse.Status = parsed
	return s.save(ctx, warehouse)
}

// Delete removes a warehouse that holds no inventory rows.
func (s *WarehouseService) Delete(ctx context.Context, ref string) error {
	warehouse, err := s.Get(ctx, ref)
	if err != nil {
		return err
	}
	count, err := s.repo.CountInventory(ctx, warehouse.ID)
	if err != nil {
		return apperr.Internal(err, "count warehouse inventory")
	}
	if count > 0 {
		return apperr.BadRequest("Cannot delete warehouse. It still contains %d inventory item(s). Please remove all inventory first.", count)
	}
	if err := s.repo.Delete(ctx, warehouse.ID); err != nil {
		return mapNotFound(err, "Warehouse not found")
	}
	s.logger.Info("warehouse deleted", zap.String("warehouse_id", warehouse.ID))
	return nil
}
