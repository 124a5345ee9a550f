package services

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/petroasset/apiserver/internal/apperr"
	"github.com/petroasset/apiserver/internal/store"
	"github.com/petroasset/apiserver/types"
	"go.uber.org/zap"
)

const (
	// recentLedgerSize is the number of movements attached to inventory details.
	recentLedgerSize = 10

	// maxQuantity is the largest quantity the INTEGER stock columns hold.
	maxQuantity = math.MaxInt32
)

// InventoryRepository defines persistence operations for stock and its
// ledger.
type InventoryRepository interface {
	GetByID(ctx context.Context, id string) (types.Inventory, error)
	GetByCode(ctx context.Context, code string) (types.Inventory, error)
	GetByPair(ctx context.Context, warehouseID, equipmentID string) (types.Inventory, error)
	Receive(ctx context.Context, change types.StockChange) (types.Inventory, types.LedgerEntry, error)
	Dispatch(ctx context.Context, change types.StockChange) (types.Inventory, types.LedgerEntry, error)
	List(ctx context.Context, filter types.InventoryFilter) ([]types.InventoryItem, int, error)
	RecentLedger(ctx context.Context, inventoryID string, n int) ([]types.LedgerEntry, error)
	ListLedger(ctx context.Context, filter types.LedgerFilter) ([]types.LedgerEntry, int, error)
}

// WarehouseLookup resolves warehouses by row id or code.
type WarehouseLookup interface {
	GetByID(ctx context.Context, id string) (types.Warehouse, error)
	GetByCode(ctx context.Context, code string) (types.Warehouse, error)
}

// EquipmentLookup resolves equipment by row id or code.
type EquipmentLookup interface {
	GetByID(ctx context.Context, id string) (types.Equipment, error)
	GetByCode(ctx context.Context, code string) (types.Equipment, error)
}

// CodeGenerator mints human-readable codes.
type CodeGenerator interface {
	NextID(ctx context.Context, kind types.SequenceKind) (string, error)
}

// StockAlertPublisher delivers low-stock alerts. Delivery is advisory; a
// failure never undoes the movement that raised the alert.
type StockAlertPublisher interface {
	PublishStockAlert(ctx context.Context, alert types.StockAlert) error
}

// ReceiveInput is an inbound movement request. Warehouse and equipment may
// be given as row id or code.
type ReceiveInput struct {
	WarehouseID  string `json:"warehouse_id"`
	EquipmentID  string `json:"equipment_id"`
	Quantity     int    `json:"quantity"`
	SupplierName string `json:"supplier_name"`
	DateReceived string `json:"date_received"`
	Notes        string `json:"notes"`
}

// DispatchInput is an outbound movement request.
type DispatchInput struct {
	WarehouseID    string `json:"warehouse_id"`
	EquipmentID    string `json:"equipment_id"`
	Quantity       int    `json:"quantity"`
	Destination    string `json:"destination"`
	DateDispatched string `json:"date_dispatched"`
	Notes          string `json:"notes"`
}

// MovementResult is the outcome of a receive or dispatch.
type MovementResult struct {
	Inventory types.Inventory   `json:"inventory"`
	Ledger    types.LedgerEntry `json:"ledger"`
	Alert     *types.StockAlert `json:"alert"`
}

// InventoryListInput carries listing filters with an unresolved warehouse
// reference.
type InventoryListInput struct {
	WarehouseRef string
	ItemType     string
	SKU          string
	QuantityMin  *int
	QuantityMax  *int
	StockStatus  types.StockStatus
	Page         types.Page
}

// LedgerListInput carries ledger filters with an unresolved inventory
// reference.
type LedgerListInput struct {
	InventoryRef string
	MovementType types.MovementType
	From         string
	To           string
	Page         types.Page
}

// InventoryService encapsulates stock movement use-cases.
type InventoryService struct {
	repo       InventoryRepository
	warehouses WarehouseLookup
	equipment  EquipmentLookup
	codes      CodeGenerator
	alerts     StockAlertPublisher
	logger     *zap.Logger
}

func NewInventoryService(
	repo InventoryRepository,
	warehouses WarehouseLookup,
	equipment EquipmentLookup,
	codes CodeGenerator,
	alerts StockAlertPublisher,
	logger *zap.Logger,
) *InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryService{
		repo:       repo,
		warehouses: warehouses,
		equipment:  equipment,
		codes:      codes,
		alerts:     alerts,
		logger:     logger,
	}
}

func (s *InventoryService) resolvePair(ctx context.Context, warehouseRef, equipmentRef string) (types.Warehouse, types.Equipment, error) {
	warehouse, found, err := resolveRef(ctx, warehouseRef, s.warehouses.GetByID, s.warehouses.GetByCode)
	if err != nil {
		return types.Warehouse{}, types.Equipment{}, apperr.Internal(err, "resolve warehouse")
	}
	if !found {
		return types.Warehouse{}, types.Equipment{}, apperr.NotFound("Warehouse does not exist")
	}

	equipment, found, err := resolveRef(ctx, equipmentRef, s.equipment.GetByID, s.equipment.GetByCode)
	if err != nil {
		return types.Warehouse{}, types.Equipment{}, apperr.Internal(err, "resolve equipment")
	}
	if !found || equipment.IsDeleted {
		return types.Warehouse{}, types.Equipment{}, apperr.NotFound("Equipment (SKU) does not exist")
	}
	return warehouse, equipment, nil
}

// Receive adds stock to a (warehouse, equipment) pair, creating the pair's
// inventory row on first receipt.
func (s *InventoryService) Receive(ctx context.Context, actorID string, in ReceiveInput) (MovementResult, error) {
	supplier := strings.TrimSpace(in.SupplierName)
	if in.WarehouseID == "" || in.EquipmentID == "" || in.Quantity == 0 || supplier == "" || in.DateReceived == "" {
		return MovementResult{}, apperr.BadRequest("warehouse_id, equipment_id, quantity, supplier_name, and date_received are required")
	}
	if in.Quantity < 0 {
		return MovementResult{}, apperr.BadRequest("Quantity must be greater than 0")
	}
	if in.Quantity > maxQuantity {
		return MovementResult{}, apperr.BadRequest("Quantity must not exceed %d", maxQuantity)
	}
	receivedAt, err := parseDate("date_received", in.DateReceived)
	if err != nil {
		return MovementResult{}, err
	}

	warehouse, equipment, err := s.resolvePair(ctx, in.WarehouseID, in.EquipmentID)
	if err != nil {
		return MovementResult{}, err
	}

	change := types.StockChange{
		WarehouseID: warehouse.ID,
		EquipmentID: equipment.ID,
		Movement:    types.Receipt{Supplier: supplier, ReceivedAt: receivedAt},
		Quantity:    in.Quantity,
		ActorID:     actorID,
		Notes:       in.Notes,
	}

	if _, err := s.repo.GetByPair(ctx, warehouse.ID, equipment.ID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return MovementResult{}, apperr.Internal(err, "load inventory")
		}
		code, err := s.codes.NextID(ctx, types.SequenceInventory)
		if err != nil {
			return MovementResult{}, apperr.Internal(err, "generate inventory code")
		}
		change.InventoryCode = code
	}

	inv, entry, err := s.repo.Receive(ctx, change)
	if err != nil {
		if errors.Is(err, store.ErrQuantityOutOfRange) {
			return MovementResult{}, apperr.BadRequest("Quantity exceeds the maximum stock level")
		}
		return MovementResult{}, apperr.Internal(err, "receive inventory")
	}

	s.logger.Info("inventory received",
		zap.String("inventory", inv.Code),
		zap.String("warehouse", warehouse.Code),
		zap.String("equipment", equipment.Code),
		zap.Int("quantity", in.Quantity),
		zap.Int("total", inv.Quantity),
	)
	return MovementResult{Inventory: inv, Ledger: entry}, nil
}

// Dispatch removes stock from a pair. A request for more than the available
// quantity is rejected and leaves the pair untouched.
func (s *InventoryService) Dispatch(ctx context.Context, actorID string, in DispatchInput) (MovementResult, error) {
	destination := strings.TrimSpace(in.Destination)
	if in.WarehouseID == "" || in.EquipmentID == "" || in.Quantity == 0 || destination == "" || in.DateDispatched == "" {
		return MovementResult{}, apperr.BadRequest("warehouse_id, equipment_id, quantity, destination, and date_dispatched are required")
	}
	if in.Quantity < 0 {
		return MovementResult{}, apperr.BadRequest("Quantity must be greater than 0")
	}
	if in.Quantity > maxQuantity {
		return MovementResult{}, apperr.BadRequest("Quantity must not exceed %d", maxQuantity)
	}
	dispatchedAt, err := parseDate("date_dispatched", in.DateDispatched)
	if err != nil {
		return MovementResult{}, err
	}

	warehouse, equipment, err := s.resolvePair(ctx, in.WarehouseID, in.EquipmentID)
	if err != nil {
		return MovementResult{}, err
	}

	inv, entry, err := s.repo.Dispatch(ctx, types.StockChange{
		WarehouseID: warehouse.ID,
		EquipmentID: equipment.ID,
		Movement:    types.Shipment{Destination: destination, DispatchedAt: dispatchedAt},
		Quantity:    in.Quantity,
		ActorID:     actorID,
		Notes:       in.Notes,
	})
	if err != nil {
		var insufficient *store.InsufficientStockError
		switch {
		case errors.As(err, &insufficient):
			return MovementResult{}, apperr.BadRequest("Insufficient stock. Available: %d, Requested: %d", insufficient.Available, insufficient.Requested)
		case errors.Is(err, store.ErrNotFound):
			return MovementResult{}, apperr.NotFound("Inventory not found for this warehouse and equipment")
		default:
			return MovementResult{}, apperr.Internal(err, "dispatch inventory")
		}
	}

	result := MovementResult{Inventory: inv, Ledger: entry}
	if inv.StockStatus.NeedsAlert() {
		alert := types.NewStockAlert(inv, equipment.Name, warehouse.Name)
		result.Alert = &alert
		s.publishAlert(ctx, alert)
	}

	s.logger.Info("inventory dispatched",
		zap.String("inventory", inv.Code),
		zap.String("warehouse", warehouse.Code),
		zap.String("equipment", equipment.Code),
		zap.Int("quantity", in.Quantity),
		zap.Int("remaining", inv.Quantity),
		zap.String("stock_status", string(inv.StockStatus)),
	)
	return result, nil
}

func (s *InventoryService) publishAlert(ctx context.Context, alert types.StockAlert) {
	if s.alerts == nil {
		return
	}
	if err := s.alerts.PublishStockAlert(ctx, alert); err != nil {
		s.logger.Warn("publish stock alert", zap.String("inventory_id", alert.InventoryID), zap.Error(err))
	}
}

// List returns one page of inventory rows. An unknown warehouse filter
// yields an empty page.
func (s *InventoryService) List(ctx context.Context, in InventoryListInput) (types.Paginated[types.InventoryItem], error) {
	page := types.NewPage(in.Page.Number, in.Page.Size)
	filter := types.InventoryFilter{
		ItemType:    in.ItemType,
		SKU:         in.SKU,
		QuantityMin: in.QuantityMin,
		QuantityMax: in.QuantityMax,
		StockStatus: in.StockStatus,
		Page:        page,
	}
	if in.WarehouseRef != "" {
		warehouse, found, err := resolveRef(ctx, in.WarehouseRef, s.warehouses.GetByID, s.warehouses.GetByCode)
		if err != nil {
			return types.Paginated[types.InventoryItem]{}, apperr.Internal(err, "resolve warehouse")
		}
		if !found {
			return types.EmptyPage[types.InventoryItem](page), nil
		}
		filter.WarehouseID = warehouse.ID
	}
	if filter.StockStatus != "" && !filter.StockStatus.Valid() {
		return types.Paginated[types.InventoryItem]{}, apperr.BadRequest("Invalid stock_status")
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return types.Paginated[types.InventoryItem]{}, apperr.Internal(err, "list inventory")
	}
	return types.NewPaginated(page, items, total), nil
}

// Get returns one inventory row by id or code with its warehouse,
// equipment and latest movements.
func (s *InventoryService) Get(ctx context.Context, ref string) (types.InventoryDetail, error) {
	inv, found, err := resolveRef(ctx, ref, s.repo.GetByID, s.repo.GetByCode)
	if err != nil {
		return types.InventoryDetail{}, apperr.Internal(err, "load inventory")
	}
	if !found {
		return types.InventoryDetail{}, apperr.NotFound("Inventory not found")
	}

	warehouse, err := s.warehouses.GetByID(ctx, inv.WarehouseID)
	if err != nil {
		return types.InventoryDetail{}, apperr.Internal(err, "load inventory warehouse")
	}
	equipment, err := s.equipment.GetByID(ctx, inv.EquipmentID)
	if err != nil {
		return types.InventoryDetail{}, apperr.Internal(err, "load inventory equipment")
	}
	ledger, err := s.repo.RecentLedger(ctx, inv.ID, recentLedgerSize)
	if err != nil {
		return types.InventoryDetail{}, apperr.Internal(err, "load inventory ledger")
	}
	if ledger == nil {
		ledger = []types.LedgerEntry{}
	}

	return types.InventoryDetail{
		Inventory:     inv,
		Warehouse:     warehouse,
		Equipment:     equipment,
		RecentLedgers: ledger,
	}, nil
}

// Ledger returns one page of movements, newest first. An unknown inventory
// filter yields an empty page.
func (s *InventoryService) Ledger(ctx context.Context, in LedgerListInput) (types.Paginated[types.LedgerEntry], error) {
	page := types.NewPage(in.Page.Number, in.Page.Size)
	filter := types.LedgerFilter{
		MovementType: in.MovementType,
		Page:         page,
	}
	if filter.MovementType != "" && !filter.MovementType.Valid() {
		return types.Paginated[types.LedgerEntry]{}, apperr.BadRequest("Invalid movement_type")
	}
	if in.From != "" {
		from, err := parseDate("date_from", in.From)
		if err != nil {
			return types.Paginated[types.LedgerEntry]{}, err
		}
		filter.From = &from
	}
	if in.To != "" {
		to, err := parseDate("date_to", in.To)
		if err != nil {
			return types.Paginated[types.LedgerEntry]{}, err
		}
		filter.To = &to
	}
	if in.InventoryRef != "" {
		inv, found, err := resolveRef(ctx, in.InventoryRef, s.repo.GetByID, s.repo.GetByCode)
		if err != nil {
			return types.Paginated[types.LedgerEntry]{}, apperr.Internal(err, "resolve inventory")
		}
		if !found {
			return types.EmptyPage[types.LedgerEntry](page), nil
		}
		filter.InventoryID = inv.ID
	}

	entries, total, err := s.repo.ListLedger(ctx, filter)
	if err != nil {
		return types.Paginated[types.LedgerEntry]{}, apperr.Internal(err, "list inventory ledger")
	}
	return types.NewPaginated(page, entries, total), nil
}
