package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// StockStatus is derived from an inventory quantity by ClassifyStock.
type StockStatus string

const (
	StockInStock    StockStatus = "IN_STOCK"
	StockLow        StockStatus = "LOW"
	StockOutOfStock StockStatus = "OUT_OF_STOCK"
)

// Stock classification bands. A quantity at or above InStockThreshold is
// IN_STOCK, at or above LowStockThreshold is LOW, anything below is
// OUT_OF_STOCK.
const (
	InStockThreshold  = 100
	LowStockThreshold = 10
)

// ClassifyStock maps a quantity to its stock status. It is the only place
// the thresholds are applied.
func ClassifyStock(quantity int) StockStatus {
	switch {
	case quantity >= InStockThreshold:
		return StockInStock
	case quantity >= LowStockThreshold:
		return StockLow
	default:
		return StockOutOfStock
	}
}

// Valid reports whether s is a known stock status.
func (s StockStatus) Valid() bool {
	switch s {
	case StockInStock, StockLow, StockOutOfStock:
		return true
	}
	return false
}

// NeedsAlert reports whether the status should raise a low-stock alert.
func (s StockStatus) NeedsAlert() bool {
	return s == StockLow || s == StockOutOfStock
}

// Inventory is the stock record for one (warehouse, equipment) pair.
type Inventory struct {
	// ID is the unique identifier of the inventory row.
	ID string `json:"id" db:"id"`

	// Code is the human-readable sequential code, e.g. "INV-001".
	Code string `json:"inventoryId" db:"code"`

	WarehouseID string `json:"warehouseId" db:"warehouse_id"`
	EquipmentID string `json:"equipmentId" db:"equipment_id"`

	// Quantity is never negative.
	Quantity int `json:"quantity" db:"quantity"`

	// StockStatus is always ClassifyStock(Quantity).
	StockStatus StockStatus `json:"stockStatus" db:"stock_status"`

	LastUpdated time.Time `json:"lastUpdated" db:"last_updated"`
}

// InventoryItem is the flattened inventory view returned by listings.
type InventoryItem struct {
	ID                string      `json:"id"`
	InventoryCode     string      `json:"inventory_custom_id"`
	EquipmentID       string      `json:"equipment_id"`
	ItemName          string      `json:"item_name"`
	Category          string      `json:"category"`
	SKU               string      `json:"sku"`
	QuantityAvailable int         `json:"quantity_available"`
	WarehouseLocation string      `json:"warehouse_location"`
	WarehouseID       string      `json:"warehouse_id"`
	WarehouseCode     string      `json:"warehouse_custom_id"`
	WarehouseName     string      `json:"warehouse_name"`
	EquipmentCode     string      `json:"equipment_custom_id"`
	StockStatus       StockStatus `json:"stock_status"`
	LastUpdated       time.Time   `json:"last_updated"`
}

// InventoryDetail is a single inventory row with its related records and
// most recent movements.
type InventoryDetail struct {
	Inventory
	Warehouse     Warehouse     `json:"warehouse"`
	Equipment     Equipment     `json:"equipment"`
	RecentLedgers []LedgerEntry `json:"inventoryLedgers"`
}

// InventoryFilter narrows inventory listings. WarehouseID must already be
// resolved to a row id.
type InventoryFilter struct {
	WarehouseID string
	ItemType    string
	SKU         string
	QuantityMin *int
	QuantityMax *int
	StockStatus StockStatus
	Page        Page
}

// MovementType tags a ledger entry as inbound or outbound.
type MovementType string

const (
	MovementReceive  MovementType = "RECEIVE"
	MovementDispatch MovementType = "DISPATCH"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	return t == MovementReceive || t == MovementDispatch
}

// Movement is the variant part of a ledger entry: either a Receipt or a
// Shipment. Each variant carries exactly one date and one counterpart.
type Movement interface {
	Type() MovementType
	Counterpart() string
	Date() time.Time
}

// Receipt records stock arriving from a supplier.
type Receipt struct {
	Supplier   string
	ReceivedAt time.Time
}

func (r Receipt) Type() MovementType  { return MovementReceive }
func (r Receipt) Counterpart() string { return r.Supplier }
func (r Receipt) Date() time.Time     { return r.ReceivedAt }

// Shipment records stock leaving for a destination.
type Shipment struct {
	Destination  string
	DispatchedAt time.Time
}

func (s Shipment) Type() MovementType  { return MovementDispatch }
func (s Shipment) Counterpart() string { return s.Destination }
func (s Shipment) Date() time.Time     { return s.DispatchedAt }

// NewMovement rebuilds the variant from its stored columns.
func NewMovement(t MovementType, counterpart string, date time.Time) (Movement, error) {
	switch t {
	case MovementReceive:
		return Receipt{Supplier: counterpart, ReceivedAt: date}, nil
	case MovementDispatch:
		return Shipment{Destination: counterpart, DispatchedAt: date}, nil
	default:
		return nil, fmt.Errorf("unknown movement type %q", t)
	}
}

// LedgerEntry is an immutable record of one stock movement.
type LedgerEntry struct {
	ID          string
	InventoryID string
	Movement    Movement
	// Quantity is the positive delta moved, not the resulting total.
	Quantity  int
	ActorID   string
	Notes     string
	CreatedAt time.Time

	// Inventory summarises the affected stock row in ledger listings.
	Inventory *LedgerInventory
}

// LedgerInventory is the inventory context embedded in ledger listings.
type LedgerInventory struct {
	ID            string      `json:"id"`
	Code          string      `json:"inventoryId"`
	Quantity      int         `json:"quantity"`
	StockStatus   StockStatus `json:"stockStatus"`
	WarehouseCode string      `json:"warehouseId"`
	WarehouseName string      `json:"warehouseName"`
	Location      string      `json:"location"`
	EquipmentCode string      `json:"equipmentId"`
	EquipmentName string      `json:"equipmentName"`
	EquipmentType string      `json:"equipmentType"`
}

type ledgerEntryJSON struct {
	ID             string           `json:"id"`
	InventoryID    string           `json:"inventoryId"`
	MovementType   MovementType     `json:"movementType"`
	Quantity       int              `json:"quantity"`
	SupplierName   string           `json:"supplierName,omitempty"`
	DateReceived   *time.Time       `json:"dateReceived,omitempty"`
	Destination    string           `json:"destination,omitempty"`
	DateDispatched *time.Time       `json:"dateDispatched,omitempty"`
	ReceiverID     string           `json:"receiverId,omitempty"`
	Notes          string           `json:"notes,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	Inventory      *LedgerInventory `json:"inventory,omitempty"`
}

// MarshalJSON flattens the movement variant into its type-specific fields.
func (e LedgerEntry) MarshalJSON() ([]byte, error) {
	out := ledgerEntryJSON{
		ID:          e.ID,
		InventoryID: e.InventoryID,
		Quantity:    e.Quantity,
		ReceiverID:  e.ActorID,
		Notes:       e.Notes,
		CreatedAt:   e.CreatedAt,
		Inventory:   e.Inventory,
	}
	switch m := e.Movement.(type) {
	case Receipt:
		out.MovementType = MovementReceive
		out.SupplierName = m.Supplier
		date := m.ReceivedAt
		out.DateReceived = &date
	case Shipment:
		out.MovementType = MovementDispatch
		out.Destination = m.Destination
		date := m.DispatchedAt
		out.DateDispatched = &date
	default:
		return nil, fmt.Errorf("ledger entry %s has no movement", e.ID)
	}
	return json.Marshal(out)
}

// StockChange is one movement to apply to a (warehouse, equipment) pair.
// InventoryCode is only used when a receipt creates the pair's row.
type StockChange struct {
	WarehouseID   string
	EquipmentID   string
	InventoryCode string
	Movement      Movement
	Quantity      int
	ActorID       string
	Notes         string
}

// LedgerFilter narrows ledger listings. InventoryID must already be
// resolved to a row id.
type LedgerFilter struct {
	InventoryID  string
	MovementType MovementType
	From         *time.Time
	To           *time.Time
	Page         Page
}

// StockAlert is the advisory payload produced when a dispatch leaves a
// pair LOW or OUT_OF_STOCK.
type StockAlert struct {
	Message         string      `json:"message"`
	StockStatus     StockStatus `json:"stockStatus"`
	CurrentQuantity int         `json:"currentQuantity"`
	InventoryID     string      `json:"inventoryId"`
	EquipmentName   string      `json:"equipmentName"`
	WarehouseName   string      `json:"warehouseName"`
}

// NewStockAlert builds the alert for a pair after a movement.
func NewStockAlert(inv Inventory, equipmentName, warehouseName string) StockAlert {
	return StockAlert{
		Message:         fmt.Sprintf("Low stock alert for %s in %s", equipmentName, warehouseName),
		StockStatus:     inv.StockStatus,
		CurrentQuantity: inv.Quantity,
		InventoryID:     inv.ID,
		EquipmentName:   equipmentName,
		WarehouseName:   warehouseName,
	}
}

// SequenceKind names a counter used to mint human-readable codes.
type SequenceKind struct {
	Name   string
	Prefix string
}

var (
	SequenceEquipment = SequenceKind{Name: "equipment", Prefix: "EQ"}
	SequenceWarehouse = SequenceKind{Name: "warehouse", Prefix: "WH"}
	SequenceInventory = SequenceKind{Name: "inventory", Prefix: "INV"}
)

// FormatCode renders the n-th code of the kind, e.g. "EQ-007".
func (k SequenceKind) FormatCode(n int) string {
	return fmt.Sprintf("%s-%03d", k.Prefix, n)
}
