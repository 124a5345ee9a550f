package types

import "time"

// WarehouseStatus is the operational state of a warehouse.
type WarehouseStatus string

const (
	WarehouseActive      WarehouseStatus = "ACTIVE"
	WarehouseMaintenance WarehouseStatus = "MAINTENANCE"
)

// Valid reports whether s is a known warehouse status.
func (s WarehouseStatus) Valid() bool {
	return s == WarehouseActive || s == WarehouseMaintenance
}

// Warehouse is a storage site that holds inventory.
type Warehouse struct {
	// ID is the unique identifier of the warehouse.
	ID string `json:"id" db:"id"`

	// Code is the human-readable sequential code, e.g. "WH-001".
	Code string `json:"warehouseId" db:"code"`

	// Name and Location are unique together.
	Name     string `json:"name" db:"name"`
	Location string `json:"location" db:"location"`

	// Capacity is the nominal number of units the site can hold.
	Capacity int `json:"capacity" db:"capacity"`

	Status      WarehouseStatus `json:"status" db:"status"`
	Description string          `json:"description,omitempty" db:"description"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// WarehouseFilter narrows warehouse listings.
type WarehouseFilter struct {
	Status WarehouseStatus
	Search string
	Page   Page
}
