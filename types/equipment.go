package types

import "time"

// EquipmentStatus is the operational state of a piece of equipment.
type EquipmentStatus string

const (
	EquipmentActive      EquipmentStatus = "Active"
	EquipmentInactive    EquipmentStatus = "Inactive"
	EquipmentMaintenance EquipmentStatus = "Maintenance"
)

// EquipmentStatuses lists every valid status in display order.
func EquipmentStatuses() []EquipmentStatus {
	return []EquipmentStatus{EquipmentActive, EquipmentInactive, EquipmentMaintenance}
}

// Valid reports whether s is a known equipment status.
func (s EquipmentStatus) Valid() bool {
	switch s {
	case EquipmentActive, EquipmentInactive, EquipmentMaintenance:
		return true
	}
	return false
}

// Equipment is a tracked physical asset. It doubles as the SKU that
// inventory rows count.
type Equipment struct {
	// ID is the unique identifier of the equipment.
	ID string `json:"id" db:"id"`

	// Code is the human-readable sequential code, e.g. "EQ-001".
	Code string `json:"equipmentId" db:"code"`

	// Name is unique across all equipment.
	Name string `json:"name" db:"name"`

	// SerialNumber is unique across all equipment.
	SerialNumber string `json:"serialNumber" db:"serial_number"`

	Type         string          `json:"type" db:"type"`
	Model        string          `json:"model,omitempty" db:"model"`
	Manufacturer string          `json:"manufacturer,omitempty" db:"manufacturer"`
	Status       EquipmentStatus `json:"status" db:"status"`
	Location     string          `json:"location,omitempty" db:"location"`
	Description  string          `json:"description,omitempty" db:"description"`

	InstallDate         *time.Time `json:"installDate,omitempty" db:"install_date"`
	LastMaintenanceDate *time.Time `json:"lastMaintenanceDate,omitempty" db:"last_maintenance_date"`
	NextMaintenanceDate *time.Time `json:"nextMaintenanceDate,omitempty" db:"next_maintenance_date"`

	// Specifications is a free-form map of technical attributes.
	Specifications map[string]any `json:"specifications" db:"specifications"`

	// ImageKey is the object storage key of the equipment photo, if any.
	ImageKey string `json:"imageKey,omitempty" db:"image_key"`

	// IsDeleted marks a soft-deleted record. Deleted equipment is hidden
	// from lookups and listings.
	IsDeleted bool `json:"isDeleted" db:"is_deleted"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// EquipmentFilter narrows equipment listings.
type EquipmentFilter struct {
	Type     string
	Status   EquipmentStatus
	Location string
	Search   string
	Page     Page
}

// MaintenanceRecord is one entry in an equipment's maintenance history.
type MaintenanceRecord struct {
	ID              string    `json:"id" db:"id"`
	EquipmentID     string    `json:"equipmentId" db:"equipment_id"`
	Date            time.Time `json:"date" db:"date"`
	MaintenanceType string    `json:"maintenanceType" db:"maintenance_type"`
	Description     string    `json:"description,omitempty" db:"description"`
	PerformedBy     string    `json:"performedBy,omitempty" db:"performed_by"`
	Cost            float64   `json:"cost" db:"cost"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`

	// Equipment summarises the owning equipment in global listings.
	Equipment *EquipmentSummary `json:"equipment,omitempty" db:"-"`
}

// EquipmentSummary is the subset of equipment fields embedded in other
// records.
type EquipmentSummary struct {
	ID           string `json:"id"`
	Code         string `json:"equipmentId"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Model        string `json:"model,omitempty"`
	SerialNumber string `json:"serialNumber,omitempty"`
}

// MaintenanceFilter narrows maintenance history listings.
type MaintenanceFilter struct {
	EquipmentID string
	From        *time.Time
	To          *time.Time
	Page        Page
}
