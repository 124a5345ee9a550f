package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Permission names a capability that a role may grant.
type Permission string

// PermissionAll is held by the super-role and satisfies every check.
const PermissionAll Permission = "ALL"

const (
	PermViewDashboard  Permission = "VIEW_DASHBOARD"
	PermViewAuditLog   Permission = "VIEW_AUDIT_LOG"
	PermDeleteAuditLog Permission = "DELETE_AUDIT_LOG"

	PermViewAsset Permission = "VIEW_ASSET"
	PermEditAsset Permission = "EDIT_ASSET"

	PermViewEquipment            Permission = "VIEW_EQUIPMENT"
	PermCreateEquipment          Permission = "CREATE_EQUIPMENT"
	PermUpdateEquipment          Permission = "UPDATE_EQUIPMENT"
	PermDeleteEquipment          Permission = "DELETE_EQUIPMENT"
	PermViewEquipmentMaintenance Permission = "VIEW_EQUIPMENT_MAINTENANCE"
	PermScheduleMaintenance      Permission = "SCHEDULE_EQUIPMENT_MAINTENANCE"
	PermControlEquipment         Permission = "CONTROL_EQUIPMENT"

	PermViewInstrument           Permission = "VIEW_INSTRUMENT"
	PermViewInstrumentDetails    Permission = "VIEW_INSTRUMENT_DETAILS"
	PermUpdateInstrument         Permission = "UPDATE_INSTRUMENT"
	PermAssignEngineerInstrument Permission = "ASSIGN_ENGINEER_INSTRUMENT"
	PermView3DInstrument         Permission = "VIEW_3D_INSTRUMENT"
	PermInteract3DInstrument     Permission = "INTERACT_3D_INSTRUMENT"
	PermViewControlPanel         Permission = "VIEW_CONTROL_PANEL"

	PermViewWarehouse   Permission = "VIEW_WAREHOUSE"
	PermCreateWarehouse Permission = "CREATE_WAREHOUSE"
	PermUpdateWarehouse Permission = "UPDATE_WAREHOUSE"
	PermDeleteWarehouse Permission = "DELETE_WAREHOUSE"

	PermViewInventory     Permission = "VIEW_INVENTORY"
	PermReceiveInventory  Permission = "RECEIVE_INVENTORY"
	PermDispatchInventory Permission = "DISPATCH_INVENTORY"

	PermViewIncident     Permission = "VIEW_INCIDENT"
	PermHandleIncident   Permission = "HANDLE_INCIDENT"
	PermAcknowledgeAlert Permission = "ACKNOWLEDGE_ALERT"
	PermViewMaintenance  Permission = "VIEW_MAINTENANCE"
	PermTrackMaintenance Permission = "TRACK_MAINTENANCE"
	PermAssignEngineer   Permission = "ASSIGN_ENGINEER"

	PermViewOilTankStatus Permission = "VIEW_OIL_TANK_STATUS"
	PermViewOilOutput     Permission = "VIEW_OIL_OUTPUT"
	PermMonitorOilOutput  Permission = "MONITOR_OIL_OUTPUT"
	PermDispatchOil       Permission = "DISPATCH_OIL"

	PermViewOfflineData Permission = "VIEW_OFFLINE_DATA"
	PermSyncOfflineData Permission = "SYNC_OFFLINE_DATA"
	PermViewReport      Permission = "VIEW_REPORT"
	PermExportReport    Permission = "EXPORT_REPORT"

	PermViewRole   Permission = "VIEW_ROLE"
	PermCreateRole Permission = "CREATE_ROLE"
	PermUpdateRole Permission = "UPDATE_ROLE"
	PermDeleteRole Permission = "DELETE_ROLE"

	PermViewUser   Permission = "VIEW_USER"
	PermCreateUser Permission = "CREATE_USER"
	PermUpdateUser Permission = "UPDATE_USER"

	PermCreateNotification Permission = "CREATE_NOTIFICATION"
)

var knownPermissions = map[Permission]struct{}{}

func init() {
	for _, p := range []Permission{
		PermissionAll,
		PermViewDashboard, PermViewAuditLog, PermDeleteAuditLog,
		PermViewAsset, PermEditAsset,
		PermViewEquipment, PermCreateEquipment, PermUpdateEquipment, PermDeleteEquipment,
		PermViewEquipmentMaintenance, PermScheduleMaintenance, PermControlEquipment,
		PermViewInstrument, PermViewInstrumentDetails, PermUpdateInstrument,
		PermAssignEngineerInstrument, PermView3DInstrument, PermInteract3DInstrument,
		PermViewControlPanel,
		PermViewWarehouse, PermCreateWarehouse, PermUpdateWarehouse, PermDeleteWarehouse,
		PermViewInventory, PermReceiveInventory, PermDispatchInventory,
		PermViewIncident, PermHandleIncident, PermAcknowledgeAlert,
		PermViewMaintenance, PermTrackMaintenance, PermAssignEngineer,
		PermViewOilTankStatus, PermViewOilOutput, PermMonitorOilOutput, PermDispatchOil,
		PermViewOfflineData, PermSyncOfflineData, PermViewReport, PermExportReport,
		PermViewRole, PermCreateRole, PermUpdateRole, PermDeleteRole,
		PermViewUser, PermCreateUser, PermUpdateUser,
		PermCreateNotification,
	} {
		knownPermissions[p] = struct{}{}
	}
}

// KnownPermissions returns the registered permission vocabulary, sorted.
func KnownPermissions() []Permission {
	out := make([]Permission, 0, len(knownPermissions))
	for p := range knownPermissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsKnown reports whether p is in the registry.
func (p Permission) IsKnown() bool {
	_, ok := knownPermissions[p]
	return ok
}

// ParsePermission normalises s and checks it against the registry.
func ParsePermission(s string) (Permission, error) {
	p := Permission(strings.ToUpper(strings.TrimSpace(s)))
	if p == "" {
		return "", fmt.Errorf("permission is required")
	}
	if !p.IsKnown() {
		return "", fmt.Errorf("unknown permission %q", s)
	}
	return p, nil
}

// PermissionSet is an insertion-ordered set of permissions.
type PermissionSet struct {
	order []Permission
	index map[Permission]struct{}
}

// NewPermissionSet builds a set from already validated permissions,
// silently dropping duplicates.
func NewPermissionSet(perms ...Permission) PermissionSet {
	var s PermissionSet
	for _, p := range perms {
		s.Add(p)
	}
	return s
}

// ParsePermissionSet validates every name and rejects duplicates.
func ParsePermissionSet(names []string) (PermissionSet, error) {
	var s PermissionSet
	for _, name := range names {
		p, err := ParsePermission(name)
		if err != nil {
			return PermissionSet{}, err
		}
		if !s.Add(p) {
			return PermissionSet{}, fmt.Errorf("duplicate permission %q", p)
		}
	}
	return s, nil
}

// Add inserts p and reports whether it was absent.
func (s *PermissionSet) Add(p Permission) bool {
	if s.index == nil {
		s.index = make(map[Permission]struct{})
	}
	if _, ok := s.index[p]; ok {
		return false
	}
	s.index[p] = struct{}{}
	s.order = append(s.order, p)
	return true
}

// Remove deletes p and reports whether it was present.
func (s *PermissionSet) Remove(p Permission) bool {
	if _, ok := s.index[p]; !ok {
		return false
	}
	delete(s.index, p)
	for i, existing := range s.order {
		if existing == p {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Has reports exact membership, without the ALL short-circuit.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s.index[p]
	return ok
}

// Allows reports whether the set grants any one of required. A set holding
// PermissionAll grants everything.
func (s PermissionSet) Allows(required ...Permission) bool {
	if s.Has(PermissionAll) {
		return true
	}
	for _, p := range required {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// Clone returns an independent copy of the set.
func (s PermissionSet) Clone() PermissionSet {
	return NewPermissionSet(s.order...)
}

// Len returns the number of permissions in the set.
func (s PermissionSet) Len() int {
	return len(s.order)
}

// List returns the permissions in insertion order.
func (s PermissionSet) List() []Permission {
	out := make([]Permission, len(s.order))
	copy(out, s.order)
	return out
}

// Strings returns the permission names in insertion order.
func (s PermissionSet) Strings() []string {
	out := make([]string, len(s.order))
	for i, p := range s.order {
		out[i] = string(p)
	}
	return out
}

func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	parsed, err := ParsePermissionSet(names)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
