package types

import "time"

// Built-in role names created by the seed command.
const (
	RoleAdmin      = "Admin"
	RoleSupervisor = "Supervisor"
	RoleEngineer   = "Engineer"
)

// Role groups a set of permissions and is referenced by many users.
type Role struct {
	// ID is the unique identifier of the role.
	ID string `json:"id" db:"id"`

	// Name is the unique role name, e.g. "Admin".
	Name string `json:"name" db:"name"`

	// Description is a free-form summary of the role.
	Description string `json:"description,omitempty" db:"description"`

	// Permissions is the set of capabilities granted to holders of the role.
	Permissions PermissionSet `json:"permissions" db:"permissions"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
