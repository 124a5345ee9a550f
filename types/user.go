package types

import "time"

// UserStatus is the lifecycle state of an account. Users are never hard
// deleted; deactivation moves them to UserStatusInactive.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusInactive  UserStatus = "INACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// Valid reports whether s is a known user status.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusSuspended:
		return true
	}
	return false
}

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" db:"id"`

	// Email is the unique login address of the user.
	Email string `json:"email" db:"email"`

	// FullName is the user's display name.
	FullName string `json:"fullName" db:"full_name"`

	// PhoneNumber is an optional contact number.
	PhoneNumber string `json:"phoneNumber,omitempty" db:"phone_number"`

	// RoleID references the role that grants this user's permissions.
	RoleID string `json:"roleId,omitempty" db:"role_id"`

	// Role is the resolved role record. It is populated by lookups that
	// join roles and is nil when the user has no role assigned.
	Role *Role `json:"role,omitempty" db:"-"`

	// IsActive is false once the account has been deactivated.
	IsActive bool `json:"isActive" db:"is_active"`

	// Status is the account lifecycle state.
	Status UserStatus `json:"status" db:"status"`

	// AvatarKey is the object storage key of the uploaded avatar, if any.
	AvatarKey string `json:"avatarKey,omitempty" db:"avatar_key"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// RoleName returns the name of the attached role, or "" when none is loaded.
func (u *User) RoleName() string {
	if u == nil || u.Role == nil {
		return ""
	}
	return u.Role.Name
}

// UserFilter narrows user listings.
type UserFilter struct {
	Search string
	RoleID string
	Status UserStatus
	Page   Page
}

// LoginHistory records one login attempt.
type LoginHistory struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	IPAddress string    `json:"ipAddress" db:"ip_address"`
	UserAgent string    `json:"userAgent" db:"user_agent"`
	Success   bool      `json:"success" db:"success"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
