package services

import (
	"slices"
	"strings"

	"github.com/petroasset/apiserver/internal/apperr"
	"github.com/petroasset/apiserver/types"
)

// Authorizer decides whether an authenticated user may perform an action.
// It is stateless; every decision reads the user's loaded role.
type Authorizer struct{}

func NewAuthorizer() *Authorizer {
	return &Authorizer{}
}

func checkRoleLoaded(user *types.User) error {
	if user == nil {
		return apperr.Forbidden("User not authenticated")
	}
	if user.Role == nil {
		return apperr.Forbidden("User has no role assigned")
	}
	return nil
}

// CheckRole passes when the user's role name is one of roles.
func (a *Authorizer) CheckRole(user *types.User, roles ...string) error {
	if err := checkRoleLoaded(user); err != nil {
		return err
	}
	if slices.Contains(roles, user.Role.Name) {
		return nil
	}
	return apperr.Forbidden("Access denied. Required roles: %s", strings.Join(roles, ", "))
}

// CheckPermission passes when the user's role grants at least one of
// required. A role holding ALL passes every check.
func (a *Authorizer) CheckPermission(user *types.User, required ...types.Permission) error {
	if err := checkRoleLoaded(user); err != nil {
		return err
	}
	if user.Role.Permissions.Allows(required...) {
		return nil
	}
	names := make([]string, len(required))
	for i, p := range required {
		names[i] = string(p)
	}
	return apperr.Forbidden("Access denied. Required permissions: %s", strings.Join(names, ", "))
}
