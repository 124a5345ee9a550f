package services

import (
	"testing"

	"github.com/petroasset/apiserver/internal/apperr"
	"github.com/petroasset/apiserver/types"
)

func userWithRole(name string, perms ...types.Permission) *types.User {
	return &types.User{
		ID:   "user-1",
		Role: &types.Role{Name: name, Permissions: types.NewPermissionSet(perms...)},
	}
}

func TestCheckPermission(t *testing.T) {
	authz := NewAuthorizer()

	tests := []struct {
		name     string
		user     *types.User
		required []types.Permission
		wantErr  string
	}{
		{
			name:     "all passes everything",
			user:     userWithRole("Admin", types.PermissionAll),
			required: []types.Permission{types.PermDispatchInventory},
		},
		{
			name:     "any one permission is enough",
			user:     userWithRole("Engineer", types.PermViewInventory),
			required: []types.Permission{types.PermReceiveInventory, types.PermViewInventory},
		},
		{
			name:     "missing permission",
			user:     userWithRole("Engineer", types.PermViewInventory),
			required: []types.Permission{types.PermDispatchInventory},
			wantErr:  "Access denied. Required permissions: DISPATCH_INVENTORY",
		},
		{
			name:     "lists every required permission",
			user:     userWithRole("Engineer"),
			required: []types.Permission{types.PermViewRole, types.PermCreateRole},
			wantErr:  "Access denied. Required permissions: VIEW_ROLE, CREATE_ROLE",
		},
		{
			name:     "no role",
			user:     &types.User{ID: "user-1"},
			required: []types.Permission{types.PermViewInventory},
			wantErr:  "User has no role assigned",
		},
		{
			name:     "no user",
			required: []types.Permission{types.PermViewInventory},
			wantErr:  "User not authenticated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := authz.CheckPermission(tt.user, tt.required...)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected pass, got %v", err)
				}
				return
			}
			if !apperr.Is(err, apperr.KindForbidden) {
				t.Fatalf("expected forbidden, got %v", err)
			}
			if err.Error() != tt.wantErr {
				t.Fatalf("expected %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestCheckRole(t *testing.T) {
	authz := NewAuthorizer()

	if err := authz.CheckRole(userWithRole("Supervisor"), types.RoleAdmin, types.RoleSupervisor); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}

	err := authz.CheckRole(userWithRole("Engineer", types.PermissionAll), types.RoleAdmin)
	if !apperr.Is(err, apperr.KindForbidden) || err.Error() != "Access denied. Required roles: Admin" {
		t.Fatalf("ALL must not bypass role checks, got %v", err)
	}
}
