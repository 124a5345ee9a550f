package services

import (
	"context"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/petroasset/apiserver/internal/apperr"
	"github.com/petroasset/apiserver/types"
)

func newRoleFixture(t *testing.T) (*RoleService, *fakeRoleRepo, *fakeUserRepo) {
	t.Helper()
	roles := newFakeRoleRepo()
	users := newFakeUserRepo(roles)
	return NewRoleService(roles, users, nil), roles, users
}

func TestRoleCreate(t *testing.T) {
	svc, _, _ := newRoleFixture(t)
	ctx := context.Background()

	role, err := svc.Create(ctx, RoleInput{
		Name:        "Storekeeper",
		Permissions: []string{"view_inventory", "RECEIVE_INVENTORY"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	want := []string{"VIEW_INVENTORY", "RECEIVE_INVENTORY"}
	if got := role.Permissions.Strings(); !reflect.DeepEqual(got, want) {
		t.Fatalf("permissions = %v, want %v", got, want)
	}

	_, err = svc.Create(ctx, RoleInput{Name: "Storekeeper"})
	assertAppErr(t, err, apperr.KindBadRequest, `Role with name "Storekeeper" already exists`)

	_, err = svc.Create(ctx, RoleInput{Name: "Other", Permissions: []string{"LAUNCH_ROCKETS"}})
	assertAppErr(t, err, apperr.KindBadRequest, "")

	_, err = svc.Create(ctx, RoleInput{Name: "Other", Permissions: []string{"VIEW_USER", "VIEW_USER"}})
	assertAppErr(t, err, apperr.KindBadRequest, "")
}

func TestRolePermissionEditing(t *testing.T) {
	svc, _, _ := newRoleFixture(t)
	ctx := context.Background()
	role, err := svc.Create(ctx, RoleInput{Name: "Storekeeper", Permissions: []string{"VIEW_INVENTORY"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	original := role.Permissions

	role, err = svc.AddPermission(ctx, role.ID, "DISPATCH_INVENTORY")
	if err != nil {
		t.Fatalf("AddPermission: %v", err)
	}
	if !role.Permissions.Has(types.PermDispatchInventory) || original.Has(types.PermDispatchInventory) {
		t.Fatalf("permission set not copied on write")
	}

	_, err = svc.AddPermission(ctx, role.ID, "VIEW_INVENTORY")
	assertAppErr(t, err, apperr.KindBadRequest, "Permission already exists in role")

	role, err = svc.RemovePermission(ctx, role.ID, "VIEW_INVENTORY")
	if err != nil {
		t.Fatalf("RemovePermission: %v", err)
	}
	if role.Permissions.Has(types.PermViewInventory) {
		t.Fatalf("permission not removed")
	}
	_, err = svc.RemovePermission(ctx, role.ID, "VIEW_INVENTORY")
	assertAppErr(t, err, apperr.KindBadRequest, "Permission not found in role")

	role, err = svc.ReplacePermissions(ctx, role.ID, []string{"ALL"})
	if err != nil {
		t.Fatalf("ReplacePermissions: %v", err)
	}
	if role.Permissions.Len() != 1 || !role.Permissions.Allows(types.PermDeleteRole) {
		t.Fatalf("unexpected permissions %v", role.Permissions.Strings())
	}

	_, err = svc.AddPermission(ctx, uuid.NewString(), "VIEW_USER")
	assertAppErr(t, err, apperr.KindNotFound, "Role not found")
}

func TestRoleDeleteRefusedWhileAssigned(t *testing.T) {
	svc, _, users := newRoleFixture(t)
	ctx := context.Background()
	role, err := svc.Create(ctx, RoleInput{Name: "Storekeeper"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	user, err := users.Create(ctx, types.User{Email: "a@example.com", RoleID: role.ID, IsActive: true})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	err = svc.Delete(ctx, role.ID)
	assertAppErr(t, err, apperr.KindBadRequest, "Cannot delete role. 1 user(s) are still assigned to it.")

	user.RoleID = ""
	if _, err := users.Update(ctx, user); err != nil {
		t.Fatalf("update user: %v", err)
	}
	if err := svc.Delete(ctx, role.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = svc.Get(ctx, role.ID)
	assertAppErr(t, err, apperr.KindNotFound, "Role not found")
}

func TestRoleRename(t *testing.T) {
	svc, _, _ := newRoleFixture(t)
	ctx := context.Background()
	a, _ := svc.Create(ctx, RoleInput{Name: "A"})
	if _, err := svc.Create(ctx, RoleInput{Name: "B"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	taken := "B"
	_, err := svc.Update(ctx, a.ID, RoleUpdateInput{Name: &taken})
	assertAppErr(t, err, apperr.KindBadRequest, `Role with name "B" already exists`)

	same := "A"
	desc := "first role"
	updated, err := svc.Update(ctx, a.ID, RoleUpdateInput{Name: &same, Description: &desc})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Description != desc {
		t.Fatalf("description not updated: %+v", updated)
	}
}
