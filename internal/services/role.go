package services

import (
	"context"
	"errors"
	"strings"

	"github.com/petroasset/apiserver/internal/apperr"
	"github.com/petroasset/apiserver/internal/store"
	"github.com/petroasset/apiserver/types"
	"go.uber.org/zap"
)

// RoleRepository defines persistence operations for roles.
type RoleRepository interface {
	List(ctx context.Context, search string, page types.Page) ([]types.Role, int, error)
	GetByID(ctx context.Context, id string) (types.Role, error)
	GetByName(ctx context.Context, name string) (types.Role, error)
	Create(ctx context.Context, role types.Role) (types.Role, error)
	Update(ctx context.Context, role types.Role) (types.Role, error)
	Delete(ctx context.Context, id string) error
}

// RoleUsage counts the users holding a role.
type RoleUsage interface {
	CountByRole(ctx context.Context, roleID string) (int, error)
}

// RoleInput creates or replaces a role.
type RoleInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// RoleUpdateInput changes a role. Nil fields are left unchanged.
type RoleUpdateInput struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Permissions *[]string `json:"permissions"`
}

// RoleService encapsulates role and permission administration.
type RoleService struct {
	repo   RoleRepository
	usage  RoleUsage
	logger *zap.Logger
}

func NewRoleService(repo RoleRepository, usage RoleUsage, logger *zap.Logger) *RoleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleService{repo: repo, usage: usage, logger: logger}
}

func parsePermissions(names []string) (types.PermissionSet, error) {
	set, err := types.ParsePermissionSet(names)
	if err != nil {
		return types.PermissionSet{}, apperr.BadRequest("Invalid permissions: %v", err)
	}
	return set, nil
}

func (s *RoleService) List(ctx context.Context, search string, page types.Page) (types.Paginated[types.Role], error) {
	page = types.NewPage(page.Number, page.Size)
	roles, total, err := s.repo.List(ctx, strings.TrimSpace(search), page)
	if err != nil {
		return types.Paginated[types.Role]{}, apperr.Internal(err, "list roles")
	}
	return types.NewPaginated(page, roles, total), nil
}

func (s *RoleService) Get(ctx context.Context, id string) (types.Role, error) {
	role, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.Role{}, mapNotFound(err, "Role not found")
	}
	return role, nil
}

func (s *RoleService) ensureNameFree(ctx context.Context, name, exceptID string) error {
	existing, err := s.repo.GetByName(ctx, name)
	if err == nil && existing.ID != exceptID {
		return apperr.BadRequest("Role with name %q already exists", name)
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return apperr.Internal(err, "check role name")
	}
	return nil
}

func (s *RoleService) Create(ctx context.Context, in RoleInput) (types.Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return types.Role{}, apperr.BadRequest("Role name is required")
	}
	perms, err := parsePermissions(in.Permissions)
	if err != nil {
		return types.Role{}, err
	}
	if err := s.ensureNameFree(ctx, name, ""); err != nil {
		return types.Role{}, err
	}

	created, err := s.repo.Create(ctx, types.Role{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Permissions: perms,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.Role{}, apperr.BadRequest("Role with name %q already exists", name)
		}
		return types.Role{}, apperr.Internal(err, "create role")
	}
	s.logger.Info("role created", zap.String("role_id", created.ID), zap.String("name", created.Name))
	return created, nil
}

func (s *RoleService) Update(ctx context.Context, id string, in RoleUpdateInput) (types.Role, error) {
	role, err := s.Get(ctx, id)
	if err != nil {
		return types.Role{}, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return types.Role{}, apperr.BadRequest("Role name is required")
		}
		if name != role.Name {
			if err := s.ensureNameFree(ctx, name, role.ID); err != nil {
				return types.Role{}, err
			}
		}
		role.Name = name
	}
	if in.Description != nil {
		role.Description = strings.TrimSpace(*in.Description)
	}
	if in.Permissions != nil {
		perms, err := parsePermissions(*in.Permissions)
		if err != nil {
			return types.Role{}, err
		}
		role.Permissions = perms
	}
	return s.save(ctx, role)
}

func (s *RoleService) save(ctx context.Context, role types.Role) (types.Role, error) {
	updated, err := s.repo.Update(ctx, role)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.Role{}, apperr.BadRequest("Role with name %q already exists", role.Name)
		}
		return types.Role{}, mapNotFound(err, "Role not found")
	}
	return updated, nil
}

// Delete removes a role that no user references.
func (s *RoleService) Delete(ctx context.Context, id string) error {
	role, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	count, err := s.usage.CountByRole(ctx, role.ID)
	if err != nil {
		return apperr.Internal(err, "count role users")
	}
	if count > 0 {
		return apperr.BadRequest("Cannot delete role. %d user(s) are still assigned to it.", count)
	}
	if err := s.repo.Delete(ctx, role.ID); err != nil {
		return mapNotFound(err, "Role not found")
	}
	s.logger.Info("role deleted", zap.String("role_id", role.ID))
	return nil
}

func (s *RoleService) parseOne(name string) (types.Permission, error) {
	p, err := types.ParsePermission(name)
	if err != nil {
		return "", apperr.BadRequest("Invalid permission: %v", err)
	}
	return p, nil
}

// AddPermission grants one more permission to the role.
func (s *RoleService) AddPermission(ctx context.Context, id, name string) (types.Role, error) {
	p, err := s.parseOne(name)
	if err != nil {
		return types.Role{}, err
	}
	role, err := s.Get(ctx, id)
	if err != nil {
		return types.Role{}, err
	}
	perms := role.Permissions.Clone()
	if !perms.Add(p) {
		return types.Role{}, apperr.BadRequest("Permission already exists in role")
	}
	role.Permissions = perms
	return s.save(ctx, role)
}

// RemovePermission revokes one permission from the role.
func (s *RoleService) RemovePermission(ctx context.Context, id, name string) (types.Role, error) {
	p, err := s.parseOne(name)
	if err != nil {
		return types.Role{}, err
	}
	role, err := s.Get(ctx, id)
	if err != nil {
		return types.Role{}, err
	}
	perms := role.Permissions.Clone()
	if !perms.Remove(p) {
		return types.Role{}, apperr.BadRequest("Permission not found in role")
	}
	role.Permissions = perms
	return s.save(ctx, role)
}

// ReplacePermissions swaps the role's whole permission set.
func (s *RoleService) ReplacePermissions(ctx context.Context, id string, names []string) (types.Role, error) {
	if names == nil {
		return types.Role{}, apperr.BadRequest("permissions is required")
	}
	perms, err := parsePermissions(names)
	if err != nil {
		return types.Role{}, err
	}
	role, err := s.Get(ctx, id)
	if err != nil {
		return types.Role{}, err
	}
	role.Permissions = perms
	return s.save(ctx, role)
}

// Permissions returns the known permission vocabulary.
func (s *RoleService) Permissions() []types.Permission {
	return types.KnownPermissions()
}
