package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/petroasset/apiserver/types"
)

// RoleRepository handles persistence for roles.
type RoleRepository struct {
	db *sql.DB
}

func NewRoleRepository(db *sql.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// permissionSetFromDB keeps stored names as-is. Legacy rows may hold
// duplicates or names that are no longer registered; duplicates collapse.
func permissionSetFromDB(names []string) types.PermissionSet {
	perms := make([]types.Permission, len(names))
	for i, name := range names {
		perms[i] = types.Permission(name)
	}
	return types.NewPermissionSet(perms...)
}

const roleColumns = `id, name, description, permissions, created_at, updated_at`

func scanRole(row rowScanner) (types.Role, error) {
	var (
		role  types.Role
		perms pq.StringArray
	)
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &perms, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return types.Role{}, err
	}
	role.Permissions = permissionSetFromDB(perms)
	return role, nil
}

func (r *RoleRepository) List(ctx context.Context, search string, page types.Page) ([]types.Role, int, error) {
	var c conditions
	if search != "" {
		c.add("name ILIKE ?", likePattern(search))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM roles`+c.where(), c.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	where := c.where()
	limit := c.page(page.Limit(), page.Offset())
	rows, err := r.db.QueryContext(ctx, `SELECT `+roleColumns+` FROM roles`+where+` ORDER BY name`+limit, c.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	roles := make([]types.Role, 0, page.Limit())
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, 0, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return roles, total, nil
}

func (r *RoleRepository) GetByID(ctx context.Context, id string) (types.Role, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Role{}, ErrNotFound
	}
	role, err := scanRole(r.db.QueryRowContext(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Role{}, ErrNotFound
		}
		return types.Role{}, err
	}
	return role, nil
}

func (r *RoleRepository) GetByName(ctx context.Context, name string) (types.Role, error) {
	role, err := scanRole(r.db.QueryRowContext(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Role{}, ErrNotFound
		}
		return types.Role{}, err
	}
	return role, nil
}

func (r *RoleRepository) Create(ctx context.Context, role types.Role) (types.Role, error) {
	now := time.Now().UTC()
	role.ID = uuid.NewString()
	role.CreatedAt = now
	role.UpdatedAt = now

	const query = `
		INSERT INTO roles (id, name, description, permissions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		role.ID,
		role.Name,
		role.Description,
		pq.Array(role.Permissions.Strings()),
		role.CreatedAt,
		role.UpdatedAt,
	); err != nil {
		return types.Role{}, mapWriteError(err)
	}
	return role, nil
}

func (r *RoleRepository) Update(ctx context.Context, role types.Role) (types.Role, error) {
	role.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE roles
		SET name = $1,
			description = $2,
			permissions = $3,
			updated_at = $4
		WHERE id = $5`
	result, err := r.db.ExecContext(
		ctx,
		query,
		role.Name,
		role.Description,
		pq.Array(role.Permissions.Strings()),
		role.UpdatedAt,
		role.ID,
	)
	if err != nil {
		return types.Role{}, mapWriteError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Role{}, err
	}
	if affected == 0 {
		return types.Role{}, ErrNotFound
	}
	return role, nil
}

func (r *RoleRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM roles WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
