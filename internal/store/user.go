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

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	u.id, u.email, u.password_hash, u.full_name, u.phone_number, u.role_id,
	u.is_active, u.status, u.avatar_key, u.created_at, u.updated_at,
	r.id, r.name, r.description, r.permissions, r.created_at, r.updated_at`

const userFrom = `
	FROM users u
	LEFT JOIN roles r ON r.id = u.role_id`

func scanUser(row rowScanner) (types.User, error) {
	var (
		user        types.User
		roleRef     sql.NullString
		roleID      sql.NullString
		roleName    sql.NullString
		roleDesc    sql.NullString
		rolePerms   pq.StringArray
		roleCreated sql.NullTime
		roleUpdated sql.NullTime
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&user.PhoneNumber,
		&roleRef,
		&user.IsActive,
		&user.Status,
		&user.AvatarKey,
		&user.CreatedAt,
		&user.UpdatedAt,
		&roleID,
		&roleName,
		&roleDesc,
		&rolePerms,
		&roleCreated,
		&roleUpdated,
	); err != nil {
		return types.User{}, err
	}
	user.RoleID = roleRef.String
	if roleID.Valid {
		user.Role = &types.Role{
			ID:          roleID.String,
			Name:        roleName.String,
			Description: roleDesc.String,
			Permissions: permissionSetFromDB(rolePerms),
			CreatedAt:   roleCreated.Time,
			UpdatedAt:   roleUpdated.Time,
		}
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.User{}, ErrNotFound
	}
	query := `SELECT ` + userColumns + userFrom + ` WHERE u.id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	query := `SELECT ` + userColumns + userFrom + ` WHERE lower(u.email) = lower($1)`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) List(ctx context.Context, filter types.UserFilter) ([]types.User, int, error) {
	var c conditions
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		c.add("(u.email ILIKE ? OR u.full_name ILIKE ?)", pattern, pattern)
	}
	if filter.RoleID != "" {
		c.add("u.role_id = ?", filter.RoleID)
	}
	if filter.Status != "" {
		c.add("u.status = ?", filter.Status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users u`+c.where(), c.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	where := c.where()
	limit := c.page(filter.Page.Limit(), filter.Page.Offset())
	query := `SELECT ` + userColumns + userFrom + where + ` ORDER BY u.created_at DESC` + limit
	rows, err := r.db.QueryContext(ctx, query, c.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]types.User, 0, filter.Page.Limit())
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Status == "" {
		user.Status = types.UserStatusActive
	}

	const query = `
		INSERT INTO users (id, email, password_hash, full_name, phone_number, role_id, is_active, status, avatar_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.PhoneNumber,
		nullString(user.RoleID),
		user.IsActive,
		user.Status,
		user.AvatarKey,
		user.CreatedAt,
		user.UpdatedAt,
	); err != nil {
		return types.User{}, mapWriteError(err)
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE users
		SET email = $1,
			password_hash = $2,
			full_name = $3,
			phone_number = $4,
			role_id = $5,
			is_active = $6,
			status = $7,
			avatar_key = $8,
			updated_at = $9
		WHERE id = $10`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.PhoneNumber,
		nullString(user.RoleID),
		user.IsActive,
		user.Status,
		user.AvatarKey,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, mapWriteError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

// CountByRole returns how many users reference the role.
func (r *UserRepository) CountByRole(ctx context.Context, roleID string) (int, error) {
	const query = `SELECT COUNT(1) FROM users WHERE role_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, roleID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListIDsWithPermission returns active users whose role holds any of perms.
func (r *UserRepository) ListIDsWithPermission(ctx context.Context, perms []types.Permission) ([]string, error) {
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}

	const query = `
		SELECT u.id
		FROM users u
		JOIN roles r ON r.id = u.role_id
		WHERE u.is_active AND r.permissions && $1
		ORDER BY u.created_at`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(names))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
