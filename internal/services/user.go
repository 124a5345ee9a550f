package services

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/petroasset/apiserver/internal/apperr"
	"github.com/petroasset/apiserver/internal/storage"
	"github.com/petroasset/apiserver/internal/store"
	"github.com/petroasset/apiserver/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ImageStore files uploaded images in object storage.
type ImageStore interface {
	PutImage(ctx context.Context, kind storage.ImageKind, ownerID string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, key string) (storage.Object, error)
	Remove(ctx context.Context, key string) error
}

// ImageUpload is an image received from a client.
type ImageUpload struct {
	Body        io.Reader
	Size        int64
	ContentType string
}

// CreateUserInput is an administrator-created account.
type CreateUserInput struct {
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber"`
	RoleID      string `json:"roleId"`
}

// UpdateUserInput changes profile fields. Nil fields are left unchanged.
type UpdateUserInput struct {
	FullName    *string `json:"fullName"`
	PhoneNumber *string `json:"phoneNumber"`
	Email       *string `json:"email"`
}

// UserService encapsulates user administration use-cases.
type UserService struct {
	repo     UserRepository
	roles    RoleLookup
	images   ImageStore
	sessions SessionEvictor
	logger   *zap.Logger
}

func NewUserService(repo UserRepository, roles RoleLookup, images ImageStore, sessions SessionEvictor, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, roles: roles, images: images, sessions: sessions, logger: logger}
}

func (s *UserService) List(ctx context.Context, filter types.UserFilter) (types.Paginated[types.User], error) {
	filter.Page = types.NewPage(filter.Page.Number, filter.Page.Size)
	if filter.Status != "" && !filter.Status.Valid() {
		return types.Paginated[types.User]{}, apperr.BadRequest("Invalid status")
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return types.Paginated[types.User]{}, apperr.Internal(err, "list users")
	}
	return types.NewPaginated(filter.Page, users, total), nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, mapNotFound(err, "User not found")
	}
	return user, nil
}

func (s *UserService) loadRole(ctx context.Context, roleID string) (types.Role, error) {
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return types.Role{}, mapNotFound(err, "Role not found")
	}
	return role, nil
}

func (s *UserService) Create(ctx context.Context, in CreateUserInput) (types.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = normalizeEmail(in.Email)
	if in.FullName == "" || in.Email == "" || in.Password == "" || in.RoleID == "" {
		return types.User{}, apperr.BadRequest("fullName, email, password and roleId are required")
	}
	if err := validateEmail(in.Email); err != nil {
		return types.User{}, err
	}
	if err := validatePassword(in.Password); err != nil {
		return types.User{}, err
	}
	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return types.User{}, apperr.BadRequest("Email existed")
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, apperr.Internal(err, "check email")
	}
	role, err := s.loadRole(ctx, in.RoleID)
	if err != nil {
		return types.User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, apperr.Internal(err, "hash password")
	}
	created, err := s.repo.Create(ctx, types.User{
		Email:        in.Email,
		FullName:     in.FullName,
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		RoleID:       role.ID,
		IsActive:     true,
		Status:       types.UserStatusActive,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, apperr.BadRequest("Email existed")
		}
		return types.User{}, apperr.Internal(err, "create user")
	}
	created.Role = &role
	return created, nil
}

func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (types.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" {
			return types.User{}, apperr.BadRequest("fullName cannot be empty")
		}
		user.FullName = name
	}
	if in.PhoneNumber != nil {
		user.PhoneNumber = strings.TrimSpace(*in.PhoneNumber)
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if err := validateEmail(email); err != nil {
			return types.User{}, err
		}
		if email != user.Email {
			if _, err := s.repo.GetByEmail(ctx, email); err == nil {
				return types.User{}, apperr.BadRequest("Email existed")
			} else if !errors.Is(err, store.ErrNotFound) {
				return types.User{}, apperr.Internal(err, "check email")
			}
			user.Email = email
		}
	}
	return s.save(ctx, user)
}

func (s *UserService) save(ctx context.Context, user types.User) (types.User, error) {
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, apperr.BadRequest("Email existed")
		}
		return types.User{}, mapNotFound(err, "User not found")
	}
	updated.Role = user.Role
	return updated, nil
}

// AssignRole moves the user to another role.
func (s *UserService) AssignRole(ctx context.Context, id, roleID string) (types.User, error) {
	if strings.TrimSpace(roleID) == "" {
		return types.User{}, apperr.BadRequest("roleId is required")
	}
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	role, err := s.loadRole(ctx, roleID)
	if err != nil {
		return types.User{}, err
	}
	user.RoleID = role.ID
	user.Role = &role
	return s.save(ctx, user)
}

// ChangeStatus moves the account through its lifecycle. Leaving ACTIVE
// deactivates the user and closes any live session.
func (s *UserService) ChangeStatus(ctx context.Context, actorID, id string, status types.UserStatus) (types.User, error) {
	status = types.UserStatus(strings.ToUpper(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return types.User{}, apperr.BadRequest("Invalid status. Must be one of: ACTIVE, INACTIVE, SUSPENDED")
	}
	if id == actorID && status != types.UserStatusActive {
		return types.User{}, apperr.BadRequest("You cannot deactivate your own account")
	}
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	user.Status = status
	user.IsActive = status == types.UserStatusActive

	updated, err := s.save(ctx, user)
	if err != nil {
		return types.User{}, err
	}
	if !updated.IsActive && s.sessions != nil {
		s.sessions.Evict(updated.ID, "Your account has been deactivated")
	}
	s.logger.Info("user status changed", zap.String("user_id", id), zap.String("status", string(status)), zap.String("actor_id", actorID))
	return updated, nil
}

// UploadAvatar stores a new avatar for the user and drops the previous one.
func (s *UserService) UploadAvatar(ctx context.Context, userID string, upload ImageUpload) (types.User, error) {
	if s.images == nil {
		return types.User{}, apperr.BadRequest("Image storage is not configured")
	}
	if !storage.IsSupportedImage(upload.ContentType) {
		return types.User{}, apperr.BadRequest("Only JPEG, PNG, WEBP and GIF images are allowed")
	}
	if upload.Size > storage.MaxImageSize {
		return types.User{}, apperr.BadRequest("Image must be at most 5MB")
	}
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}

	key, err := s.images.PutImage(ctx, storage.ImageAvatar, user.ID, upload.Body, upload.Size, upload.ContentType)
	if err != nil {
		return types.User{}, apperr.Internal(err, "store avatar")
	}
	previous := user.AvatarKey
	user.AvatarKey = key
	updated, err := s.save(ctx, user)
	if err != nil {
		_ = s.images.Remove(ctx, key)
		return types.User{}, err
	}
	if previous != "" {
		if err := s.images.Remove(ctx, previous); err != nil {
			s.logger.Warn("remove previous avatar", zap.String("key", previous), zap.Error(err))
		}
	}
	return updated, nil
}

// OpenAvatar returns the user's avatar image. Callers close the body.
func (s *UserService) OpenAvatar(ctx context.Context, userID string) (storage.Object, error) {
	if s.images == nil {
		return storage.Object{}, apperr.NotFound("Avatar not found")
	}
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return storage.Object{}, err
	}
	if user.AvatarKey == "" {
		return storage.Object{}, apperr.NotFound("Avatar not found")
	}
	obj, err := s.images.Open(ctx, user.AvatarKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return storage.Object{}, apperr.NotFound("Avatar not found")
		}
		return storage.Object{}, apperr.Internal(err, "open avatar")
	}
	return obj, nil
}
