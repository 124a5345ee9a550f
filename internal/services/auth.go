package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/petroasset/apiserver/internal/apperr"
	"github.com/petroasset/apiserver/internal/store"
	"github.com/petroasset/apiserver/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const loginHistoryLimit = 20

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context, filter types.UserFilter) ([]types.User, int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// RoleLookup resolves roles for user assignment.
type RoleLookup interface {
	GetByID(ctx context.Context, id string) (types.Role, error)
	GetByName(ctx context.Context, name string) (types.Role, error)
}

// LoginHistoryRepository records login attempts.
type LoginHistoryRepository interface {
	Create(ctx context.Context, entry types.LoginHistory) (types.LoginHistory, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]types.LoginHistory, error)
}

// TokenBlacklist records revoked access tokens.
type TokenBlacklist interface {
	Revoke(ctx context.Context, token, userID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// SessionEvictor closes a user's live session.
type SessionEvictor interface {
	Evict(userID, reason string) bool
}

// RegisterInput is the public sign-up request.
type RegisterInput struct {
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber"`
}

// LoginInput carries credentials plus the client details stored in the
// login history.
type LoginInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// ChangePasswordInput is a password change for the current user.
type ChangePasswordInput struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// AuthService encapsulates registration, login and token use-cases.
type AuthService struct {
	users      UserRepository
	roles      RoleLookup
	history    LoginHistoryRepository
	tokens     *TokenIssuer
	blacklist  TokenBlacklist
	sessions   SessionEvictor
	logger     *zap.Logger
	bcryptCost int
}

func NewAuthService(
	users UserRepository,
	roles RoleLookup,
	history LoginHistoryRepository,
	tokens *TokenIssuer,
	blacklist TokenBlacklist,
	sessions SessionEvictor,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      users,
		roles:      roles,
		history:    history,
		tokens:     tokens,
		blacklist:  blacklist,
		sessions:   sessions,
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.BadRequest("Invalid email format")
	}
	return nil
}

// validatePassword requires at least 8 characters with an upper-case
// letter, a lower-case letter and a digit.
func validatePassword(password string) error {
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if len(password) < 8 || !upper || !lower || !digit {
		return apperr.BadRequest("Password must be at least 8 characters and contain uppercase, lowercase letters and a number")
	}
	return nil
}

func (s *AuthService) hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Register creates an account with the default Engineer role.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = normalizeEmail(in.Email)
	if in.FullName == "" || in.Email == "" || in.Password == "" {
		return types.User{}, apperr.BadRequest("fullName, email and password are required")
	}
	if err := validateEmail(in.Email); err != nil {
		return types.User{}, err
	}
	if err := validatePassword(in.Password); err != nil {
		return types.User{}, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return types.User{}, apperr.BadRequest("Email existed")
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, apperr.Internal(err, "check email")
	}

	role, err := s.roles.GetByName(ctx, types.RoleEngineer)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperr.BadRequest("No Engineer Role found")
		}
		return types.User{}, apperr.Internal(err, "load default role")
	}

	hashed, err := s.hashPassword(in.Password)
	if err != nil {
		return types.User{}, apperr.Internal(err, "hash password")
	}

	created, err := s.users.Create(ctx, types.User{
		Email:        in.Email,
		FullName:     in.FullName,
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		RoleID:       role.ID,
		IsActive:     true,
		Status:       types.UserStatusActive,
		PasswordHash: hashed,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, apperr.BadRequest("Email existed")
		}
		return types.User{}, apperr.Internal(err, "create user")
	}
	created.Role = &role
	s.logger.Info("user registered", zap.String("user_id", created.ID))
	return created, nil
}

// Login checks credentials, records the attempt and issues a token pair.
// Any live session of the user is closed.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (TokenPair, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return TokenPair{}, apperr.BadRequest("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TokenPair{}, apperr.BadRequest("No existed user with this email")
		}
		return TokenPair{}, apperr.Internal(err, "load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		s.recordLogin(ctx, user.ID, in, false)
		return TokenPair{}, apperr.BadRequest("Wrong password")
	}
	if !user.IsActive || user.Status != types.UserStatusActive {
		s.recordLogin(ctx, user.ID, in, false)
		return TokenPair{}, apperr.Forbidden("Account is inactive")
	}

	pair, err := s.tokens.Issue(user.ID)
	if err != nil {
		return TokenPair{}, apperr.Internal(err, "issue tokens")
	}

	s.recordLogin(ctx, user.ID, in, true)
	if s.sessions != nil && s.sessions.Evict(user.ID, "Your account has been logged in from another device") {
		s.logger.Info("previous session closed", zap.String("user_id", user.ID))
	}
	return pair, nil
}

func (s *AuthService) recordLogin(ctx context.Context, userID string, in LoginInput, success bool) {
	if s.history == nil {
		return
	}
	_, err := s.history.Create(ctx, types.LoginHistory{
		UserID:    userID,
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
		Success:   success,
	})
	if err != nil {
		s.logger.Warn("record login history", zap.String("user_id", userID), zap.Error(err))
	}
}

// Refresh exchanges a refresh token for a new pair. The access token may be
// expired but must be validly signed and belong to the same user.
func (s *AuthService) Refresh(ctx context.Context, accessToken, refreshToken string) (TokenPair, error) {
	if accessToken == "" {
		return TokenPair{}, apperr.Unauthorized("Invalid Access Token")
	}
	if refreshToken == "" {
		return TokenPair{}, apperr.BadRequest("Refresh Token required")
	}

	accessSubject, err := s.tokens.DecodeAccessIgnoringExpiry(accessToken)
	if err != nil {
		return TokenPair{}, apperr.Unauthorized("Invalid Access Token")
	}
	refreshSubject, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return TokenPair{}, apperr.Unauthorized("Refresh Token expired")
		}
		return TokenPair{}, apperr.Unauthorized("Invalid Refresh Token")
	}
	if accessSubject != refreshSubject {
		return TokenPair{}, apperr.Unauthorized("Invalid Refresh Token")
	}

	user, err := s.users.GetByID(ctx, refreshSubject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TokenPair{}, apperr.Unauthorized("No existed user")
		}
		return TokenPair{}, apperr.Internal(err, "load user")
	}

	pair, err := s.tokens.Issue(user.ID)
	if err != nil {
		return TokenPair{}, apperr.Internal(err, "issue tokens")
	}
	return pair, nil
}

// Authenticate resolves the user behind an access token. Revoked tokens are
// rejected before the signature is checked.
func (s *AuthService) Authenticate(ctx context.Context, token string) (types.User, error) {
	if token == "" {
		return types.User{}, apperr.Unauthorized("No token")
	}

	revoked, err := s.blacklist.IsRevoked(ctx, token)
	if err != nil {
		return types.User{}, apperr.Internal(err, "check token blacklist")
	}
	if revoked {
		return types.User{}, apperr.Unauthorized("Token has been revoked")
	}

	claims, err := s.tokens.VerifyAccess(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return types.User{}, apperr.Unauthorized("Token expired")
		}
		return types.User{}, apperr.Unauthorized("Invalid token")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperr.Unauthorized("Cannot find user")
		}
		return types.User{}, apperr.Internal(err, "load user")
	}
	if !user.IsActive || user.Status == types.UserStatusSuspended {
		return types.User{}, apperr.Forbidden("Account is inactive")
	}
	return user, nil
}

// Logout revokes the access token until it would have expired and closes
// the user's live session.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.VerifyAccess(token)
	if err != nil {
		return apperr.Unauthorized("Invalid token")
	}
	if err := s.blacklist.Revoke(ctx, token, claims.UserID, claims.ExpiresAt); err != nil {
		return apperr.Internal(err, "revoke token")
	}
	if s.sessions != nil {
		s.sessions.Evict(claims.UserID, "Logged out")
	}
	s.logger.Info("user logged out", zap.String("user_id", claims.UserID))
	return nil
}

// GetInfo returns the current user's profile.
func (s *AuthService) GetInfo(ctx context.Context, userID string) (types.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, mapNotFound(err, "User not found")
	}
	return user, nil
}

// ChangePassword replaces the user's password after checking the old one.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error {
	if in.OldPassword == "" || in.NewPassword == "" {
		return apperr.BadRequest("oldPassword and newPassword are required")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return mapNotFound(err, "User not found")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.OldPassword)); err != nil {
		return apperr.BadRequest("Old password is incorrect")
	}
	if in.OldPassword == in.NewPassword {
		return apperr.BadRequest("New password must be different from old password")
	}
	if err := validatePassword(in.NewPassword); err != nil {
		return err
	}

	hashed, err := s.hashPassword(in.NewPassword)
	if err != nil {
		return apperr.Internal(err, "hash password")
	}
	user.PasswordHash = hashed
	if _, err := s.users.Update(ctx, user); err != nil {
		return apperr.Internal(err, "update password")
	}
	return nil
}

// LoginHistory returns the user's most recent login attempts.
func (s *AuthService) LoginHistory(ctx context.Context, userID string) ([]types.LoginHistory, error) {
	entries, err := s.history.ListByUser(ctx, userID, loginHistoryLimit)
	if err != nil {
		return nil, apperr.Internal(err, "list login history")
	}
	if entries == nil {
		entries = []types.LoginHistory{}
	}
	return entries, nil
}
