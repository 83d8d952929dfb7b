package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/phrazzld/bankcards-api/internal/domain"
	"github.com/phrazzld/bankcards-api/internal/platform/logger"
	"github.com/phrazzld/bankcards-api/internal/service/auth"
	"github.com/phrazzld/bankcards-api/internal/store"
)

// UserService provides the user directory and credential checks.
type UserService interface {
	// CreateUser registers a user with the given role.
	CreateUser(ctx context.Context, username, password string, role domain.Role) (*domain.User, error)

	// GetUser retrieves a user by their ID
	GetUser(ctx context.Context, userID int64) (*domain.User, error)

	// ListUsers returns a page of users.
	ListUsers(ctx context.Context, page store.PageRequest) (*store.Page[*domain.User], error)

	// UpdateUsername renames a user. A username already held by any user,
	// including this one, is reported as ErrUserConflict.
	UpdateUsername(ctx context.Context, userID int64, username string) (*domain.User, error)

	// UpdateRole replaces the role of a user.
	UpdateRole(ctx context.Context, userID int64, role domain.Role) (*domain.User, error)

	// UpdatePassword changes a user's password. The old password must match and
	// the new one must differ from it.
	UpdatePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error

	// DeleteUser removes a user together with all of their cards.
	DeleteUser(ctx context.Context, userID int64) error

	// Authenticate checks a username and password pair. An unknown username
	// is reported as a missing user and a wrong password as ErrInvalidCredentials.
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)

	// EnsureAdmin creates the bootstrap administrator if no user holds the
	// username yet. An existing user is left untouched.
	EnsureAdmin(ctx context.Context, username, password string) (*domain.User, error)
}

// UserServiceImpl implements the UserService interface
type UserServiceImpl struct {
	userStore store.UserStore
	verifier  auth.PasswordVerifier
	logger    *slog.Logger
}

// NewUserService creates a new UserService
func NewUserService(
	userStore store.UserStore,
	verifier auth.PasswordVerifier,
	logger *slog.Logger,
) (UserService, error) {
	if userStore == nil {
		return nil, domain.NewValidationError("userStore", "cannot be nil", domain.ErrValidation)
	}
	if verifier == nil {
		return nil, domain.NewValidationError("verifier", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserServiceImpl{
		userStore: userStore,
		verifier:  verifier,
		logger:    logger.With("component", "user_service"),
	}, nil
}

// CreateUser creates a new user with the specified username, password and role
func (s *UserServiceImpl) CreateUser(
	ctx context.Context,
	username, password string,
	role domain.Role,
) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := domain.NewUser(username, password, role)
	if err != nil {
		return nil, domain.NewValidationError("user", err.Error(), err)
	}

	if err := s.userStore.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrUsernameExists) {
			log.Debug("attempted to create user with existing username",
				"username", user.Username)
			return nil, &UserError{Op: "create", Username: user.Username, Err: ErrUserConflict}
		}
		log.Error("failed to save user to database",
			"error", err,
			"username", user.Username)
		return nil, internalError("create user", err)
	}

	log.Info("user created",
		"user_id", user.ID,
		"username", user.Username,
		"role", user.Role)

	return user, nil
}

// GetUser retrieves a user by their ID
func (s *UserServiceImpl) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, &UserError{Op: "get", UserID: userID, Err: store.ErrUserNotFound}
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to retrieve user",
			"error", err,
			"user_id", userID)
		return nil, internalError("get user", err)
	}
	return user, nil
}

// ListUsers returns a page of users
func (s *UserServiceImpl) ListUsers(
	ctx context.Context,
	page store.PageRequest,
) (*store.Page[*domain.User], error) {
	users, err := s.userStore.List(ctx, page)
	if err != nil {
		return nil, internalError("list users", err)
	}
	return users, nil
}

// UpdateUsername renames a user
func (s *UserServiceImpl) UpdateUsername(
	ctx context.Context,
	userID int64,
	username string,
) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	username = strings.TrimSpace(username)
	_, err = s.userStore.GetByUsername(ctx, username)
	switch {
	case err == nil:
		log.Debug("attempted to rename user to existing username",
			"user_id", userID,
			"username", username)
		return nil, &UserError{Op: "update username", Username: username, Err: ErrUserConflict}
	case !errors.Is(err, store.ErrUserNotFound):
		return nil, internalError("update username", err)
	}

	user.Username = username
	if err := s.save(ctx, "update username", user); err != nil {
		return nil, err
	}

	log.Info("username changed", "user_id", userID)
	return user, nil
}

// UpdateRole replaces the role of a user
func (s *UserServiceImpl) UpdateRole(ctx context.Context, userID int64, role domain.Role) (*domain.User, error) {
	if !role.IsValid() {
		return nil, domain.NewValidationError("role", "must be one of ADMIN, USER", domain.ErrInvalidRole)
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Role = role
	if err := s.save(ctx, "update role", user); err != nil {
		return nil, err
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("user role changed",
		"user_id", userID,
		"role", role)
	return user, nil
}

// UpdatePassword changes the password of a user after checking the old one
func (s *UserServiceImpl) UpdatePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.verifier.Compare(user.HashedPassword, oldPassword); err != nil {
		log.Debug("password change with wrong current password", "user_id", userID)
		return &UserError{Op: "update password", UserID: userID, Err: ErrWrongPassword}
	}
	if oldPassword == newPassword {
		return &UserError{Op: "update password", UserID: userID, Err: ErrPasswordUnchanged}
	}

	user.Password = newPassword
	if err := s.save(ctx, "update password", user); err != nil {
		return err
	}

	log.Info("password changed", "user_id", userID)
	return nil
}

// save persists changes to an existing user and classifies store failures.
func (s *UserServiceImpl) save(ctx context.Context, op string, user *domain.User) error {
	err := s.userStore.Update(ctx, user)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrUserNotFound):
		return &UserError{Op: op, UserID: user.ID, Err: store.ErrUserNotFound}
	case errors.Is(err, store.ErrUsernameExists):
		return &UserError{Op: op, Username: user.Username, Err: ErrUserConflict}
	case errors.Is(err, domain.ErrEmptyUsername),
		errors.Is(err, domain.ErrUsernameTooLong),
		errors.Is(err, domain.ErrPasswordTooShort),
		errors.Is(err, domain.ErrPasswordTooLong),
		errors.Is(err, domain.ErrInvalidRole):
		return domain.NewValidationError("user", err.Error(), err)
	}
	logger.FromContextOrDefault(ctx, s.logger).Error("failed to update user",
		"error", err,
		"user_id", user.ID)
	return internalError(op, err)
}

// DeleteUser deletes a user by their ID
func (s *UserServiceImpl) DeleteUser(ctx context.Context, userID int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := s.userStore.Delete(ctx, userID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			log.Debug("attempted to delete non-existent user",
				"user_id", userID)
			return &UserError{Op: "delete", UserID: userID, Err: store.ErrUserNotFound}
		}
		log.Error("failed to delete user",
			"error", err,
			"user_id", userID)
		return internalError("delete user", err)
	}

	log.Info("user deleted", "user_id", userID)
	return nil
}

// Authenticate checks credentials and returns the matching user
func (s *UserServiceImpl) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	user, err := s.userStore.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			log.Debug("login attempt for unknown username", "username", username)
			return nil, &UserError{Op: "authenticate", Username: username, Err: store.ErrUserNotFound}
		}
		return nil, internalError("authenticate", err)
	}

	if err := s.verifier.Compare(user.HashedPassword, password); err != nil {
		log.Debug("login attempt with wrong password", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// EnsureAdmin creates the bootstrap administrator when it is missing
func (s *UserServiceImpl) EnsureAdmin(ctx context.Context, username, password string) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	existing, err := s.userStore.GetByUsername(ctx, username)
	if err == nil {
		if !existing.IsAdmin() {
			log.Warn("bootstrap admin username is held by a non-admin user",
				"user_id", existing.ID,
				"username", username)
		}
		return existing, nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return nil, internalError("ensure admin", err)
	}

	admin, err := s.CreateUser(ctx, username, password, domain.RoleAdmin)
	if err != nil {
		// Another instance created it between our lookup and insert.
		if errors.Is(err, ErrUserConflict) {
			return s.userStore.GetByUsername(ctx, username)
		}
		return nil, err
	}

	log.Info("bootstrap admin created", "user_id", admin.ID)
	return admin, nil
}
