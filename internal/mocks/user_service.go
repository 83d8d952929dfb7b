package mocks

import (
	"context"

	"github.com/phrazzld/bankcards-api/internal/domain"
	"github.com/phrazzld/bankcards-api/internal/service"
	"github.com/phrazzld/bankcards-api/internal/store"
	"github.com/stretchr/testify/mock"
)

// MockUserService is a testify mock of service.UserService
type MockUserService struct {
	mock.Mock
}

var _ service.UserService = (*MockUserService)(nil)

func userResult(args mock.Arguments) (*domain.User, error) {
	if u, ok := args.Get(0).(*domain.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

// CreateUser is a mock implementation of service.UserService.CreateUser
func (m *MockUserService) CreateUser(
	ctx context.Context,
	username, password string,
	role domain.Role,
) (*domain.User, error) {
	return userResult(m.Called(ctx, username, password, role))
}

// GetUser is a mock implementation of service.UserService.GetUser
func (m *MockUserService) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	return userResult(m.Called(ctx, userID))
}

// ListUsers is a mock implementation of service.UserService.ListUsers
func (m *MockUserService) ListUsers(
	ctx context.Context,
	page store.PageRequest,
) (*store.Page[*domain.User], error) {
	args := m.Called(ctx, page)
	if p, ok := args.Get(0).(*store.Page[*domain.User]); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

// UpdateUsername is a mock implementation of service.UserService.UpdateUsername
func (m *MockUserService) UpdateUsername(ctx context.Context, userID int64, username string) (*domain.User, error) {
	return userResult(m.Called(ctx, userID, username))
}

// UpdateRole is a mock implementation of service.UserService.UpdateRole
func (m *MockUserService) UpdateRole(ctx context.Context, userID int64, role domain.Role) (*domain.User, error) {
	return userResult(m.Called(ctx, userID, role))
}

// UpdatePassword is a mock implementation of service.UserService.UpdatePassword
func (m *MockUserService) UpdatePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	return m.Called(ctx, userID, oldPassword, newPassword).Error(0)
}

// DeleteUser is a mock implementation of service.UserService.DeleteUser
func (m *MockUserService) DeleteUser(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}

// Authenticate is a mock implementation of service.UserService.Authenticate
func (m *MockUserService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	return userResult(m.Called(ctx, username, password))
}

// EnsureAdmin is a mock implementation of service.UserService.EnsureAdmin
func (m *MockUserService) EnsureAdmin(ctx context.Context, username, password string) (*domain.User, error) {
	return userResult(m.Called(ctx, username, password))
}
