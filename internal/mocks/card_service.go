package mocks

import (
	"context"

	"github.com/phrazzld/bankcards-api/internal/domain"
	"github.com/phrazzld/bankcards-api/internal/service"
	"github.com/phrazzld/bankcards-api/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockCardService is a testify mock of service.CardService
type MockCardService struct {
	mock.Mock
}

var _ service.CardService = (*MockCardService)(nil)

func cardView(args mock.Arguments) (*service.CardView, error) {
	if v, ok := args.Get(0).(*service.CardView); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func cardPage(args mock.Arguments) (*store.Page[*service.CardView], error) {
	if p, ok := args.Get(0).(*store.Page[*service.CardView]); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func amount(args mock.Arguments) (decimal.Decimal, error) {
	if d, ok := args.Get(0).(decimal.Decimal); ok {
		return d, args.Error(1)
	}
	return decimal.Zero, args.Error(1)
}

// CreateCard is a mock implementation of service.CardService.CreateCard
func (m *MockCardService) CreateCard(ctx context.Context, params service.CreateCardParams) (*service.CardView, error) {
	return cardView(m.Called(ctx, params))
}

// GetCard is a mock implementation of service.CardService.GetCard
func (m *MockCardService) GetCard(ctx context.Context, cardID int64) (*service.CardView, error) {
	return cardView(m.Called(ctx, cardID))
}

// ListCards is a mock implementation of service.CardService.ListCards
func (m *MockCardService) ListCards(
	ctx context.Context,
	page store.PageRequest,
) (*store.Page[*service.CardView], error) {
	return cardPage(m.Called(ctx, page))
}

// ListCardsByUser is a mock implementation of service.CardService.ListCardsByUser
func (m *MockCardService) ListCardsByUser(
	ctx context.Context,
	userID int64,
	page store.PageRequest,
) (*store.Page[*service.CardView], error) {
	return cardPage(m.Called(ctx, userID, page))
}

// ListCardsByStatus is a mock implementation of service.CardService.ListCardsByStatus
func (m *MockCardService) ListCardsByStatus(
	ctx context.Context,
	status domain.CardStatus,
	page store.PageRequest,
) (*store.Page[*service.CardView], error) {
	return cardPage(m.Called(ctx, status, page))
}

// GetBalance is a mock implementation of service.CardService.GetBalance
func (m *MockCardService) GetBalance(ctx context.Context, cardID, callerID int64) (decimal.Decimal, error) {
	return amount(m.Called(ctx, cardID, callerID))
}

// AdjustBalance is a mock implementation of service.CardService.AdjustBalance
func (m *MockCardService) AdjustBalance(
	ctx context.Context,
	cardID int64,
	delta decimal.Decimal,
) (*service.CardView, error) {
	return cardView(m.Called(ctx, cardID, delta))
}

// GetTotalBalance is a mock implementation of service.CardService.GetTotalBalance
func (m *MockCardService) GetTotalBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return amount(m.Called(ctx, userID))
}

// UpdateStatus is a mock implementation of service.CardService.UpdateStatus
func (m *MockCardService) UpdateStatus(
	ctx context.Context,
	cardID int64,
	status domain.CardStatus,
) (*service.CardView, error) {
	return cardView(m.Called(ctx, cardID, status))
}

// DeleteCard is a mock implementation of service.CardService.DeleteCard
func (m *MockCardService) DeleteCard(ctx context.Context, cardID int64) error {
	return m.Called(ctx, cardID).Error(0)
}
