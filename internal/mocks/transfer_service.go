package mocks

import (
	"context"

	"github.com/phrazzld/bankcards-api/internal/service"
)

// MockTransferService implements service.TransferService for testing
type MockTransferService struct {
	// TransferFn allows test cases to mock the Transfer behavior
	TransferFn func(ctx context.Context, req service.TransferRequest) (*service.TransferResult, error)

	// Calls records every request passed to Transfer
	Calls []service.TransferRequest

	// Default values used when TransferFn isn't set
	Result *service.TransferResult
	Err    error
}

// Transfer implements the service.TransferService interface
func (m *MockTransferService) Transfer(
	ctx context.Context,
	req service.TransferRequest,
) (*service.TransferResult, error) {
	m.Calls = append(m.Calls, req)
	if m.TransferFn != nil {
		return m.TransferFn(ctx, req)
	}
	return m.Result, m.Err
}
