package api

import (
	"time"

	"github.com/phrazzld/bankcards-api/internal/domain"
	"github.com/phrazzld/bankcards-api/internal/service"
	"github.com/phrazzld/bankcards-api/internal/store"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of card expiration dates.
const DateLayout = "2006-01-02"

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=72"`
}

// AuthResponse defines the successful response for the login endpoint.
type AuthResponse struct {
	// AccessToken is the JWT used for API authorization
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type"`
}

// CreateUserRequest defines the payload for creating a user.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role"     validate:"required,oneof=ADMIN USER"`
}

// UpdateUsernameRequest defines the payload for renaming a user.
type UpdateUsernameRequest struct {
	Username string `json:"username" validate:"required,max=64"`
}

// UpdateRoleRequest defines the payload for changing a user's role.
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=ADMIN USER"`
}

// UpdatePasswordRequest defines the payload for changing the caller's password.
type UpdatePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required,max=72"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// UserResponse is the public representation of a user.
type UserResponse struct {
	ID        int64       `json:"id"`
	Username  string      `json:"username"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// CreateCardRequest defines the payload for provisioning a card.
type CreateCardRequest struct {
	UserID         int64  `json:"user_id"         validate:"required,gt=0"`
	CardNumber     string `json:"card_number"     validate:"required,len=16,numeric"`
	Owner          string `json:"owner"           validate:"required,max=255"`
	ExpirationDate string `json:"expiration_date" validate:"required,datetime=2006-01-02"`
}

// UpdateStatusRequest defines the payload for changing a card status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// TransferRequest defines the payload for moving money between own cards.
// Amount accepts a JSON number or a decimal string.
type TransferRequest struct {
	FromCardID int64           `json:"from_card_id" validate:"required,gt=0"`
	ToCardID   int64           `json:"to_card_id"   validate:"required,gt=0"`
	Amount     decimal.Decimal `json:"amount"`
}

// TransferResponse echoes a completed transfer.
type TransferResponse struct {
	FromCardID int64  `json:"from_card_id"`
	ToCardID   int64  `json:"to_card_id"`
	Amount     string `json:"amount"`
}

// CardResponse is the public representation of a card.
// The full card number is never part of it.
type CardResponse struct {
	ID             int64             `json:"id"`
	MaskedNumber   string            `json:"masked_number"`
	Owner          string            `json:"owner"`
	ExpirationDate string            `json:"expiration_date"`
	Status         domain.CardStatus `json:"status"`
	Balance        string            `json:"balance"`
	UserID         int64             `json:"user_id"`
}

// BalanceResponse carries a single card balance or, without a card id, a total.
type BalanceResponse struct {
	CardID  int64  `json:"card_id,omitempty"`
	Balance string `json:"balance"`
}

// PageResponse is the envelope for paged listings.
type PageResponse[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"total_elements"`
	TotalPages    int   `json:"total_pages"`
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(domain.MoneyScale)
}

func cardToResponse(v *service.CardView) CardResponse {
	return CardResponse{
		ID:             v.ID,
		MaskedNumber:   v.MaskedNumber,
		Owner:          v.Owner,
		ExpirationDate: v.ExpirationDate.Format(DateLayout),
		Status:         v.Status,
		Balance:        formatMoney(v.Balance),
		UserID:         v.UserID,
	}
}

func userToResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func toPageResponse[S, T any](page *store.Page[S], convert func(S) T) PageResponse[T] {
	content := make([]T, 0, len(page.Items))
	for _, item := range page.Items {
		content = append(content, convert(item))
	}
	return PageResponse[T]{
		Content:       content,
		Page:          page.Page,
		Size:          page.Size,
		TotalElements: page.Total,
		TotalPages:    page.TotalPages(),
	}
}
