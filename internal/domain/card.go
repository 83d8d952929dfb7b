package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Card-specific validation errors
var (
	// ErrCardOwnerEmpty is returned when the display name on a card is empty.
	ErrCardOwnerEmpty = errors.New("card owner cannot be empty")

	// ErrCardUserIDEmpty is returned when a card does not reference its owning user.
	ErrCardUserIDEmpty = errors.New("card user ID cannot be empty")

	// ErrCardNumberEmpty is returned when a card has no encrypted number.
	ErrCardNumberEmpty = errors.New("card number cannot be empty")

	// ErrCardExpirationEmpty is returned when a card has no expiration date.
	ErrCardExpirationEmpty = errors.New("card expiration date cannot be empty")

	// ErrInvalidCardStatus is returned when a status value is not known.
	ErrInvalidCardStatus = errors.New("invalid card status")

	// ErrInvalidCardNumber is returned when a plaintext card number is malformed.
	ErrInvalidCardNumber = errors.New("invalid card number")
)

// CardNumberLength is the number of digits in a plaintext card number.
const CardNumberLength = 16

// ValidateCardNumber checks that number is exactly CardNumberLength ASCII digits.
func ValidateCardNumber(number string) error {
	if len(number) != CardNumberLength {
		return NewValidationError("card_number", "must be exactly 16 digits", ErrInvalidCardNumber)
	}
	for i := 0; i < len(number); i++ {
		if number[i] < '0' || number[i] > '9' {
			return NewValidationError("card_number", "must be exactly 16 digits", ErrInvalidCardNumber)
		}
	}
	return nil
}

// CardStatus is the operational status of a card account.
type CardStatus string

// Known card statuses. The set is open for extension; no transition graph is
// enforced between them.
const (
	CardStatusActive  CardStatus = "ACTIVE"
	CardStatusBlocked CardStatus = "BLOCKED"
)

// IsValid reports whether the status is one of the known statuses.
func (s CardStatus) IsValid() bool {
	switch s {
	case CardStatusActive, CardStatusBlocked:
		return true
	default:
		return false
	}
}

// ParseCardStatus converts a case-insensitive string into a CardStatus.
func ParseCardStatus(value string) (CardStatus, error) {
	status := CardStatus(strings.ToUpper(strings.TrimSpace(value)))
	if !status.IsValid() {
		return "", NewValidationError("status", "must be one of ACTIVE, BLOCKED", ErrInvalidCardStatus)
	}
	return status, nil
}

// MoneyScale is the number of fractional digits stored for balances.
const MoneyScale = 2

// MoneyIntegerDigits is the number of digits a stored amount may have before
// the decimal point.
const MoneyIntegerDigits = 17

// moneyLimit is the smallest magnitude that no longer fits in storage.
var moneyLimit = decimal.New(1, MoneyIntegerDigits)

// Card is a bank-card account owned by a user.
// The plaintext card number never lives on this struct; only its ciphertext does.
type Card struct {
	ID              int64           `json:"id"`
	EncryptedNumber string          `json:"-"`
	Owner           string          `json:"owner"`
	ExpirationDate  time.Time       `json:"expiration_date"`
	Status          CardStatus      `json:"status"`
	Balance         decimal.Decimal `json:"balance"`
	UserID          int64           `json:"user_id"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewCard creates an ACTIVE card with a zero balance.
// The ID is left at zero and is assigned by the store on creation.
func NewCard(userID int64, encryptedNumber, owner string, expirationDate time.Time) (*Card, error) {
	now := time.Now().UTC()
	card := &Card{
		EncryptedNumber: encryptedNumber,
		Owner:           strings.TrimSpace(owner),
		ExpirationDate:  expirationDate,
		Status:          CardStatusActive,
		Balance:         decimal.Zero,
		UserID:          userID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}

	return card, nil
}

// Validate checks if the Card has valid data.
// Balance is not checked; admin adjustments may leave it negative.
func (c *Card) Validate() error {
	if c.UserID <= 0 {
		return ErrCardUserIDEmpty
	}

	if c.EncryptedNumber == "" {
		return ErrCardNumberEmpty
	}

	if c.Owner == "" {
		return ErrCardOwnerEmpty
	}

	if c.ExpirationDate.IsZero() {
		return ErrCardExpirationEmpty
	}

	if !c.Status.IsValid() {
		return ErrInvalidCardStatus
	}

	return nil
}

// IsActive reports whether the card may take part in a transfer.
func (c *Card) IsActive() bool {
	return c.Status == CardStatusActive
}

// IsOwnedBy reports whether the card belongs to the given user.
func (c *Card) IsOwnedBy(userID int64) bool {
	return c.UserID == userID
}

// Debit subtracts amount from the balance without any floor check.
func (c *Card) Debit(amount decimal.Decimal) {
	c.Balance = c.Balance.Sub(amount)
	c.UpdatedAt = time.Now().UTC()
}

// Credit adds amount to the balance. A negative amount lowers it.
func (c *Card) Credit(amount decimal.Decimal) {
	c.Balance = c.Balance.Add(amount)
	c.UpdatedAt = time.Now().UTC()
}

// SetStatus overwrites the status. Any known status may replace any other.
func (c *Card) SetStatus(status CardStatus) error {
	if !status.IsValid() {
		return ErrInvalidCardStatus
	}
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// ValidateAmount checks that a transfer amount is strictly positive and fits
// the storage scale.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return NewValidationError("amount", "must be greater than zero", ErrInvalidAmount)
	}
	return ValidateScale(amount)
}

// ValidateScale checks that amount has no more fractional digits than
// MoneyScale and no more integer digits than MoneyIntegerDigits.
func ValidateScale(amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(MoneyScale)) {
		return NewValidationError("amount", "must have at most 2 decimal places", ErrInvalidAmount)
	}
	if amount.Abs().GreaterThanOrEqual(moneyLimit) {
		return NewValidationError("amount", "must have at most 17 integer digits", ErrInvalidAmount)
	}
	return nil
}

// ValidateBalance checks that a balance produced by a mutation still fits in storage.
func ValidateBalance(balance decimal.Decimal) error {
	if balance.Abs().GreaterThanOrEqual(moneyLimit) {
		return NewValidationError("balance", "must have at most 17 integer digits", ErrInvalidAmount)
	}
	return nil
}
