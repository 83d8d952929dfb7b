package service

import (
	"errors"
	"fmt"
)

// Service errors - sentinel errors callers check with errors.Is().
// The API layer maps each of them to a single HTTP status.
//
// Not-found conditions reuse store.ErrCardNotFound and store.ErrUserNotFound,
// wrapped in CardError or UserError to carry the missing id.
var (
	// ErrCardConflict indicates a card with the same number already exists.
	ErrCardConflict = errors.New("card already exists")

	// ErrUserConflict indicates a user with the same username already exists.
	ErrUserConflict = errors.New("user already exists")

	// ErrTransferForbidden indicates that at least one card in a transfer is
	// not owned by the initiating user.
	ErrTransferForbidden = errors.New("cards do not belong to user")

	// ErrInsufficientFunds indicates the source card balance is lower than the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidCardState indicates a card taking part in a transfer is not ACTIVE.
	ErrInvalidCardState = errors.New("card is not active")

	// ErrInvalidCredentials indicates a password did not match.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrWrongPassword indicates the current password given for a password
	// change did not match.
	ErrWrongPassword = errors.New("invalid current password")

	// ErrPasswordUnchanged indicates a password change that reuses the current password.
	ErrPasswordUnchanged = errors.New("new password must differ from the old one")

	// ErrInternal marks an unexpected failure, usually from storage.
	ErrInternal = errors.New("internal error")
)

// CardError attaches the operation and the card involved to a failure.
// UserID is set when the failure concerns the caller, as with a forbidden transfer.
type CardError struct {
	Op     string
	CardID int64
	UserID int64
	Err    error
}

// Error implements the error interface for CardError.
func (e *CardError) Error() string {
	return fmt.Sprintf("%s card %d: %v", e.Op, e.CardID, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *CardError) Unwrap() error {
	return e.Err
}

// UserError attaches the operation and the user involved to a failure.
type UserError struct {
	Op       string
	UserID   int64
	Username string
	Err      error
}

// Error implements the error interface for UserError.
func (e *UserError) Error() string {
	if e.Username != "" {
		return fmt.Sprintf("%s user %q: %v", e.Op, e.Username, e.Err)
	}
	return fmt.Sprintf("%s user %d: %v", e.Op, e.UserID, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *UserError) Unwrap() error {
	return e.Err
}

// internalError marks err as unexpected while keeping it in the chain for logging.
func internalError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
}
