package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/bankcards-api/internal/api/shared"
	"github.com/phrazzld/bankcards-api/internal/codec"
	"github.com/phrazzld/bankcards-api/internal/domain"
	"github.com/phrazzld/bankcards-api/internal/service"
	"github.com/phrazzld/bankcards-api/internal/service/auth"
	"github.com/phrazzld/bankcards-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	// Unexpected failures win over anything they wrap
	case errors.Is(err, service.ErrInternal),
		errors.Is(err, codec.ErrCrypto):
		return http.StatusInternalServerError

	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, service.ErrTransferForbidden):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrCardNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, service.ErrCardConflict),
		errors.Is(err, service.ErrUserConflict):
		return http.StatusConflict

	// Transfer rule violations
	case errors.Is(err, service.ErrInsufficientFunds):
		return http.StatusMethodNotAllowed

	case errors.Is(err, service.ErrInvalidCardState),
		errors.Is(err, service.ErrWrongPassword),
		errors.Is(err, service.ErrPasswordUnchanged):
		return http.StatusUnprocessableEntity

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity),
		isValidatorError(err):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. Entity ids and usernames carried by service
// errors are included; driver and storage details never are.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var cardErr *service.CardError
	var userErr *service.UserError
	var validationErr *domain.ValidationError

	switch {
	case errors.Is(err, service.ErrInternal),
		errors.Is(err, codec.ErrCrypto):
		return "An unexpected error occurred"

	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case errors.Is(err, service.ErrInvalidCredentials):
		return "Invalid username or password"

	case errors.Is(err, domain.ErrUnauthorized):
		return "Authentication required"

	case errors.Is(err, service.ErrTransferForbidden):
		if errors.As(err, &cardErr) && cardErr.UserID > 0 {
			return fmt.Sprintf("Cards do not belong to user with id: %d", cardErr.UserID)
		}
		return "Cards do not belong to user"

	case errors.Is(err, store.ErrCardNotFound):
		if errors.As(err, &cardErr) {
			return fmt.Sprintf("Card not found with id: %d", cardErr.CardID)
		}
		return "Card not found"

	case errors.Is(err, store.ErrUserNotFound):
		if errors.As(err, &userErr) {
			if userErr.Username != "" {
				return fmt.Sprintf("User not found with username: %s", userErr.Username)
			}
			return fmt.Sprintf("User not found with id: %d", userErr.UserID)
		}
		return "User not found"

	case errors.Is(err, service.ErrCardConflict):
		return "Card already exists"

	case errors.Is(err, service.ErrUserConflict):
		if errors.As(err, &userErr) && userErr.Username != "" {
			return fmt.Sprintf("User already exists with username: %s", userErr.Username)
		}
		return "User already exists"

	case errors.Is(err, service.ErrInsufficientFunds):
		return "You don't have that much money in your balance."

	case errors.Is(err, service.ErrInvalidCardState):
		if errors.As(err, &cardErr) {
			return fmt.Sprintf("Card with id: %d is not active", cardErr.CardID)
		}
		return "Card is not active"

	case errors.Is(err, service.ErrWrongPassword):
		return "Invalid current password"

	case errors.Is(err, service.ErrPasswordUnchanged):
		return "The new password must be different from the old one"

	case errors.As(err, &validationErr):
		if validationErr.Field == "" {
			return "Validation error: " + validationErr.Message
		}
		return fmt.Sprintf("Invalid %s: %s", validationErr.Field, validationErr.Message)

	case isValidatorError(err):
		return SanitizeValidationError(err)

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError maps err to a status and message and writes the response.
// A non-empty fallback replaces the generic message of a 500.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}

	var opts []shared.ResponseOption
	if status == http.StatusForbidden || status == http.StatusUnauthorized {
		opts = append(opts, shared.WithElevatedLogLevel())
	}

	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}

func isValidatorError(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs)
}

// SanitizeValidationError turns validator output into a short message naming
// the first failing field.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}

	fe := verrs[0]
	field := fe.Field()
	if field == "" {
		field = strings.ToLower(fe.StructField())
	}
	return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(fe.Tag(), fe.Param()))
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag, param string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "len":
		return "must have length " + param
	case "gt":
		return "must be greater than " + param
	case "numeric":
		return "must contain only digits"
	case "oneof":
		return "must be one of " + param
	case "datetime":
		return "must be a date in format YYYY-MM-DD"
	default:
		return "validation failed"
	}
}
