package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/bankcards-api/internal/api/shared"
	"github.com/phrazzld/bankcards-api/internal/domain"
	"github.com/phrazzld/bankcards-api/internal/platform/logger"
	"github.com/phrazzld/bankcards-api/internal/store"
)

// getPathID extracts a positive int64 id from the URL path parameters.
func getPathID(r *http.Request, paramName string) (int64, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return 0, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}

	id, err := strconv.ParseInt(pathParam, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError(paramName, "must be a positive integer", domain.ErrInvalidID)
	}

	return id, nil
}

// parsePageRequest reads the page and size query parameters.
// Missing values take the defaults; sizes above the maximum are clamped.
func parsePageRequest(r *http.Request) (store.PageRequest, error) {
	q := r.URL.Query()
	page := store.PageRequest{Page: 0, Size: store.DefaultPageSize}

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return page, domain.NewValidationError("page", "must be a non-negative integer", domain.ErrInvalidFormat)
		}
		if n > store.MaxPage {
			msg := fmt.Sprintf("must be at most %d", store.MaxPage)
			return page, domain.NewValidationError("page", msg, domain.ErrInvalidFormat)
		}
		page.Page = n
	}

	if raw := q.Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return page, domain.NewValidationError("size", "must be a positive integer", domain.ErrInvalidFormat)
		}
		page.Size = n
	}

	return page.Normalize(), nil
}

// handleCallerAndPathID extracts both the caller from context and an id from
// the path. It writes an error response if either extraction fails.
func handleCallerAndPathID(
	w http.ResponseWriter,
	r *http.Request,
	paramName string,
	log *slog.Logger,
) (shared.Caller, int64, bool) {
	if log == nil {
		log = logger.FromContextOrDefault(r.Context(), slog.Default())
	}

	caller, ok := shared.GetCaller(r.Context())
	if !ok {
		log.Warn("caller not found in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return shared.Caller{}, 0, false
	}

	id, err := getPathID(r, paramName)
	if err != nil {
		log.Debug("invalid path parameter",
			slog.String("param_name", paramName),
			slog.String("value", chi.URLParam(r, paramName)))
		HandleAPIError(w, r, err, "")
		return shared.Caller{}, 0, false
	}

	return caller, id, true
}

// requireCaller returns the caller or writes a 401.
func requireCaller(w http.ResponseWriter, r *http.Request) (shared.Caller, bool) {
	caller, ok := shared.GetCaller(r.Context())
	if !ok {
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return shared.Caller{}, false
	}
	return caller, true
}

// decodeAndValidate decodes the JSON body into v and runs struct validation.
// It writes a 400 and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := shared.DecodeJSON(r, v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		HandleAPIError(w, r, err, "")
		return false
	}
	return true
}
