package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/bankcards-api/internal/api/shared"
	"github.com/phrazzld/bankcards-api/internal/domain"
	"github.com/phrazzld/bankcards-api/internal/platform/logger"
	"github.com/phrazzld/bankcards-api/internal/service"
)

// UserHandler serves the user directory endpoints.
type UserHandler struct {
	userService service.UserService
	logger      *slog.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService service.UserService, logger *slog.Logger) *UserHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for UserHandler")
	}

	return &UserHandler{
		userService: userService,
		logger:      logger.With(slog.String("component", "user_handler")),
	}
}

// CreateUser handles POST /users requests.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	user, err := h.userService.CreateUser(r.Context(), req.Username, req.Password, role)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create user")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, userToResponse(user))
}

// GetUser handles GET /users/{id} requests. Administrators may read any
// user; everyone else only themselves.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := handleCallerAndPathID(w, r, "id", h.logger)
	if !ok {
		return
	}

	if !caller.IsAdmin() && caller.UserID != id {
		logger.FromContextOrDefault(r.Context(), h.logger).Warn("user lookup denied",
			slog.Int64("target_id", id))
		shared.RespondWithError(w, r, http.StatusForbidden, "Access denied")
		return
	}

	user, err := h.userService.GetUser(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get user")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, userToResponse(user))
}

// ListUsers handles GET /users requests.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := parsePageRequest(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	result, err := h.userService.ListUsers(r.Context(), page)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list users")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, toPageResponse(result, userToResponse))
}

// UpdateUsernameByAdmin handles PUT /users/username/{id} requests.
func (h *UserHandler) UpdateUsernameByAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	h.updateUsername(w, r, id)
}

// UpdateOwnUsername handles PUT /users requests for the caller's own account.
func (h *UserHandler) UpdateOwnUsername(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	h.updateUsername(w, r, caller.UserID)
}

func (h *UserHandler) updateUsername(w http.ResponseWriter, r *http.Request, userID int64) {
	var req UpdateUsernameRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.userService.UpdateUsername(r.Context(), userID, req.Username)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update username")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, userToResponse(user))
}

// UpdateRole handles PUT /users/role/{id} requests.
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req UpdateRoleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	user, err := h.userService.UpdateRole(r.Context(), id, role)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update role")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Info("role changed by admin",
		slog.Int64("target_id", id),
		slog.String("role", string(role)))
	shared.RespondWithJSON(w, r, http.StatusOK, userToResponse(user))
}

// UpdatePassword handles PATCH /users requests. It only ever changes the
// caller's own password.
func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req UpdatePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.userService.UpdatePassword(r.Context(), caller.UserID, req.OldPassword, req.NewPassword); err != nil {
		HandleAPIError(w, r, err, "Failed to update password")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteUser handles DELETE /users/{id} requests. The user's cards go with it.
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.userService.DeleteUser(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
