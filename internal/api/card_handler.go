package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/bankcards-api/internal/api/shared"
	"github.com/phrazzld/bankcards-api/internal/domain"
	"github.com/phrazzld/bankcards-api/internal/platform/logger"
	"github.com/phrazzld/bankcards-api/internal/service"
	"github.com/shopspring/decimal"
)

// CardHandler handles card-related HTTP requests
type CardHandler struct {
	cardService     service.CardService
	transferService service.TransferService
	logger          *slog.Logger
}

// NewCardHandler creates a new CardHandler
func NewCardHandler(
	cardService service.CardService,
	transferService service.TransferService,
	logger *slog.Logger,
) *CardHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for CardHandler")
	}

	return &CardHandler{
		cardService:     cardService,
		transferService: transferService,
		logger:          logger.With(slog.String("component", "card_handler")),
	}
}

// CreateCard handles POST /cards requests.
func (h *CardHandler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req CreateCardRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	expiry, err := time.Parse(DateLayout, req.ExpirationDate)
	if err != nil {
		HandleAPIError(w, r, domain.NewValidationError("expiration_date", "must be a date in format YYYY-MM-DD", domain.ErrInvalidFormat), "")
		return
	}

	view, err := h.cardService.CreateCard(r.Context(), service.CreateCardParams{
		UserID:         req.UserID,
		Number:         req.CardNumber,
		Owner:          req.Owner,
		ExpirationDate: expiry,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create card")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, cardToResponse(view))
}

// GetCard handles GET /cards/{id} requests.
func (h *CardHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	view, err := h.cardService.GetCard(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get card")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, cardToResponse(view))
}

// ListCards handles GET /cards requests. An optional status query parameter
// restricts the listing to cards in that status.
func (h *CardHandler) ListCards(w http.ResponseWriter, r *http.Request) {
	page, err := parsePageRequest(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domain.ParseCardStatus(raw)
		if err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
		result, err := h.cardService.ListCardsByStatus(r.Context(), status, page)
		if err != nil {
			HandleAPIError(w, r, err, "Failed to list cards")
			return
		}
		shared.RespondWithJSON(w, r, http.StatusOK, toPageResponse(result, cardToResponse))
		return
	}

	result, err := h.cardService.ListCards(r.Context(), page)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list cards")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, toPageResponse(result, cardToResponse))
}

// ListCardsByUser handles GET /cards/user/{userId} requests.
func (h *CardHandler) ListCardsByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := getPathID(r, "userId")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	page, err := parsePageRequest(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	result, err := h.cardService.ListCardsByUser(r.Context(), userID, page)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list cards")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, toPageResponse(result, cardToResponse))
}

// ListMyCards handles GET /cards/my requests.
func (h *CardHandler) ListMyCards(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	page, err := parsePageRequest(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	result, err := h.cardService.ListCardsByUser(r.Context(), caller.UserID, page)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list cards")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, toPageResponse(result, cardToResponse))
}

// GetMyCardBalance handles GET /cards/my/{id}/balance requests.
func (h *CardHandler) GetMyCardBalance(w http.ResponseWriter, r *http.Request) {
	caller, cardID, ok := handleCallerAndPathID(w, r, "id", h.logger)
	if !ok {
		return
	}

	balance, err := h.cardService.GetBalance(r.Context(), cardID, caller.UserID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get balance")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, BalanceResponse{CardID: cardID, Balance: formatMoney(balance)})
}

// GetMyTotalBalance handles GET /cards/my/balance requests.
func (h *CardHandler) GetMyTotalBalance(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	total, err := h.cardService.GetTotalBalance(r.Context(), caller.UserID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get balance")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, BalanceResponse{Balance: formatMoney(total)})
}

// AdjustBalance handles PUT /cards/{id}/balance?amount= requests.
// The amount is added to the current balance and may be negative.
func (h *CardHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	raw := r.URL.Query().Get("amount")
	if raw == "" {
		HandleAPIError(w, r, domain.NewValidationError("amount", "is required", domain.ErrInvalidAmount), "")
		return
	}
	delta, err := decimal.NewFromString(raw)
	if err != nil {
		HandleAPIError(w, r, domain.NewValidationError("amount", "must be a decimal number", domain.ErrInvalidAmount), "")
		return
	}

	view, err := h.cardService.AdjustBalance(r.Context(), id, delta)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to adjust balance")
		return
	}

	if caller, ok := shared.GetCaller(r.Context()); ok {
		log.Info("balance adjusted by admin",
			slog.Int64("admin_id", caller.UserID),
			slog.Int64("card_id", id),
			slog.String("delta", delta.String()))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, cardToResponse(view))
}

// Transfer handles POST /cards/transfer requests.
func (h *CardHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req TransferRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	_, err := h.transferService.Transfer(r.Context(), service.TransferRequest{
		InitiatorID: caller.UserID,
		FromCardID:  req.FromCardID,
		ToCardID:    req.ToCardID,
		Amount:      req.Amount,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Transfer failed")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TransferResponse{
		FromCardID: req.FromCardID,
		ToCardID:   req.ToCardID,
		Amount:     formatMoney(req.Amount),
	})
}

// UpdateStatus handles PUT /cards/{id}/status requests.
func (h *CardHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var req UpdateStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	status, err := domain.ParseCardStatus(req.Status)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	view, err := h.cardService.UpdateStatus(r.Context(), id, status)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update card status")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, cardToResponse(view))
}

// DeleteCard handles DELETE /cards/{id} requests.
func (h *CardHandler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	id, err := getPathID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.cardService.DeleteCard(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete card")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
