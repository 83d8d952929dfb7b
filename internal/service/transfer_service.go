package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/phrazzld/bankcards-api/internal/domain"
	"github.com/phrazzld/bankcards-api/internal/platform/logger"
	"github.com/phrazzld/bankcards-api/internal/store"
	"github.com/shopspring/decimal"
)

// TransferRequest describes a move of money between two cards.
type TransferRequest struct {
	InitiatorID int64
	FromCardID  int64
	ToCardID    int64
	Amount      decimal.Decimal
}

// TransferResult holds both cards after a completed transfer.
type TransferResult struct {
	From *domain.Card
	To   *domain.Card
}

// TransferService moves money between cards owned by the same user.
type TransferService interface {
	// Transfer debits the source card and credits the destination card in a
	// single transaction. Checks run in a fixed order and the first failing
	// one decides the error: existence, ownership, sufficiency, status.
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
}

type transferServiceImpl struct {
	cardRepo CardRepository
	logger   *slog.Logger
}

// NewTransferService creates a new TransferService.
func NewTransferService(cardRepo CardRepository, logger *slog.Logger) (TransferService, error) {
	if cardRepo == nil {
		return nil, domain.NewValidationError("cardRepo", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &transferServiceImpl{
		cardRepo: cardRepo,
		logger:   logger.With(slog.String("component", "transfer_service")),
	}, nil
}

// Transfer implements TransferService.Transfer
func (s *transferServiceImpl) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.Int64("user_id", req.InitiatorID),
		slog.Int64("from_card_id", req.FromCardID),
		slog.Int64("to_card_id", req.ToCardID),
	)

	if err := domain.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if req.FromCardID == req.ToCardID {
		return nil, domain.NewValidationError("to_card_id", "must differ from from_card_id", domain.ErrValidation)
	}

	var result *TransferResult
	err := s.cardRepo.RunInTx(ctx, func(ctx context.Context, repo CardRepository) error {
		from, to, err := lockPair(ctx, repo, req.FromCardID, req.ToCardID)
		if err != nil {
			return err
		}

		if from == nil {
			return &CardError{Op: "transfer", CardID: req.FromCardID, Err: store.ErrCardNotFound}
		}
		if to == nil {
			return &CardError{Op: "transfer", CardID: req.ToCardID, Err: store.ErrCardNotFound}
		}

		if !from.IsOwnedBy(req.InitiatorID) || !to.IsOwnedBy(req.InitiatorID) {
			return &CardError{Op: "transfer", CardID: req.FromCardID, UserID: req.InitiatorID, Err: ErrTransferForbidden}
		}

		if from.Balance.LessThan(req.Amount) {
			return &CardError{Op: "transfer", CardID: req.FromCardID, Err: ErrInsufficientFunds}
		}

		if !from.IsActive() {
			return &CardError{Op: "transfer", CardID: from.ID, Err: ErrInvalidCardState}
		}
		if !to.IsActive() {
			return &CardError{Op: "transfer", CardID: to.ID, Err: ErrInvalidCardState}
		}

		from.Debit(req.Amount)
		to.Credit(req.Amount)
		if err := domain.ValidateBalance(to.Balance); err != nil {
			return &CardError{Op: "transfer", CardID: to.ID, Err: err}
		}

		if err := repo.Update(ctx, from); err != nil {
			return internalError("transfer debit", err)
		}
		if err := repo.Update(ctx, to); err != nil {
			return internalError("transfer credit", err)
		}

		result = &TransferResult{From: from, To: to}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInternal) || errors.Is(err, store.ErrTransactionFailed) {
			log.Error("transfer failed", slog.String("error", err.Error()))
		} else {
			log.Warn("transfer rejected", slog.String("error", err.Error()))
		}
		return nil, classifyTxError("transfer", err)
	}

	log.Info("transfer completed", slog.String("amount", req.Amount.String()))
	return result, nil
}

// lockPair locks both cards in ascending id order so that two transfers
// touching the same pair in opposite directions cannot deadlock.
// A missing card is returned as nil.
func lockPair(ctx context.Context, repo CardRepository, fromID, toID int64) (*domain.Card, *domain.Card, error) {
	firstID, secondID := fromID, toID
	if secondID < firstID {
		firstID, secondID = secondID, firstID
	}

	first, err := lockCard(ctx, repo, firstID)
	if err != nil {
		return nil, nil, err
	}
	second, err := lockCard(ctx, repo, secondID)
	if err != nil {
		return nil, nil, err
	}

	if firstID == fromID {
		return first, second, nil
	}
	return second, first, nil
}

func lockCard(ctx context.Context, repo CardRepository, id int64) (*domain.Card, error) {
	card, err := repo.GetByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrCardNotFound) {
			return nil, nil
		}
		return nil, internalError("lock card", err)
	}
	return card, nil
}
