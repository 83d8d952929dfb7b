package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/phrazzld/bankcards-api/internal/domain"
	"github.com/phrazzld/bankcards-api/internal/platform/logger"
	"github.com/phrazzld/bankcards-api/internal/store"
	"github.com/shopspring/decimal"
)

// CardRepository defines the repository interface for the service layer.
type CardRepository interface {
	Create(ctx context.Context, card *domain.Card) error
	GetByID(ctx context.Context, id int64) (*domain.Card, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Card, error)
	GetByIDAndUserID(ctx context.Context, id, userID int64) (*domain.Card, error)
	ListByUserID(ctx context.Context, userID int64, page store.PageRequest) (*store.Page[*domain.Card], error)
	ListByStatus(ctx context.Context, status domain.CardStatus, page store.PageRequest) (*store.Page[*domain.Card], error)
	List(ctx context.Context, page store.PageRequest) (*store.Page[*domain.Card], error)
	SumBalanceByUserID(ctx context.Context, userID int64) (decimal.Decimal, error)
	ExistsByEncryptedNumber(ctx context.Context, encryptedNumber string) (bool, error)
	Update(ctx context.Context, card *domain.Card) error
	Delete(ctx context.Context, id int64) error

	// RunInTx calls fn with a repository bound to a single transaction.
	// The transaction commits if fn returns nil and rolls back otherwise.
	// Calling RunInTx on a repository that is already transactional reuses it.
	RunInTx(ctx context.Context, fn func(ctx context.Context, repo CardRepository) error) error
}

// UserLookup resolves users by id.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// CardCodec encrypts, decrypts and masks card numbers.
type CardCodec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
	Mask(plaintext string) (string, error)
}

// CardView is a card together with its masked number.
type CardView struct {
	*domain.Card
	MaskedNumber string
}

// CreateCardParams holds the input for provisioning a card.
type CreateCardParams struct {
	UserID         int64
	Number         string
	Owner          string
	ExpirationDate time.Time
}

// CardService provides card-account operations.
type CardService interface {
	// CreateCard provisions an ACTIVE, zero-balance card for an existing user.
	CreateCard(ctx context.Context, params CreateCardParams) (*CardView, error)

	// GetCard retrieves a card by its ID.
	GetCard(ctx context.Context, cardID int64) (*CardView, error)

	// ListCards returns a page of all cards.
	ListCards(ctx context.Context, page store.PageRequest) (*store.Page[*CardView], error)

	// ListCardsByUser returns a page of the cards owned by userID.
	ListCardsByUser(ctx context.Context, userID int64, page store.PageRequest) (*store.Page[*CardView], error)

	// ListCardsByStatus returns a page of the cards in status.
	ListCardsByStatus(
		ctx context.Context,
		status domain.CardStatus,
		page store.PageRequest,
	) (*store.Page[*CardView], error)

	// GetBalance returns the balance of a card owned by callerID.
	// A card owned by someone else is reported as not found.
	GetBalance(ctx context.Context, cardID, callerID int64) (decimal.Decimal, error)

	// AdjustBalance adds delta to the card balance. A negative delta may take
	// the balance below zero.
	AdjustBalance(ctx context.Context, cardID int64, delta decimal.Decimal) (*CardView, error)

	// GetTotalBalance sums the balances of all cards owned by userID.
	GetTotalBalance(ctx context.Context, userID int64) (decimal.Decimal, error)

	// UpdateStatus overwrites the card status.
	UpdateStatus(ctx context.Context, cardID int64, status domain.CardStatus) (*CardView, error)

	// DeleteCard permanently removes a card.
	DeleteCard(ctx context.Context, cardID int64) error
}

// cardServiceImpl implements the CardService interface
type cardServiceImpl struct {
	cardRepo CardRepository
	users    UserLookup
	codec    CardCodec
	logger   *slog.Logger
}

// NewCardService creates a new CardService.
// It returns an error if any of the required dependencies are nil.
func NewCardService(
	cardRepo CardRepository,
	users UserLookup,
	codec CardCodec,
	logger *slog.Logger,
) (CardService, error) {
	if cardRepo == nil {
		return nil, domain.NewValidationError("cardRepo", "cannot be nil", domain.ErrValidation)
	}
	if users == nil {
		return nil, domain.NewValidationError("users", "cannot be nil", domain.ErrValidation)
	}
	if codec == nil {
		return nil, domain.NewValidationError("codec", "cannot be nil", domain.ErrValidation)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &cardServiceImpl{
		cardRepo: cardRepo,
		users:    users,
		codec:    codec,
		logger:   logger.With(slog.String("component", "card_service")),
	}, nil
}

// CreateCard implements CardService.CreateCard
func (s *cardServiceImpl) CreateCard(ctx context.Context, params CreateCardParams) (*CardView, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.users.GetByID(ctx, params.UserID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, &UserError{Op: "create card", UserID: params.UserID, Err: store.ErrUserNotFound}
		}
		return nil, internalError("create card", err)
	}

	if err := domain.ValidateCardNumber(params.Number); err != nil {
		return nil, err
	}

	encrypted, err := s.codec.Encrypt(params.Number)
	if err != nil {
		log.Error("failed to encrypt card number", slog.String("error", err.Error()))
		return nil, err
	}

	exists, err := s.cardRepo.ExistsByEncryptedNumber(ctx, encrypted)
	if err != nil {
		return nil, internalError("create card", err)
	}
	if exists {
		log.Warn("rejected duplicate card number", slog.Int64("user_id", params.UserID))
		return nil, ErrCardConflict
	}

	card, err := domain.NewCard(params.UserID, encrypted, params.Owner, params.ExpirationDate)
	if err != nil {
		return nil, domain.NewValidationError("card", err.Error(), err)
	}

	if err := s.cardRepo.Create(ctx, card); err != nil {
		switch {
		case errors.Is(err, store.ErrCardNumberExists):
			// Lost a race with a concurrent provisioning of the same number.
			return nil, ErrCardConflict
		case errors.Is(err, store.ErrUserNotFound):
			return nil, &UserError{Op: "create card", UserID: params.UserID, Err: store.ErrUserNotFound}
		default:
			return nil, internalError("create card", err)
		}
	}

	masked, err := s.codec.Mask(params.Number)
	if err != nil {
		return nil, err
	}

	log.Info("card provisioned",
		slog.Int64("card_id", card.ID),
		slog.Int64("user_id", card.UserID))

	return &CardView{Card: card, MaskedNumber: masked}, nil
}

// GetCard implements CardService.GetCard
func (s *cardServiceImpl) GetCard(ctx context.Context, cardID int64) (*CardView, error) {
	card, err := s.cardRepo.GetByID(ctx, cardID)
	if err != nil {
		return nil, s.cardLookupError("get card", cardID, err)
	}
	return s.view(card)
}

// ListCards implements CardService.ListCards
func (s *cardServiceImpl) ListCards(ctx context.Context, page store.PageRequest) (*store.Page[*CardView], error) {
	cards, err := s.cardRepo.List(ctx, page)
	if err != nil {
		return nil, internalError("list cards", err)
	}
	return s.viewPage(cards)
}

// ListCardsByUser implements CardService.ListCardsByUser
func (s *cardServiceImpl) ListCardsByUser(
	ctx context.Context,
	userID int64,
	page store.PageRequest,
) (*store.Page[*CardView], error) {
	cards, err := s.cardRepo.ListByUserID(ctx, userID, page)
	if err != nil {
		return nil, internalError("list cards by user", err)
	}
	return s.viewPage(cards)
}

// ListCardsByStatus implements CardService.ListCardsByStatus
func (s *cardServiceImpl) ListCardsByStatus(
	ctx context.Context,
	status domain.CardStatus,
	page store.PageRequest,
) (*store.Page[*CardView], error) {
	if !status.IsValid() {
		return nil, domain.NewValidationError("status", "must be one of ACTIVE, BLOCKED", domain.ErrInvalidCardStatus)
	}
	cards, err := s.cardRepo.ListByStatus(ctx, status, page)
	if err != nil {
		return nil, internalError("list cards by status", err)
	}
	return s.viewPage(cards)
}

// GetBalance implements CardService.GetBalance
func (s *cardServiceImpl) GetBalance(ctx context.Context, cardID, callerID int64) (decimal.Decimal, error) {
	card, err := s.cardRepo.GetByIDAndUserID(ctx, cardID, callerID)
	if err != nil {
		return decimal.Zero, s.cardLookupError("get balance", cardID, err)
	}
	return card.Balance, nil
}

// AdjustBalance implements CardService.AdjustBalance
func (s *cardServiceImpl) AdjustBalance(ctx context.Context, cardID int64, delta decimal.Decimal) (*CardView, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := domain.ValidateScale(delta); err != nil {
		return nil, err
	}

	var updated *domain.Card
	err := s.cardRepo.RunInTx(ctx, func(ctx context.Context, repo CardRepository) error {
		card, err := repo.GetByIDForUpdate(ctx, cardID)
		if err != nil {
			return s.cardLookupError("adjust balance", cardID, err)
		}

		card.Credit(delta)
		if err := domain.ValidateBalance(card.Balance); err != nil {
			return err
		}
		if err := repo.Update(ctx, card); err != nil {
			return s.cardLookupError("adjust balance", cardID, err)
		}

		updated = card
		return nil
	})
	if err != nil {
		return nil, s.txError("adjust balance", err)
	}

	log.Info("card balance adjusted",
		slog.Int64("card_id", cardID),
		slog.String("delta", delta.String()),
		slog.String("balance", updated.Balance.String()))

	return s.view(updated)
}

// GetTotalBalance implements CardService.GetTotalBalance
func (s *cardServiceImpl) GetTotalBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	total, err := s.cardRepo.SumBalanceByUserID(ctx, userID)
	if err != nil {
		return decimal.Zero, internalError("get total balance", err)
	}
	return total, nil
}

// UpdateStatus implements CardService.UpdateStatus
// The row is locked so a concurrent transfer cannot lose its balance write.
func (s *cardServiceImpl) UpdateStatus(
	ctx context.Context,
	cardID int64,
	status domain.CardStatus,
) (*CardView, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !status.IsValid() {
		return nil, domain.NewValidationError("status", "must be one of ACTIVE, BLOCKED", domain.ErrInvalidCardStatus)
	}

	var updated *domain.Card
	err := s.cardRepo.RunInTx(ctx, func(ctx context.Context, repo CardRepository) error {
		card, err := repo.GetByIDForUpdate(ctx, cardID)
		if err != nil {
			return s.cardLookupError("update status", cardID, err)
		}

		previous := card.Status
		if err := card.SetStatus(status); err != nil {
			return err
		}
		if err := repo.Update(ctx, card); err != nil {
			return s.cardLookupError("update status", cardID, err)
		}

		log.Info("card status updated",
			slog.Int64("card_id", cardID),
			slog.String("from", string(previous)),
			slog.String("to", string(status)))
		updated = card
		return nil
	})
	if err != nil {
		return nil, s.txError("update status", err)
	}

	return s.view(updated)
}

// DeleteCard implements CardService.DeleteCard
func (s *cardServiceImpl) DeleteCard(ctx context.Context, cardID int64) error {
	if err := s.cardRepo.Delete(ctx, cardID); err != nil {
		return s.cardLookupError("delete card", cardID, err)
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("card deleted", slog.Int64("card_id", cardID))
	return nil
}

func (s *cardServiceImpl) view(card *domain.Card) (*CardView, error) {
	plain, err := s.codec.Decrypt(card.EncryptedNumber)
	if err != nil {
		s.logger.Error("failed to decrypt card number",
			slog.Int64("card_id", card.ID),
			slog.String("error", err.Error()))
		return nil, &CardError{Op: "decrypt", CardID: card.ID, Err: err}
	}

	masked, err := s.codec.Mask(plain)
	if err != nil {
		return nil, &CardError{Op: "mask", CardID: card.ID, Err: err}
	}

	return &CardView{Card: card, MaskedNumber: masked}, nil
}

func (s *cardServiceImpl) viewPage(page *store.Page[*domain.Card]) (*store.Page[*CardView], error) {
	views := make([]*CardView, 0, len(page.Items))
	for _, card := range page.Items {
		v, err := s.view(card)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return &store.Page[*CardView]{Items: views, Total: page.Total, PageRequest: page.PageRequest}, nil
}

// cardLookupError turns a repository failure on a single card into a
// service error carrying the card id.
func (s *cardServiceImpl) cardLookupError(op string, cardID int64, err error) error {
	if errors.Is(err, store.ErrCardNotFound) {
		return &CardError{Op: op, CardID: cardID, Err: store.ErrCardNotFound}
	}
	return &CardError{Op: op, CardID: cardID, Err: internalError(op, err)}
}

// txError passes service errors returned from inside a transaction through
// and marks anything else, such as a failed commit, as internal.
func (s *cardServiceImpl) txError(op string, err error) error {
	return classifyTxError(op, err)
}

func classifyTxError(op string, err error) error {
	var cardErr *CardError
	var validationErr *domain.ValidationError
	if errors.As(err, &cardErr) || errors.As(err, &validationErr) || errors.Is(err, ErrInternal) {
		return err
	}
	return internalError(op, err)
}
