package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/bankcards-api/internal/domain"
	"github.com/shopspring/decimal"
)

// CardStore defines the interface for card-account persistence.
// Every listing is ordered by id ascending so that paging is reproducible.
type CardStore interface {
	// Create inserts a new card and assigns its ID.
	// Returns ErrCardNumberExists if the encrypted number is already stored.
	Create(ctx context.Context, card *domain.Card) error

	// GetByID retrieves a card by its ID.
	// Returns ErrCardNotFound if the card does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Card, error)

	// GetByIDForUpdate retrieves a card and locks its row until the enclosing
	// transaction ends. It must be called on a store bound to a transaction.
	// Returns ErrCardNotFound if the card does not exist.
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Card, error)

	// GetByIDAndUserID retrieves a card only if it belongs to userID.
	// Returns ErrCardNotFound for a missing card and for a card owned by someone else.
	GetByIDAndUserID(ctx context.Context, id, userID int64) (*domain.Card, error)

	// ListByUserID returns a page of the cards owned by userID.
	ListByUserID(ctx context.Context, userID int64, page PageRequest) (*Page[*domain.Card], error)

	// ListByStatus returns a page of the cards in the given status.
	ListByStatus(ctx context.Context, status domain.CardStatus, page PageRequest) (*Page[*domain.Card], error)

	// List returns a page of all cards.
	List(ctx context.Context, page PageRequest) (*Page[*domain.Card], error)

	// SumBalanceByUserID returns the sum of balances across the user's cards,
	// or zero if the user has none.
	SumBalanceByUserID(ctx context.Context, userID int64) (decimal.Decimal, error)

	// ExistsByEncryptedNumber reports whether a card with this ciphertext exists.
	ExistsByEncryptedNumber(ctx context.Context, encryptedNumber string) (bool, error)

	// Update persists the mutable fields of a card: owner, expiration date,
	// status and balance.
	// Returns ErrCardNotFound if the card does not exist.
	Update(ctx context.Context, card *domain.Card) error

	// Delete removes a card permanently.
	// Returns ErrCardNotFound if the card does not exist.
	Delete(ctx context.Context, id int64) error

	// WithTx returns a CardStore that runs its queries on tx.
	//
	// Example usage:
	//   err := store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
	//       txStore := cardStore.WithTx(tx)
	//       card, err := txStore.GetByIDForUpdate(ctx, id)
	//       ...
	//   })
	WithTx(tx *sql.Tx) CardStore
}
