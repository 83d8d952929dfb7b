package service

import (
	"context"
	"database/sql"

	"github.com/phrazzld/bankcards-api/internal/store"
)

// NewCardRepositoryAdapter creates a new adapter that allows a store.CardStore
// to be used where a CardRepository is expected.
func NewCardRepositoryAdapter(cardStore store.CardStore, db *sql.DB) CardRepository {
	return &cardRepositoryAdapter{
		CardStore: cardStore,
		db:        db,
	}
}

// cardRepositoryAdapter adapts a store.CardStore to the CardRepository interface
type cardRepositoryAdapter struct {
	store.CardStore
	db *sql.DB
	// inTx is set on adapters bound to a transaction; RunInTx reuses it.
	inTx bool
}

// RunInTx implements CardRepository.RunInTx
func (a *cardRepositoryAdapter) RunInTx(
	ctx context.Context,
	fn func(ctx context.Context, repo CardRepository) error,
) error {
	if a.inTx {
		return fn(ctx, a)
	}

	return store.RunInTransaction(ctx, a.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, &cardRepositoryAdapter{
			CardStore: a.CardStore.WithTx(tx),
			db:        a.db,
			inTx:      true,
		})
	})
}
