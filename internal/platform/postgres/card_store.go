package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/bankcards-api/internal/domain"
	"github.com/phrazzld/bankcards-api/internal/platform/logger"
	"github.com/phrazzld/bankcards-api/internal/store"
	"github.com/shopspring/decimal"
)

const cardColumns = `id, encrypted_number, owner, expiration_date, status, balance, user_id, created_at, updated_at`

// PostgresCardStore implements the store.CardStore interface
// using a PostgreSQL database as the storage backend.
type PostgresCardStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCardStore creates a new PostgreSQL implementation of the CardStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresCardStore(db store.DBTX, logger *slog.Logger) *PostgresCardStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresCardStore{
		db:     db,
		logger: logger.With(slog.String("component", "card_store")),
	}
}

// Ensure PostgresCardStore implements store.CardStore interface
var _ store.CardStore = (*PostgresCardStore)(nil)

// WithTx implements store.CardStore.WithTx
func (s *PostgresCardStore) WithTx(tx *sql.Tx) store.CardStore {
	return &PostgresCardStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.CardStore.Create
func (s *PostgresCardStore) Create(ctx context.Context, card *domain.Card) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := card.Validate(); err != nil {
		log.Warn("card validation failed during create",
			slog.String("error", err.Error()),
			slog.Int64("user_id", card.UserID))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO cards (encrypted_number, owner, expiration_date, status, balance, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := s.db.QueryRowContext(
		ctx,
		query,
		card.EncryptedNumber,
		card.Owner,
		card.ExpirationDate,
		string(card.Status),
		card.Balance,
		card.UserID,
		card.CreatedAt,
		card.UpdatedAt,
	).Scan(&card.ID)

	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("duplicate card number on insert", slog.Int64("user_id", card.UserID))
			return store.ErrCardNumberExists
		}
		if IsForeignKeyViolation(err) {
			log.Warn("card references unknown user", slog.Int64("user_id", card.UserID))
			return store.ErrUserNotFound
		}

		log.Error("failed to create card",
			slog.String("error", err.Error()),
			slog.Int64("user_id", card.UserID))
		return store.NewStoreError("card", "create", "failed to insert card", MapError(err))
	}

	log.Info("card created", slog.Int64("card_id", card.ID), slog.Int64("user_id", card.UserID))
	return nil
}

// GetByID implements store.CardStore.GetByID
func (s *PostgresCardStore) GetByID(ctx context.Context, id int64) (*domain.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`
	return s.getOne(ctx, "get", query, id)
}

// GetByIDForUpdate implements store.CardStore.GetByIDForUpdate
func (s *PostgresCardStore) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1 FOR UPDATE`
	return s.getOne(ctx, "lock", query, id)
}

// GetByIDAndUserID implements store.CardStore.GetByIDAndUserID
func (s *PostgresCardStore) GetByIDAndUserID(ctx context.Context, id, userID int64) (*domain.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1 AND user_id = $2`
	return s.getOne(ctx, "get", query, id, userID)
}

func (s *PostgresCardStore) getOne(ctx context.Context, op, query string, args ...any) (*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	card, err := scanCard(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("card not found", slog.Any("args", args))
			return nil, store.ErrCardNotFound
		}
		log.Error("failed to query card", slog.String("operation", op), slog.String("error", err.Error()))
		return nil, store.NewStoreError("card", op, "failed to query card", MapError(err))
	}

	return card, nil
}

// ListByUserID implements store.CardStore.ListByUserID
func (s *PostgresCardStore) ListByUserID(
	ctx context.Context,
	userID int64,
	page store.PageRequest,
) (*store.Page[*domain.Card], error) {
	return s.list(ctx, "user_id = $1", page, userID)
}

// ListByStatus implements store.CardStore.ListByStatus
func (s *PostgresCardStore) ListByStatus(
	ctx context.Context,
	status domain.CardStatus,
	page store.PageRequest,
) (*store.Page[*domain.Card], error) {
	return s.list(ctx, "status = $1", page, string(status))
}

// List implements store.CardStore.List
func (s *PostgresCardStore) List(ctx context.Context, page store.PageRequest) (*store.Page[*domain.Card], error) {
	return s.list(ctx, "", page)
}

// list runs a filtered, id-ordered page query plus its matching count.
// where may reference at most one positional argument ($1).
func (s *PostgresCardStore) list(
	ctx context.Context,
	where string,
	page store.PageRequest,
	args ...any,
) (*store.Page[*domain.Card], error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	page = page.Normalize()

	filter := ""
	if where != "" {
		filter = " WHERE " + where
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards`+filter, args...).Scan(&total); err != nil {
		log.Error("failed to count cards", slog.String("error", err.Error()))
		return nil, store.NewStoreError("card", "list", "failed to count cards", MapError(err))
	}

	n := len(args)
	query := fmt.Sprintf(
		`SELECT %s FROM cards%s ORDER BY id ASC LIMIT $%d OFFSET $%d`,
		cardColumns, filter, n+1, n+2,
	)
	queryArgs := append(append([]any{}, args...), page.Size, page.Offset())

	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		log.Error("failed to list cards", slog.String("error", err.Error()))
		return nil, store.NewStoreError("card", "list", "failed to list cards", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	cards := make([]*domain.Card, 0, page.Size)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, store.NewStoreError("card", "list", "failed to scan card", MapError(err))
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("card", "list", "failed to iterate cards", MapError(err))
	}

	return &store.Page[*domain.Card]{Items: cards, Total: total, PageRequest: page}, nil
}

// SumBalanceByUserID implements store.CardStore.SumBalanceByUserID
func (s *PostgresCardStore) SumBalanceByUserID(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `SELECT COALESCE(SUM(balance), 0) FROM cards WHERE user_id = $1`
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&total); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to sum balances",
			slog.String("error", err.Error()),
			slog.Int64("user_id", userID))
		return decimal.Zero, store.NewStoreError("card", "sum", "failed to sum balances", MapError(err))
	}
	return total, nil
}

// ExistsByEncryptedNumber implements store.CardStore.ExistsByEncryptedNumber
func (s *PostgresCardStore) ExistsByEncryptedNumber(ctx context.Context, encryptedNumber string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM cards WHERE encrypted_number = $1)`
	if err := s.db.QueryRowContext(ctx, query, encryptedNumber).Scan(&exists); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to check card number",
			slog.String("error", err.Error()))
		return false, store.NewStoreError("card", "exists", "failed to check card number", MapError(err))
	}
	return exists, nil
}

// Update implements store.CardStore.Update
func (s *PostgresCardStore) Update(ctx context.Context, card *domain.Card) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !card.Status.IsValid() {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrInvalidCardStatus)
	}

	query := `
		UPDATE cards
		SET owner = $1, expiration_date = $2, status = $3, balance = $4, updated_at = $5
		WHERE id = $6
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		card.Owner,
		card.ExpirationDate,
		string(card.Status),
		card.Balance,
		card.UpdatedAt,
		card.ID,
	)
	if err != nil {
		log.Error("failed to update card",
			slog.String("error", err.Error()),
			slog.Int64("card_id", card.ID))
		return store.NewStoreError("card", "update", "failed to update card", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrCardNotFound); err != nil {
		return err
	}

	log.Debug("card updated",
		slog.Int64("card_id", card.ID),
		slog.String("status", string(card.Status)))
	return nil
}

// Delete implements store.CardStore.Delete
func (s *PostgresCardStore) Delete(ctx context.Context, id int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete card", slog.String("error", err.Error()), slog.Int64("card_id", id))
		return store.NewStoreError("card", "delete", "failed to delete card", MapError(err))
	}

	if err := CheckRowsAffected(result, store.ErrCardNotFound); err != nil {
		return err
	}

	log.Info("card deleted", slog.Int64("card_id", id))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*domain.Card, error) {
	var card domain.Card
	var status string
	err := row.Scan(
		&card.ID,
		&card.EncryptedNumber,
		&card.Owner,
		&card.ExpirationDate,
		&status,
		&card.Balance,
		&card.UserID,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	card.Status = domain.CardStatus(status)
	return &card, nil
}
