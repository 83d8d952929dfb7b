package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/bankcards-api/internal/domain"
	"github.com/phrazzld/bankcards-api/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cardRowColumns = []string{
	"id", "encrypted_number", "owner", "expiration_date", "status", "balance", "user_id", "created_at", "updated_at",
}

func newMockCardStore(t *testing.T) (*PostgresCardStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresCardStore(db, nil), mock
}

func cardRow(id int64, status string, balance string, userID int64) *sqlmock.Rows {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return sqlmock.NewRows(cardRowColumns).AddRow(
		id, "ct-"+status, "Jane Doe", time.Date(2030, 12, 31, 0, 0, 0, 0, time.UTC), status, balance, userID, ts, ts,
	)
}

func TestCardStoreCreate(t *testing.T) {
	ctx := context.Background()
	expiry := time.Date(2030, 12, 31, 0, 0, 0, 0, time.UTC)

	t.Run("assigns id", func(t *testing.T) {
		s, mock := newMockCardStore(t)
		card, err := domain.NewCard(5, "ciphertext", "Jane Doe", expiry)
		require.NoError(t, err)

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO cards")).
			WithArgs("ciphertext", "Jane Doe", expiry, "ACTIVE", sqlmock.AnyArg(), int64(5), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

		require.NoError(t, s.Create(ctx, card))
		assert.Equal(t, int64(11), card.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation is a duplicate number", func(t *testing.T) {
		s, mock := newMockCardStore(t)
		card, err := domain.NewCard(5, "ciphertext", "Jane Doe", expiry)
		require.NoError(t, err)

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO cards")).
			WillReturnError(&pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "cards_encrypted_number_key"})

		err = s.Create(ctx, card)
		assert.ErrorIs(t, err, store.ErrCardNumberExists)
		assert.True(t, store.IsDuplicateError(err))
	})

	t.Run("foreign key violation is a missing user", func(t *testing.T) {
		s, mock := newMockCardStore(t)
		card, err := domain.NewCard(99, "ciphertext", "Jane Doe", expiry)
		require.NoError(t, err)

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO cards")).
			WillReturnError(&pgconn.PgError{Code: foreignKeyViolationCode})

		assert.ErrorIs(t, s.Create(ctx, card), store.ErrUserNotFound)
	})

	t.Run("invalid card never reaches the database", func(t *testing.T) {
		s, mock := newMockCardStore(t)
		err := s.Create(ctx, &domain.Card{UserID: 1})
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCardStoreGet(t *testing.T) {
	ctx := context.Background()

	t.Run("by id", func(t *testing.T) {
		s, mock := newMockCardStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM cards WHERE id = $1")).
			WithArgs(int64(3)).
			WillReturnRows(cardRow(3, "BLOCKED", "12.50", 8))

		card, err := s.GetByID(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(3), card.ID)
		assert.Equal(t, domain.CardStatusBlocked, card.Status)
		assert.True(t, card.Balance.Equal(decimal.RequireFromString("12.50")))
		assert.Equal(t, int64(8), card.UserID)
	})

	t.Run("missing", func(t *testing.T) {
		s, mock := newMockCardStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM cards WHERE id = $1")).
			WillReturnError(sql.ErrNoRows)

		_, err := s.GetByID(ctx, 404)
		assert.ErrorIs(t, err, store.ErrCardNotFound)
	})

	t.Run("for update locks the row", func(t *testing.T) {
		s, mock := newMockCardStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM cards WHERE id = $1 FOR UPDATE")).
			WithArgs(int64(3)).
			WillReturnRows(cardRow(3, "ACTIVE", "1.00", 8))

		_, err := s.GetByIDForUpdate(ctx, 3)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("scoped to owner", func(t *testing.T) {
		s, mock := newMockCardStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM cards WHERE id = $1 AND user_id = $2")).
			WithArgs(int64(3), int64(9)).
			WillReturnError(sql.ErrNoRows)

		_, err := s.GetByIDAndUserID(ctx, 3, 9)
		assert.ErrorIs(t, err, store.ErrCardNotFound)
	})

	t.Run("driver failure does not leak as not found", func(t *testing.T) {
		s, mock := newMockCardStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM cards WHERE id = $1")).
			WillReturnError(errors.New("connection reset"))

		_, err := s.GetByID(ctx, 3)
		require.Error(t, err)
		assert.False(t, store.IsNotFoundError(err))
		var se *store.StoreError
		assert.ErrorAs(t, err, &se)
	})
}

func TestCardStoreList(t *testing.T) {
	ctx := context.Background()

	t.Run("by user with paging", func(t *testing.T) {
		s, mock := newMockCardStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM cards WHERE user_id = $1")).
			WithArgs(int64(8)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
		rows := cardRow(4, "ACTIVE", "1.00", 8)
		mock.ExpectQuery(regexp.QuoteMeta("FROM cards WHERE user_id = $1 ORDER BY id ASC LIMIT $2 OFFSET $3")).
			WithArgs(int64(8), 2, 2).
			WillReturnRows(rows)

		page, err := s.ListByUserID(ctx, 8, store.PageRequest{Page: 1, Size: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), page.Total)
		assert.Len(t, page.Items, 1)
		assert.Equal(t, 2, page.TotalPages())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("by status", func(t *testing.T) {
		s, mock := newMockCardStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM cards WHERE status = $1")).
			WithArgs("BLOCKED").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
		mock.ExpectQuery(regexp.QuoteMeta("FROM cards WHERE status = $1 ORDER BY id ASC")).
			WithArgs("BLOCKED", store.DefaultPageSize, 0).
			WillReturnRows(cardRow(1, "BLOCKED", "0", 2))

		page, err := s.ListByStatus(ctx, domain.CardStatusBlocked, store.PageRequest{})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, domain.CardStatusBlocked, page.Items[0].Status)
	})

	t.Run("all", func(t *testing.T) {
		s, mock := newMockCardStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM cards")).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
		mock.ExpectQuery(regexp.QuoteMeta("FROM cards ORDER BY id ASC LIMIT $1 OFFSET $2")).
			WithArgs(store.MaxPageSize, 0).
			WillReturnRows(sqlmock.NewRows(cardRowColumns))

		page, err := s.List(ctx, store.PageRequest{Size: 500})
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.Equal(t, store.MaxPageSize, page.Size)
	})
}

func TestCardStoreAggregates(t *testing.T) {
	ctx := context.Background()

	t.Run("sum balance", func(t *testing.T) {
		s, mock := newMockCardStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(balance), 0) FROM cards WHERE user_id = $1")).
			WithArgs(int64(8)).
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("150.75"))

		total, err := s.SumBalanceByUserID(ctx, 8)
		require.NoError(t, err)
		assert.Equal(t, "150.75", total.StringFixed(2))
	})

	t.Run("exists by encrypted number", func(t *testing.T) {
		s, mock := newMockCardStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM cards WHERE encrypted_number = $1)")).
			WithArgs("ciphertext").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		exists, err := s.ExistsByEncryptedNumber(ctx, "ciphertext")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}

func TestCardStoreUpdateAndDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("update", func(t *testing.T) {
		s, mock := newMockCardStore(t)
		card := &domain.Card{ID: 3, Owner: "Jane", Status: domain.CardStatusBlocked, Balance: decimal.NewFromInt(7)}
		mock.ExpectExec(regexp.QuoteMeta("UPDATE cards")).
			WithArgs("Jane", sqlmock.AnyArg(), "BLOCKED", sqlmock.AnyArg(), sqlmock.AnyArg(), int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.Update(ctx, card))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update missing", func(t *testing.T) {
		s, mock := newMockCardStore(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE cards")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.Update(ctx, &domain.Card{ID: 3, Status: domain.CardStatusActive})
		assert.ErrorIs(t, err, store.ErrCardNotFound)
	})

	t.Run("update rejects unknown status", func(t *testing.T) {
		s, _ := newMockCardStore(t)
		err := s.Update(ctx, &domain.Card{ID: 3, Status: "LOST"})
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
	})

	t.Run("delete", func(t *testing.T) {
		s, mock := newMockCardStore(t)
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cards WHERE id = $1")).
			WithArgs(int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.Delete(ctx, 3))
	})

	t.Run("delete missing", func(t *testing.T) {
		s, mock := newMockCardStore(t)
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cards WHERE id = $1")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, s.Delete(ctx, 3), store.ErrCardNotFound)
	})
}

func TestCardStoreWithTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := NewPostgresCardStore(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WillReturnRows(cardRow(1, "ACTIVE", "10", 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE cards")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = store.RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.WithTx(tx)
		card, err := txStore.GetByIDForUpdate(ctx, 1)
		if err != nil {
			return err
		}
		card.Credit(decimal.NewFromInt(5))
		return txStore.Update(ctx, card)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
