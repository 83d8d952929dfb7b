package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/phrazzld/bankcards-api/internal/codec"
	"github.com/phrazzld/bankcards-api/internal/domain"
	"github.com/phrazzld/bankcards-api/internal/platform/logger"
	"github.com/phrazzld/bankcards-api/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cardFixture struct {
	svc   CardService
	db    *fakeCardDB
	users *fakeUserStore
	codec *codec.Codec
	owner *domain.User
}

func newCardFixture(t *testing.T) *cardFixture {
	t.Helper()
	db := newFakeCardDB()
	users := newFakeUserStore()
	c := newTestCodec(t)
	log, _ := logger.NewTestLogger()

	svc, err := NewCardService(newFakeCardRepo(db), users, c, log)
	require.NoError(t, err)

	return &cardFixture{
		svc:   svc,
		db:    db,
		users: users,
		codec: c,
		owner: users.seed(t, "alice", domain.RoleUser),
	}
}

func (f *cardFixture) params(number string) CreateCardParams {
	return CreateCardParams{
		UserID:         f.owner.ID,
		Number:         number,
		Owner:          "Alice Example",
		ExpirationDate: time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestNewCardServiceRequiresDependencies(t *testing.T) {
	t.Parallel()
	c := newTestCodec(t)

	_, err := NewCardService(nil, newFakeUserStore(), c, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = NewCardService(newFakeCardRepo(newFakeCardDB()), nil, c, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = NewCardService(newFakeCardRepo(newFakeCardDB()), newFakeUserStore(), nil, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateCard(t *testing.T) {
	t.Parallel()

	t.Run("provisions an active zero-balance card", func(t *testing.T) {
		t.Parallel()
		f := newCardFixture(t)

		view, err := f.svc.CreateCard(context.Background(), f.params("4000123412341234"))
		require.NoError(t, err)

		assert.Equal(t, "**** **** **** 1234", view.MaskedNumber)
		assert.Equal(t, domain.CardStatusActive, view.Status)
		assert.True(t, view.Balance.IsZero())
		assert.Equal(t, f.owner.ID, view.UserID)
		assert.NotZero(t, view.ID)

		stored, ok := f.db.get(view.ID)
		require.True(t, ok)
		assert.NotEqual(t, "4000123412341234", stored.EncryptedNumber)
		plain, err := f.codec.Decrypt(stored.EncryptedNumber)
		require.NoError(t, err)
		assert.Equal(t, "4000123412341234", plain)
	})

	t.Run("duplicate number is a conflict and leaves the store unchanged", func(t *testing.T) {
		t.Parallel()
		f := newCardFixture(t)

		_, err := f.svc.CreateCard(context.Background(), f.params("4000123412341234"))
		require.NoError(t, err)

		_, err = f.svc.CreateCard(context.Background(), f.params("4000123412341234"))
		assert.ErrorIs(t, err, ErrCardConflict)
		assert.Equal(t, 1, f.db.count())
	})

	t.Run("unknown owner", func(t *testing.T) {
		t.Parallel()
		f := newCardFixture(t)
		p := f.params("4000123412341234")
		p.UserID = 999

		_, err := f.svc.CreateCard(context.Background(), p)
		assert.ErrorIs(t, err, store.ErrUserNotFound)
		var userErr *UserError
		require.True(t, errors.As(err, &userErr))
		assert.Equal(t, int64(999), userErr.UserID)
		assert.Equal(t, 0, f.db.count())
	})

	t.Run("owner is resolved before the number is checked", func(t *testing.T) {
		t.Parallel()
		f := newCardFixture(t)
		p := f.params("123")
		p.UserID = 999

		_, err := f.svc.CreateCard(context.Background(), p)
		assert.ErrorIs(t, err, store.ErrUserNotFound)
		assert.NotErrorIs(t, err, domain.ErrInvalidCardNumber)
	})

	t.Run("malformed numbers are rejected", func(t *testing.T) {
		t.Parallel()
		f := newCardFixture(t)

		for _, number := range []string{"", "123", "40001234123412345", "4000-1234-1234-12", "400012341234123a"} {
			_, err := f.svc.CreateCard(context.Background(), f.params(number))
			assert.ErrorIs(t, err, domain.ErrValidation, number)
			assert.ErrorIs(t, err, domain.ErrInvalidCardNumber, number)
		}
		assert.Equal(t, 0, f.db.count())
	})

	t.Run("blank owner name is rejected", func(t *testing.T) {
		t.Parallel()
		f := newCardFixture(t)
		p := f.params("4000123412341234")
		p.Owner = "   "

		_, err := f.svc.CreateCard(context.Background(), p)
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.ErrorIs(t, err, domain.ErrCardOwnerEmpty)
	})

	t.Run("user lookup failure is internal", func(t *testing.T) {
		t.Parallel()
		f := newCardFixture(t)
		f.users.failGet = true

		_, err := f.svc.CreateCard(context.Background(), f.params("4000123412341234"))
		assert.ErrorIs(t, err, ErrInternal)
	})
}

func TestGetCard(t *testing.T) {
	t.Parallel()
	f := newCardFixture(t)
	id := f.db.seed(t, f.codec, f.owner.ID, "5555666677778888", "10.50", domain.CardStatusActive)

	view, err := f.svc.GetCard(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "**** **** **** 8888", view.MaskedNumber)
	assert.True(t, decimal.RequireFromString("10.50").Equal(view.Balance))

	_, err = f.svc.GetCard(context.Background(), 404)
	assert.ErrorIs(t, err, store.ErrCardNotFound)
	var cardErr *CardError
	require.True(t, errors.As(err, &cardErr))
	assert.Equal(t, int64(404), cardErr.CardID)
}

func TestGetCardUndecryptableNumber(t *testing.T) {
	t.Parallel()
	f := newCardFixture(t)
	id := f.db.seed(t, f.codec, f.owner.ID, "5555666677778888", "0", domain.CardStatusActive)

	card, _ := f.db.get(id)
	card.EncryptedNumber = "not-base64!"
	f.db.put(*card)

	_, err := f.svc.GetCard(context.Background(), id)
	assert.ErrorIs(t, err, codec.ErrCrypto)
}

func TestListCards(t *testing.T) {
	t.Parallel()
	f := newCardFixture(t)
	bob := f.users.seed(t, "bob", domain.RoleUser)

	f.db.seed(t, f.codec, f.owner.ID, "1111222233334444", "1", domain.CardStatusActive)
	f.db.seed(t, f.codec, bob.ID, "1111222233335555", "2", domain.CardStatusBlocked)
	f.db.seed(t, f.codec, f.owner.ID, "1111222233336666", "3", domain.CardStatusActive)

	ctx := context.Background()

	all, err := f.svc.ListCards(ctx, store.PageRequest{Page: 0, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)
	assert.Equal(t, 2, all.TotalPages())
	require.Len(t, all.Items, 2)
	assert.Equal(t, "**** **** **** 4444", all.Items[0].MaskedNumber)
	assert.Equal(t, "**** **** **** 5555", all.Items[1].MaskedNumber)

	second, err := f.svc.ListCards(ctx, store.PageRequest{Page: 1, Size: 2})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "**** **** **** 6666", second.Items[0].MaskedNumber)

	mine, err := f.svc.ListCardsByUser(ctx, f.owner.ID, store.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), mine.Total)
	assert.Equal(t, store.DefaultPageSize, mine.Size)

	blocked, err := f.svc.ListCardsByStatus(ctx, domain.CardStatusBlocked, store.PageRequest{})
	require.NoError(t, err)
	require.Len(t, blocked.Items, 1)
	assert.Equal(t, bob.ID, blocked.Items[0].UserID)

	_, err = f.svc.ListCardsByStatus(ctx, domain.CardStatus("LOST"), store.PageRequest{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	f.db.failList = true
	_, err = f.svc.ListCards(ctx, store.PageRequest{})
	assert.ErrorIs(t, err, ErrInternal)
}

func TestGetBalance(t *testing.T) {
	t.Parallel()
	f := newCardFixture(t)
	bob := f.users.seed(t, "bob", domain.RoleUser)
	id := f.db.seed(t, f.codec, f.owner.ID, "1111222233334444", "42.10", domain.CardStatusActive)

	balance, err := f.svc.GetBalance(context.Background(), id, f.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "42.1", balance.String())

	_, err = f.svc.GetBalance(context.Background(), id, bob.ID)
	assert.ErrorIs(t, err, store.ErrCardNotFound, "another user's card reads as missing")
}

func TestAdjustBalance(t *testing.T) {
	t.Parallel()

	t.Run("adds the delta", func(t *testing.T) {
		t.Parallel()
		f := newCardFixture(t)
		id := f.db.seed(t, f.codec, f.owner.ID, "1111222233334444", "100", domain.CardStatusActive)

		view, err := f.svc.AdjustBalance(context.Background(), id, decimal.RequireFromString("25.25"))
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("125.25").Equal(view.Balance))
		assert.True(t, decimal.RequireFromString("125.25").Equal(f.db.balance(id)))
	})

	t.Run("negative delta may overdraw", func(t *testing.T) {
		t.Parallel()
		f := newCardFixture(t)
		id := f.db.seed(t, f.codec, f.owner.ID, "1111222233334444", "100", domain.CardStatusActive)

		view, err := f.svc.AdjustBalance(context.Background(), id, decimal.NewFromInt(-1000))
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(-900).Equal(view.Balance))
		assert.True(t, decimal.NewFromInt(-900).Equal(f.db.balance(id)))
	})

	t.Run("blocked cards can be adjusted", func(t *testing.T) {
		t.Parallel()
		f := newCardFixture(t)
		id := f.db.seed(t, f.codec, f.owner.ID, "1111222233334444", "0", domain.CardStatusBlocked)

		_, err := f.svc.AdjustBalance(context.Background(), id, decimal.NewFromInt(5))
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(5).Equal(f.db.balance(id)))
	})

	t.Run("too many decimal places", func(t *testing.T) {
		t.Parallel()
		f := newCardFixture(t)
		id := f.db.seed(t, f.codec, f.owner.ID, "1111222233334444", "100", domain.CardStatusActive)

		_, err := f.svc.AdjustBalance(context.Background(), id, decimal.RequireFromString("0.001"))
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		assert.True(t, decimal.NewFromInt(100).Equal(f.db.balance(id)))
	})

	t.Run("delta beyond storage range", func(t *testing.T) {
		t.Parallel()
		f := newCardFixture(t)
		id := f.db.seed(t, f.codec, f.owner.ID, "1111222233334444", "100", domain.CardStatusActive)

		_, err := f.svc.AdjustBalance(context.Background(), id, decimal.RequireFromString("1e30"))
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.NotErrorIs(t, err, ErrInternal)
		assert.True(t, decimal.NewFromInt(100).Equal(f.db.balance(id)))
	})

	t.Run("resulting balance beyond storage range", func(t *testing.T) {
		t.Parallel()
		f := newCardFixture(t)
		id := f.db.seed(t, f.codec, f.owner.ID, "1111222233334444", "99999999999999999", domain.CardStatusActive)

		_, err := f.svc.AdjustBalance(context.Background(), id, decimal.NewFromInt(1))
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.True(t, decimal.RequireFromString("99999999999999999").Equal(f.db.balance(id)))
	})

	t.Run("missing card", func(t *testing.T) {
		t.Parallel()
		f := newCardFixture(t)

		_, err := f.svc.AdjustBalance(context.Background(), 77, decimal.NewFromInt(1))
		assert.ErrorIs(t, err, store.ErrCardNotFound)
	})

	t.Run("write failure leaves balance unchanged", func(t *testing.T) {
		t.Parallel()
		f := newCardFixture(t)
		id := f.db.seed(t, f.codec, f.owner.ID, "1111222233334444", "100", domain.CardStatusActive)
		f.db.failUpdateOn = 1

		_, err := f.svc.AdjustBalance(context.Background(), id, decimal.NewFromInt(1))
		assert.ErrorIs(t, err, ErrInternal)
		assert.True(t, decimal.NewFromInt(100).Equal(f.db.balance(id)))
	})
}

func TestGetTotalBalance(t *testing.T) {
	t.Parallel()
	f := newCardFixture(t)
	bob := f.users.seed(t, "bob", domain.RoleUser)

	total, err := f.svc.GetTotalBalance(context.Background(), f.owner.ID)
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	f.db.seed(t, f.codec, f.owner.ID, "1111222233334444", "10.25", domain.CardStatusActive)
	f.db.seed(t, f.codec, f.owner.ID, "1111222233335555", "4.75", domain.CardStatusBlocked)
	f.db.seed(t, f.codec, bob.ID, "1111222233336666", "1000", domain.CardStatusActive)

	total, err = f.svc.GetTotalBalance(context.Background(), f.owner.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(15).Equal(total))
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()
	f := newCardFixture(t)
	id := f.db.seed(t, f.codec, f.owner.ID, "1111222233334444", "12.34", domain.CardStatusActive)

	view, err := f.svc.UpdateStatus(context.Background(), id, domain.CardStatusBlocked)
	require.NoError(t, err)
	assert.Equal(t, domain.CardStatusBlocked, view.Status)

	stored, _ := f.db.get(id)
	assert.Equal(t, domain.CardStatusBlocked, stored.Status)
	assert.True(t, decimal.RequireFromString("12.34").Equal(stored.Balance))

	view, err = f.svc.UpdateStatus(context.Background(), id, domain.CardStatusActive)
	require.NoError(t, err)
	assert.Equal(t, domain.CardStatusActive, view.Status)

	_, err = f.svc.UpdateStatus(context.Background(), id, domain.CardStatus("STOLEN"))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.UpdateStatus(context.Background(), 999, domain.CardStatusBlocked)
	assert.ErrorIs(t, err, store.ErrCardNotFound)
}

func TestDeleteCard(t *testing.T) {
	t.Parallel()
	f := newCardFixture(t)
	id := f.db.seed(t, f.codec, f.owner.ID, "1111222233334444", "0", domain.CardStatusActive)

	require.NoError(t, f.svc.DeleteCard(context.Background(), id))
	assert.Equal(t, 0, f.db.count())

	err := f.svc.DeleteCard(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrCardNotFound)
}
