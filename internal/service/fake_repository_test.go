package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/bankcards-api/internal/codec"
	"github.com/phrazzld/bankcards-api/internal/domain"
	"github.com/phrazzld/bankcards-api/internal/store"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

var errInjected = errors.New("injected storage failure")

// fakeCardDB is an in-memory card table with row locks held until commit.
// Writes made inside a transaction are buffered and applied on commit only.
type fakeCardDB struct {
	mu     sync.Mutex
	cards  map[int64]domain.Card
	locks  map[int64]*sync.Mutex
	nextID int64

	// failUpdateOn makes the n-th transactional Update (1-based) fail.
	failUpdateOn int
	updateCalls  int
	failList     bool
}

func newFakeCardDB() *fakeCardDB {
	return &fakeCardDB{
		cards:  make(map[int64]domain.Card),
		locks:  make(map[int64]*sync.Mutex),
		nextID: 1,
	}
}

func (db *fakeCardDB) rowLock(id int64) *sync.Mutex {
	db.mu.Lock()
	defer db.mu.Unlock()
	l, ok := db.locks[id]
	if !ok {
		l = &sync.Mutex{}
		db.locks[id] = l
	}
	return l
}

func (db *fakeCardDB) get(id int64) (*domain.Card, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	c, ok := db.cards[id]
	if !ok {
		return nil, false
	}
	return &c, true
}

func (db *fakeCardDB) put(card domain.Card) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.cards[card.ID] = card
}

func (db *fakeCardDB) balance(id int64) decimal.Decimal {
	c, ok := db.get(id)
	if !ok {
		return decimal.Zero
	}
	return c.Balance
}

func (db *fakeCardDB) count() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.cards)
}

// seed inserts a card directly, bypassing the service.
func (db *fakeCardDB) seed(t *testing.T, c *codec.Codec, userID int64, number string, balance string, status domain.CardStatus) int64 {
	t.Helper()
	enc, err := c.Encrypt(number)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	id := db.nextID
	db.nextID++
	db.cards[id] = domain.Card{
		ID:              id,
		EncryptedNumber: enc,
		Owner:           "Test Owner",
		ExpirationDate:  time.Date(2030, 12, 31, 0, 0, 0, 0, time.UTC),
		Status:          status,
		Balance:         decimal.RequireFromString(balance),
		UserID:          userID,
	}
	return id
}

// fakeCardRepo implements CardRepository on top of fakeCardDB.
type fakeCardRepo struct {
	db *fakeCardDB
	tx *fakeTx
}

type fakeTx struct {
	held    []*sync.Mutex
	heldIDs map[int64]bool
	pending map[int64]domain.Card
}

func newFakeCardRepo(db *fakeCardDB) *fakeCardRepo {
	return &fakeCardRepo{db: db}
}

func (r *fakeCardRepo) RunInTx(ctx context.Context, fn func(ctx context.Context, repo CardRepository) error) error {
	if r.tx != nil {
		return fn(ctx, r)
	}

	tx := &fakeTx{heldIDs: make(map[int64]bool), pending: make(map[int64]domain.Card)}
	defer func() {
		for i := len(tx.held) - 1; i >= 0; i-- {
			tx.held[i].Unlock()
		}
	}()

	if err := fn(ctx, &fakeCardRepo{db: r.db, tx: tx}); err != nil {
		return err
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for id, c := range tx.pending {
		r.db.cards[id] = c
	}
	return nil
}

func (r *fakeCardRepo) read(id int64) (*domain.Card, bool) {
	if r.tx != nil {
		if c, ok := r.tx.pending[id]; ok {
			return &c, true
		}
	}
	return r.db.get(id)
}

func (r *fakeCardRepo) Create(_ context.Context, card *domain.Card) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.cards {
		if c.EncryptedNumber == card.EncryptedNumber {
			return store.ErrCardNumberExists
		}
	}
	card.ID = r.db.nextID
	r.db.nextID++
	r.db.cards[card.ID] = *card
	return nil
}

func (r *fakeCardRepo) GetByID(_ context.Context, id int64) (*domain.Card, error) {
	c, ok := r.read(id)
	if !ok {
		return nil, store.ErrCardNotFound
	}
	return c, nil
}

func (r *fakeCardRepo) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Card, error) {
	if r.tx == nil {
		return nil, errors.New("GetByIDForUpdate outside a transaction")
	}
	if !r.tx.heldIDs[id] {
		l := r.db.rowLock(id)
		l.Lock()
		r.tx.held = append(r.tx.held, l)
		r.tx.heldIDs[id] = true
	}
	return r.GetByID(ctx, id)
}

func (r *fakeCardRepo) GetByIDAndUserID(ctx context.Context, id, userID int64) (*domain.Card, error) {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, store.ErrCardNotFound
	}
	return c, nil
}

func (r *fakeCardRepo) filter(match func(domain.Card) bool, page store.PageRequest) (*store.Page[*domain.Card], error) {
	if r.db.failList {
		return nil, errInjected
	}
	page = page.Normalize()
	r.db.mu.Lock()
	var all []domain.Card
	for _, c := range r.db.cards {
		if match(c) {
			all = append(all, c)
		}
	}
	r.db.mu.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	items := make([]*domain.Card, 0, page.Size)
	for i := page.Offset(); i < len(all) && len(items) < page.Size; i++ {
		c := all[i]
		items = append(items, &c)
	}
	return &store.Page[*domain.Card]{Items: items, Total: int64(len(all)), PageRequest: page}, nil
}

func (r *fakeCardRepo) ListByUserID(_ context.Context, userID int64, page store.PageRequest) (*store.Page[*domain.Card], error) {
	return r.filter(func(c domain.Card) bool { return c.UserID == userID }, page)
}

func (r *fakeCardRepo) ListByStatus(_ context.Context, status domain.CardStatus, page store.PageRequest) (*store.Page[*domain.Card], error) {
	return r.filter(func(c domain.Card) bool { return c.Status == status }, page)
}

func (r *fakeCardRepo) List(_ context.Context, page store.PageRequest) (*store.Page[*domain.Card], error) {
	return r.filter(func(domain.Card) bool { return true }, page)
}

func (r *fakeCardRepo) SumBalanceByUserID(_ context.Context, userID int64) (decimal.Decimal, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	total := decimal.Zero
	for _, c := range r.db.cards {
		if c.UserID == userID {
			total = total.Add(c.Balance)
		}
	}
	return total, nil
}

func (r *fakeCardRepo) ExistsByEncryptedNumber(_ context.Context, encryptedNumber string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, c := range r.db.cards {
		if c.EncryptedNumber == encryptedNumber {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeCardRepo) Update(_ context.Context, card *domain.Card) error {
	if _, ok := r.read(card.ID); !ok {
		return store.ErrCardNotFound
	}
	if r.tx == nil {
		r.db.put(*card)
		return nil
	}

	r.db.mu.Lock()
	r.db.updateCalls++
	fail := r.db.failUpdateOn > 0 && r.db.updateCalls == r.db.failUpdateOn
	r.db.mu.Unlock()
	if fail {
		return errInjected
	}

	r.tx.pending[card.ID] = *card
	return nil
}

func (r *fakeCardRepo) Delete(_ context.Context, id int64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.cards[id]; !ok {
		return store.ErrCardNotFound
	}
	delete(r.db.cards, id)
	return nil
}

// fakeUserStore implements store.UserStore in memory.
type fakeUserStore struct {
	mu      sync.Mutex
	users   map[int64]domain.User
	nextID  int64
	failGet bool
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[int64]domain.User), nextID: 1}
}

func (s *fakeUserStore) Create(_ context.Context, user *domain.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, user.Username) {
			return store.ErrUsernameExists
		}
	}
	if user.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.MinCost)
		if err != nil {
			return err
		}
		user.HashedPassword = string(hash)
		user.Password = ""
	}
	user.ID = s.nextID
	s.nextID++
	s.users[user.ID] = *user
	return nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return nil, errInjected
	}
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return &u, nil
}

func (s *fakeUserStore) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return nil, errInjected
	}
	for _, u := range s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (s *fakeUserStore) List(_ context.Context, page store.PageRequest) (*store.Page[*domain.User], error) {
	page = page.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []domain.User
	for _, u := range s.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	items := make([]*domain.User, 0, page.Size)
	for i := page.Offset(); i < len(all) && len(items) < page.Size; i++ {
		u := all[i]
		items = append(items, &u)
	}
	return &store.Page[*domain.User]{Items: items, Total: int64(len(all)), PageRequest: page}, nil
}

func (s *fakeUserStore) Update(_ context.Context, user *domain.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return store.ErrUserNotFound
	}
	for id, u := range s.users {
		if id != user.ID && strings.EqualFold(u.Username, user.Username) {
			return store.ErrUsernameExists
		}
	}
	if user.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.MinCost)
		if err != nil {
			return err
		}
		user.HashedPassword = string(hash)
		user.Password = ""
	}
	s.users[user.ID] = *user
	return nil
}

func (s *fakeUserStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return store.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *fakeUserStore) WithTx(_ *sql.Tx) store.UserStore {
	return s
}

func (s *fakeUserStore) seed(t *testing.T, username string, role domain.Role) *domain.User {
	t.Helper()
	u, err := domain.NewUser(username, "password123", role)
	if err != nil {
		t.Fatalf("new user: %v", err)
	}
	if err := s.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func newTestCodec(t *testing.T) *codec.Codec {
	t.Helper()
	c, err := codec.New([]byte("0123456789abcdef"))
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	return c
}
