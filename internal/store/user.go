package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/bankcards-api/internal/domain"
)

// UserStore defines the interface for user data persistence.
type UserStore interface {
	// Create saves a new user and assigns its ID.
	// It validates the user and hashes the plaintext password internally.
	// Returns ErrUsernameExists if the username is already taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByUsername retrieves a user by username.
	// Returns ErrUserNotFound if the user does not exist.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// List returns a page of users ordered by id ascending.
	List(ctx context.Context, page PageRequest) (*Page[*domain.User], error)

	// Update saves the username, role and password of an existing user.
	// A non-empty plaintext Password is hashed and replaces the stored hash.
	// Returns ErrUserNotFound if the user does not exist and ErrUsernameExists
	// if the new username is taken.
	Update(ctx context.Context, user *domain.User) error

	// Delete removes a user and, through the schema's cascade, all of their cards.
	// Returns ErrUserNotFound if the user does not exist.
	Delete(ctx context.Context, id int64) error

	// WithTx returns a UserStore that runs its queries on tx.
	WithTx(tx *sql.Tx) UserStore
}
