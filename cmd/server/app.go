package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/bankcards-api/internal/codec"
	"github.com/phrazzld/bankcards-api/internal/config"
	"github.com/phrazzld/bankcards-api/internal/platform/postgres"
	"github.com/phrazzld/bankcards-api/internal/service"
	"github.com/phrazzld/bankcards-api/internal/service/auth"
	"github.com/phrazzld/bankcards-api/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores
	userStore store.UserStore
	cardStore store.CardStore

	// Services
	jwtService      auth.JWTService
	userService     service.UserService
	cardService     service.CardService
	transferService service.TransferService
}

// newApplication wires stores and services on top of an open database handle.
// Nothing here touches the database; bootstrapAdmin does.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	cardCodec, err := codec.New([]byte(cfg.Crypto.CardKey))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize card codec: %w", err)
	}

	app.userStore = postgres.NewPostgresUserStore(db, bcrypt.DefaultCost, logger)
	app.cardStore = postgres.NewPostgresCardStore(db, logger)

	app.userService, err = service.NewUserService(app.userStore, auth.NewBcryptVerifier(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create user service: %w", err)
	}

	cardRepo := service.NewCardRepositoryAdapter(app.cardStore, db)

	app.cardService, err = service.NewCardService(cardRepo, app.userStore, cardCodec, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create card service: %w", err)
	}

	app.transferService, err = service.NewTransferService(cardRepo, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer service: %w", err)
	}

	return app, nil
}

// bootstrapAdmin makes sure the configured administrator account exists.
func (app *application) bootstrapAdmin(ctx context.Context) error {
	admin, err := app.userService.EnsureAdmin(ctx, app.config.Auth.AdminUsername, app.config.Auth.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to bootstrap admin user: %w", err)
	}
	app.logger.Info("admin account ready", "user_id", admin.ID, "username", admin.Username)
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.db != nil {
		closeDB(app.db, app.logger)
	}
	app.logger.Info("application shutdown completed")
}
