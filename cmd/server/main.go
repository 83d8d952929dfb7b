// Package main runs the bank-cards API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/phrazzld/bankcards-api/internal/config"
	"github.com/phrazzld/bankcards-api/internal/platform/logger"
	"github.com/phrazzld/bankcards-api/internal/platform/postgres/migrations"
	"github.com/phrazzld/bankcards-api/internal/redact"
)

func main() {
	migrateCmd := flag.String("migrate", "",
		"run a migration command ("+strings.Join(migrations.Commands, ", ")+") and exit")
	configFile := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	if err := run(*configFile, *migrateCmd); err != nil {
		slog.Error("server exited with error", "error", redact.Error(err))
		os.Exit(1)
	}
}

// run loads configuration, connects to the database and then either executes
// a single migration command or serves HTTP until SIGINT or SIGTERM.
func run(configFile, migrateCmd string) error {
	if err := validateMigrateCommand(migrateCmd); err != nil {
		return err
	}

	cfg, err := config.LoadWithOptions(config.LoadOptions{ConfigFile: configFile, EnvFile: ".env"})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	log.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"auto_migrate", cfg.Database.AutoMigrate)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := setupAppDatabase(ctx, cfg.Database, log)
	if err != nil {
		return err
	}

	if migrateCmd != "" {
		defer closeDB(db, log)
		return migrations.Run(ctx, db, migrateCmd, log)
	}

	if cfg.Database.AutoMigrate {
		if err := migrations.Run(ctx, db, "up", log); err != nil {
			closeDB(db, log)
			return err
		}
	}

	app, err := newApplication(cfg, log, db)
	if err != nil {
		closeDB(db, log)
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.cleanup()

	if err := app.bootstrapAdmin(ctx); err != nil {
		return err
	}

	return app.startHTTPServer(ctx, app.setupRouter())
}

func validateMigrateCommand(command string) error {
	if command == "" || slices.Contains(migrations.Commands, command) {
		return nil
	}
	return fmt.Errorf("unsupported migration command %q, expected one of: %s",
		command, strings.Join(migrations.Commands, ", "))
}
