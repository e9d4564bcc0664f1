package main

import (
	"context"
	"log/slog"
	"os"

	"gorm.io/gorm"

	"cardscope/pkg/config"
	"cardscope/pkg/database"
)

var db *gorm.DB

// initDB connects, optionally migrates, and seeds roles, the admin account
// and reference cards. Migration problems are logged and do not stop start-up.
func initDB(ctx context.Context, cfg *config.Config, migrate bool) error {
	conn, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	db = conn
	if migrate {
		if err := database.Migrate(db, slog.Default()); err != nil {
			slog.Warn("schema migration incomplete", "error", err)
		}
	}
	if err := database.Seed(ctx, db, slog.Default()); err != nil {
		return err
	}
	ensureUploadBase(cfg.Storage.UploadBase)
	return nil
}

// ensureUploadBase creates the base uploads directory.
func ensureUploadBase(base string) {
	if base == "" {
		return
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		slog.Warn("failed to create upload base dir", "dir", base, "error", err)
	}
}
