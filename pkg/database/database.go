package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cardscope/models"
	"cardscope/pkg/catalog"
)

// Open connects to Postgres for postgres:// URLs and key=value DSNs, and to
// SQLite (pure Go) for anything else, e.g. a file path or ":memory:".
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	var dialector gorm.Dialector
	if IsPostgres(dsn) {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if !IsPostgres(dsn) {
		// SQLite allows a single writer; serialize instead of failing with SQLITE_BUSY.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func IsPostgres(dsn string) bool {
	d := strings.TrimSpace(dsn)
	return strings.HasPrefix(d, "postgres://") ||
		strings.HasPrefix(d, "postgresql://") ||
		strings.Contains(d, "host=")
}

// Migrate creates the schema. Each model is migrated on its own so that a
// failure on one (typically a permission problem) does not block the others;
// failures are logged and returned joined.
func Migrate(db *gorm.DB, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	// roles first so users can reference them
	steps := []struct {
		table string
		model any
	}{
		{"roles", &models.Role{}},
		{"users", &models.User{}},
		{"refresh_tokens", &models.RefreshToken{}},
		{"card_references", &models.CardReference{}},
		{"cards", &models.Card{}},
		{"scan_metadata", &models.ScanMetadata{}},
	}
	var failed []string
	for _, s := range steps {
		if err := db.AutoMigrate(s.model); err != nil {
			log.Warn("migration warning", "table", s.table, "error", err)
			failed = append(failed, s.table)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("migration failed for %s", strings.Join(failed, ", "))
	}
	return nil
}

// DefaultRoles are the master roles every installation has.
var DefaultRoles = []models.Role{
	{Name: models.RoleAdministrator, Description: "full access"},
	{Name: models.RoleUser, Description: "regular user"},
}

// Seed inserts master roles, the admin account and sample reference data when
// they are missing. It is safe to run on every start.
func Seed(ctx context.Context, db *gorm.DB, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	tx := db.WithContext(ctx)
	for _, r := range DefaultRoles {
		role := r
		if err := tx.Where("name = ?", role.Name).FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", role.Name, err)
		}
	}

	var count int64
	tx.Model(&models.User{}).Where("username = ?", "admin").Count(&count)
	if count == 0 {
		var role models.Role
		if err := tx.Where("name = ?", models.RoleAdministrator).First(&role).Error; err != nil {
			return fmt.Errorf("find administrator role: %w", err)
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		rid := role.ID
		admin := models.User{Username: "admin", HashedPassword: hashed, RoleID: &rid}
		if err := tx.Create(&admin).Error; err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		log.Info("seeded admin user", "username", "admin")
	}

	n, err := catalog.NewReferenceStore(db).Upsert(ctx, catalog.DefaultReferences())
	if err != nil {
		return err
	}
	log.Debug("reference data seeded", "count", n)
	return nil
}
