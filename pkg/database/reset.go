package database

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"
)

// AppTables are the tables Reset empties by default, children first.
var AppTables = []string{"scan_metadata", "cards", "card_references", "refresh_tokens", "users", "roles"}

var tableNameRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ResetPlan filters tables down to valid names that exist.
func ResetPlan(db *gorm.DB, tables []string) ([]string, error) {
	var out []string
	for _, t := range tables {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !tableNameRE.MatchString(t) {
			return nil, fmt.Errorf("invalid table name %q", t)
		}
		if db.Migrator().HasTable(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Reset deletes every row of the given tables. Names must come from ResetPlan.
func Reset(ctx context.Context, db *gorm.DB, tables []string) error {
	if len(tables) == 0 {
		return nil
	}
	tx := db.WithContext(ctx)
	if db.Dialector.Name() == "postgres" {
		quoted := make([]string, 0, len(tables))
		for _, t := range tables {
			quoted = append(quoted, fmt.Sprintf("%q", t))
		}
		stmt := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(quoted, ", "))
		if err := tx.Exec(stmt).Error; err != nil {
			return fmt.Errorf("truncate: %w", err)
		}
		return nil
	}
	for _, t := range tables {
		if err := tx.Exec(fmt.Sprintf("DELETE FROM %q", t)).Error; err != nil {
			return fmt.Errorf("clear %s: %w", t, err)
		}
	}
	return nil
}
