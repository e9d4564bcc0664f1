package models

import "time"

// Role names seeded on every installation.
const (
	RoleAdministrator = "administrator"
	RoleUser          = "user"
)

// Role gates what a user may see: administrators list every collection.
type Role struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Name        string `gorm:"size:32;uniqueIndex;not null"`
	Description string `gorm:"size:255"`
}
