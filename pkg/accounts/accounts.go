// Package accounts creates and authenticates users.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"cardscope/models"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const MinPasswordLength = 6

// Create stores a new user with a bcrypt-hashed password and the named role,
// creating the role when it is missing.
func Create(ctx context.Context, db *gorm.DB, username, password, roleName string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username required")
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("password too short (min %d)", MinPasswordLength)
	}
	if roleName == "" {
		roleName = models.RoleUser
	}
	tx := db.WithContext(ctx)
	var existing models.User
	if err := tx.Where("username = ?", username).First(&existing).Error; err == nil {
		return nil, ErrUserExists
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	role := models.Role{Name: roleName, Description: roleDescription(roleName)}
	if err := tx.Where("name = ?", role.Name).FirstOrCreate(&role).Error; err != nil {
		return nil, fmt.Errorf("failed to ensure %s role: %w", roleName, err)
	}
	rid := role.ID
	user := models.User{Username: username, HashedPassword: hashed, RoleID: &rid}
	if err := tx.Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) { // lost a race with a concurrent register
			return nil, ErrUserExists
		}
		return nil, err
	}
	user.Role = role
	return &user, nil
}

// Authenticate returns the user, with its role loaded, when the password
// matches. Unknown users and wrong passwords are indistinguishable.
func Authenticate(ctx context.Context, db *gorm.DB, username, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	var user models.User
	if err := db.WithContext(ctx).Preload("Role").Where("username = ?", username).First(&user).Error; err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(user.HashedPassword, []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Lookup finds a user by name.
func Lookup(ctx context.Context, db *gorm.DB, username string) (*models.User, error) {
	var user models.User
	if err := db.WithContext(ctx).Preload("Role").Where("username = ?", strings.TrimSpace(username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %q not found", username)
		}
		return nil, err
	}
	return &user, nil
}

func roleDescription(name string) string {
	switch name {
	case models.RoleAdministrator:
		return "full access"
	case models.RoleUser:
		return "regular user"
	}
	return ""
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint") || strings.Contains(s, "already exists")
}

// SetPassword replaces the password of an existing user.
func SetPassword(ctx context.Context, db *gorm.DB, username, password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password too short (min %d)", MinPasswordLength)
	}
	user, err := Lookup(ctx, db, username)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Model(user).Update("hashed_password", hash).Error
}
