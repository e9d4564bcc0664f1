package main

import (
	"context"

	"cardscope/models"
	"cardscope/pkg/accounts"
)

var errUserExists = accounts.ErrUserExists

// RegisterUser creates a regular user with a bcrypt-hashed password.
func RegisterUser(ctx context.Context, username, password string) error {
	_, err := accounts.Create(ctx, db, username, password, models.RoleUser)
	return err
}

func Authenticate(ctx context.Context, username, password string) (models.User, error) {
	return accounts.Authenticate(ctx, db, username, password)
}
