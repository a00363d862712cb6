// Package users declares the read/update contract the identity core needs
// from account storage.
package users

import (
	"context"

	"github.com/dmitrijs2005/utask/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// FindByID and FindByEmail return common.ErrorNotFound when absent.
	// Email matching is case-insensitive.
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// Update persists the password hash and verified flag of user.
	Update(ctx context.Context, user *models.User) error
}
