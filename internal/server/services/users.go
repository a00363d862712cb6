package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/utask/internal/common"
	"github.com/dmitrijs2005/utask/internal/dbx"
	"github.com/dmitrijs2005/utask/internal/server/models"
	"github.com/dmitrijs2005/utask/internal/server/repositories/users"
)

// PasswordHasher is the opaque one-way comparator for stored passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Matches(password, encoded string) bool
}

func findUserByID(ctx context.Context, repo users.Repository, id int64, timeout time.Duration) (*models.User, error) {
	ctx, cancel := dbx.WithTimeout(ctx, timeout)
	defer cancel()

	user, err := repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrNoSuchUser
		}
		return nil, transient(err)
	}
	return user, nil
}

// findUserByEmail resolves a user the way sign-in and password reset need:
// unknown emails fail with ErrNoSuchEmail, unconfirmed accounts with
// ErrUserUnverified.
func findUserByEmail(ctx context.Context, repo users.Repository, email string, timeout time.Duration) (*models.User, error) {
	ctx, cancel := dbx.WithTimeout(ctx, timeout)
	defer cancel()

	user, err := repo.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrNoSuchEmail
		}
		return nil, transient(err)
	}
	if !user.Verified {
		return nil, common.ErrUserUnverified
	}
	return user, nil
}

func updateUser(ctx context.Context, repo users.Repository, user *models.User, timeout time.Duration) error {
	ctx, cancel := dbx.WithTimeout(ctx, timeout)
	defer cancel()

	if err := repo.Update(ctx, user); err != nil {
		if isNotFound(err) {
			return common.ErrNoSuchUser
		}
		return transient(err)
	}
	return nil
}
