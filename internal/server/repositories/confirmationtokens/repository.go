// Package confirmationtokens declares the repository contract for the
// single-use tokens used by signup confirmation and password reset.
package confirmationtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/utask/internal/server/models"
)

// Repository keeps at most one token per user. Lookups return
// common.ErrorNotFound on a miss; deletes of absent rows are not errors.
type Repository interface {
	Create(ctx context.Context, token *models.ConfirmationToken) error
	FindByValue(ctx context.Context, value string) (*models.ConfirmationToken, error)
	FindByUser(ctx context.Context, userID int64) (*models.ConfirmationToken, error)

	// DeleteByID reports whether this call removed the row. Concurrent
	// consumers of the same token see true exactly once.
	DeleteByID(ctx context.Context, id int64) (bool, error)
	DeleteByUser(ctx context.Context, userID int64) error

	// DeleteCreatedBefore removes tokens created at or before t.
	DeleteCreatedBefore(ctx context.Context, t time.Time) (int64, error)
}
