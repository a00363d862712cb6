// Package refreshtokens declares the repository contract for refresh tokens.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/utask/internal/server/models"
)

// Repository stores opaque refresh tokens. Rows are never updated; rotation
// is a delete followed by an insert.
type Repository interface {
	// Create inserts token and fills its ID.
	Create(ctx context.Context, token *models.RefreshToken) error

	// Find returns common.ErrorNotFound when the value is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes the row with the given value and reports whether a row
	// was actually removed. Of two concurrent callers at most one sees true.
	Delete(ctx context.Context, token string) (bool, error)

	// DeleteExpiredBefore removes every token whose expiry is before t.
	DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error)
}
