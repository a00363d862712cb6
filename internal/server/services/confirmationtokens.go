package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/utask/internal/dbx"
	"github.com/dmitrijs2005/utask/internal/server/metrics"
	"github.com/dmitrijs2005/utask/internal/server/models"
	"github.com/dmitrijs2005/utask/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// ConfirmationTokenStore owns the single-use tokens behind signup
// confirmation and password reset. Expiry is derived from CreatedAt and the
// validity window; nothing else is stored.
type ConfirmationTokenStore struct {
	db      dbx.DBTX
	rm      repomanager.RepositoryManager
	window  time.Duration
	timeout time.Duration
	metrics *metrics.Metrics
}

func NewConfirmationTokenStore(db dbx.DBTX, rm repomanager.RepositoryManager, window, timeout time.Duration, m *metrics.Metrics) *ConfirmationTokenStore {
	return &ConfirmationTokenStore{db: db, rm: rm, window: window, timeout: timeout, metrics: m}
}

// Tx returns a copy of the store bound to tx.
func (s *ConfirmationTokenStore) Tx(tx dbx.DBTX) *ConfirmationTokenStore {
	c := *s
	c.db = tx
	return &c
}

// Window is the configured validity window.
func (s *ConfirmationTokenStore) Window() time.Duration { return s.window }

// IssueFor persists a fresh token for user. A token the user already holds
// must be deleted by the caller first.
func (s *ConfirmationTokenStore) IssueFor(ctx context.Context, user *models.User, purpose models.Purpose, now time.Time) (*models.ConfirmationToken, error) {
	token := &models.ConfirmationToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		Purpose:   purpose,
		CreatedAt: now,
	}

	ctx, cancel := dbx.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.rm.ConfirmationTokens(s.db).Create(ctx, token); err != nil {
		return nil, transient(err)
	}

	s.metrics.ConfirmationIssued(string(purpose))
	return token, nil
}

func (s *ConfirmationTokenStore) FindByValue(ctx context.Context, value string) (*models.ConfirmationToken, bool, error) {
	ctx, cancel := dbx.WithTimeout(ctx, s.timeout)
	defer cancel()

	return found(s.rm.ConfirmationTokens(s.db).FindByValue(ctx, value))
}

func (s *ConfirmationTokenStore) FindForUser(ctx context.Context, userID int64) (*models.ConfirmationToken, bool, error) {
	ctx, cancel := dbx.WithTimeout(ctx, s.timeout)
	defer cancel()

	return found(s.rm.ConfirmationTokens(s.db).FindByUser(ctx, userID))
}

// DeleteByID removes the token and reports whether this call was the one
// that removed it. Consuming a token means getting true here.
func (s *ConfirmationTokenStore) DeleteByID(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := dbx.WithTimeout(ctx, s.timeout)
	defer cancel()

	ok, err := s.rm.ConfirmationTokens(s.db).DeleteByID(ctx, id)
	if err != nil {
		return false, transient(err)
	}
	return ok, nil
}

func (s *ConfirmationTokenStore) DeleteForUser(ctx context.Context, userID int64) error {
	ctx, cancel := dbx.WithTimeout(ctx, s.timeout)
	defer cancel()

	return transient(s.rm.ConfirmationTokens(s.db).DeleteByUser(ctx, userID))
}

// IsExpired reports now >= CreatedAt + window. A token exactly window old is
// expired.
func (s *ConfirmationTokenStore) IsExpired(token *models.ConfirmationToken, now time.Time) bool {
	return !now.Before(token.CreatedAt.Add(s.window))
}

// DeleteExpired removes every token that IsExpired at now.
func (s *ConfirmationTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := dbx.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.rm.ConfirmationTokens(s.db).DeleteCreatedBefore(ctx, now.Add(-s.window))
	if err != nil {
		return 0, transient(err)
	}
	return n, nil
}

func found(t *models.ConfirmationToken, err error) (*models.ConfirmationToken, bool, error) {
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, transient(err)
	}
	return t, true, nil
}
