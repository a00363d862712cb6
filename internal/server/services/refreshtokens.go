package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/utask/internal/common"
	"github.com/dmitrijs2005/utask/internal/dbx"
	"github.com/dmitrijs2005/utask/internal/server/models"
	"github.com/dmitrijs2005/utask/internal/server/repositories/repomanager"
)

// RefreshTokenStore owns refresh token issuance, expiry and deletion. Every
// mutating call writes through to the database before returning.
type RefreshTokenStore struct {
	db       dbx.DBTX
	rm       repomanager.RepositoryManager
	validity time.Duration
	timeout  time.Duration
}

func NewRefreshTokenStore(db dbx.DBTX, rm repomanager.RepositoryManager, validity, timeout time.Duration) *RefreshTokenStore {
	return &RefreshTokenStore{db: db, rm: rm, validity: validity, timeout: timeout}
}

// Create issues a token for userID. It fails with common.ErrNoSuchUser when
// the user cannot be resolved.
func (s *RefreshTokenStore) Create(ctx context.Context, userID int64, now time.Time) (*models.RefreshToken, error) {
	user, err := findUserByID(ctx, s.rm.Users(s.db), userID, s.timeout)
	if err != nil {
		return nil, err
	}
	return s.CreateFor(ctx, user, now)
}

// CreateFor issues a token for an already resolved user.
func (s *RefreshTokenStore) CreateFor(ctx context.Context, user *models.User, now time.Time) (*models.RefreshToken, error) {
	value, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, err
	}

	token := &models.RefreshToken{
		UserID:    user.ID,
		Token:     value,
		ExpiresAt: now.Add(s.validity),
		CreatedAt: now,
	}

	ctx, cancel := dbx.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.rm.RefreshTokens(s.db).Create(ctx, token); err != nil {
		return nil, transient(err)
	}
	return token, nil
}

func (s *RefreshTokenStore) FindByValue(ctx context.Context, value string) (*models.RefreshToken, bool, error) {
	ctx, cancel := dbx.WithTimeout(ctx, s.timeout)
	defer cancel()

	token, err := s.rm.RefreshTokens(s.db).Find(ctx, value)
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, transient(err)
	}
	return token, true, nil
}

// Verify returns token unchanged while it is valid at now. An expired token
// is deleted on the spot and common.ErrTokenExpired is returned, so a
// replayed stale value cannot be presented twice.
func (s *RefreshTokenStore) Verify(ctx context.Context, token *models.RefreshToken, now time.Time) (*models.RefreshToken, error) {
	if !token.Expired(now) {
		return token, nil
	}
	if err := s.Delete(ctx, token.Token); err != nil {
		return nil, err
	}
	return nil, common.ErrTokenExpired
}

// Consume atomically deletes the token row. Only the caller that actually
// removed the row gets true; concurrent callers presenting the same value
// get false.
func (s *RefreshTokenStore) Consume(ctx context.Context, value string) (bool, error) {
	ctx, cancel := dbx.WithTimeout(ctx, s.timeout)
	defer cancel()

	ok, err := s.rm.RefreshTokens(s.db).Delete(ctx, value)
	if err != nil {
		return false, transient(err)
	}
	return ok, nil
}

// Delete removes the token if present.
func (s *RefreshTokenStore) Delete(ctx context.Context, value string) error {
	_, err := s.Consume(ctx, value)
	return err
}

func (s *RefreshTokenStore) DeleteExpiredBefore(ctx context.Context, t time.Time) (int64, error) {
	ctx, cancel := dbx.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.rm.RefreshTokens(s.db).DeleteExpiredBefore(ctx, t)
	if err != nil {
		return 0, transient(err)
	}
	return n, nil
}
