package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/utask/internal/common"
	"github.com/dmitrijs2005/utask/internal/dbx"
	"github.com/dmitrijs2005/utask/internal/logging"
	"github.com/dmitrijs2005/utask/internal/server/auth"
	"github.com/dmitrijs2005/utask/internal/server/metrics"
	"github.com/dmitrijs2005/utask/internal/server/models"
	"github.com/dmitrijs2005/utask/internal/server/ratelimit"
	"github.com/dmitrijs2005/utask/internal/server/repositories/repomanager"
	"github.com/jonboulle/clockwork"
)

// Session is an access/refresh pair with both expiry instants.
type Session struct {
	UserID           int64
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// SessionIssuer handles sign-in, refresh token rotation and sign-out.
type SessionIssuer struct {
	db      dbx.DBTX
	rm      repomanager.RepositoryManager
	codec   *auth.Codec
	refresh *RefreshTokenStore
	hasher  PasswordHasher
	limiter ratelimit.Limiter
	clock   clockwork.Clock
	timeout time.Duration
	logger  logging.Logger
	metrics *metrics.Metrics
}

type SessionIssuerDeps struct {
	DB           dbx.DBTX
	Repositories repomanager.RepositoryManager
	Codec        *auth.Codec
	Refresh      *RefreshTokenStore
	Hasher       PasswordHasher
	Limiter      ratelimit.Limiter
	Clock        clockwork.Clock
	StoreTimeout time.Duration
	Logger       logging.Logger
	Metrics      *metrics.Metrics
}

func NewSessionIssuer(d SessionIssuerDeps) *SessionIssuer {
	limiter := d.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	logger := d.Logger
	if logger == nil {
		logger = logging.Nop{}
	}

	return &SessionIssuer{
		db:      d.DB,
		rm:      d.Repositories,
		codec:   d.Codec,
		refresh: d.Refresh,
		hasher:  d.Hasher,
		limiter: limiter,
		clock:   d.Clock,
		timeout: d.StoreTimeout,
		logger:  logger.With("module", "sessions"),
		metrics: d.Metrics,
	}
}

// Login checks email and password and issues a new session.
func (s *SessionIssuer) Login(ctx context.Context, email, password string) (*Session, error) {
	now := s.clock.Now()

	allowed, retryAfter, err := s.limiter.Allow(ctx, strings.ToLower(email), now)
	if err != nil {
		s.logger.Warn(ctx, "login limiter unavailable", "error", err)
	} else if !allowed {
		s.logger.Info(ctx, "login throttled", "email", email, "retry_after", retryAfter.String())
		return nil, common.ErrTooManyAttempts
	}

	user, err := findUserByEmail(ctx, s.rm.Users(s.db), email, s.timeout)
	if err != nil {
		return nil, err
	}

	if !s.hasher.Matches(password, user.PasswordHash) {
		return nil, common.ErrBadCredentials
	}

	session, err := s.issue(ctx, user, now)
	if err != nil {
		return nil, err
	}

	s.metrics.SessionIssued("login")
	s.logger.Info(ctx, "signed in", "user_id", user.ID)
	return session, nil
}

// Refresh rotates the presented refresh token. The old value can succeed
// at most once; concurrent or later presentations fail with
// common.ErrInvalidRefreshToken.
//
// If the replacement cannot be stored after the old token was consumed the
// caller gets common.ErrReauthenticationRequired: the session is gone and
// the user has to sign in again.
func (s *SessionIssuer) Refresh(ctx context.Context, value string) (*Session, error) {
	now := s.clock.Now()

	token, ok, err := s.refresh.FindByValue(ctx, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.metrics.RefreshRejectedFor("unknown")
		return nil, common.ErrInvalidRefreshToken
	}

	if _, err := s.refresh.Verify(ctx, token, now); err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			s.metrics.RefreshRejectedFor("expired")
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidRefreshToken, err)
		}
		return nil, err
	}

	consumed, err := s.refresh.Consume(ctx, value)
	if err != nil {
		return nil, err
	}
	if !consumed {
		s.metrics.RefreshRejectedFor("reused")
		s.logger.Warn(ctx, "refresh token already consumed", "user_id", token.UserID)
		return nil, common.ErrInvalidRefreshToken
	}

	user, err := findUserByID(ctx, s.rm.Users(s.db), token.UserID, s.timeout)
	if err == nil {
		var session *Session
		if session, err = s.issue(ctx, user, now); err == nil {
			s.metrics.SessionIssued("refresh")
			return session, nil
		}
	}

	s.metrics.RefreshRejectedFor("rotation_failed")
	s.logger.Warn(ctx, "refresh token consumed but not replaced, sign-in required",
		"user_id", token.UserID, "error", err)
	return nil, fmt.Errorf("%w: %w", common.ErrReauthenticationRequired, err)
}

// Logout deletes the refresh token. Unknown values are ignored.
func (s *SessionIssuer) Logout(ctx context.Context, value string) error {
	return s.refresh.Delete(ctx, value)
}

// Authenticate validates an access token and returns its claims.
func (s *SessionIssuer) Authenticate(accessToken string) (*auth.Claims, error) {
	return s.codec.Validate(accessToken)
}

func (s *SessionIssuer) issue(ctx context.Context, user *models.User, now time.Time) (*Session, error) {
	access, accessExp, err := s.codec.Mint(strconv.FormatInt(user.ID, 10), user.RoleID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: sign access token: %v", common.ErrorInternal, err)
	}

	refresh, err := s.refresh.CreateFor(ctx, user, now)
	if err != nil {
		return nil, err
	}

	return &Session{
		UserID:           user.ID,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}
