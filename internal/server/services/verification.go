package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/utask/internal/common"
	"github.com/dmitrijs2005/utask/internal/dbx"
	"github.com/dmitrijs2005/utask/internal/logging"
	"github.com/dmitrijs2005/utask/internal/server/models"
	"github.com/dmitrijs2005/utask/internal/server/notify"
	"github.com/dmitrijs2005/utask/internal/server/repositories/repomanager"
	"github.com/jonboulle/clockwork"
)

// DefaultRoleID is assigned to self-registered accounts.
const DefaultRoleID int64 = 1

// VerificationWorkflow runs signup confirmation and password reset on top of
// the ConfirmationTokenStore. Token state changes are committed before any
// notification is dispatched; a failed dispatch never rolls them back.
type VerificationWorkflow struct {
	db       *sql.DB
	rm       repomanager.RepositoryManager
	tokens   *ConfirmationTokenStore
	hasher   PasswordHasher
	notifier notify.Notifier
	clock    clockwork.Clock
	cooldown time.Duration
	timeout  time.Duration
	logger   logging.Logger
}

type VerificationWorkflowDeps struct {
	DB             *sql.DB
	Repositories   repomanager.RepositoryManager
	Tokens         *ConfirmationTokenStore
	Hasher         PasswordHasher
	Notifier       notify.Notifier
	Clock          clockwork.Clock
	ResendCooldown time.Duration
	StoreTimeout   time.Duration
	Logger         logging.Logger
}

func NewVerificationWorkflow(d VerificationWorkflowDeps) *VerificationWorkflow {
	logger := d.Logger
	if logger == nil {
		logger = logging.Nop{}
	}

	return &VerificationWorkflow{
		db:       d.DB,
		rm:       d.Repositories,
		tokens:   d.Tokens,
		hasher:   d.Hasher,
		notifier: d.Notifier,
		clock:    d.Clock,
		cooldown: d.ResendCooldown,
		timeout:  d.StoreTimeout,
		logger:   logger.With("module", "verification"),
	}
}

// Register creates an unverified account and sends its signup confirmation.
func (w *VerificationWorkflow) Register(ctx context.Context, email, password, firstName, lastName string) (*models.User, error) {
	now := w.clock.Now()

	if err := w.ensureEmailFree(ctx, email); err != nil {
		return nil, err
	}

	hash, err := w.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
		RoleID:       DefaultRoleID,
	}

	var token *models.ConfirmationToken
	err = dbx.WithTx(ctx, w.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		tctx, cancel := dbx.WithTimeout(ctx, w.timeout)
		defer cancel()

		if _, err := w.rm.Users(tx).Create(tctx, user); err != nil {
			if errors.Is(err, common.ErrEmailInUse) {
				return err
			}
			return transient(err)
		}

		var err error
		token, err = w.tokens.Tx(tx).IssueFor(ctx, user, models.PurposeSignup, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info(ctx, "user registered", "user_id", user.ID)
	w.dispatchConfirmation(ctx, user, token)
	return user, nil
}

// RequestSignupConfirmation issues a signup token for user and sends it.
func (w *VerificationWorkflow) RequestSignupConfirmation(ctx context.Context, user *models.User) (*models.ConfirmationToken, error) {
	token, err := w.tokens.IssueFor(ctx, user, models.PurposeSignup, w.clock.Now())
	if err != nil {
		return nil, err
	}
	w.dispatchConfirmation(ctx, user, token)
	return token, nil
}

// ResendSignupConfirmation replaces the user's signup token unless the
// current one is younger than the cool-down.
func (w *VerificationWorkflow) ResendSignupConfirmation(ctx context.Context, userID int64) error {
	now := w.clock.Now()

	user, err := findUserByID(ctx, w.rm.Users(w.db), userID, w.timeout)
	if err != nil {
		return err
	}
	if user.Verified {
		return common.ErrAlreadyVerified
	}

	current, ok, err := w.tokens.FindForUser(ctx, user.ID)
	if err != nil {
		return err
	}
	if ok && current.CreatedAt.After(now.Add(-w.cooldown)) {
		return common.ErrTooSoon
	}

	var token *models.ConfirmationToken
	err = dbx.WithTx(ctx, w.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		store := w.tokens.Tx(tx)
		if err := store.DeleteForUser(ctx, user.ID); err != nil {
			return err
		}
		var err error
		token, err = store.IssueFor(ctx, user, models.PurposeSignup, now)
		return err
	})
	if err != nil {
		return err
	}

	w.dispatchConfirmation(ctx, user, token)
	return nil
}

// ConfirmEmail consumes a signup token and marks its owner verified.
func (w *VerificationWorkflow) ConfirmEmail(ctx context.Context, value string) error {
	token, err := w.consumable(ctx, value, models.PurposeSignup)
	if err != nil {
		return err
	}

	user, err := w.commit(ctx, token, func(u *models.User) { u.Verified = true })
	if err != nil {
		return err
	}

	w.logger.Info(ctx, "email confirmed", "user_id", user.ID)
	return nil
}

// RequestPasswordReset supersedes any token the user holds with a reset
// token and marks the account unverified until the reset completes.
func (w *VerificationWorkflow) RequestPasswordReset(ctx context.Context, email string) error {
	now := w.clock.Now()

	user, err := findUserByEmail(ctx, w.rm.Users(w.db), email, w.timeout)
	if err != nil {
		return err
	}

	var token *models.ConfirmationToken
	err = dbx.WithTx(ctx, w.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		store := w.tokens.Tx(tx)
		if err := store.DeleteForUser(ctx, user.ID); err != nil {
			return err
		}

		var err error
		if token, err = store.IssueFor(ctx, user, models.PurposePasswordReset, now); err != nil {
			return err
		}

		current, err := findUserByID(ctx, w.rm.Users(tx), user.ID, w.timeout)
		if err != nil {
			return err
		}
		current.Verified = false
		return updateUser(ctx, w.rm.Users(tx), current, w.timeout)
	})
	if err != nil {
		return err
	}

	w.logger.Info(ctx, "password reset token issued", "user_id", user.ID, "token", token.Token)
	if err := w.notifier.SendPasswordReset(ctx, user.Email, token.Token); err != nil {
		w.logger.Warn(ctx, "password reset notification not queued", "user_id", user.ID, "error", err)
	}
	return nil
}

// CompleteReset consumes a reset token, stores the new password and marks the
// account verified again.
func (w *VerificationWorkflow) CompleteReset(ctx context.Context, value, newPassword string) (*models.User, error) {
	token, err := w.consumable(ctx, value, models.PurposePasswordReset)
	if err != nil {
		return nil, err
	}

	hash, err := w.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}

	user, err := w.commit(ctx, token, func(u *models.User) {
		u.PasswordHash = hash
		u.Verified = true
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info(ctx, "password reset completed", "user_id", user.ID)
	return user, nil
}

// consumable resolves a presented token and checks its owner exists.
// Unknown values and tokens of another purpose fail with ErrInvalidToken;
// expired tokens are deleted and fail with ErrTokenExpired.
func (w *VerificationWorkflow) consumable(ctx context.Context, value string, purpose models.Purpose) (*models.ConfirmationToken, error) {
	now := w.clock.Now()

	token, ok, err := w.tokens.FindByValue(ctx, value)
	if err != nil {
		return nil, err
	}
	if !ok || token.Purpose != purpose {
		return nil, common.ErrInvalidToken
	}

	if w.tokens.IsExpired(token, now) {
		if _, err := w.tokens.DeleteByID(ctx, token.ID); err != nil {
			return nil, err
		}
		return nil, common.ErrTokenExpired
	}

	if _, err := findUserByID(ctx, w.rm.Users(w.db), token.UserID, w.timeout); err != nil {
		if errors.Is(err, common.ErrNoSuchUser) {
			w.logger.Error(ctx, "confirmation token without owner", "token_id", token.ID, "user_id", token.UserID)
		}
		return nil, err
	}

	return token, nil
}

// commit consumes token and applies change to the owner, read again inside
// the same transaction. Only the caller that removed the token row gets
// past the delete; everyone else fails with ErrInvalidToken.
func (w *VerificationWorkflow) commit(ctx context.Context, token *models.ConfirmationToken, change func(*models.User)) (*models.User, error) {
	var user *models.User
	err := dbx.WithTx(ctx, w.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		removed, err := w.tokens.Tx(tx).DeleteByID(ctx, token.ID)
		if err != nil {
			return err
		}
		if !removed {
			return common.ErrInvalidToken
		}

		if user, err = findUserByID(ctx, w.rm.Users(tx), token.UserID, w.timeout); err != nil {
			return err
		}
		change(user)
		return updateUser(ctx, w.rm.Users(tx), user, w.timeout)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (w *VerificationWorkflow) ensureEmailFree(ctx context.Context, email string) error {
	ctx, cancel := dbx.WithTimeout(ctx, w.timeout)
	defer cancel()

	_, err := w.rm.Users(w.db).FindByEmail(ctx, email)
	switch {
	case err == nil:
		return common.ErrEmailInUse
	case isNotFound(err):
		return nil
	default:
		return transient(err)
	}
}

func (w *VerificationWorkflow) dispatchConfirmation(ctx context.Context, user *models.User, token *models.ConfirmationToken) {
	w.logger.Info(ctx, "confirmation token issued", "user_id", user.ID, "token", token.Token)
	if err := w.notifier.SendConfirmation(ctx, user.Email, token.Token); err != nil {
		w.logger.Warn(ctx, "confirmation notification not queued", "user_id", user.ID, "error", err)
	}
}
