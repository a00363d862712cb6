package confirmationtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/utask/internal/common"
	"github.com/dmitrijs2005/utask/internal/dbx"
	"github.com/dmitrijs2005/utask/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, token *models.ConfirmationToken) error {
	query := `
		INSERT INTO confirmation_tokens (user_id, token, purpose, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query, token.UserID, token.Token, string(token.Purpose), token.CreatedAt).Scan(&token.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByValue(ctx context.Context, value string) (*models.ConfirmationToken, error) {
	query := `
		SELECT id, user_id, token, purpose, created_at
		FROM confirmation_tokens
		WHERE token = $1
	`
	return scanToken(r.db.QueryRowContext(ctx, query, value))
}

func (r *PostgresRepository) FindByUser(ctx context.Context, userID int64) (*models.ConfirmationToken, error) {
	query := `
		SELECT id, user_id, token, purpose, created_at
		FROM confirmation_tokens
		WHERE user_id = $1
	`
	return scanToken(r.db.QueryRowContext(ctx, query, userID))
}

func (r *PostgresRepository) DeleteByID(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM confirmation_tokens WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM confirmation_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteCreatedBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM confirmation_tokens WHERE created_at <= $1`, t)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func scanToken(row *sql.Row) (*models.ConfirmationToken, error) {
	t := &models.ConfirmationToken{}
	var purpose string
	if err := row.Scan(&t.ID, &t.UserID, &t.Token, &purpose, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	t.Purpose = models.Purpose(purpose)
	return t, nil
}
