package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/utask/internal/common"
	"github.com/dmitrijs2005/utask/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	q := `(?s)^\s*INSERT\s+INTO\s+refresh_tokens\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+id\s*$`

	mock.ExpectQuery(q).
		WithArgs(int64(1), "tok123", now.Add(time.Hour), now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))

	tok := &models.RefreshToken{UserID: 1, Token: "tok123", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	if err := repo.Create(context.Background(), tok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.ID != 9 {
		t.Fatalf("id not filled: %+v", tok)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+refresh_tokens`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.RefreshToken{UserID: 1, Token: "t"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFind_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := time.Now().Add(time.Hour).UTC()
	created := time.Now().UTC()

	mock.ExpectQuery(`(?s)SELECT\s+id,\s*user_id,\s*token,\s*expires_at,\s*created_at\s+FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1`).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "created_at"}).
			AddRow(int64(3), int64(5), "tok", exp, created))

	got, err := repo.Find(context.Background(), "tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != 5 || got.Token != "tok" || !got.ExpiresAt.Equal(exp) {
		t.Fatalf("unexpected token: %+v", got)
	}
}

func TestFind_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)FROM\s+refresh_tokens`).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), "nope")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestDelete_ReportsWhetherRowWasRemoved(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1`
	mock.ExpectExec(q).WithArgs("tok").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("tok").WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := repo.Delete(context.Background(), "tok")
	if err != nil || !first {
		t.Fatalf("first delete: got (%v, %v)", first, err)
	}
	second, err := repo.Delete(context.Background(), "tok")
	if err != nil || second {
		t.Fatalf("second delete: got (%v, %v)", second, err)
	}
}

func TestDelete_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)DELETE\s+FROM\s+refresh_tokens`).WillReturnError(errors.New("boom"))

	if _, err := repo.Delete(context.Background(), "tok"); err == nil {
		t.Fatal("expected error")
	}
}

func TestDeleteExpiredBefore(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	cutoff := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`(?s)DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+expires_at\s*<\s*\$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteExpiredBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Fatalf("want 4 deleted, got %d", n)
	}
}
