package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/utask/internal/common"
	"github.com/dmitrijs2005/utask/internal/dbx"
	"github.com/dmitrijs2005/utask/internal/server/models"
	"github.com/dmitrijs2005/utask/internal/server/repositories/confirmationtokens"
	"github.com/dmitrijs2005/utask/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/utask/internal/server/repositories/users"
	"github.com/jonboulle/clockwork"
)

// memStore backs every fake repository. It ignores the DBTX it is handed,
// so transactions only show up as sqlmock Begin/Commit expectations.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	users   map[int64]models.User
	refresh map[string]models.RefreshToken
	confirm map[int64]models.ConfirmationToken

	usersErr         error
	refreshCreateErr error
	refreshFindErr   error
	confirmErr       error
	confirmCreateErr error

	// onFindUser runs before every FindByID, outside the lock.
	onFindUser func()
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[int64]models.User{},
		refresh: map[string]models.RefreshToken{},
		confirm: map[int64]models.ConfirmationToken{},
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) addUser(u models.User) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.id()
	s.users[u.ID] = u
	return &u
}

func (s *memStore) user(id int64) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

func (s *memStore) hasRefresh(value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.refresh[value]
	return ok
}

func (s *memStore) confirmFor(userID int64) []models.ConfirmationToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ConfirmationToken
	for _, t := range s.confirm {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.usersErr != nil {
		return nil, r.s.usersErr
	}
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return nil, common.ErrEmailInUse
		}
	}
	u.ID = r.s.id()
	r.s.users[u.ID] = *u
	return u, nil
}

func (r memUsers) FindByID(_ context.Context, id int64) (*models.User, error) {
	if r.s.onFindUser != nil {
		r.s.onFindUser()
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.usersErr != nil {
		return nil, r.s.usersErr
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.usersErr != nil {
		return nil, r.s.usersErr
	}
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) Update(_ context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.usersErr != nil {
		return r.s.usersErr
	}
	if _, ok := r.s.users[u.ID]; !ok {
		return common.ErrorNotFound
	}
	r.s.users[u.ID] = *u
	return nil
}

type memRefresh struct{ s *memStore }

func (r memRefresh) Create(_ context.Context, t *models.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.refreshCreateErr != nil {
		return r.s.refreshCreateErr
	}
	t.ID = r.s.id()
	r.s.refresh[t.Token] = *t
	return nil
}

func (r memRefresh) Find(_ context.Context, value string) (*models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.refreshFindErr != nil {
		return nil, r.s.refreshFindErr
	}
	t, ok := r.s.refresh[value]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r memRefresh) Delete(_ context.Context, value string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.refresh[value]; !ok {
		return false, nil
	}
	delete(r.s.refresh, value)
	return true, nil
}

func (r memRefresh) DeleteExpiredBefore(_ context.Context, t time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for k, v := range r.s.refresh {
		if v.ExpiresAt.Before(t) {
			delete(r.s.refresh, k)
			n++
		}
	}
	return n, nil
}

var errDuplicateUser = errors.New("duplicate key value violates unique constraint")

type memConfirm struct{ s *memStore }

func (r memConfirm) Create(_ context.Context, t *models.ConfirmationToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.confirmErr != nil {
		return r.s.confirmErr
	}
	if r.s.confirmCreateErr != nil {
		return r.s.confirmCreateErr
	}
	for _, existing := range r.s.confirm {
		if existing.UserID == t.UserID {
			return errDuplicateUser
		}
	}
	t.ID = r.s.id()
	r.s.confirm[t.ID] = *t
	return nil
}

func (r memConfirm) find(match func(models.ConfirmationToken) bool) (*models.ConfirmationToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.confirmErr != nil {
		return nil, r.s.confirmErr
	}
	for _, t := range r.s.confirm {
		if match(t) {
			return &t, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memConfirm) FindByValue(_ context.Context, value string) (*models.ConfirmationToken, error) {
	return r.find(func(t models.ConfirmationToken) bool { return t.Token == value })
}

func (r memConfirm) FindByUser(_ context.Context, userID int64) (*models.ConfirmationToken, error) {
	return r.find(func(t models.ConfirmationToken) bool { return t.UserID == userID })
}

func (r memConfirm) DeleteByID(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.confirm[id]; !ok {
		return false, nil
	}
	delete(r.s.confirm, id)
	return true, nil
}

func (r memConfirm) DeleteByUser(_ context.Context, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, t := range r.s.confirm {
		if t.UserID == userID {
			delete(r.s.confirm, id)
		}
	}
	return nil
}

func (r memConfirm) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, t := range r.s.confirm {
		if !t.CreatedAt.After(cutoff) {
			delete(r.s.confirm, id)
			n++
		}
	}
	return n, nil
}

type fakeRepoManager struct{ s *memStore }

func (m fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m fakeRepoManager) Users(dbx.DBTX) users.Repository { return memUsers{m.s} }

func (m fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return memRefresh{m.s} }

func (m fakeRepoManager) ConfirmationTokens(dbx.DBTX) confirmationtokens.Repository {
	return memConfirm{m.s}
}

// plainHasher keeps tests fast; the argon2 hasher has its own tests.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error)   { return "h:" + p, nil }
func (plainHasher) Matches(p, encoded string) bool { return encoded == "h:"+p }

type sentNotification struct {
	kind  string
	email string
	token string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *fakeNotifier) SendConfirmation(_ context.Context, email, token string) error {
	return n.record("confirmation", email, token)
}

func (n *fakeNotifier) SendPasswordReset(_ context.Context, email, token string) error {
	return n.record("password_reset", email, token)
}

func (n *fakeNotifier) record(kind, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{kind: kind, email: email, token: token})
	return n.err
}

func (n *fakeNotifier) last() sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return sentNotification{}
	}
	return n.sent[len(n.sent)-1]
}

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var t0 = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

// fakeClock is the part of the clockwork fake clock the tests drive.
type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}
