package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/utask/internal/common"
	"github.com/dmitrijs2005/utask/internal/server/metrics"
	"github.com/dmitrijs2005/utask/internal/server/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConfirmStore(s *memStore, window time.Duration) *ConfirmationTokenStore {
	return NewConfirmationTokenStore(nil, fakeRepoManager{s}, window, time.Second, nil)
}

func TestConfirmationTokenStore_IsExpiredBoundary(t *testing.T) {
	store := newConfirmStore(newMemStore(), 24*time.Hour)
	now := t0

	atWindow := &models.ConfirmationToken{CreatedAt: now.Add(-24 * time.Hour)}
	justInside := &models.ConfirmationToken{CreatedAt: now.Add(-24*time.Hour + time.Second)}

	assert.True(t, store.IsExpired(atWindow, now), "created exactly one window ago is expired")
	assert.False(t, store.IsExpired(justInside, now))
}

func TestConfirmationTokenStore_IssueAndFind(t *testing.T) {
	s := newMemStore()
	u := s.addUser(models.User{Email: "a@example.com"})
	m := metrics.New(prometheus.NewRegistry())
	store := NewConfirmationTokenStore(nil, fakeRepoManager{s}, time.Hour, time.Second, m)

	tok, err := store.IssueFor(context.Background(), u, models.PurposeSignup, t0)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Token)
	assert.Equal(t, t0, tok.CreatedAt)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConfirmationsIssued.WithLabelValues("signup")))

	byValue, ok, err := store.FindByValue(context.Background(), tok.Token)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tok.ID, byValue.ID)

	byUser, ok, err := store.FindForUser(context.Background(), u.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tok.Token, byUser.Token)

	_, ok, err = store.FindByValue(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConfirmationTokenStore_IssueDoesNotSupersede(t *testing.T) {
	s := newMemStore()
	u := s.addUser(models.User{})
	store := newConfirmStore(s, time.Hour)

	_, err := store.IssueFor(context.Background(), u, models.PurposeSignup, t0)
	require.NoError(t, err)

	_, err = store.IssueFor(context.Background(), u, models.PurposeSignup, t0)
	require.Error(t, err, "one token per user; the caller must delete the old one")

	require.NoError(t, store.DeleteForUser(context.Background(), u.ID))
	_, err = store.IssueFor(context.Background(), u, models.PurposePasswordReset, t0)
	require.NoError(t, err)
	assert.Len(t, s.confirmFor(u.ID), 1)
}

func TestConfirmationTokenStore_DeleteByID(t *testing.T) {
	s := newMemStore()
	u := s.addUser(models.User{})
	store := newConfirmStore(s, time.Hour)

	tok, err := store.IssueFor(context.Background(), u, models.PurposeSignup, t0)
	require.NoError(t, err)
	removed, err := store.DeleteByID(context.Background(), tok.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	_, ok, err := store.FindForUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err = store.DeleteByID(context.Background(), tok.ID)
	require.NoError(t, err)
	assert.False(t, removed, "a token is consumed once")
}

func TestConfirmationTokenStore_DeleteExpired(t *testing.T) {
	s := newMemStore()
	a := s.addUser(models.User{})
	b := s.addUser(models.User{})
	store := newConfirmStore(s, time.Hour)

	_, err := store.IssueFor(context.Background(), a, models.PurposeSignup, t0.Add(-time.Hour))
	require.NoError(t, err)
	_, err = store.IssueFor(context.Background(), b, models.PurposeSignup, t0.Add(-time.Hour+time.Second))
	require.NoError(t, err)

	n, err := store.DeleteExpired(context.Background(), t0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, s.confirmFor(a.ID))
	assert.Len(t, s.confirmFor(b.ID), 1)
}

func TestConfirmationTokenStore_Transient(t *testing.T) {
	s := newMemStore()
	s.confirmErr = errors.New("db error: broken pipe")
	store := newConfirmStore(s, time.Hour)

	_, _, err := store.FindByValue(context.Background(), "x")
	assert.ErrorIs(t, err, common.ErrTransient)

	_, err = store.IssueFor(context.Background(), &models.User{ID: 1}, models.PurposeSignup, t0)
	assert.ErrorIs(t, err, common.ErrTransient)
}

func TestConfirmationTokenStore_TxCopies(t *testing.T) {
	store := newConfirmStore(newMemStore(), 2*time.Hour)
	db, _ := newSQLMockDB(t)

	bound := store.Tx(db)
	assert.NotSame(t, store, bound)
	assert.Equal(t, 2*time.Hour, bound.Window())
	assert.Nil(t, store.db)
}
