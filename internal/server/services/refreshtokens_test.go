package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/utask/internal/common"
	"github.com/dmitrijs2005/utask/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRefreshStore(s *memStore) *RefreshTokenStore {
	return NewRefreshTokenStore(nil, fakeRepoManager{s}, 24*time.Hour, time.Second)
}

func TestRefreshTokenStore_Create(t *testing.T) {
	s := newMemStore()
	u := s.addUser(models.User{Email: "a@example.com"})
	store := newRefreshStore(s)

	tok, err := store.Create(context.Background(), u.ID, t0)
	require.NoError(t, err)

	assert.Len(t, tok.Token, 64)
	assert.Equal(t, u.ID, tok.UserID)
	assert.Equal(t, t0.Add(24*time.Hour), tok.ExpiresAt)
	assert.True(t, s.hasRefresh(tok.Token))

	other, err := store.Create(context.Background(), u.ID, t0)
	require.NoError(t, err)
	assert.NotEqual(t, tok.Token, other.Token)
}

func TestRefreshTokenStore_Create_NoSuchUser(t *testing.T) {
	store := newRefreshStore(newMemStore())

	_, err := store.Create(context.Background(), 404, t0)
	assert.ErrorIs(t, err, common.ErrNoSuchUser)
}

func TestRefreshTokenStore_Create_StoreFailureIsTransient(t *testing.T) {
	s := newMemStore()
	u := s.addUser(models.User{})
	s.refreshCreateErr = errors.New("db error: connection refused")

	_, err := newRefreshStore(s).Create(context.Background(), u.ID, t0)
	assert.ErrorIs(t, err, common.ErrTransient)
	assert.Equal(t, common.KindTransient, common.KindOf(err))
}

func TestRefreshTokenStore_FindByValue(t *testing.T) {
	s := newMemStore()
	u := s.addUser(models.User{})
	store := newRefreshStore(s)
	tok, err := store.Create(context.Background(), u.ID, t0)
	require.NoError(t, err)

	got, ok, err := store.FindByValue(context.Background(), tok.Token)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tok.UserID, got.UserID)

	_, ok, err = store.FindByValue(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	s.refreshFindErr = errors.New("timeout")
	_, _, err = store.FindByValue(context.Background(), tok.Token)
	assert.ErrorIs(t, err, common.ErrTransient)
}

func TestRefreshTokenStore_Verify(t *testing.T) {
	s := newMemStore()
	u := s.addUser(models.User{})
	store := newRefreshStore(s)
	tok, err := store.Create(context.Background(), u.ID, t0)
	require.NoError(t, err)

	got, err := store.Verify(context.Background(), tok, tok.ExpiresAt)
	require.NoError(t, err, "valid at its expiry instant")
	assert.Same(t, tok, got)

	_, err = store.Verify(context.Background(), tok, tok.ExpiresAt.Add(time.Second))
	assert.ErrorIs(t, err, common.ErrTokenExpired)
	assert.False(t, s.hasRefresh(tok.Token), "expired token is destroyed when presented")
}

func TestRefreshTokenStore_ConsumeOnce(t *testing.T) {
	s := newMemStore()
	u := s.addUser(models.User{})
	store := newRefreshStore(s)
	tok, err := store.Create(context.Background(), u.ID, t0)
	require.NoError(t, err)

	ok, err := store.Consume(context.Background(), tok.Token)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Consume(context.Background(), tok.Token)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, store.Delete(context.Background(), tok.Token), "delete is idempotent")
}

func TestRefreshTokenStore_DeleteExpiredBefore(t *testing.T) {
	s := newMemStore()
	u := s.addUser(models.User{})
	store := newRefreshStore(s)

	old, err := store.Create(context.Background(), u.ID, t0.Add(-48*time.Hour))
	require.NoError(t, err)
	fresh, err := store.Create(context.Background(), u.ID, t0)
	require.NoError(t, err)

	n, err := store.DeleteExpiredBefore(context.Background(), t0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.False(t, s.hasRefresh(old.Token))
	assert.True(t, s.hasRefresh(fresh.Token))
}
