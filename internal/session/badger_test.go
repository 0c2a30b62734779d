package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestBadger(t *testing.T, path string) *BadgerStore {
	t.Helper()
	store, err := OpenBadgerStore(path, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerStoreRoundTrip(t *testing.T) {
	store := openTestBadger(t, "")
	ctx := context.Background()
	sess := newTestSession("abc", time.Now().Add(time.Hour).Truncate(time.Second))

	require.NoError(t, store.Set(ctx, sess))

	got, ok, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sess.OwnerID, got.OwnerID)
	require.Equal(t, sess.Email, got.Email)
	require.True(t, sess.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, store.Destroy(ctx, "abc"))
	_, ok, err = store.Get(ctx, "abc")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBadgerStoreExpiredLooksAbsent(t *testing.T) {
	store := openTestBadger(t, "")
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Set(ctx, newTestSession("soon", now.Add(time.Hour))))

	store.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, ok, err := store.Get(ctx, "soon")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBadgerStoreSetAlreadyExpiredRemoves(t *testing.T) {
	store := openTestBadger(t, "")
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, newTestSession("x", time.Now().Add(time.Hour))))
	require.NoError(t, store.Set(ctx, newTestSession("x", time.Now().Add(-time.Minute))))

	_, ok, err := store.Get(ctx, "x")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBadgerStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	sess := newTestSession("keep", time.Now().Add(time.Hour))

	first, err := OpenBadgerStore(dir, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, sess))
	require.NoError(t, first.Close())

	second := openTestBadger(t, dir)
	got, ok, err := second.Get(ctx, "keep")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sess.OwnerID, got.OwnerID)

	_, err = second.Sweep(ctx)
	require.NoError(t, err)
}
