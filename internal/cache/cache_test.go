package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestBlacklist(t *testing.T) {
	mr, rdb := setupRedis(t)
	bl := NewBlacklist(rdb)
	ctx := context.Background()

	revoked, err := bl.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, bl.Revoke(ctx, "abc", time.Now().Add(time.Hour)))
	revoked, err = bl.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.True(t, mr.Exists("blacklist:abc"))

	mr.FastForward(2 * time.Hour)
	revoked, err = bl.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestBlacklistSkipsExpiredTokens(t *testing.T) {
	mr, rdb := setupRedis(t)
	bl := NewBlacklist(rdb)

	require.NoError(t, bl.Revoke(context.Background(), "old", time.Now().Add(-time.Minute)))
	assert.False(t, mr.Exists("blacklist:old"))
}

func TestBlacklistWithoutRedis(t *testing.T) {
	bl := NewBlacklist(nil)
	assert.NoError(t, bl.Revoke(context.Background(), "x", time.Now().Add(time.Hour)))
	revoked, err := bl.IsRevoked(context.Background(), "x")
	assert.NoError(t, err)
	assert.False(t, revoked)
}

func TestSessionStoreLifecycle(t *testing.T) {
	mr, rdb := setupRedis(t)
	store := NewSessionStore(rdb)
	ctx := context.Background()

	sess, err := store.Create(ctx, 42, 2*time.Hour, false)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.True(t, sess.Authenticated())

	sess.SetFlash("status", "Post created successfully.")
	require.NoError(t, store.Save(ctx, sess))

	loaded, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, uint(42), loaded.UserID)
	assert.Equal(t, "Post created successfully.", loaded.TakeFlash()["status"])
	assert.Empty(t, loaded.Flash)

	require.NoError(t, store.Destroy(ctx, sess.ID))
	gone, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	other, err := store.Create(ctx, 1, time.Minute, false)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	expired, err := store.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Nil(t, expired)
}

func TestSessionStoreUnavailable(t *testing.T) {
	store := NewSessionStore(nil)
	_, err := store.Create(context.Background(), 1, time.Minute, false)
	assert.ErrorIs(t, err, ErrSessionStoreUnavailable)
}

func TestAside(t *testing.T) {
	_, rdb := setupRedis(t)
	SetClient(rdb)
	t.Cleanup(func() { SetClient(nil) })
	ctx := context.Background()

	calls := 0
	fetch := func(dest *map[string]int) func() error {
		return func() error {
			calls++
			(*dest)["n"] = 7
			return nil
		}
	}

	first := map[string]int{}
	require.NoError(t, Aside(ctx, "k", &first, time.Minute, fetch(&first)))
	second := map[string]int{}
	require.NoError(t, Aside(ctx, "k", &second, time.Minute, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 7, second["n"])

	Invalidate(ctx, "k")
	third := map[string]int{}
	require.NoError(t, Aside(ctx, "k", &third, time.Minute, fetch(&third)))
	assert.Equal(t, 2, calls)
}

func TestAsidePropagatesFetchError(t *testing.T) {
	SetClient(nil)
	var dest map[string]int
	err := Aside(context.Background(), "k", &dest, time.Minute, func() error {
		return errors.New("db down")
	})
	assert.EqualError(t, err, "db down")
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "user:3", UserKey(3))
	assert.Equal(t, "blacklist:j", BlacklistKey("j"))
	assert.Equal(t, "session:s", SessionKey("s"))
	assert.Equal(t, "activity:user:9", ActivityChannelFor(9))
}
