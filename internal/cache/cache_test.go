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

type profile struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetClient(rdb)
	t.Cleanup(func() {
		SetClient(nil)
		_ = rdb.Close()
	})
	return mr, rdb
}

func TestAside_FetchesOnceThenServesFromCache(t *testing.T) {
	mr, _ := setupRedis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *profile) func() error {
		return func() error {
			calls++
			*dest = profile{ID: 1, Name: "Ada"}
			return nil
		}
	}

	var first profile
	require.NoError(t, Aside(ctx, UserKey(1), &first, UserTTL, fetch(&first)))
	var second profile
	require.NoError(t, Aside(ctx, UserKey(1), &second, UserTTL, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, "Ada", second.Name)
	assert.True(t, mr.Exists("user:1"))

	InvalidateUser(ctx, 1)
	assert.False(t, mr.Exists("user:1"))
}

func TestAside_PropagatesFetchError(t *testing.T) {
	mr, _ := setupRedis(t)

	var p profile
	err := Aside(context.Background(), UserKey(2), &p, UserTTL, func() error {
		return errors.New("boom")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists("user:2"))
}

func TestAside_WithoutClient(t *testing.T) {
	SetClient(nil)

	var p profile
	err := Aside(context.Background(), UserKey(3), &p, UserTTL, func() error {
		p.ID = 3
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint(3), p.ID)
}

func TestTokenRevocation(t *testing.T) {
	mr, rdb := setupRedis(t)
	ctx := context.Background()

	revoked, err := IsTokenRevoked(ctx, rdb, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, RevokeToken(ctx, rdb, "jti-1", time.Hour))
	revoked, err = IsTokenRevoked(ctx, rdb, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(time.Hour + time.Second)
	revoked, err = IsTokenRevoked(ctx, rdb, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	assert.ErrorIs(t, RevokeToken(ctx, nil, "jti-2", time.Hour), ErrNoClient)
}
