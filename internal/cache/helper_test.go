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

type cachedThing struct {
	Name string `json:"name"`
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestAside_PopulatesOnMissAndServesHit(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedThing) func() error {
		return func() error {
			calls++
			dest.Name = "maths"
			return nil
		}
	}

	var first cachedThing
	require.NoError(t, Aside(ctx, rdb, UserKey(7), &first, time.Minute, fetch(&first)))
	assert.Equal(t, "maths", first.Name)
	assert.True(t, mr.Exists(UserKey(7)))

	var second cachedThing
	require.NoError(t, Aside(ctx, rdb, UserKey(7), &second, time.Minute, fetch(&second)))
	assert.Equal(t, "maths", second.Name)
	assert.Equal(t, 1, calls)
}

func TestAside_NilClientAlwaysFetches(t *testing.T) {
	var dest cachedThing
	calls := 0
	for i := 0; i < 2; i++ {
		require.NoError(t, Aside(context.Background(), nil, "k", &dest, time.Minute, func() error {
			calls++
			return nil
		}))
	}
	assert.Equal(t, 2, calls)
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr, rdb := newTestRedis(t)

	var dest cachedThing
	err := Aside(context.Background(), rdb, "broken", &dest, time.Minute, func() error {
		return errors.New("db down")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists("broken"))
}

func TestInvalidate(t *testing.T) {
	mr, rdb := newTestRedis(t)
	require.NoError(t, mr.Set(UserKey(1), `{"name":"x"}`))

	require.NoError(t, Invalidate(context.Background(), rdb, UserKey(1)))
	assert.False(t, mr.Exists(UserKey(1)))
	assert.NoError(t, Invalidate(context.Background(), nil, UserKey(1)))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "user:3", UserKey(3))
	assert.Equal(t, "ws_ticket:abc", WSTicketKey("abc"))
	assert.Equal(t, "blacklist:j1", BlacklistKey("j1"))
}
