package concurrency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, ttl time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLimiter(client, 1, ttl), mr
}

func TestAcquireIsExclusivePerAccount(t *testing.T) {
	l, _ := newLimiter(t, time.Minute)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "855908310945371", 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Acquire(ctx, "855908310945371", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Acquire(ctx, "other", 1)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.Release(ctx, "855908310945371"))
	ok, err = l.Acquire(ctx, "855908310945371", 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSlotExpires(t *testing.T) {
	l, mr := newLimiter(t, time.Second)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "acct", 0)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = l.Acquire(ctx, "acct", 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEmptyAccountAlwaysAcquires(t *testing.T) {
	l, _ := newLimiter(t, time.Minute)
	ok, err := l.Acquire(context.Background(), "", 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, l.Release(context.Background(), ""))
	assert.NoError(t, l.Extend(context.Background(), ""))
}

func TestReleaseWithoutAcquire(t *testing.T) {
	l, mr := newLimiter(t, time.Minute)
	require.NoError(t, l.Release(context.Background(), "acct"))
	assert.False(t, mr.Exists(l.key("acct")))
}
