package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/crm-pro/internal/config"
)

func TestNewClientPings(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewClient(context.Background(), config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer c.Close()

	assert.NoError(t, c.Ping(context.Background()))
	require.NoError(t, c.Inner().Set(context.Background(), "k", "v", 0).Err())
	assert.Equal(t, "v", mustGet(t, mr, "k"))
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}

func TestNewClientFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(context.Background(), config.RedisConfig{Address: addr, MaxRetries: -1})
	assert.Error(t, err)
}
