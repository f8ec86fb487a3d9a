package progress

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/crm-pro/internal/domain"
	apperrors "github.com/acme/crm-pro/pkg/errors"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, time.Hour), mr
}

func TestProgressLifecycle(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, s.Init(ctx, id, domain.RunStateRunning, 3))
	require.NoError(t, s.Update(ctx, domain.RunProgress{RunID: id, State: domain.RunStateRunning, Total: 3, Sent: 2, SuccessCount: 1, ErrorCount: 1}))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.RunProgress{RunID: id, State: domain.RunStateRunning, Total: 3, Sent: 2, SuccessCount: 1, ErrorCount: 1}, *got)
}

func TestProgressExpires(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, s.Init(ctx, id, domain.RunStateQueued, 1))
	mr.FastForward(2 * time.Hour)

	_, err := s.Get(ctx, id)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestCancelFlag(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	id := uuid.New()

	requested, err := s.CancelRequested(ctx, id)
	require.NoError(t, err)
	assert.False(t, requested)

	require.NoError(t, s.RequestCancel(ctx, id))
	requested, err = s.CancelRequested(ctx, id)
	require.NoError(t, err)
	assert.True(t, requested)
}

func TestLastUpdate(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	id := uuid.New()

	_, err := s.LastUpdate(ctx, id)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	before := time.Now().Add(-time.Second)
	require.NoError(t, s.Init(ctx, id, domain.RunStateRunning, 2))
	beat, err := s.LastUpdate(ctx, id)
	require.NoError(t, err)
	assert.True(t, beat.After(before))
}
