package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/crm-pro/internal/config"
	"github.com/acme/crm-pro/internal/domain"
	"github.com/acme/crm-pro/internal/repository"
	"github.com/acme/crm-pro/internal/service/progress"
	apperrors "github.com/acme/crm-pro/pkg/errors"
)

type fakeRuns struct {
	mu       sync.Mutex
	runs     []*domain.CampaignRun
	finished map[uuid.UUID]repository.RunOutcome
	listErr  error
}

func (f *fakeRuns) ListByState(_ context.Context, state domain.RunState, limit int) ([]*domain.CampaignRun, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.CampaignRun
	for _, r := range f.runs {
		if r.State == state && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRuns) Finish(_ context.Context, id uuid.UUID, outcome repository.RunOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.runs {
		if r.ID != id {
			continue
		}
		if r.State.Terminal() {
			return apperrors.ErrConflict
		}
		r.State = outcome.State
		if f.finished == nil {
			f.finished = make(map[uuid.UUID]repository.RunOutcome)
		}
		f.finished[id] = outcome
		return nil
	}
	return apperrors.ErrNotFound
}

func newFixture(t *testing.T, runs ...*domain.CampaignRun) (*Scheduler, *fakeRuns, *progress.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &fakeRuns{runs: runs}
	heartbeats := progress.NewStore(client, time.Hour)
	s := New(store, heartbeats, nil, nil, config.SchedulerConfig{StaleAfter: 10 * time.Minute})
	return s, store, heartbeats
}

func running(total int) *domain.CampaignRun {
	return &domain.CampaignRun{ID: uuid.New(), State: domain.RunStateRunning, Total: total}
}

func TestSweepLeavesLiveRunsAlone(t *testing.T) {
	run := running(3)
	s, store, heartbeats := newFixture(t, run)
	ctx := context.Background()
	require.NoError(t, heartbeats.Init(ctx, run.ID, domain.RunStateRunning, 3))

	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, domain.RunStateRunning, run.State)
	assert.Empty(t, store.finished)
}

func TestSweepFailsQuietRun(t *testing.T) {
	run := running(4)
	s, store, heartbeats := newFixture(t, run)
	ctx := context.Background()
	require.NoError(t, heartbeats.Init(ctx, run.ID, domain.RunStateRunning, 4))
	require.NoError(t, heartbeats.Update(ctx, domain.RunProgress{
		RunID: run.ID, State: domain.RunStateRunning, Total: 4, Sent: 2, SuccessCount: 1, ErrorCount: 1,
	}))
	s.now = func() time.Time { return time.Now().Add(time.Hour) }

	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	outcome := store.finished[run.ID]
	assert.Equal(t, domain.RunStateFailed, outcome.State)
	assert.Equal(t, 2, outcome.Sent)
	assert.Equal(t, 1, outcome.SuccessCount)
	assert.Equal(t, StaleReason, outcome.Error)

	p, err := heartbeats.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStateFailed, p.State)
	assert.Equal(t, 4, p.Total)
}

func TestSweepFailsRunWithExpiredProgress(t *testing.T) {
	run := running(2)
	run.Sent = 1
	run.SuccessCount = 1
	s, store, _ := newFixture(t, run)

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, store.finished[run.ID].Sent)
}

func TestSweepListError(t *testing.T) {
	s, store, _ := newFixture(t)
	store.listErr = errors.New("db down")

	_, err := s.Sweep(context.Background())
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	s, _, _ := newFixture(t)
	s.cfg.TickInterval = time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSweepExpiresRunsNeverStarted(t *testing.T) {
	old := &domain.CampaignRun{ID: uuid.New(), State: domain.RunStateQueued, CreatedAt: time.Now().Add(-7 * time.Hour)}
	fresh := &domain.CampaignRun{ID: uuid.New(), State: domain.RunStateQueued, CreatedAt: time.Now()}
	s, store, heartbeats := newFixture(t, old, fresh)
	ctx := context.Background()

	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, domain.RunStateFailed, old.State)
	assert.Equal(t, ExpiredReason, store.finished[old.ID].Error)
	assert.Equal(t, domain.RunStateQueued, fresh.State)

	p, err := heartbeats.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStateFailed, p.State)
}
