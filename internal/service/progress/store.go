// Package progress keeps the live counters of dispatching runs in Redis so
// any API instance can report them while a worker sends.
package progress

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/acme/crm-pro/internal/domain"
	apperrors "github.com/acme/crm-pro/pkg/errors"
)

const (
	fieldState   = "state"
	fieldTotal   = "total"
	fieldSent    = "sent"
	fieldSuccess = "success"
	fieldErrors  = "errors"
	fieldBeat    = "beat"
)

// Store implements the run progress tracker.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore constructs a store. Keys expire ttl after their last write.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

// Init writes the initial counters of a run.
func (s *Store) Init(ctx context.Context, runID uuid.UUID, state domain.RunState, total int) error {
	key := progressKey(runID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		fieldState:   string(state),
		fieldTotal:   total,
		fieldSent:    0,
		fieldSuccess: 0,
		fieldErrors:  0,
		fieldBeat:    time.Now().UnixMilli(),
	})
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("progress: init %s: %w", runID, err)
	}
	return nil
}

// Update overwrites the counters with the latest snapshot.
func (s *Store) Update(ctx context.Context, p domain.RunProgress) error {
	key := progressKey(p.RunID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		fieldState:   string(p.State),
		fieldTotal:   p.Total,
		fieldSent:    p.Sent,
		fieldSuccess: p.SuccessCount,
		fieldErrors:  p.ErrorCount,
		fieldBeat:    time.Now().UnixMilli(),
	})
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("progress: update %s: %w", p.RunID, err)
	}
	return nil
}

// Get returns the live counters, or ErrNotFound once they expired.
func (s *Store) Get(ctx context.Context, runID uuid.UUID) (*domain.RunProgress, error) {
	values, err := s.client.HGetAll(ctx, progressKey(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("progress: get %s: %w", runID, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: progress for run %s", apperrors.ErrNotFound, runID)
	}

	return &domain.RunProgress{
		RunID:        runID,
		State:        domain.RunState(values[fieldState]),
		Total:        atoi(values[fieldTotal]),
		Sent:         atoi(values[fieldSent]),
		SuccessCount: atoi(values[fieldSuccess]),
		ErrorCount:   atoi(values[fieldErrors]),
	}, nil
}

// LastUpdate returns when the counters of a run were last written.
func (s *Store) LastUpdate(ctx context.Context, runID uuid.UUID) (time.Time, error) {
	beat, err := s.client.HGet(ctx, progressKey(runID), fieldBeat).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, fmt.Errorf("%w: progress for run %s", apperrors.ErrNotFound, runID)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("progress: last update %s: %w", runID, err)
	}
	ms, err := strconv.ParseInt(beat, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("progress: last update %s: %w", runID, err)
	}
	return time.UnixMilli(ms), nil
}

// RequestCancel raises the cancel flag of a run.
func (s *Store) RequestCancel(ctx context.Context, runID uuid.UUID) error {
	if err := s.client.Set(ctx, cancelKey(runID), "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("progress: request cancel %s: %w", runID, err)
	}
	return nil
}

// CancelRequested reports whether the cancel flag is set.
func (s *Store) CancelRequested(ctx context.Context, runID uuid.UUID) (bool, error) {
	_, err := s.client.Get(ctx, cancelKey(runID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("progress: cancel flag %s: %w", runID, err)
	}
	return true, nil
}

func progressKey(runID uuid.UUID) string {
	return "crm:run:" + runID.String() + ":progress"
}

func cancelKey(runID uuid.UUID) string {
	return "crm:run:" + runID.String() + ":cancel"
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
