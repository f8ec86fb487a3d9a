// Package scheduler runs periodic housekeeping over campaign runs. Each tick
// fails running runs whose worker stopped reporting progress and queued runs
// that were never picked up, so no run stays open forever.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/crm-pro/internal/config"
	"github.com/acme/crm-pro/internal/domain"
	"github.com/acme/crm-pro/internal/repository"
	"github.com/acme/crm-pro/internal/telemetry"
	apperrors "github.com/acme/crm-pro/pkg/errors"
	"github.com/acme/crm-pro/pkg/logger"
)

// Reasons stored on runs failed by the sweep.
const (
	StaleReason   = "interrupted: worker stopped reporting progress"
	ExpiredReason = "expired: run was never started"
)

// RunStore is the part of the run history the scheduler needs.
type RunStore interface {
	ListByState(ctx context.Context, state domain.RunState, limit int) ([]*domain.CampaignRun, error)
	Finish(ctx context.Context, id uuid.UUID, outcome repository.RunOutcome) error
}

// Heartbeats exposes the live progress written by campaign workers.
type Heartbeats interface {
	Get(ctx context.Context, runID uuid.UUID) (*domain.RunProgress, error)
	Update(ctx context.Context, p domain.RunProgress) error
	LastUpdate(ctx context.Context, runID uuid.UUID) (time.Time, error)
}

// Scheduler fails running runs that have gone quiet.
type Scheduler struct {
	runs       RunStore
	heartbeats Heartbeats
	metrics    *telemetry.Metrics
	log        *logger.Logger
	cfg        config.SchedulerConfig
	now        func() time.Time
}

// New constructs a scheduler.
func New(runs RunStore, heartbeats Heartbeats, metrics *telemetry.Metrics, lg *logger.Logger, cfg config.SchedulerConfig) *Scheduler {
	if lg == nil {
		lg = logger.Nop()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}
	if cfg.QueuedAfter <= 0 {
		cfg.QueuedAfter = 6 * time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Scheduler{
		runs:       runs,
		heartbeats: heartbeats,
		metrics:    metrics,
		log:        lg,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Run executes the sweep loop until cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("scheduler: sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep fails every running run whose last progress write is older than the
// stale threshold, or whose progress has expired, and every queued run older
// than the queue threshold. It returns how many runs it failed.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	tracer := otel.Tracer("crm.scheduler")
	sctx, span := tracer.Start(ctx, "scheduler.sweep")
	defer span.End()

	runs, err := s.runs.ListByState(sctx, domain.RunStateRunning, s.cfg.BatchSize)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	span.SetAttributes(attribute.Int("runs.running", len(runs)))

	cutoff := s.now().Add(-s.cfg.StaleAfter)
	reaped := 0
	for _, run := range runs {
		rctx, rspan := tracer.Start(sctx, "scheduler.run", trace.WithAttributes(
			attribute.String("run.id", run.ID.String()),
		))
		ok, err := s.reap(rctx, run, cutoff)
		if err != nil {
			rspan.RecordError(err)
			s.log.Error("scheduler: reap run", zap.String("run_id", run.ID.String()), zap.Error(err))
		}
		if ok {
			reaped++
		}
		rspan.End()
	}

	queued, err := s.runs.ListByState(sctx, domain.RunStateQueued, s.cfg.BatchSize)
	if err != nil {
		span.RecordError(err)
		return reaped, err
	}
	span.SetAttributes(attribute.Int("runs.queued", len(queued)))

	queueCutoff := s.now().Add(-s.cfg.QueuedAfter)
	for _, run := range queued {
		if run.CreatedAt.After(queueCutoff) {
			continue
		}
		ok, err := s.fail(sctx, run, ExpiredReason, run.Total, repository.RunOutcome{})
		if err != nil {
			span.RecordError(err)
			s.log.Error("scheduler: expire run", zap.String("run_id", run.ID.String()), zap.Error(err))
		}
		if ok {
			reaped++
		}
	}

	span.SetAttributes(attribute.Int("runs.reaped", reaped))
	if reaped > 0 {
		s.log.Info("scheduler: failed stale runs", zap.Int("count", reaped))
	}
	return reaped, nil
}

func (s *Scheduler) reap(ctx context.Context, run *domain.CampaignRun, cutoff time.Time) (bool, error) {
	beat, err := s.heartbeats.LastUpdate(ctx, run.ID)
	switch {
	case err == nil && beat.After(cutoff):
		return false, nil
	case err != nil && !errors.Is(err, apperrors.ErrNotFound):
		return false, err
	}

	counts := repository.RunOutcome{
		Sent:         run.Sent,
		SuccessCount: run.SuccessCount,
		ErrorCount:   run.ErrorCount,
	}
	total := run.Total
	if p, err := s.heartbeats.Get(ctx, run.ID); err == nil {
		counts.Sent = p.Sent
		counts.SuccessCount = p.SuccessCount
		counts.ErrorCount = p.ErrorCount
		total = p.Total
	}
	return s.fail(ctx, run, StaleReason, total, counts)
}

// fail finishes run as failed with the given counters. A run that reached a
// terminal state in the meantime is left alone.
func (s *Scheduler) fail(ctx context.Context, run *domain.CampaignRun, reason string, total int, counts repository.RunOutcome) (bool, error) {
	outcome := counts
	outcome.State = domain.RunStateFailed
	outcome.Error = reason

	if err := s.runs.Finish(ctx, run.ID, outcome); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return false, nil
		}
		return false, err
	}

	if err := s.heartbeats.Update(ctx, domain.RunProgress{
		RunID:        run.ID,
		State:        outcome.State,
		Total:        total,
		Sent:         outcome.Sent,
		SuccessCount: outcome.SuccessCount,
		ErrorCount:   outcome.ErrorCount,
	}); err != nil {
		s.log.Warn("scheduler: final progress", zap.String("run_id", run.ID.String()), zap.Error(err))
	}
	s.metrics.RunFinished(string(outcome.State), run.State == domain.RunStateRunning)
	s.log.Warn("scheduler: run closed",
		zap.String("run_id", run.ID.String()),
		zap.String("reason", reason),
		zap.Int("sent", outcome.Sent),
		zap.Int("total", total),
	)
	return true, nil
}
