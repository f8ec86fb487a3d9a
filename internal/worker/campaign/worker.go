package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/crm-pro/internal/app"
	"github.com/acme/crm-pro/internal/queue"
	apperrors "github.com/acme/crm-pro/pkg/errors"
	"github.com/acme/crm-pro/pkg/logger"
)

// Reader is the subset of kafka.Reader the worker uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Executor performs a queued run.
type Executor interface {
	Execute(ctx context.Context, req queue.CampaignRequest) error
}

// Worker consumes run requests and executes them one at a time.
type Worker struct {
	reader   Reader
	executor Executor
	log      *logger.Logger
	attempts int
	backoff  time.Duration
}

// Option customises a Worker.
type Option func(*Worker)

// WithRetry sets how often a run is executed again while its backing stores
// are unavailable, and the pause between attempts.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(w *Worker) {
		if attempts > 0 {
			w.attempts = attempts
		}
		if backoff >= 0 {
			w.backoff = backoff
		}
	}
}

// New creates a campaign worker reading the run request topic.
func New(container *app.Container) (*Worker, error) {
	services, err := container.Services()
	if err != nil {
		return nil, err
	}
	return NewWithReader(container.Kafka.CampaignReader(), services.Campaign, container.Logger), nil
}

// NewWithReader creates a worker over an existing reader.
func NewWithReader(reader Reader, executor Executor, log *logger.Logger, opts ...Option) *Worker {
	if log == nil {
		log = logger.Nop()
	}
	w := &Worker{reader: reader, executor: executor, log: log, attempts: 3, backoff: 2 * time.Second}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes run requests until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	defer w.reader.Close()

	for {
		m, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Error("campaign worker: fetch message", zap.Error(err))
			continue
		}

		if err := w.processMessage(ctx, m); err != nil {
			w.log.Error("campaign worker: process", zap.Error(err))
		}
	}
}

func (w *Worker) processMessage(ctx context.Context, m kafka.Message) error {
	var req queue.CampaignRequest
	if err := json.Unmarshal(m.Value, &req); err != nil {
		_ = w.reader.CommitMessages(ctx, m)
		return fmt.Errorf("unmarshal run request: %w", err)
	}

	tracer := otel.Tracer("crm.campaignworker")
	sctx, span := tracer.Start(ctx, "campaign.execute", trace.WithAttributes(
		attribute.String("run.id", req.RunID.String()),
		attribute.String("run.requested_by", req.RequestedBy),
	))
	defer span.End()

	// Committing a later offset would skip this message anyway, so transient
	// failures are retried here. A run still queued after the last attempt is
	// failed by the scheduler sweep.
	if err := w.execute(sctx, req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "execute failed")
		w.log.WithContext(sctx).Warn("campaign worker: run failed",
			zap.String("run_id", req.RunID.String()),
			zap.Error(err),
		)
	}

	if err := w.reader.CommitMessages(context.WithoutCancel(sctx), m); err != nil {
		span.RecordError(err)
		return fmt.Errorf("commit message: %w", err)
	}
	return nil
}

func (w *Worker) execute(ctx context.Context, req queue.CampaignRequest) error {
	var err error
	for attempt := 1; attempt <= w.attempts; attempt++ {
		err = w.executor.Execute(ctx, req)
		if err == nil || !errors.Is(err, apperrors.ErrUnavailable) || attempt == w.attempts {
			return err
		}
		w.log.WithContext(ctx).Warn("campaign worker: run unavailable, retrying",
			zap.String("run_id", req.RunID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		timer := time.NewTimer(w.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
