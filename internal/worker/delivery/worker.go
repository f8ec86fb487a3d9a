package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/crm-pro/internal/app"
	"github.com/acme/crm-pro/internal/domain"
	"github.com/acme/crm-pro/internal/queue"
	"github.com/acme/crm-pro/internal/repository"
	"github.com/acme/crm-pro/pkg/logger"
)

// Reader is the subset of kafka.Reader the worker uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Worker consumes delivery events and appends them to the delivery log.
type Worker struct {
	reader Reader
	log    repository.DeliveryLog
	logger *logger.Logger
}

// New creates a delivery worker reading the delivery topic.
func New(container *app.Container) (*Worker, error) {
	repos, err := container.Repositories()
	if err != nil {
		return nil, err
	}
	return NewWithReader(container.Kafka.DeliveryReader(), repos.Deliveries, container.Logger), nil
}

// NewWithReader creates a worker over an existing reader.
func NewWithReader(reader Reader, deliveries repository.DeliveryLog, lg *logger.Logger) *Worker {
	if lg == nil {
		lg = logger.Nop()
	}
	return &Worker{reader: reader, log: deliveries, logger: lg}
}

// Run processes delivery events until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	defer w.reader.Close()

	for {
		msg, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("delivery worker: fetch", zap.Error(err))
			continue
		}

		if err := w.processMessage(ctx, msg); err != nil {
			w.logger.Error("delivery worker: process", zap.Error(err))
		}
	}
}

func (w *Worker) processMessage(ctx context.Context, msg kafka.Message) error {
	var event queue.DeliveryEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		_ = w.reader.CommitMessages(ctx, msg)
		return fmt.Errorf("unmarshal delivery: %w", err)
	}

	tracer := otel.Tracer("crm.deliveryworker")
	sctx, span := tracer.Start(ctx, "campaign.delivery", trace.WithAttributes(
		attribute.String("run.id", event.RunID.String()),
		attribute.Int("delivery.position", event.Position),
		attribute.String("delivery.status", event.Status),
	))
	defer span.End()

	// Left uncommitted on failure so the event is replayed after a restart.
	if err := w.log.Append(sctx, toDelivery(event)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("append delivery %s/%d: %w", event.RunID, event.Position, err)
	}

	if err := w.reader.CommitMessages(sctx, msg); err != nil {
		span.RecordError(err)
		return fmt.Errorf("commit message: %w", err)
	}
	return nil
}

func toDelivery(event queue.DeliveryEvent) domain.Delivery {
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return domain.Delivery{
		RunID:      event.RunID,
		Position:   event.Position,
		Phone:      event.Phone,
		Status:     domain.DeliveryStatus(event.Status),
		MessageID:  event.MessageID,
		Error:      event.Error,
		OccurredAt: occurred,
		Duration:   time.Duration(event.DurationMs) * time.Millisecond,
	}
}
