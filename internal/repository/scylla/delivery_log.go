package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/acme/crm-pro/internal/domain"
	"github.com/acme/crm-pro/internal/repository"
)

// DeliveryLog persists per-recipient send outcomes in Scylla, partitioned
// by run and clustered by position.
type DeliveryLog struct {
	session *gocql.Session
}

var _ repository.DeliveryLog = (*DeliveryLog)(nil)

// NewDeliveryLog creates a new delivery log.
func NewDeliveryLog(session *gocql.Session) *DeliveryLog {
	return &DeliveryLog{session: session}
}

// Append records a delivery. Replays of the same position overwrite.
func (s *DeliveryLog) Append(ctx context.Context, d domain.Delivery) error {
	if err := s.session.Query(`INSERT INTO deliveries_by_run (run_id, position, phone, status, message_id, error, occurred_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.RunID.String(), d.Position, d.Phone, string(d.Status), d.MessageID, d.Error, d.OccurredAt, d.Duration.Milliseconds(),
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("delivery log: insert: %w", err)
	}
	return nil
}

// ListByRun pages through the deliveries of a run in position order.
func (s *DeliveryLog) ListByRun(ctx context.Context, runID uuid.UUID, limit int, pagingState []byte) ([]domain.Delivery, []byte, error) {
	if limit <= 0 {
		limit = 100
	}

	query := s.session.Query(`SELECT position, phone, status, message_id, error, occurred_at, duration_ms
		FROM deliveries_by_run WHERE run_id = ?`, runID.String()).WithContext(ctx)
	query = query.PageSize(limit)
	if len(pagingState) > 0 {
		query = query.PageState(pagingState)
	}

	iter := query.Iter()
	deliveries := make([]domain.Delivery, 0, limit)

	var (
		position   int
		phone      string
		status     string
		messageID  string
		errText    string
		occurredAt time.Time
		durationMs int64
	)

	for iter.Scan(&position, &phone, &status, &messageID, &errText, &occurredAt, &durationMs) {
		deliveries = append(deliveries, domain.Delivery{
			RunID:      runID,
			Position:   position,
			Phone:      phone,
			Status:     domain.DeliveryStatus(status),
			MessageID:  messageID,
			Error:      errText,
			OccurredAt: occurredAt,
			Duration:   time.Duration(durationMs) * time.Millisecond,
		})
	}

	if err := iter.Close(); err != nil {
		return nil, nil, fmt.Errorf("delivery log: iter close: %w", err)
	}

	return deliveries, iter.PageState(), nil
}
