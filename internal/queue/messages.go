package queue

import (
	"time"

	"github.com/google/uuid"
)

// CampaignRequest asks a worker to execute a queued run. Everything else is
// loaded from the run record so redelivery is harmless.
type CampaignRequest struct {
	RunID       uuid.UUID `json:"run_id"`
	RequestedBy string    `json:"requested_by"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// DeliveryEvent reports the outcome of one send.
type DeliveryEvent struct {
	RunID      uuid.UUID `json:"run_id"`
	Position   int       `json:"position"`
	Total      int       `json:"total"`
	Phone      string    `json:"phone"`
	Status     string    `json:"status"`
	MessageID  string    `json:"message_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	OccurredAt time.Time `json:"occurred_at"`
}
