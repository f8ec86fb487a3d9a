package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunState enumerates lifecycle states of a campaign run.
type RunState string

const (
	RunStateQueued    RunState = "queued"
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateCancelled RunState = "cancelled"
	RunStateFailed    RunState = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s RunState) Terminal() bool {
	return s == RunStateCompleted || s == RunStateCancelled || s == RunStateFailed
}

// DeliveryStatus is the outcome of a single send.
type DeliveryStatus string

const (
	DeliveryStatusSent   DeliveryStatus = "sent"
	DeliveryStatusFailed DeliveryStatus = "failed"
)

// CampaignRun models one bulk send to a segment.
type CampaignRun struct {
	ID           uuid.UUID  `json:"id"`
	Segment      Segment    `json:"segment"`
	Template     string     `json:"template"`
	RequestedBy  string     `json:"requested_by"`
	State        RunState   `json:"state"`
	Total        int        `json:"total"`
	Sent         int        `json:"sent"`
	SuccessCount int        `json:"success_count"`
	ErrorCount   int        `json:"error_count"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// RunProgress is the live view of a run while it is being dispatched.
type RunProgress struct {
	RunID        uuid.UUID `json:"run_id"`
	State        RunState  `json:"state"`
	Total        int       `json:"total"`
	Sent         int       `json:"sent"`
	SuccessCount int       `json:"success_count"`
	ErrorCount   int       `json:"error_count"`
}

// Delivery records what happened to one recipient of a run.
type Delivery struct {
	RunID      uuid.UUID      `json:"run_id"`
	Position   int            `json:"position"`
	Phone      string         `json:"phone"`
	Status     DeliveryStatus `json:"status"`
	MessageID  string         `json:"message_id,omitempty"`
	Error      string         `json:"error,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Duration   time.Duration  `json:"duration"`
}
