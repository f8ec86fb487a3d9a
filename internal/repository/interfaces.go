package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/acme/crm-pro/internal/domain"
	apperrors "github.com/acme/crm-pro/pkg/errors"
)

var (
	// ErrNotFound indicates the entity was not located.
	ErrNotFound = apperrors.ErrNotFound
	// ErrConflict indicates a state transition that is no longer allowed.
	ErrConflict = apperrors.ErrConflict
)

// ClientRepository manages the Clients sheet. Rows are addressed by their
// zero-based index.
type ClientRepository interface {
	List(ctx context.Context) ([]domain.Client, error)
	Create(ctx context.Context, client domain.Client) (domain.Client, error)
	Update(ctx context.Context, index int, client domain.Client) (domain.Client, error)
	Delete(ctx context.Context, index int) error
}

// UserRepository reads the Users sheet.
type UserRepository interface {
	List(ctx context.Context) ([]domain.User, error)
}

// CredentialRepository manages the Keys sheet.
type CredentialRepository interface {
	All(ctx context.Context) (domain.Credentials, error)
	Save(ctx context.Context, key, value string) error
}

// Store bundles the sheet-backed repositories.
type Store interface {
	Clients() ClientRepository
	Users() UserRepository
	Credentials() CredentialRepository
}

// RunRepository persists campaign run history.
type RunRepository interface {
	Create(ctx context.Context, run *domain.CampaignRun) error
	Get(ctx context.Context, id uuid.UUID) (*domain.CampaignRun, error)
	MarkRunning(ctx context.Context, id uuid.UUID, total int) error
	Finish(ctx context.Context, id uuid.UUID, outcome RunOutcome) error
	List(ctx context.Context, afterID *uuid.UUID, limit int) ([]*domain.CampaignRun, error)
}

// DeliveryLog persists per-recipient outcomes.
type DeliveryLog interface {
	Append(ctx context.Context, delivery domain.Delivery) error
	ListByRun(ctx context.Context, runID uuid.UUID, limit int, pagingState []byte) ([]domain.Delivery, []byte, error)
}

// RunOutcome is the final tally written when a run stops.
type RunOutcome struct {
	State        domain.RunState
	Sent         int
	SuccessCount int
	ErrorCount   int
	Error        string
}
