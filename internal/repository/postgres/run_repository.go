package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/crm-pro/internal/domain"
	"github.com/acme/crm-pro/internal/repository"
)

const runColumns = `id, segment, template, requested_by, state, total, sent, success_count, error_count,
	error, created_at, updated_at, started_at, completed_at`

// RunRepository implements repository.RunRepository using PostgreSQL.
type RunRepository struct {
	db *sqlx.DB
}

var _ repository.RunRepository = (*RunRepository)(nil)

// NewRunRepository constructs a new repository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run.
func (r *RunRepository) Create(ctx context.Context, run *domain.CampaignRun) error {
	segment, err := json.Marshal(run.Segment)
	if err != nil {
		return fmt.Errorf("run repo: encode segment: %w", err)
	}

	q := `INSERT INTO campaign_runs (
		id, segment, template, requested_by, state, total, sent, success_count, error_count,
		error, created_at, updated_at, started_at, completed_at
	) VALUES (
		:id, :segment, :template, :requested_by, :state, :total, :sent, :success_count, :error_count,
		:error, :created_at, :updated_at, :started_at, :completed_at
	)`

	params := map[string]any{
		"id":            run.ID,
		"segment":       segment,
		"template":      run.Template,
		"requested_by":  run.RequestedBy,
		"state":         string(run.State),
		"total":         run.Total,
		"sent":          run.Sent,
		"success_count": run.SuccessCount,
		"error_count":   run.ErrorCount,
		"error":         run.Error,
		"created_at":    run.CreatedAt,
		"updated_at":    run.CreatedAt,
		"started_at":    run.StartedAt,
		"completed_at":  run.CompletedAt,
	}

	if _, err := r.db.NamedExecContext(ctx, q, params); err != nil {
		return fmt.Errorf("run repo: insert: %w", err)
	}
	return nil
}

// Get fetches a run by id.
func (r *RunRepository) Get(ctx context.Context, id uuid.UUID) (*domain.CampaignRun, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT `+runColumns+` FROM campaign_runs WHERE id = $1`, id)

	var record runRecord
	if err := row.StructScan(&record); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: run %s", repository.ErrNotFound, id)
		}
		return nil, fmt.Errorf("run repo: get: %w", err)
	}
	return record.toDomain()
}

// MarkRunning moves a queued run to running and records the recipient count.
func (r *RunRepository) MarkRunning(ctx context.Context, id uuid.UUID, total int) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		state, err := lockState(ctx, tx, id)
		if err != nil {
			return err
		}
		if state != domain.RunStateQueued {
			return fmt.Errorf("%w: run %s is %s", repository.ErrConflict, id, state)
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE campaign_runs SET state = $1, total = $2, started_at = $3, updated_at = $3 WHERE id = $4`,
			string(domain.RunStateRunning), total, now, id,
		); err != nil {
			return fmt.Errorf("run repo: mark running: %w", err)
		}
		return nil
	})
}

// Finish writes the final tally. A run that already reached a terminal
// state is left untouched and ErrConflict is returned.
func (r *RunRepository) Finish(ctx context.Context, id uuid.UUID, outcome repository.RunOutcome) error {
	if !outcome.State.Terminal() {
		return fmt.Errorf("run repo: finish with non-terminal state %q", outcome.State)
	}

	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		state, err := lockState(ctx, tx, id)
		if err != nil {
			return err
		}
		if state.Terminal() {
			return fmt.Errorf("%w: run %s already %s", repository.ErrConflict, id, state)
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE campaign_runs SET state = $1, sent = $2, success_count = $3, error_count = $4, error = $5,
				completed_at = $6, updated_at = $6 WHERE id = $7`,
			string(outcome.State), outcome.Sent, outcome.SuccessCount, outcome.ErrorCount, outcome.Error, now, id,
		); err != nil {
			return fmt.Errorf("run repo: finish: %w", err)
		}
		return nil
	})
}

// List returns runs newest first. afterID continues from a previous page.
func (r *RunRepository) List(ctx context.Context, afterID *uuid.UUID, limit int) ([]*domain.CampaignRun, error) {
	if limit <= 0 {
		limit = 50
	}

	var (
		rows *sqlx.Rows
		err  error
	)
	if afterID != nil {
		rows, err = r.db.QueryxContext(ctx, `SELECT `+runColumns+` FROM campaign_runs
			WHERE created_at < (SELECT created_at FROM campaign_runs WHERE id = $1)
			ORDER BY created_at DESC LIMIT $2`, *afterID, limit)
	} else {
		rows, err = r.db.QueryxContext(ctx, `SELECT `+runColumns+` FROM campaign_runs
			ORDER BY created_at DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("run repo: list: %w", err)
	}
	return scanRuns(rows)
}

// ListByState returns up to limit runs in state, oldest first.
func (r *RunRepository) ListByState(ctx context.Context, state domain.RunState, limit int) ([]*domain.CampaignRun, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryxContext(ctx, `SELECT `+runColumns+` FROM campaign_runs
		WHERE state = $1 ORDER BY created_at ASC LIMIT $2`, string(state), limit)
	if err != nil {
		return nil, fmt.Errorf("run repo: list by state: %w", err)
	}
	return scanRuns(rows)
}

func scanRuns(rows *sqlx.Rows) ([]*domain.CampaignRun, error) {
	defer rows.Close()

	var results []*domain.CampaignRun
	for rows.Next() {
		var record runRecord
		if err := rows.StructScan(&record); err != nil {
			return nil, fmt.Errorf("run repo: scan: %w", err)
		}
		run, err := record.toDomain()
		if err != nil {
			return nil, err
		}
		results = append(results, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("run repo: rows err: %w", err)
	}
	return results, nil
}

func lockState(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (domain.RunState, error) {
	var state string
	if err := tx.QueryRowxContext(ctx, `SELECT state FROM campaign_runs WHERE id = $1 FOR UPDATE`, id).Scan(&state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: run %s", repository.ErrNotFound, id)
		}
		return "", fmt.Errorf("run repo: lock: %w", err)
	}
	return domain.RunState(state), nil
}

type runRecord struct {
	ID           uuid.UUID    `db:"id"`
	Segment      []byte       `db:"segment"`
	Template     string       `db:"template"`
	RequestedBy  string       `db:"requested_by"`
	State        string       `db:"state"`
	Total        int          `db:"total"`
	Sent         int          `db:"sent"`
	SuccessCount int          `db:"success_count"`
	ErrorCount   int          `db:"error_count"`
	Error        string       `db:"error"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
	StartedAt    sql.NullTime `db:"started_at"`
	CompletedAt  sql.NullTime `db:"completed_at"`
}

func (r runRecord) toDomain() (*domain.CampaignRun, error) {
	var segment domain.Segment
	if len(r.Segment) > 0 {
		if err := json.Unmarshal(r.Segment, &segment); err != nil {
			return nil, fmt.Errorf("run repo: decode segment: %w", err)
		}
	}

	run := &domain.CampaignRun{
		ID:           r.ID,
		Segment:      segment,
		Template:     r.Template,
		RequestedBy:  r.RequestedBy,
		State:        domain.RunState(r.State),
		Total:        r.Total,
		Sent:         r.Sent,
		SuccessCount: r.SuccessCount,
		ErrorCount:   r.ErrorCount,
		Error:        r.Error,
		CreatedAt:    r.CreatedAt,
	}
	if r.StartedAt.Valid {
		t := r.StartedAt.Time
		run.StartedAt = &t
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		run.CompletedAt = &t
	}
	return run, nil
}
