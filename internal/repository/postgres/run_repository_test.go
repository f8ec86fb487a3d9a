package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/crm-pro/internal/domain"
	"github.com/acme/crm-pro/internal/repository"
	apperrors "github.com/acme/crm-pro/pkg/errors"
)

func newMockRepo(t *testing.T) (*RunRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRunRepository(sqlx.NewDb(db, "pgx")), mock
}

var selectState = regexp.QuoteMeta(`SELECT state FROM campaign_runs WHERE id = $1 FOR UPDATE`)

func TestCreateInsertsRun(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO campaign_runs`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &domain.CampaignRun{
		ID:        uuid.New(),
		Segment:   domain.Segment{Kind: domain.SegmentAll},
		Template:  "Hi {name}",
		State:     domain.RunStateQueued,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMapsRecord(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	created := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	started := created.Add(time.Minute)

	rows := sqlmock.NewRows([]string{"id", "segment", "template", "requested_by", "state", "total", "sent",
		"success_count", "error_count", "error", "created_at", "updated_at", "started_at", "completed_at"}).
		AddRow(id.String(), []byte(`{"kind":"custom","city":"Rabat"}`), "Hi {name}", "admin", "running", 3, 1,
			1, 0, "", created, started, started, nil)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM campaign_runs WHERE id = $1`)).WillReturnRows(rows)

	run, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, run.ID)
	assert.Equal(t, domain.SegmentCustom, run.Segment.Kind)
	assert.Equal(t, "Rabat", run.Segment.City)
	assert.Equal(t, domain.RunStateRunning, run.State)
	require.NotNil(t, run.StartedAt)
	assert.Equal(t, started, *run.StartedAt)
	assert.Nil(t, run.CompletedAt)
}

func TestGetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM campaign_runs WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Get(context.Background(), uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestMarkRunningFromQueued(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(selectState).WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow("queued"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE campaign_runs SET state = $1, total = $2`)).
		WithArgs("running", 7, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.MarkRunning(context.Background(), id, 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishRefusesTerminalRun(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(selectState).WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow("cancelled"))
	mock.ExpectRollback()

	err := repo.Finish(context.Background(), uuid.New(), repository.RunOutcome{State: domain.RunStateCompleted})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishWritesTally(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(selectState).WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow("running"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE campaign_runs SET state = $1, sent = $2`)).
		WithArgs("completed", 3, 2, 1, "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Finish(context.Background(), uuid.New(), repository.RunOutcome{
		State: domain.RunStateCompleted, Sent: 3, SuccessCount: 2, ErrorCount: 1,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishRejectsNonTerminalOutcome(t *testing.T) {
	repo, _ := newMockRepo(t)
	err := repo.Finish(context.Background(), uuid.New(), repository.RunOutcome{State: domain.RunStateRunning})
	assert.Error(t, err)
}

func TestListNewestFirst(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "segment", "template", "requested_by", "state", "total", "sent",
		"success_count", "error_count", "error", "created_at", "updated_at", "started_at", "completed_at"}).
		AddRow(uuid.NewString(), []byte(`{"kind":"all"}`), "a", "admin", "completed", 2, 2, 2, 0, "", now, now, now, now).
		AddRow(uuid.NewString(), []byte(`{"kind":"delivered"}`), "b", "admin", "queued", 0, 0, 0, 0, "", now, now, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at DESC LIMIT $1`)).WithArgs(50).WillReturnRows(rows)

	runs, err := repo.List(context.Background(), nil, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, domain.RunStateCompleted, runs[0].State)
	assert.Equal(t, domain.SegmentDelivered, runs[1].Segment.Kind)
}

func TestListByStateOldestFirst(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "segment", "template", "requested_by", "state", "total", "sent",
		"success_count", "error_count", "error", "created_at", "updated_at", "started_at", "completed_at"}).
		AddRow(uuid.NewString(), []byte(`{"kind":"all"}`), "a", "admin", "running", 4, 1, 1, 0, "", now, now, now, nil)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE state = $1 ORDER BY created_at ASC LIMIT $2`)).
		WithArgs("running", 100).WillReturnRows(rows)

	runs, err := repo.ListByState(context.Background(), domain.RunStateRunning, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 4, runs[0].Total)
	require.NoError(t, mock.ExpectationsWereMet())
}
