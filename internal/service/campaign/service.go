package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/acme/crm-pro/internal/domain"
	"github.com/acme/crm-pro/internal/queue"
	"github.com/acme/crm-pro/internal/repository"
	"github.com/acme/crm-pro/internal/service/common"
	"github.com/acme/crm-pro/internal/telemetry"
	apperrors "github.com/acme/crm-pro/pkg/errors"
	"github.com/acme/crm-pro/pkg/logger"
	"github.com/acme/crm-pro/pkg/phone"
)

// RunPublisher enqueues run requests for the workers.
type RunPublisher interface {
	PublishRun(ctx context.Context, msg queue.CampaignRequest) error
}

// DeliveryPublisher emits per-recipient outcomes.
type DeliveryPublisher interface {
	PublishDelivery(ctx context.Context, msg queue.DeliveryEvent) error
}

// ProgressTracker holds live run counters and the cancel flag.
type ProgressTracker interface {
	Init(ctx context.Context, runID uuid.UUID, state domain.RunState, total int) error
	Update(ctx context.Context, p domain.RunProgress) error
	Get(ctx context.Context, runID uuid.UUID) (*domain.RunProgress, error)
	RequestCancel(ctx context.Context, runID uuid.UUID) error
	CancelRequested(ctx context.Context, runID uuid.UUID) (bool, error)
}

// AccountLimiter serializes runs that share a messaging account.
type AccountLimiter interface {
	Acquire(ctx context.Context, account string, limit int) (bool, error)
	Extend(ctx context.Context, account string) error
	Release(ctx context.Context, account string) error
}

// Options tune a Service.
type Options struct {
	CostPerMessage decimal.Decimal
	PreviewSize    int
	// SlotPollInterval is how often a run waiting for its account retries.
	SlotPollInterval time.Duration
}

// Service orchestrates campaign runs: previews and enqueueing on the API
// side, execution on the worker side.
type Service struct {
	store      repository.Store
	runs       repository.RunRepository
	deliveries repository.DeliveryLog
	publisher  RunPublisher
	events     DeliveryPublisher
	progress   ProgressTracker
	limiter    AccountLimiter
	dispatcher *Dispatcher
	metrics    *telemetry.Metrics
	log        *logger.Logger
	opts       Options
}

// Deps groups the collaborators of a Service.
type Deps struct {
	Store      repository.Store
	Runs       repository.RunRepository
	Deliveries repository.DeliveryLog
	Publisher  RunPublisher
	Events     DeliveryPublisher
	Progress   ProgressTracker
	Limiter    AccountLimiter
	Dispatcher *Dispatcher
	Metrics    *telemetry.Metrics
	Logger     *logger.Logger
}

// NewService constructs a campaign service.
func NewService(deps Deps, opts Options) *Service {
	if opts.CostPerMessage.IsZero() {
		opts.CostPerMessage = DefaultCostPerMessage
	}
	if opts.PreviewSize <= 0 {
		opts.PreviewSize = 5
	}
	if opts.SlotPollInterval <= 0 {
		opts.SlotPollInterval = 500 * time.Millisecond
	}
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:      deps.Store,
		runs:       deps.Runs,
		deliveries: deps.Deliveries,
		publisher:  deps.Publisher,
		events:     deps.Events,
		progress:   deps.Progress,
		limiter:    deps.Limiter,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		log:        log,
		opts:       opts,
	}
}

// Sample is one rendered message of a preview.
type Sample struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// Preview describes what a run would do without sending anything.
type Preview struct {
	Estimate Estimate `json:"estimate"`
	Samples  []Sample `json:"samples"`
}

// StartInput captures run creation parameters.
type StartInput struct {
	Segment     domain.Segment
	Template    string
	RequestedBy string
}

// RunStatus is a run record with live progress merged in.
type RunStatus struct {
	Run      *domain.CampaignRun `json:"run"`
	Progress *domain.RunProgress `json:"progress,omitempty"`
}

// Preview renders the first messages of a segment and estimates the run.
func (s *Service) Preview(ctx context.Context, segment domain.Segment, template string) (*Preview, error) {
	if err := validateInput(segment, template); err != nil {
		return nil, err
	}
	clients, err := s.recipients(ctx, segment)
	if err != nil {
		return nil, err
	}

	preview := &Preview{
		Estimate: NewEstimate(len(clients), s.opts.CostPerMessage),
		Samples:  make([]Sample, 0, min(len(clients), s.opts.PreviewSize)),
	}
	for i, c := range clients {
		if i == s.opts.PreviewSize {
			break
		}
		preview.Samples = append(preview.Samples, Sample{
			Name:    c.Name,
			Phone:   phone.DisplayNormalized(c.Phone),
			Message: Personalize(template, c.Recipient()),
		})
	}
	return preview, nil
}

// Start records a queued run and hands it to the workers. Missing
// credentials are reported here so nothing is queued that cannot send.
func (s *Service) Start(ctx context.Context, input StartInput) (*domain.CampaignRun, error) {
	if err := validateInput(input.Segment, input.Template); err != nil {
		return nil, err
	}

	creds, err := s.store.Credentials().All(ctx)
	if err != nil {
		return nil, fmt.Errorf("campaign service: load credentials: %w", err)
	}
	if err := creds.WhatsApp().Validate(); err != nil {
		return nil, err
	}

	run := &domain.CampaignRun{
		ID:          uuid.New(),
		Segment:     input.Segment,
		Template:    input.Template,
		RequestedBy: input.RequestedBy,
		State:       domain.RunStateQueued,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("campaign service: create run: %w", err)
	}
	if err := s.progress.Init(ctx, run.ID, domain.RunStateQueued, 0); err != nil {
		s.log.WithContext(ctx).Warn("campaign service: init progress", zap.String("run_id", run.ID.String()), zap.Error(err))
	}

	msg := queue.CampaignRequest{RunID: run.ID, RequestedBy: run.RequestedBy, EnqueuedAt: run.CreatedAt}
	if err := s.publisher.PublishRun(ctx, msg); err != nil {
		s.finish(context.WithoutCancel(ctx), run.ID, 0, repository.RunOutcome{State: domain.RunStateFailed, Error: "enqueue failed"}, false)
		return nil, fmt.Errorf("%w: campaign service: enqueue run: %v", apperrors.ErrUnavailable, err)
	}

	s.log.WithContext(ctx).Info("campaign service: run queued",
		zap.String("run_id", run.ID.String()),
		zap.String("segment", string(input.Segment.Kind)),
		zap.String("requested_by", input.RequestedBy),
	)
	return run, nil
}

// Execute performs a queued run. Redelivered requests for runs that already
// left the queued state are ignored.
func (s *Service) Execute(ctx context.Context, req queue.CampaignRequest) error {
	log := s.log.WithContext(ctx).With(zap.String("run_id", req.RunID.String()))

	run, err := s.runs.Get(ctx, req.RunID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("campaign service: load run: %w", err)
		}
		return fmt.Errorf("%w: campaign service: load run: %v", apperrors.ErrUnavailable, err)
	}
	if run.State != domain.RunStateQueued {
		log.Info("campaign service: skipping run", zap.String("state", string(run.State)))
		return nil
	}

	if cancelled, _ := s.progress.CancelRequested(ctx, run.ID); cancelled {
		s.finish(ctx, run.ID, 0, repository.RunOutcome{State: domain.RunStateCancelled}, false)
		return nil
	}

	creds, err := s.store.Credentials().All(ctx)
	if err != nil {
		s.finish(ctx, run.ID, 0, repository.RunOutcome{State: domain.RunStateFailed, Error: err.Error()}, false)
		return fmt.Errorf("campaign service: load credentials: %w", err)
	}
	wa := creds.WhatsApp()
	if err := wa.Validate(); err != nil {
		s.finish(ctx, run.ID, 0, repository.RunOutcome{State: domain.RunStateFailed, Error: err.Error()}, false)
		return err
	}

	clients, err := s.recipients(ctx, run.Segment)
	if err != nil {
		s.finish(ctx, run.ID, 0, repository.RunOutcome{State: domain.RunStateFailed, Error: err.Error()}, false)
		return err
	}
	recipients := make([]domain.Recipient, len(clients))
	for i, c := range clients {
		recipients[i] = c.Recipient()
	}

	release, err := s.waitForAccount(ctx, run.ID, wa.PhoneID)
	if err != nil {
		if errors.Is(err, errCancelledWhileWaiting) {
			s.finish(ctx, run.ID, 0, repository.RunOutcome{State: domain.RunStateCancelled}, false)
			return nil
		}
		s.finish(context.WithoutCancel(ctx), run.ID, 0, repository.RunOutcome{State: domain.RunStateFailed, Error: err.Error()}, false)
		return err
	}
	defer release()

	if err := s.runs.MarkRunning(ctx, run.ID, len(recipients)); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			log.Info("campaign service: run left the queue before start", zap.Error(err))
			return nil
		}
		s.finish(context.WithoutCancel(ctx), run.ID, len(recipients), repository.RunOutcome{
			State: domain.RunStateFailed,
			Error: "mark running: " + err.Error(),
		}, false)
		return fmt.Errorf("campaign service: mark running: %w", err)
	}
	if err := s.progress.Init(ctx, run.ID, domain.RunStateRunning, len(recipients)); err != nil {
		log.Warn("campaign service: init progress", zap.Error(err))
	}
	s.metrics.RunStarted()
	log.Info("campaign service: run started", zap.Int("recipients", len(recipients)))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var cancelRequested bool
	onProgress := func(p Progress) {
		s.reportProgress(runCtx, run.ID, p)
		s.publishDelivery(runCtx, run.ID, p)
		if s.limiter != nil && p.Sent%10 == 0 {
			if err := s.limiter.Extend(runCtx, wa.PhoneID); err != nil {
				log.Warn("campaign service: extend account slot", zap.Error(err))
			}
		}
		if requested, err := s.progress.CancelRequested(runCtx, run.ID); err == nil && requested {
			cancelRequested = true
			cancel()
		}
	}

	result, err := s.dispatcher.Dispatch(runCtx, creds, recipients, run.Template, onProgress)

	outcome := repository.RunOutcome{
		Sent:         result.SuccessCount + result.ErrorCount,
		SuccessCount: result.SuccessCount,
		ErrorCount:   result.ErrorCount,
	}
	switch {
	case err != nil:
		outcome.State = domain.RunStateFailed
		outcome.Error = err.Error()
	case result.Complete:
		outcome.State = domain.RunStateCompleted
	case cancelRequested:
		outcome.State = domain.RunStateCancelled
	default:
		outcome.State = domain.RunStateFailed
		outcome.Error = "interrupted: " + context.Cause(ctx).Error()
	}

	s.finish(context.WithoutCancel(ctx), run.ID, len(recipients), outcome, true)
	log.Info("campaign service: run finished",
		zap.String("state", string(outcome.State)),
		zap.Int("success", outcome.SuccessCount),
		zap.Int("errors", outcome.ErrorCount),
	)
	return err
}

// Status returns a run with its live counters when available.
func (s *Service) Status(ctx context.Context, id uuid.UUID) (*RunStatus, error) {
	run, err := s.runs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	status := &RunStatus{Run: run}
	if p, err := s.progress.Get(ctx, id); err == nil {
		status.Progress = p
	}
	return status, nil
}

// Cancel stops a queued or running run. Queued runs are closed at once;
// running ones stop after the send in flight.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	run, err := s.runs.Get(ctx, id)
	if err != nil {
		return err
	}
	if run.State.Terminal() {
		return fmt.Errorf("%w: run %s is already %s", apperrors.ErrConflict, id, run.State)
	}

	if err := s.progress.RequestCancel(ctx, id); err != nil {
		return fmt.Errorf("campaign service: request cancel: %w", err)
	}
	if run.State == domain.RunStateQueued {
		if err := s.runs.Finish(ctx, id, repository.RunOutcome{State: domain.RunStateCancelled}); err != nil && !errors.Is(err, apperrors.ErrConflict) {
			return fmt.Errorf("campaign service: cancel queued run: %w", err)
		}
	}
	s.log.WithContext(ctx).Info("campaign service: cancel requested", zap.String("run_id", id.String()))
	return nil
}

// History lists past runs, newest first.
func (s *Service) History(ctx context.Context, afterID *uuid.UUID, limit int) ([]*domain.CampaignRun, error) {
	return s.runs.List(ctx, afterID, limit)
}

// Deliveries pages through the delivery log of a run. pageToken is the
// opaque token returned by the previous call.
func (s *Service) Deliveries(ctx context.Context, id uuid.UUID, limit int, pageToken string) ([]domain.Delivery, string, error) {
	state, err := common.DecodePageToken(pageToken)
	if err != nil {
		return nil, "", err
	}
	deliveries, next, err := s.deliveries.ListByRun(ctx, id, limit, state)
	if err != nil {
		return nil, "", err
	}
	return deliveries, common.EncodePageToken(next), nil
}

// Estimate returns the estimates for n recipients at the configured rate.
func (s *Service) Estimate(n int) Estimate {
	return NewEstimate(n, s.opts.CostPerMessage)
}

func (s *Service) recipients(ctx context.Context, segment domain.Segment) ([]domain.Client, error) {
	clients, err := s.store.Clients().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("campaign service: list clients: %w", err)
	}
	return segment.Filter(clients), nil
}

var errCancelledWhileWaiting = errors.New("cancelled while waiting for account")

func (s *Service) waitForAccount(ctx context.Context, runID uuid.UUID, account string) (func(), error) {
	if s.limiter == nil {
		return func() {}, nil
	}

	for {
		acquired, err := s.limiter.Acquire(ctx, account, 1)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if acquired {
			release := func() {
				if err := s.limiter.Release(context.Background(), account); err != nil {
					s.log.Warn("campaign service: release account slot", zap.Error(err))
				}
			}
			return release, nil
		}

		if cancelled, _ := s.progress.CancelRequested(ctx, runID); cancelled {
			return nil, errCancelledWhileWaiting
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.opts.SlotPollInterval):
		}
	}
}

func (s *Service) reportProgress(ctx context.Context, runID uuid.UUID, p Progress) {
	err := s.progress.Update(ctx, domain.RunProgress{
		RunID:        runID,
		State:        domain.RunStateRunning,
		Total:        p.Total,
		Sent:         p.Sent,
		SuccessCount: p.SuccessCount,
		ErrorCount:   p.ErrorCount,
	})
	if err != nil {
		s.log.WithContext(ctx).Warn("campaign service: update progress", zap.String("run_id", runID.String()), zap.Error(err))
	}
}

func (s *Service) publishDelivery(ctx context.Context, runID uuid.UUID, p Progress) {
	if s.events == nil {
		return
	}
	ev := queue.DeliveryEvent{
		RunID:      runID,
		Position:   p.Attempt.Position,
		Total:      p.Total,
		Phone:      p.Attempt.Phone,
		Status:     string(domain.DeliveryStatusSent),
		MessageID:  p.Attempt.MessageID,
		DurationMs: p.Attempt.Duration.Milliseconds(),
		OccurredAt: time.Now().UTC(),
	}
	if p.Attempt.Err != nil {
		ev.Status = string(domain.DeliveryStatusFailed)
		ev.Error = p.Attempt.Err.Error()
	}
	if err := s.events.PublishDelivery(context.WithoutCancel(ctx), ev); err != nil {
		s.log.WithContext(ctx).Warn("campaign service: publish delivery", zap.String("run_id", runID.String()), zap.Error(err))
	}
}

func (s *Service) finish(ctx context.Context, runID uuid.UUID, total int, outcome repository.RunOutcome, started bool) {
	log := s.log.WithContext(ctx).With(zap.String("run_id", runID.String()))
	if err := s.runs.Finish(ctx, runID, outcome); err != nil {
		log.Error("campaign service: finish run", zap.Error(err))
	}
	err := s.progress.Update(ctx, domain.RunProgress{
		RunID:        runID,
		State:        outcome.State,
		Total:        total,
		Sent:         outcome.Sent,
		SuccessCount: outcome.SuccessCount,
		ErrorCount:   outcome.ErrorCount,
	})
	if err != nil {
		log.Warn("campaign service: final progress", zap.Error(err))
	}
	s.metrics.RunFinished(string(outcome.State), started)
}

func validateInput(segment domain.Segment, template string) error {
	if err := segment.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(template) == "" {
		return fmt.Errorf("%w: message template is required", apperrors.ErrValidation)
	}
	return nil
}
