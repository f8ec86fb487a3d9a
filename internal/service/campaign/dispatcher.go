package campaign

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/crm-pro/internal/domain"
	"github.com/acme/crm-pro/internal/messaging"
	"github.com/acme/crm-pro/internal/telemetry"
	"github.com/acme/crm-pro/pkg/logger"
	"github.com/acme/crm-pro/pkg/phone"
)

// DefaultSendDelay is the pause after every send attempt.
const DefaultSendDelay = time.Second

// Sleeper waits between sends. Sleep returns early with the context error
// when ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper waits on a real timer.
type TimerSleeper struct{}

// Sleep implements Sleeper.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Attempt describes a single send within a run.
type Attempt struct {
	Position  int
	Phone     string
	MessageID string
	Err       error
	Duration  time.Duration
}

// Progress is reported after every attempt. Sent counts processed
// recipients, starting at 1.
type Progress struct {
	Sent         int
	Total        int
	SuccessCount int
	ErrorCount   int
	Attempt      Attempt
}

// ProgressFunc receives progress reports. It runs on the dispatch goroutine
// and delays the next send while it executes.
type ProgressFunc func(Progress)

// Result is the tally of a dispatch. Complete is false when the run was
// cancelled before every recipient was processed.
type Result struct {
	SuccessCount int
	ErrorCount   int
	Complete     bool
}

// Dispatcher sends one personalized message per recipient, strictly in
// order and one at a time.
type Dispatcher struct {
	sender  messaging.Sender
	sleeper Sleeper
	delay   time.Duration
	log     *logger.Logger
	metrics *telemetry.Metrics
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSleeper replaces the timer based sleeper.
func WithSleeper(s Sleeper) DispatcherOption {
	return func(d *Dispatcher) { d.sleeper = s }
}

// WithDelay sets the pause after each attempt. Negative values mean none.
func WithDelay(delay time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.delay = delay }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = l }
}

// WithMetrics records send outcomes.
func WithMetrics(m *telemetry.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(sender messaging.Sender, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sender:  sender,
		sleeper: TimerSleeper{},
		delay:   DefaultSendDelay,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs a campaign over recipients.
//
// Missing WhatsApp credentials fail the call with ErrConfiguration before
// anything is sent. Individual send failures are counted and never stop the
// run. ctx is checked before every send; once it is done the counts so far
// are returned with Complete false and a nil error.
func (d *Dispatcher) Dispatch(ctx context.Context, creds domain.Credentials, recipients []domain.Recipient, template string, progress ProgressFunc) (Result, error) {
	wa := creds.WhatsApp()
	if err := wa.Validate(); err != nil {
		return Result{}, err
	}

	total := len(recipients)
	if total == 0 {
		return Result{Complete: true}, nil
	}

	tracer := otel.Tracer("crm.campaign")
	ctx, span := tracer.Start(ctx, "campaign.run", trace.WithAttributes(
		attribute.Int("campaign.recipients", total),
	))
	defer span.End()

	log := d.log.WithContext(ctx)
	var result Result

	for i, r := range recipients {
		if err := ctx.Err(); err != nil {
			log.Info("campaign: dispatch cancelled",
				zap.Int("processed", i),
				zap.Int("total", total),
			)
			span.SetAttributes(attribute.Bool("campaign.cancelled", true))
			return result, nil
		}

		attempt := d.send(ctx, tracer, wa, r, template, i+1)
		if attempt.Err != nil {
			result.ErrorCount++
			log.Warn("campaign: send failed",
				zap.Int("position", attempt.Position),
				zap.String("phone", logger.RedactPhone(attempt.Phone)),
				zap.Error(attempt.Err),
			)
		} else {
			result.SuccessCount++
		}
		d.metrics.ObserveSend(attempt.Err == nil, attempt.Duration)

		if progress != nil {
			progress(Progress{
				Sent:         i + 1,
				Total:        total,
				SuccessCount: result.SuccessCount,
				ErrorCount:   result.ErrorCount,
				Attempt:      attempt,
			})
		}

		if err := d.sleeper.Sleep(ctx, d.delay); err != nil {
			result.Complete = i+1 == total
			span.SetAttributes(attribute.Bool("campaign.cancelled", !result.Complete))
			return result, nil
		}
	}

	result.Complete = true
	span.SetAttributes(
		attribute.Int("campaign.success", result.SuccessCount),
		attribute.Int("campaign.errors", result.ErrorCount),
	)
	return result, nil
}

func (d *Dispatcher) send(ctx context.Context, tracer trace.Tracer, creds domain.WhatsAppCredentials, r domain.Recipient, template string, position int) Attempt {
	to := phone.DigitsOnly(r.Phone)
	body := Personalize(template, r)

	sctx, span := tracer.Start(ctx, "campaign.send", trace.WithAttributes(
		attribute.Int("campaign.position", position),
	))
	defer span.End()

	start := time.Now()
	receipt, err := d.sender.Send(sctx, to, body, creds)
	elapsed := receipt.Duration
	if elapsed <= 0 {
		elapsed = time.Since(start)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
	}
	return Attempt{
		Position:  position,
		Phone:     to,
		MessageID: receipt.MessageID,
		Err:       err,
		Duration:  elapsed,
	}
}
