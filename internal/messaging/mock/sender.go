package mock

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acme/crm-pro/internal/config"
	"github.com/acme/crm-pro/internal/domain"
	"github.com/acme/crm-pro/internal/messaging"
	apperrors "github.com/acme/crm-pro/pkg/errors"
)

// Sender simulates the messaging API for local runs.
type Sender struct {
	successRate float64
	latency     time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

var _ messaging.Sender = (*Sender)(nil)

// NewSender constructs a mock sender from config.
func NewSender(cfg config.WhatsAppConfig) *Sender {
	return NewSeeded(cfg.MockSuccess, cfg.MockLatency, time.Now().UnixNano())
}

// NewSeeded constructs a mock sender with deterministic randomness.
func NewSeeded(successRate float64, latency time.Duration, seed int64) *Sender {
	return &Sender{
		successRate: successRate,
		latency:     latency,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Send simulates a message attempt.
func (s *Sender) Send(ctx context.Context, to, body string, creds domain.WhatsAppCredentials) (messaging.Receipt, error) {
	if err := creds.Validate(); err != nil {
		return messaging.Receipt{}, err
	}

	s.mu.Lock()
	var jitter time.Duration
	if s.latency > 0 {
		jitter = time.Duration(s.rng.Int63n(int64(s.latency)))
	}
	ok := s.rng.Float64() < s.successRate
	s.mu.Unlock()

	wait := s.latency/2 + jitter/2
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return messaging.Receipt{Duration: wait}, fmt.Errorf("%w: mock: %v", apperrors.ErrSendFailed, ctx.Err())
		case <-timer.C:
		}
	}

	if !ok {
		return messaging.Receipt{Duration: wait}, fmt.Errorf("%w: mock: simulated failure for %s", apperrors.ErrSendFailed, to)
	}
	return messaging.Receipt{MessageID: "mock." + uuid.NewString(), Duration: wait}, nil
}
