package messaging

import (
	"context"
	"time"

	"github.com/acme/crm-pro/internal/domain"
)

// Receipt captures the outcome of an accepted message.
type Receipt struct {
	MessageID string
	Duration  time.Duration
}

// Sender abstracts the messaging integration. to is the digit-only
// international number. A rejected message returns an error wrapping
// ErrSendFailed.
type Sender interface {
	Send(ctx context.Context, to, body string, creds domain.WhatsAppCredentials) (Receipt, error)
}
