package mock

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/crm-pro/internal/domain"
	apperrors "github.com/acme/crm-pro/pkg/errors"
)

var creds = domain.WhatsAppCredentials{PhoneID: "1", AccessToken: "t"}

func TestSenderAlwaysSucceeds(t *testing.T) {
	s := NewSeeded(1, 0, 42)
	for i := 0; i < 20; i++ {
		r, err := s.Send(context.Background(), "212679752339", "hi", creds)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(r.MessageID, "mock."))
	}
}

func TestSenderAlwaysFails(t *testing.T) {
	s := NewSeeded(0, 0, 42)
	_, err := s.Send(context.Background(), "212679752339", "hi", creds)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrSendFailed))
}

func TestSenderRequiresCredentials(t *testing.T) {
	s := NewSeeded(1, 0, 42)
	_, err := s.Send(context.Background(), "212679752339", "hi", domain.WhatsAppCredentials{})
	assert.True(t, apperrors.Is(err, apperrors.ErrConfiguration))
}
