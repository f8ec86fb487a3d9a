package domain

import (
	"fmt"
	"strings"

	apperrors "github.com/acme/crm-pro/pkg/errors"
)

// Well known keys of the Keys sheet.
const (
	KeyWhatsAppPhoneID     = "whatsapp_phone_id"
	KeyWhatsAppAccessToken = "whatsapp_access_token"
	KeyWhatsAppBusinessID  = "whatsapp_business_id"
	KeyOpenAIAPIKey        = "openai_api_key"
)

// Credentials is the key/value content of the Keys sheet.
type Credentials map[string]string

// WhatsApp extracts the messaging credentials. Values are trimmed, so a
// whitespace-only cell counts as missing.
func (c Credentials) WhatsApp() WhatsAppCredentials {
	return WhatsAppCredentials{
		PhoneID:     strings.TrimSpace(c[KeyWhatsAppPhoneID]),
		AccessToken: strings.TrimSpace(c[KeyWhatsAppAccessToken]),
	}
}

// WhatsAppCredentials identify the sending business number.
type WhatsAppCredentials struct {
	PhoneID     string
	AccessToken string
}

// Validate fails with ErrConfiguration when either value is missing.
func (w WhatsAppCredentials) Validate() error {
	var missing []string
	if w.PhoneID == "" {
		missing = append(missing, KeyWhatsAppPhoneID)
	}
	if w.AccessToken == "" {
		missing = append(missing, KeyWhatsAppAccessToken)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: whatsapp credentials missing: %s", apperrors.ErrConfiguration, strings.Join(missing, ", "))
	}
	return nil
}
