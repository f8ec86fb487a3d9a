// Package whatsapp sends text messages through the WhatsApp Business Cloud
// API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/acme/crm-pro/internal/config"
	"github.com/acme/crm-pro/internal/domain"
	"github.com/acme/crm-pro/internal/messaging"
	apperrors "github.com/acme/crm-pro/pkg/errors"
)

const defaultErrorMessage = "failed to send WhatsApp message"

// Client is a messaging.Sender for the Graph API.
type Client struct {
	baseURL    string
	apiVersion string
	http       *http.Client
}

var _ messaging.Sender = (*Client)(nil)

// NewClient constructs a client. A nil httpClient gets one with the
// configured timeout.
func NewClient(cfg config.WhatsAppConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://graph.facebook.com"
	}
	version := cfg.APIVersion
	if version == "" {
		version = "v18.0"
	}
	return &Client{baseURL: base, apiVersion: version, http: httpClient}
}

type textBody struct {
	Body string `json:"body"`
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Send posts one text message.
func (c *Client) Send(ctx context.Context, to, body string, creds domain.WhatsAppCredentials) (messaging.Receipt, error) {
	if err := creds.Validate(); err != nil {
		return messaging.Receipt{}, err
	}

	payload, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: body},
	})
	if err != nil {
		return messaging.Receipt{}, fmt.Errorf("whatsapp: marshal: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, creds.PhoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return messaging.Receipt{}, fmt.Errorf("whatsapp: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return messaging.Receipt{}, fmt.Errorf("%w: whatsapp: %v", apperrors.ErrSendFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return messaging.Receipt{}, fmt.Errorf("%w: whatsapp: read response: %v", apperrors.ErrSendFailed, err)
	}
	elapsed := time.Since(start)

	var out sendResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := defaultErrorMessage
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return messaging.Receipt{Duration: elapsed}, fmt.Errorf("%w: whatsapp: status %d: %s", apperrors.ErrSendFailed, resp.StatusCode, msg)
	}

	receipt := messaging.Receipt{Duration: elapsed}
	if decodeErr == nil && len(out.Messages) > 0 {
		receipt.MessageID = out.Messages[0].ID
	}
	return receipt, nil
}
