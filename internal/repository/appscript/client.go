// Package appscript talks to the Google Apps Script web app that fronts the
// CRM spreadsheet. Every sheet is read with a GET and mutated with a JSON
// POST carrying an action name.
package appscript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/acme/crm-pro/internal/config"
	apperrors "github.com/acme/crm-pro/pkg/errors"
	"github.com/acme/crm-pro/pkg/logger"
	"github.com/acme/crm-pro/pkg/phone"
)

const scriptHost = "https://script.google.com"

// Sheet names used by the script.
const (
	SheetClients = "Clients"
	SheetUsers   = "Users"
	SheetKeys    = "Keys"
)

// Configured reports whether rawURL looks like a deployed Apps Script URL.
func Configured(rawURL string) bool {
	return rawURL != "" && rawURL != "YOUR_DEPLOYMENT_URL_HERE" && strings.HasPrefix(rawURL, scriptHost)
}

// Client performs the HTTP calls.
type Client struct {
	endpoint    string
	countryCode string
	http        *http.Client
	log         *logger.Logger
}

// NewClient constructs a client. A nil httpClient gets one with the
// configured request timeout.
func NewClient(cfg config.SheetsConfig, httpClient *http.Client, log *logger.Logger) *Client {
	if httpClient == nil {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if log == nil {
		log = logger.Nop()
	}
	cc := cfg.DefaultCountryCode
	if cc == "" {
		cc = phone.DefaultCountryCode
	}
	return &Client{
		endpoint:    cfg.AppsScriptURL,
		countryCode: cc,
		http:        httpClient,
		log:         log,
	}
}

type fetchResponse struct {
	Success bool        `json:"success"`
	Data    []phone.Row `json:"data"`
	Error   string      `json:"error"`
}

type writeRequest struct {
	Action string         `json:"action"`
	Sheet  string         `json:"sheet"`
	Index  *int           `json:"index,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
	Key    string         `json:"key,omitempty"`
	Value  string         `json:"value,omitempty"`
}

type writeResponse struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

// fetch returns the raw rows of a sheet.
func (c *Client) fetch(ctx context.Context, sheet string) ([]phone.Row, error) {
	q := url.Values{}
	q.Set("action", "fetch")
	q.Set("sheet", sheet)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("appscript: build fetch %s: %w", sheet, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: appscript: fetch %s: %v", apperrors.ErrUnavailable, sheet, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: appscript: fetch %s: status %d", apperrors.ErrUnavailable, sheet, resp.StatusCode)
	}

	var out fetchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: appscript: decode %s: %v", apperrors.ErrUnavailable, sheet, err)
	}
	if !out.Success || out.Data == nil {
		return nil, fmt.Errorf("%w: appscript: fetch %s rejected: %s", apperrors.ErrUnavailable, sheet, out.Error)
	}
	return out.Data, nil
}

// write posts a mutation. Responses that are not JSON (the script often
// answers with a redirect page) count as processed.
func (c *Client) write(ctx context.Context, payload writeRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("appscript: marshal %s: %w", payload.Action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("appscript: build %s: %w", payload.Action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: appscript: %s %s: %v", apperrors.ErrUnavailable, payload.Action, payload.Sheet, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: appscript: read %s response: %v", apperrors.ErrUnavailable, payload.Action, err)
	}

	var out writeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		c.log.Debug("appscript: non-json write response treated as processed",
			zap.String("action", payload.Action),
			zap.Int("status", resp.StatusCode),
		)
		return nil
	}
	if out.Success != nil && !*out.Success {
		return fmt.Errorf("%w: appscript: %s %s rejected: %s", apperrors.ErrUnavailable, payload.Action, payload.Sheet, out.Error)
	}
	return nil
}
