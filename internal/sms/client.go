// Package sms sends text messages through a Twilio-compatible REST gateway.
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/phone"
)

// Sender delivers one SMS and returns the gateway message id.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// ErrInvalidNumber is returned for numbers that do not normalize to E.164.
var ErrInvalidNumber = fmt.Errorf("invalid phone number")

type Client struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	http       *http.Client
	log        *logger.Logger
}

type messageResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewClient returns nil when no gateway is configured.
func NewClient(cfg config.SMSConfig, log *logger.Logger) *Client {
	if cfg.GetSMSBaseURL() == "" || cfg.GetSMSAccountSID() == "" {
		return nil
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.GetSMSBaseURL(), "/"),
		accountSID: cfg.GetSMSAccountSID(),
		authToken:  cfg.GetSMSAuthToken(),
		from:       cfg.GetSMSFromNumber(),
		http:       &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

func (c *Client) Send(ctx context.Context, to, body string) (string, error) {
	normalized := phone.NormalizeE164(to)
	if !phone.IsE164(normalized) {
		return "", ErrInvalidNumber
	}

	form := url.Values{}
	form.Set("To", normalized)
	form.Set("From", c.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(c.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var decoded messageResponse
	_ = json.Unmarshal(data, &decoded)

	c.log.Info("sms sent", "to", normalized, "sid", decoded.SID)
	return decoded.SID, nil
}
