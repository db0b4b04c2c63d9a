// ABOUTME: Twilio REST client for sending outbound WhatsApp messages
// ABOUTME: Wraps the Messages endpoint with basic auth and typed error decoding

package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.twilio.com"

// Receipt is the provider's acknowledgment of an accepted send request.
type Receipt struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// APIError captures a Twilio error response (bad number, auth failure,
// rate limit). The wrapped fields come from Twilio's JSON error body.
type APIError struct {
	StatusCode int    `json:"status"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twilio: status %d (code %d): %s", e.StatusCode, e.Code, e.Message)
}

// MessageSender is the outbound send contract consumed by the gateway.
// Tests inject a fake implementation.
type MessageSender interface {
	SendMessage(ctx context.Context, from, to, body, mediaURL string) (*Receipt, error)
}

// Client is a focused Twilio client for the Messages endpoint.
type Client struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Twilio API endpoint (used in tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Twilio client for the given account credentials.
func NewClient(accountSID, authToken string, opts ...Option) (*Client, error) {
	if accountSID == "" {
		return nil, errors.New("twilio: account SID must not be empty")
	}
	if authToken == "" {
		return nil, errors.New("twilio: auth token must not be empty")
	}

	c := &Client{
		accountSID: accountSID,
		authToken:  authToken,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SendMessage dispatches an outbound message via Twilio's Messages endpoint
// and returns the provider receipt. A media reference, if present, is passed
// as a single MediaUrl item per provider convention. Provider rejections are
// returned as *APIError and are never retried here.
func (c *Client) SendMessage(ctx context.Context, from, to, body, mediaURL string) (*Receipt, error) {
	if to == "" {
		return nil, errors.New("twilio: recipient must not be empty")
	}

	form := url.Values{}
	form.Set("From", from)
	form.Set("To", to)
	if body != "" {
		form.Set("Body", body)
	}
	if mediaURL != "" {
		form.Set("MediaUrl", mediaURL)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("twilio: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twilio: request failed: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("twilio: read response body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: res.StatusCode}
		// Twilio error bodies are JSON; fall back to the raw body if not
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		apiErr.StatusCode = res.StatusCode
		return nil, apiErr
	}

	var receipt Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, fmt.Errorf("twilio: decode response: %w", err)
	}
	if receipt.SID == "" {
		return nil, errors.New("twilio: response missing message sid")
	}

	return &receipt, nil
}

// Ensure Client implements MessageSender
var _ MessageSender = (*Client)(nil)
