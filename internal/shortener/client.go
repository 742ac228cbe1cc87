// Package shortener wraps the TinyURL creation API used to shrink customer
// map links down to something a courier can retype from a printed label.
package shortener

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/shipbee/backoffice/pkg/errors"
)

const (
	defaultBaseURL             = "https://api.tinyurl.com"
	responseBodyReadLimit int64 = 1024

	aliasDigits = 5
)

var errAPIKeyRequired = errors.New("shortener api key is required")

// Client talks to the TinyURL v2 API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	domain     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithDomain sets the short-link domain requested on creation.
func WithDomain(domain string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(domain)
		if trimmed != "" {
			c.domain = trimmed
		}
	}
}

// NewClient builds the shortener client given an API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    defaultBaseURL,
		domain:     "tinyurl.com",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// CreateRequest describes the payload sent to the create endpoint.
type CreateRequest struct {
	URL         string   `json:"url"`
	Domain      string   `json:"domain,omitempty"`
	Alias       string   `json:"alias,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	ExpiresAt   string   `json:"expires_at,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Create shortens the given URL and returns the short link.
func (c *Client) Create(ctx context.Context, req CreateRequest) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "shortener client not configured")
	}
	if strings.TrimSpace(req.URL) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "url is required")
	}
	if req.Domain == "" {
		req.Domain = c.domain
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal create request")
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/create"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute create request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "create request failed")
	}

	var apiResp struct {
		Data struct {
			TinyURL string `json:"tiny_url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode create response")
	}
	if apiResp.Data.TinyURL == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "create response missing tiny_url")
	}
	return apiResp.Data.TinyURL, nil
}

// GenerateAlias builds a short-link alias from the customer name: spaces
// removed plus five random digits. Collisions are left to the API to report.
func GenerateAlias(name string) string {
	compact := strings.ReplaceAll(strings.TrimSpace(name), " ", "")
	digits := make([]byte, aliasDigits)
	for i := range digits {
		digits[i] = byte('0' + rand.Intn(10))
	}
	return compact + string(digits)
}
