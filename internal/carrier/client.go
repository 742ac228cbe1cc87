// Package carrier wraps the RTD delivery API: merchant sign-in for a bearer
// token, then parcel creation with the shop's fixed delivery parameters.
package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shipbee/backoffice/pkg/config"
	pkgerrors "github.com/shipbee/backoffice/pkg/errors"
)

const responseBodyReadLimit int64 = 1024

// Client talks to the carrier's merchant API. Every request carries the
// apiKey header; parcel creation additionally needs the bearer token from
// SignIn.
type Client struct {
	cfg        config.CarrierConfig
	httpClient *http.Client
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

// NewClient builds the carrier client from its config section.
func NewClient(cfg config.CarrierConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("carrier api key is required")
	}
	if strings.TrimSpace(cfg.Email) == "" || strings.TrimSpace(cfg.Password) == "" {
		return nil, fmt.Errorf("carrier credentials are required")
	}

	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// SignIn exchanges the merchant credentials for a bearer token.
func (c *Client) SignIn(ctx context.Context) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "carrier client not configured")
	}

	payload, err := json.Marshal(map[string]string{
		"email":    c.cfg.Email,
		"password": c.cfg.Password,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal signin request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("merchant/signin"), bytes.NewReader(payload))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build signin request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("apiKey", c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute signin request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "signin request failed")
	}

	var apiResp struct {
		Data struct {
			AuthToken string `json:"auth_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode signin response")
	}
	if apiResp.Data.AuthToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "signin response missing auth token")
	}
	return apiResp.Data.AuthToken, nil
}

// ParcelInput describes one delivery to create.
type ParcelInput struct {
	CustomerName   string
	CustomerPhone  string
	Address        string
	ItemCount      int
	CashCollection decimal.Decimal
}

// ParcelResult is the carrier's acknowledgment.
type ParcelResult struct {
	ParcelID       string `json:"parcel_id"`
	TrackingNumber string `json:"tracking_number"`
}

// CreateParcel registers the delivery with the carrier. Single attempt; a
// failed creation must stay visible to the operator, not be retried blind.
func (c *Client) CreateParcel(ctx context.Context, token string, input ParcelInput) (*ParcelResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrier client not configured")
	}
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auth token is required")
	}
	if strings.TrimSpace(input.CustomerName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name is required")
	}

	payload, err := json.Marshal(map[string]any{
		"shop_id":              c.cfg.ShopID,
		"delivery_type_id":     c.cfg.DeliveryTypeID,
		"delivery_priority_id": c.cfg.DeliveryPriorityID,
		"special_request_id":   c.cfg.SpecialRequestID,
		"currency_type_id":     c.cfg.CurrencyTypeID,
		"customer_name":        input.CustomerName,
		"customer_phone":       input.CustomerPhone,
		"customer_address":     input.Address,
		"cash_collection":      input.CashCollection.StringFixed(2),
		"note":                 fmt.Sprintf("%d items \nCall Before Coming", input.ItemCount),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal parcel request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("parcel-create"), bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build parcel request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("apiKey", c.cfg.APIKey)
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute parcel request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "parcel request failed")
	}

	var apiResp struct {
		Data ParcelResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode parcel response")
	}
	return &apiResp.Data, nil
}

func (c *Client) buildURL(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
