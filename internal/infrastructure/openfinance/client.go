package openfinance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultBaseURL = "https://sandbox.plaid.com"
	defaultTimeout = 30 * time.Second
	balancesPath   = "/accounts/balance/get"
	itemRemovePath = "/item/remove"

	// loginRequiredCode is reported when the institution rejected the stored
	// credential. It is surfaced as a 401 so callers handle one status.
	loginRequiredCode = "ITEM_LOGIN_REQUIRED"
)

// ErrLoginRequired is returned when the credential must be re-linked.
var ErrLoginRequired = errors.New("institution login required")

// Client handles communication with the account-aggregation API
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API host.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new aggregation API client
func NewClient(clientID, secret string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:  defaultBaseURL,
		clientID: clientID,
		secret:   secret,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// credentialRequest is the body shared by every endpoint we call.
type credentialRequest struct {
	ClientID    string `json:"client_id"`
	Secret      string `json:"secret"`
	AccessToken string `json:"access_token"`
}

// BalanceResponse represents the API response for a balance fetch
type BalanceResponse struct {
	Accounts  []Account `json:"accounts"`
	Item      Item      `json:"item"`
	RequestID string    `json:"request_id"`
}

// Item identifies the connection the balances belong to
type Item struct {
	ItemID        string `json:"item_id"`
	InstitutionID string `json:"institution_id"`
}

// Account represents one account entry of a balance response
type Account struct {
	AccountID    string   `json:"account_id"`
	Name         string   `json:"name"`
	OfficialName *string  `json:"official_name"`
	Type         string   `json:"type"`
	Subtype      *string  `json:"subtype"`
	Mask         *string  `json:"mask"`
	Balances     Balances `json:"balances"`
}

// Balances holds the amounts reported for an account. Any may be null.
type Balances struct {
	Current                *float64 `json:"current"`
	Available              *float64 `json:"available"`
	Limit                  *float64 `json:"limit"`
	IsoCurrencyCode        *string  `json:"iso_currency_code"`
	UnofficialCurrencyCode *string  `json:"unofficial_currency_code"`
}

// CurrencyCode returns the ISO code, falling back to the unofficial one.
func (b Balances) CurrencyCode() string {
	if b.IsoCurrencyCode != nil && *b.IsoCurrencyCode != "" {
		return *b.IsoCurrencyCode
	}
	if b.UnofficialCurrencyCode != nil {
		return *b.UnofficialCurrencyCode
	}
	return ""
}

// ErrorResponse represents an error response from the API
type ErrorResponse struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	RequestID    string `json:"request_id"`
}

// FetchBalancesWithStatus fetches live balances for every account behind accessToken.
// A rejected credential yields status 401 and an error wrapping ErrLoginRequired.
func (c *Client) FetchBalancesWithStatus(ctx context.Context, accessToken string) (*BalanceResponse, int, error) {
	var balResp BalanceResponse
	status, err := c.post(ctx, balancesPath, accessToken, &balResp)
	if err != nil {
		return nil, status, err
	}
	return &balResp, status, nil
}

// RevokeCredential invalidates accessToken at the provider.
func (c *Client) RevokeCredential(ctx context.Context, accessToken string) error {
	_, err := c.post(ctx, itemRemovePath, accessToken, nil)
	return err
}

// post sends the credential body to path and decodes a 200 response into out.
func (c *Client) post(ctx context.Context, path, accessToken string, out any) (int, error) {
	payload, err := json.Marshal(credentialRequest{
		ClientID:    c.clientID,
		Secret:      c.secret,
		AccessToken: accessToken,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil {
			return resp.StatusCode, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}
		if resp.StatusCode == http.StatusUnauthorized || errResp.ErrorCode == loginRequiredCode {
			return http.StatusUnauthorized, fmt.Errorf("%w: %s", ErrLoginRequired, errResp.ErrorMessage)
		}
		return resp.StatusCode, fmt.Errorf("API error (status %d): %s - %s", resp.StatusCode, errResp.ErrorCode, errResp.ErrorMessage)
	}

	if out == nil {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return resp.StatusCode, nil
}
