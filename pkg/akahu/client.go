package akahu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultEpoch is the fetch window start used when an account has never
// been synced before.
const DefaultEpoch = "2024-01-01T00:00:00Z"

// lookback is subtracted from the last-sync watermark to catch transactions
// that settle late. This is a heuristic, not a guarantee against arbitrarily
// delayed settlement.
const lookback = 7 * 24 * time.Hour

// ClientConfig represents the configuration for the Akahu API client.
type ClientConfig struct {
	Endpoint  string
	AppToken  string
	UserToken string
	Timeout   time.Duration // Default: 30 seconds
}

// Client is an Akahu API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	appToken   string
	userToken  string
}

// NewClient creates a new Akahu API client.
func NewClient(config ClientConfig) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:   config.Endpoint,
		appToken:  config.AppToken,
		userToken: config.UserToken,
	}
}

// ListTransactions fetches a single page of transactions for an account.
// params carries the start and cursor query parameters.
func (c *Client) ListTransactions(ctx context.Context, accountID string, params map[string]string) (*TransactionsResponse, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/transactions", c.baseURL, accountID)

	queryParams := url.Values{}
	for k, v := range params {
		queryParams.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s?%s", endpoint, queryParams.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var txnResp TransactionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&txnResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &txnResp, nil
}

// FetchAllTransactions fetches all transactions for an account since the
// given watermark, following cursor pagination until the API reports no
// further cursor or returns an empty page.
//
// The fetch window starts one week before the watermark to tolerate
// late-settling transactions, or at DefaultEpoch if the account has never
// been synced. Pages are returned concatenated in arrival order; a failure
// on any page discards everything fetched so far.
func (c *Client) FetchAllTransactions(ctx context.Context, accountID string, since time.Time) ([]Transaction, error) {
	params := map[string]string{}
	if since.IsZero() {
		params["start"] = DefaultEpoch
	} else {
		params["start"] = since.Add(-lookback).UTC().Format(time.RFC3339)
	}

	var all []Transaction
	for {
		page, err := c.ListTransactions(ctx, accountID, params)
		if err != nil {
			return nil, fmt.Errorf("failed to list transactions for account %s: %w", accountID, err)
		}

		all = append(all, page.Items...)

		if len(page.Items) == 0 || page.Cursor == nil || page.Cursor.Next == nil {
			break
		}
		params["cursor"] = *page.Cursor.Next
	}

	return all, nil
}

// GetAccount fetches account metadata, including the current balance.
func (c *Client) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s", c.baseURL, accountID)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var acctResp AccountResponse
	if err := json.NewDecoder(resp.Body).Decode(&acctResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &acctResp.Item, nil
}

// setAuthHeaders sets the Akahu auth headers on a request.
func (c *Client) setAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.userToken))
	req.Header.Set("X-Akahu-Id", c.appToken)
	req.Header.Set("Content-Type", "application/json")
}

// parseError parses an error response from the Akahu API.
func (c *Client) parseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("akahu API error (status %d): failed to read error response", resp.StatusCode)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return fmt.Errorf("akahu API error (status %d): %s", resp.StatusCode, string(body))
	}

	if errResp.Message != "" {
		return fmt.Errorf("akahu API error (status %d): %s", resp.StatusCode, errResp.Message)
	}

	return fmt.Errorf("akahu API error (status %d)", resp.StatusCode)
}
