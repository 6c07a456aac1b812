package ynab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ClientConfig represents the configuration for the YNAB API client.
type ClientConfig struct {
	Endpoint string
	Token    string
	Timeout  time.Duration // Default: 30 seconds
}

// Client is a YNAB v1 API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a new YNAB API client.
func NewClient(config ClientConfig) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: config.Endpoint,
		token:   config.Token,
	}
}

// ListTransactions fetches all transactions for a budget.
func (c *Client) ListTransactions(ctx context.Context, budgetID string) ([]ListTransaction, error) {
	endpoint := fmt.Sprintf("%s/budgets/%s/transactions", c.baseURL, budgetID)

	var listResp ListTransactionsResponse
	if err := c.doJSON(ctx, "GET", endpoint, nil, &listResp); err != nil {
		return nil, err
	}

	return listResp.Data.Transactions, nil
}

// CreateTransactions bulk-submits transactions to a budget. The server
// decides create-vs-duplicate per transaction using import_id; a result with
// zero created and nonzero duplicates is a successful no-op, not an error.
func (c *Client) CreateTransactions(ctx context.Context, budgetID string, txns []Transaction) (*CreateResult, error) {
	endpoint := fmt.Sprintf("%s/budgets/%s/transactions", c.baseURL, budgetID)

	var createResp CreateTransactionsResponse
	if err := c.doJSON(ctx, "POST", endpoint, CreateTransactionsRequest{Transactions: txns}, &createResp); err != nil {
		return nil, err
	}

	return &CreateResult{
		Created:    len(createResp.Data.Transactions),
		Duplicates: len(createResp.Data.DuplicateImportIDs),
	}, nil
}

// CreateTransaction submits a single transaction to a budget.
func (c *Client) CreateTransaction(ctx context.Context, budgetID string, txn Transaction) error {
	endpoint := fmt.Sprintf("%s/budgets/%s/transactions", c.baseURL, budgetID)

	var createResp CreateTransactionsResponse
	return c.doJSON(ctx, "POST", endpoint, CreateTransactionRequest{Transaction: txn}, &createResp)
}

// GetAccount fetches one account's metadata, including its milliunit balance.
func (c *Client) GetAccount(ctx context.Context, budgetID, accountID string) (*Account, error) {
	endpoint := fmt.Sprintf("%s/budgets/%s/accounts/%s", c.baseURL, budgetID, accountID)

	var acctResp GetAccountResponse
	if err := c.doJSON(ctx, "GET", endpoint, nil, &acctResp); err != nil {
		return nil, err
	}

	return &acctResp.Data.Account, nil
}

// doJSON performs a JSON request/response round trip against the YNAB API.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.parseError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// parseError parses an error response from the YNAB API, keeping the
// response body so operators can see what the server rejected.
func (c *Client) parseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ynab API error (status %d): failed to read error response", resp.StatusCode)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return fmt.Errorf("ynab API error (status %d): %s", resp.StatusCode, string(body))
	}

	if errResp.Error.Detail != "" {
		return fmt.Errorf("ynab API error (status %d): %s - %s", resp.StatusCode, errResp.Error.Name, errResp.Error.Detail)
	}

	return fmt.Errorf("ynab API error (status %d): %s", resp.StatusCode, string(body))
}
