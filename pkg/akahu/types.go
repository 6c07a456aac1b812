// Package akahu provides an Akahu API client and types.
package akahu

import "github.com/shopspring/decimal"

// Transaction represents a transaction as returned by the Akahu API.
// Records are immutable; amounts are in dollars (major units).
type Transaction struct {
	ID          string          `json:"_id"`
	Account     string          `json:"_account"`
	Date        string          `json:"date"` // RFC3339 UTC, e.g. 2024-03-01T00:00:00Z
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type,omitempty"`
	Merchant    *Merchant       `json:"merchant,omitempty"`
}

// Merchant represents structured merchant information on a transaction.
type Merchant struct {
	ID   string `json:"_id,omitempty"`
	Name string `json:"name"`
}

// Account represents account metadata from the Akahu API.
type Account struct {
	ID      string   `json:"_id"`
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Balance *Balance `json:"balance,omitempty"`
}

// Balance represents an account balance in dollars.
type Balance struct {
	Current decimal.Decimal `json:"current"`
}

// TransactionsResponse represents the response from /accounts/{id}/transactions.
type TransactionsResponse struct {
	Success bool          `json:"success"`
	Items   []Transaction `json:"items"`
	Cursor  *Cursor       `json:"cursor,omitempty"`
}

// Cursor holds the pagination token for the next page. A null or absent
// next token means the final page has been reached.
type Cursor struct {
	Next *string `json:"next"`
}

// AccountResponse represents the response from /accounts/{id}.
type AccountResponse struct {
	Success bool    `json:"success"`
	Item    Account `json:"item"`
}

// ErrorResponse represents an error response from the Akahu API.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// WebhookEvent represents a webhook payload pushed by Akahu.
type WebhookEvent struct {
	WebhookType string       `json:"webhook_type"` // e.g. TRANSACTION
	WebhookCode string       `json:"webhook_code"` // e.g. TRANSACTION_CREATED
	AccountID   string       `json:"_account,omitempty"`
	Item        *Transaction `json:"item,omitempty"`
}
