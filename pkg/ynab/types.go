// Package ynab provides a YNAB v1 API client and wire types.
package ynab

// Cleared states accepted by the YNAB API.
const (
	ClearedCleared   = "cleared"
	ClearedUncleared = "uncleared"
)

// Transaction represents a YNAB transaction for API requests.
// Amounts are in milliunits (1/1000 of a currency unit).
type Transaction struct {
	AccountID string `json:"account_id"`
	Date      string `json:"date"`   // YYYY-MM-DD
	Amount    int64  `json:"amount"` // milliunits
	PayeeName string `json:"payee_name,omitempty"`
	Memo      string `json:"memo,omitempty"`
	Cleared   string `json:"cleared"`
	Approved  bool   `json:"approved,omitempty"`
	FlagColor string `json:"flag_color,omitempty"`
	// ImportID is the dedup key: YNAB rejects a second transaction with the
	// same import_id on the same account as a duplicate.
	ImportID string `json:"import_id,omitempty"`
}

// CreateTransactionsRequest is the request body for bulk transaction creation.
type CreateTransactionsRequest struct {
	Transactions []Transaction `json:"transactions"`
}

// CreateTransactionRequest is the request body for single transaction creation.
type CreateTransactionRequest struct {
	Transaction Transaction `json:"transaction"`
}

// CreateTransactionsResponse is the response from creating transactions.
// duplicate_import_ids lists submissions the server rejected as duplicates.
type CreateTransactionsResponse struct {
	Data struct {
		Transactions []struct {
			ID       string `json:"id"`
			ImportID string `json:"import_id"`
		} `json:"transactions"`
		DuplicateImportIDs []string `json:"duplicate_import_ids"`
	} `json:"data"`
}

// ListTransaction represents a transaction as returned by the list endpoint.
type ListTransaction struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Date      string `json:"date"`
	Amount    int64  `json:"amount"`
	PayeeName string `json:"payee_name"`
	Memo      string `json:"memo"`
	Cleared   string `json:"cleared"`
	ImportID  string `json:"import_id"`
	Deleted   bool   `json:"deleted"`
}

// ListTransactionsResponse is the response from the list-transactions endpoint.
type ListTransactionsResponse struct {
	Data struct {
		Transactions []ListTransaction `json:"transactions"`
	} `json:"data"`
}

// Account represents a YNAB account.
type Account struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Balance int64  `json:"balance"` // milliunits
	Closed  bool   `json:"closed"`
	Deleted bool   `json:"deleted"`
}

// GetAccountResponse is the response from the account endpoint.
type GetAccountResponse struct {
	Data struct {
		Account Account `json:"account"`
	} `json:"data"`
}

// ErrorResponse represents an error from the YNAB API.
type ErrorResponse struct {
	Error struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Detail string `json:"detail"`
	} `json:"error"`
}

// CreateResult summarizes a bulk submission: how many transactions the
// server accepted and how many it recognized as duplicate import ids.
type CreateResult struct {
	Created    int
	Duplicates int
}
