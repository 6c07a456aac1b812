// Package actualbudget provides a session-based client for a local Actual
// Budget file. A session wraps one SQLite transaction: reconciled and created
// rows are buffered until Commit, so a failed batch leaves the ledger
// untouched.
package actualbudget

// Transaction represents a ledger transaction row. Amounts are integer
// cents. The rule engine may modify the mutable fields (category, payee,
// notes, cleared, amount); everything else is fixed at creation.
type Transaction struct {
	ID            string
	Account       string
	Date          string // YYYY-MM-DD
	Amount        int64  // cents
	PayeeID       string
	CategoryID    string
	Notes         string
	Cleared       bool
	ImportedID    string // dedup key from the source system
	ImportedPayee string
}

// Category represents a budget category.
type Category struct {
	ID   string
	Name string
}

// Payee represents a payee.
type Payee struct {
	ID   string
	Name string
}
