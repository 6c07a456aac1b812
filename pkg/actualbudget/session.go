package actualbudget

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/nzfintools/akahu-budget-sync/pkg/budget"
)

// Session is an open unit of work against a budget file. All reads and
// writes go through a single SQLite transaction; nothing is visible to
// other sessions until Commit.
type Session struct {
	db   *sql.DB
	tx   *sql.Tx
	path string
}

// Open opens a budget file and begins a session.
// It enables WAL mode and foreign key constraints, and creates the schema
// if the file is new.
func Open(path string) (*Session, error) {
	dbDir := filepath.Dir(path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create budget directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open budget file: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping budget file: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize budget schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to begin session: %w", err)
	}

	return &Session{db: db, tx: tx, path: path}, nil
}

// WithSession runs a unit of work inside a session and guarantees the
// session is released on success and on every error path. Uncommitted
// changes are rolled back on release.
func WithSession(path string, fn func(*Session) error) error {
	session, err := Open(path)
	if err != nil {
		return err
	}
	defer session.Close()

	return fn(session)
}

// Commit makes all buffered changes permanent and ends the batch.
func (s *Session) Commit() error {
	if s.tx == nil {
		return fmt.Errorf("session already finished")
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

// Rollback discards all buffered changes.
func (s *Session) Rollback() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("failed to roll back session: %w", err)
	}
	return nil
}

// Close releases the session. Any uncommitted changes are rolled back.
func (s *Session) Close() error {
	if s.tx != nil {
		s.tx.Rollback()
		s.tx = nil
	}
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Categories returns all category names keyed by id. The empty id maps to
// "Uncategorized" so diffs can name the unset state. An empty table is a
// valid state for a new budget, not an error.
func (s *Session) Categories() (map[string]string, error) {
	rows, err := s.tx.Query(`SELECT id, name FROM categories`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	names := map[string]string{"": "Uncategorized"}
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		names[id] = name
	}

	return names, rows.Err()
}

// Payees returns all payee names keyed by id. An empty table is a valid
// state for a new budget, not an error.
func (s *Session) Payees() (map[string]string, error) {
	rows, err := s.tx.Query(`SELECT id, name FROM payees`)
	if err != nil {
		return nil, fmt.Errorf("failed to query payees: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan payee: %w", err)
		}
		names[id] = name
	}

	return names, rows.Err()
}

// EnsurePayee returns the payee id for a name, creating the payee when it
// does not exist yet.
func (s *Session) EnsurePayee(name string) (string, error) {
	var id string
	err := s.tx.QueryRow(`SELECT id FROM payees WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to look up payee: %w", err)
	}

	id = uuid.NewString()
	if _, err := s.tx.Exec(`INSERT INTO payees (id, name) VALUES (?, ?)`, id, name); err != nil {
		return "", fmt.Errorf("failed to create payee: %w", err)
	}
	return id, nil
}

// Reconcile submits one normalized transaction and lets the ledger decide
// create-vs-match. Matching order:
//
//  1. same account + same imported_id (the dedup key),
//  2. same account + date + amount with no imported_id, not already matched
//     in this batch (the matched row adopts the dedup key),
//  3. otherwise a new row is created.
//
// Returns the resulting row and whether it was newly created.
func (s *Session) Reconcile(txn budget.Transaction, alreadyMatched map[string]bool) (*Transaction, bool, error) {
	// Dedup-key match.
	row, err := s.findByImportedID(txn.AccountID, txn.DedupKey)
	if err != nil {
		return nil, false, err
	}
	if row != nil {
		return row, false, nil
	}

	// Fuzzy match against manually entered rows.
	row, err = s.findUnimported(txn, alreadyMatched)
	if err != nil {
		return nil, false, err
	}
	if row != nil {
		row.ImportedID = txn.DedupKey
		row.ImportedPayee = txn.Payee
		if _, err := s.tx.Exec(
			`UPDATE transactions SET imported_id = ?, imported_payee = ? WHERE id = ?`,
			row.ImportedID, row.ImportedPayee, row.ID,
		); err != nil {
			return nil, false, fmt.Errorf("failed to adopt dedup key on matched transaction: %w", err)
		}
		return row, false, nil
	}

	created, err := s.Create(txn)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// Create inserts a new transaction row for a normalized transaction.
func (s *Session) Create(txn budget.Transaction) (*Transaction, error) {
	payeeID, err := s.EnsurePayee(txn.Payee)
	if err != nil {
		return nil, err
	}

	row := &Transaction{
		ID:            uuid.NewString(),
		Account:       txn.AccountID,
		Date:          txn.Date,
		Amount:        budget.Cents(txn.Amount),
		PayeeID:       payeeID,
		Notes:         txn.Memo,
		Cleared:       txn.Cleared,
		ImportedID:    txn.DedupKey,
		ImportedPayee: txn.Payee,
	}

	_, err = s.tx.Exec(`
		INSERT INTO transactions (id, acct, date, amount, payee, category, notes, cleared, imported_id, imported_payee)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.Account, row.Date, row.Amount,
		nullable(row.PayeeID), nullable(row.CategoryID), row.Notes,
		boolToInt(row.Cleared), nullable(row.ImportedID), row.ImportedPayee,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	return row, nil
}

// Update persists the mutable fields of a transaction row (after rule
// execution).
func (s *Session) Update(row *Transaction) error {
	_, err := s.tx.Exec(`
		UPDATE transactions
		SET amount = ?, payee = ?, category = ?, notes = ?, cleared = ?
		WHERE id = ?`,
		row.Amount, nullable(row.PayeeID), nullable(row.CategoryID),
		row.Notes, boolToInt(row.Cleared), row.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return nil
}

// Balance returns the account balance in cents: the sum of all live
// transaction amounts.
func (s *Session) Balance(accountID string) (int64, error) {
	var balance sql.NullInt64
	err := s.tx.QueryRow(
		`SELECT SUM(amount) FROM transactions WHERE acct = ? AND tombstone = 0`,
		accountID,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to query account balance: %w", err)
	}
	return balance.Int64, nil
}

// findByImportedID looks up a live transaction by account and dedup key.
func (s *Session) findByImportedID(accountID, importedID string) (*Transaction, error) {
	if importedID == "" {
		return nil, nil
	}
	row := s.tx.QueryRow(`
		SELECT id, acct, date, amount, payee, category, notes, cleared, imported_id, imported_payee
		FROM transactions
		WHERE acct = ? AND imported_id = ? AND tombstone = 0`,
		accountID, importedID,
	)
	return scanTransaction(row)
}

// findUnimported looks up a live transaction with the same account, date
// and amount that has no dedup key yet and was not matched earlier in this
// batch.
func (s *Session) findUnimported(txn budget.Transaction, alreadyMatched map[string]bool) (*Transaction, error) {
	rows, err := s.tx.Query(`
		SELECT id, acct, date, amount, payee, category, notes, cleared, imported_id, imported_payee
		FROM transactions
		WHERE acct = ? AND date = ? AND amount = ?
		  AND (imported_id IS NULL OR imported_id = '')
		  AND tombstone = 0`,
		txn.AccountID, txn.Date, budget.Cents(txn.Amount),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate matches: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		row, err := scanTransactionRows(rows)
		if err != nil {
			return nil, err
		}
		if !alreadyMatched[row.ID] {
			return row, nil
		}
	}

	return nil, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(sc rowScanner) (*Transaction, error) {
	var t Transaction
	var payee, category, importedID sql.NullString
	var cleared int

	err := sc.Scan(
		&t.ID, &t.Account, &t.Date, &t.Amount,
		&payee, &category, &t.Notes, &cleared, &importedID, &t.ImportedPayee,
	)
	if err != nil {
		return nil, err
	}

	t.PayeeID = payee.String
	t.CategoryID = category.String
	t.ImportedID = importedID.String
	t.Cleared = cleared != 0
	return &t, nil
}

func scanTransaction(row *sql.Row) (*Transaction, error) {
	t, err := scanRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return t, nil
}

func scanTransactionRows(rows *sql.Rows) (*Transaction, error) {
	t, err := scanRow(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return t, nil
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
