package actualbudget

// Schema defines the SQL statements to create the budget-file tables.
const Schema = `
-- Accounts known to the budget
CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    offbudget INTEGER NOT NULL DEFAULT 0
);

-- Budget categories
CREATE TABLE IF NOT EXISTS categories (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL
);

-- Payees
CREATE TABLE IF NOT EXISTS payees (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payees_name ON payees(name);

-- Ledger transactions
-- imported_id carries the source system's dedup key; repeated syncs of the
-- same source transaction match instead of creating a duplicate row.
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    acct TEXT NOT NULL,
    date TEXT NOT NULL,                -- YYYY-MM-DD
    amount INTEGER NOT NULL,           -- cents
    payee TEXT,
    category TEXT,
    notes TEXT,
    cleared INTEGER NOT NULL DEFAULT 0,
    imported_id TEXT,
    imported_payee TEXT,
    tombstone INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_transactions_acct_imported
    ON transactions(acct, imported_id);

CREATE INDEX IF NOT EXISTS idx_transactions_acct_date
    ON transactions(acct, date);

-- Post-create rules: JSON conditions and actions evaluated against every
-- newly created transaction.
CREATE TABLE IF NOT EXISTS rules (
    id TEXT PRIMARY KEY,
    conditions TEXT NOT NULL,          -- JSON array
    actions TEXT NOT NULL              -- JSON array
);
`
