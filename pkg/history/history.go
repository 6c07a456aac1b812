// Package history provides SQLite storage for sync-pass history and
// metadata, feeding the stats command.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Schema defines the SQL statements to create the history tables.
const Schema = `
-- Sync pass history
-- One row per successful sync of one account into one destination.
CREATE TABLE IF NOT EXISTS sync_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    destination TEXT NOT NULL,         -- 'ynab' or 'actual'
    akahu_id TEXT NOT NULL,
    akahu_name TEXT NOT NULL,
    created INTEGER NOT NULL,          -- transactions newly created
    skipped INTEGER NOT NULL,          -- recognized as already present
    adjustments INTEGER NOT NULL,      -- balance adjustments synthesized
    watermark TEXT NOT NULL,           -- RFC3339 watermark after the pass
    synced_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sync_history_dest_account
    ON sync_history(destination, akahu_id);

-- Sync metadata table
-- Stores key-value metadata about sync operations
CREATE TABLE IF NOT EXISTS sync_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// PassRecord represents one successful sync pass for one account and
// destination.
type PassRecord struct {
	ID          int64
	Destination string
	AkahuID     string
	AkahuName   string
	Created     int
	Skipped     int
	Adjustments int
	Watermark   string
	SyncedAt    time.Time
}

// Store manages sync history operations.
type Store struct {
	db *sql.DB
}

// Open opens the history database, creating the schema if needed.
// It enables WAL mode for better concurrency.
func Open(dbPath string) (*Store, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL", dbPath)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordPass records a completed sync pass.
func (s *Store) RecordPass(record PassRecord) error {
	query := `
		INSERT INTO sync_history (destination, akahu_id, akahu_name, created, skipped, adjustments, watermark)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		record.Destination,
		record.AkahuID,
		record.AkahuName,
		record.Created,
		record.Skipped,
		record.Adjustments,
		record.Watermark,
	)

	if err != nil {
		return fmt.Errorf("failed to record sync pass: %w", err)
	}

	return nil
}

// RecentPasses retrieves the most recent sync passes, newest first.
func (s *Store) RecentPasses(limit int) ([]PassRecord, error) {
	query := `
		SELECT id, destination, akahu_id, akahu_name, created, skipped, adjustments, watermark, synced_at
		FROM sync_history
		ORDER BY synced_at DESC, id DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent passes: %w", err)
	}
	defer rows.Close()

	var records []PassRecord
	for rows.Next() {
		var record PassRecord
		if err := rows.Scan(
			&record.ID,
			&record.Destination,
			&record.AkahuID,
			&record.AkahuName,
			&record.Created,
			&record.Skipped,
			&record.Adjustments,
			&record.Watermark,
			&record.SyncedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync pass: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// DestinationStats represents totals for one destination.
type DestinationStats struct {
	Passes      int
	Created     int
	Skipped     int
	Adjustments int
}

// Stats represents sync statistics.
type Stats struct {
	ByDestination map[string]DestinationStats
	LastSync      sql.NullString
}

// GetStats retrieves aggregate sync statistics.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{ByDestination: make(map[string]DestinationStats)}

	rows, err := s.db.Query(`
		SELECT destination, COUNT(*), SUM(created), SUM(skipped), SUM(adjustments)
		FROM sync_history
		GROUP BY destination
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get destination stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dest string
		var ds DestinationStats
		if err := rows.Scan(&dest, &ds.Passes, &ds.Created, &ds.Skipped, &ds.Adjustments); err != nil {
			return nil, fmt.Errorf("failed to scan destination stats: %w", err)
		}
		stats.ByDestination[dest] = ds
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read destination stats: %w", err)
	}

	err = s.db.QueryRow(`SELECT MAX(synced_at) FROM sync_history`).Scan(&stats.LastSync)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get last sync time: %w", err)
	}

	return stats, nil
}

// GetMetadata retrieves a metadata value.
func (s *Store) GetMetadata(key string) (string, error) {
	query := `SELECT value FROM sync_metadata WHERE key = ?`

	var value string
	err := s.db.QueryRow(query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata: %w", err)
	}

	return value, nil
}

// SetMetadata sets a metadata value.
func (s *Store) SetMetadata(key, value string) error {
	query := `
		INSERT INTO sync_metadata (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := s.db.Exec(query, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata: %w", err)
	}

	return nil
}
