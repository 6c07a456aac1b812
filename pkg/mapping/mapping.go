// Package mapping provides the persistent account-mapping store: one entry
// per linked Akahu/destination account pair, including last-sync watermarks
// and the last-known source balance.
package mapping

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// timeFormat is the on-disk watermark format.
const timeFormat = time.RFC3339

// Entry represents a mapping between one Akahu account and its destination
// accounts. Exactly one destination account id per configured destination.
type Entry struct {
	AkahuID   string `yaml:"akahu_id"`
	AkahuName string `yaml:"akahu_name"`
	// Tracking marks balance-only accounts (loans, investments) that are
	// reconciled by balance adjustment rather than transaction import.
	Tracking     bool   `yaml:"tracking,omitempty"`
	AkahuBalance string `yaml:"akahu_balance,omitempty"`

	YNABBudgetID  string `yaml:"ynab_budget_id,omitempty"`
	YNABAccountID string `yaml:"ynab_account_id,omitempty"`
	YNABSyncedAt  string `yaml:"ynab_synced_at,omitempty"`

	ActualAccountID string `yaml:"actual_account_id,omitempty"`
	ActualSyncedAt  string `yaml:"actual_synced_at,omitempty"`
}

// Balance returns the last-known Akahu balance in dollars.
// The second return value is false when no balance has been recorded.
func (e *Entry) Balance() (decimal.Decimal, bool) {
	if e.AkahuBalance == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(e.AkahuBalance)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// SetBalance records the latest Akahu balance.
func (e *Entry) SetBalance(d decimal.Decimal) {
	e.AkahuBalance = d.String()
}

// YNABWatermark returns the YNAB last-sync watermark, or the zero time when
// the account has never been synced.
func (e *Entry) YNABWatermark() time.Time {
	return parseWatermark(e.YNABSyncedAt)
}

// ActualWatermark returns the Actual last-sync watermark, or the zero time
// when the account has never been synced.
func (e *Entry) ActualWatermark() time.Time {
	return parseWatermark(e.ActualSyncedAt)
}

// AdvanceYNABWatermark advances the YNAB watermark to t. Watermarks are
// monotonically non-decreasing: an older timestamp is ignored.
func (e *Entry) AdvanceYNABWatermark(t time.Time) bool {
	if !t.After(e.YNABWatermark()) {
		return false
	}
	e.YNABSyncedAt = t.UTC().Format(timeFormat)
	return true
}

// AdvanceActualWatermark advances the Actual watermark to t. Watermarks are
// monotonically non-decreasing: an older timestamp is ignored.
func (e *Entry) AdvanceActualWatermark(t time.Time) bool {
	if !t.After(e.ActualWatermark()) {
		return false
	}
	e.ActualSyncedAt = t.UTC().Format(timeFormat)
	return true
}

func parseWatermark(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// file is the on-disk document shape.
type file struct {
	Accounts []*Entry `yaml:"accounts"`
}

// Store holds all mapping entries, loaded once at process start and written
// back after each successful account sync.
type Store struct {
	path    string
	entries []*Entry
}

// Load reads the mapping file. A missing file yields an empty store so a
// first run can start from nothing.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Store{path: path}, nil
		}
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse mapping YAML: %w", err)
	}

	return &Store{path: path, entries: f.Accounts}, nil
}

// Entries returns all mapping entries.
func (s *Store) Entries() []*Entry {
	return s.entries
}

// FindByAkahuID returns the entry for an Akahu account id, or nil.
func (s *Store) FindByAkahuID(akahuID string) *Entry {
	for _, e := range s.entries {
		if e.AkahuID == akahuID {
			return e
		}
	}
	return nil
}

// Add appends a mapping entry.
func (s *Store) Add(e *Entry) {
	s.entries = append(s.entries, e)
}

// Save writes the mapping file atomically (temp file + rename) so a crash
// mid-write never corrupts the mapping.
func (s *Store) Save() error {
	data, err := yaml.Marshal(file{Accounts: s.entries})
	if err != nil {
		return fmt.Errorf("failed to marshal mapping YAML: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create mapping directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".mapping-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp mapping file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write mapping file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close mapping file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace mapping file: %w", err)
	}

	return nil
}
