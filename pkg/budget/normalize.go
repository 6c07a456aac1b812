// Package budget provides the destination-neutral transaction model and the
// normalizer that converts raw Akahu records into it.
package budget

import (
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nzfintools/akahu-budget-sync/pkg/akahu"
)

// DateFormat is the calendar-date format used by both destinations.
const DateFormat = "2006-01-02"

// Transaction is a destination-ready transaction. Amounts are in dollars
// (major units); destination clients convert to cents or milliunits at the
// wire boundary.
type Transaction struct {
	// Date is the destination-local calendar date (YYYY-MM-DD). Empty when
	// the source timestamp could not be parsed.
	Date      string
	Payee     string
	Memo      string
	Amount    decimal.Decimal
	// DedupKey is derived from the source transaction id and is stable
	// across repeated syncs. Destinations use it to prevent duplicate
	// creation.
	DedupKey  string
	Cleared   bool
	AccountID string
}

// Normalizer converts raw source transactions into destination-ready ones.
type Normalizer struct {
	// OffsetHours is the fixed offset added to UTC timestamps to obtain the
	// destination-local calendar date.
	OffsetHours int
}

// NewNormalizer creates a Normalizer with the given timezone offset.
func NewNormalizer(offsetHours int) *Normalizer {
	return &Normalizer{OffsetHours: offsetHours}
}

// Normalize converts one raw transaction for the given destination account.
// It never fails: malformed fields fall back to safe values and are logged.
func (n *Normalizer) Normalize(raw akahu.Transaction, destAccountID string) Transaction {
	return Transaction{
		Date:      n.LocalDate(raw.Date),
		Payee:     PayeeName(raw),
		Memo:      raw.Description,
		Amount:    raw.Amount,
		DedupKey:  DedupKey(raw.ID),
		Cleared:   true,
		AccountID: destAccountID,
	}
}

// NormalizeAll converts a batch of raw transactions, preserving source order.
func (n *Normalizer) NormalizeAll(raw []akahu.Transaction, destAccountID string) []Transaction {
	txns := make([]Transaction, 0, len(raw))
	for _, r := range raw {
		txns = append(txns, n.Normalize(r, destAccountID))
	}
	return txns
}

// LocalDate converts an RFC3339 UTC timestamp to a destination-local
// calendar date by adding the fixed offset and truncating the time of day.
// Returns an empty string for malformed input; the anomaly is logged, not
// fatal to the batch.
func (n *Normalizer) LocalDate(ts string) string {
	if ts == "" {
		slog.Warn("Transaction timestamp is empty")
		return ""
	}

	// Akahu sometimes includes zero milliseconds.
	ts = strings.Replace(ts, ".000Z", "Z", 1)

	utc, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		slog.Warn("Failed to parse transaction timestamp", "timestamp", ts, "error", err)
		return ""
	}

	local := utc.Add(time.Duration(n.OffsetHours) * time.Hour)
	return local.Format(DateFormat)
}

// PayeeName extracts the payee display name from a raw transaction,
// preferring the structured merchant name when present. Falls back to the
// free-text description, and to "Unknown" when neither is usable.
func PayeeName(raw akahu.Transaction) string {
	if raw.Merchant != nil && raw.Merchant.Name != "" {
		return raw.Merchant.Name
	}
	if raw.Description != "" {
		return raw.Description
	}
	slog.Warn("Transaction has no merchant name or description", "transaction_id", raw.ID)
	return "Unknown"
}

// DedupKey derives the dedup key for a source transaction id. The key is
// deterministic so repeated syncs of the same transaction always produce
// the same key.
func DedupKey(sourceID string) string {
	return sourceID
}

// Milliunits converts a dollar amount to YNAB milliunits (1/1000 of a unit).
func Milliunits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(1000)).Round(0).IntPart()
}

// Cents converts a dollar amount to integer cents.
func Cents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Dollars converts integer cents back to a dollar amount.
func Dollars(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
