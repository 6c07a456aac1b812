package budget

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/nzfintools/akahu-budget-sync/pkg/akahu"
)

func TestPayeeName(t *testing.T) {
	tests := []struct {
		name     string
		txn      akahu.Transaction
		expected string
	}{
		{
			"merchant name preferred",
			akahu.Transaction{Description: "POS W/D COFFEE SUPREME", Merchant: &akahu.Merchant{Name: "Coffee Supreme"}},
			"Coffee Supreme",
		},
		{
			"empty merchant name falls back to description",
			akahu.Transaction{Description: "POS W/D COFFEE SUPREME", Merchant: &akahu.Merchant{}},
			"POS W/D COFFEE SUPREME",
		},
		{
			"no merchant falls back to description",
			akahu.Transaction{Description: "DIRECT CREDIT SALARY"},
			"DIRECT CREDIT SALARY",
		},
		{
			"nothing usable falls back to Unknown",
			akahu.Transaction{ID: "txn_1"},
			"Unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PayeeName(tt.txn)
			if result != tt.expected {
				t.Errorf("PayeeName() = %q, expected %q", result, tt.expected)
			}
		})
	}
}

func TestLocalDate(t *testing.T) {
	n := NewNormalizer(13)

	tests := []struct {
		name     string
		ts       string
		expected string
	}{
		{"midnight UTC stays same day", "2024-03-01T00:00:00Z", "2024-03-01"},
		{"late UTC rolls to next local day", "2024-03-01T23:00:00Z", "2024-03-02"},
		{"boundary at 11:00 UTC", "2024-03-01T11:00:00Z", "2024-03-02"},
		{"zero milliseconds stripped", "2024-03-01T10:59:59.000Z", "2024-03-01"},
		{"malformed yields empty", "not-a-timestamp", ""},
		{"empty yields empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := n.LocalDate(tt.ts)
			if result != tt.expected {
				t.Errorf("LocalDate(%q) = %q, expected %q", tt.ts, result, tt.expected)
			}
		})
	}
}

func TestDedupKeyStability(t *testing.T) {
	n := NewNormalizer(13)
	raw := akahu.Transaction{
		ID:          "trans_abc123",
		Date:        "2024-03-01T00:00:00Z",
		Description: "Coffee",
		Amount:      decimal.RequireFromString("-12.50"),
	}

	first := n.Normalize(raw, "acct-1")
	second := n.Normalize(raw, "acct-1")

	if first.DedupKey != second.DedupKey {
		t.Errorf("dedup key not stable: %q vs %q", first.DedupKey, second.DedupKey)
	}
	if first.DedupKey != "trans_abc123" {
		t.Errorf("dedup key = %q, expected it derived from the source id", first.DedupKey)
	}
}

func TestNormalize(t *testing.T) {
	n := NewNormalizer(13)
	raw := akahu.Transaction{
		ID:          "trans_abc123",
		Date:        "2024-03-01T00:00:00Z",
		Description: "Coffee",
		Amount:      decimal.RequireFromString("-12.50"),
		Merchant:    &akahu.Merchant{Name: "Coffee Supreme"},
	}

	txn := n.Normalize(raw, "acct-1")

	if txn.Date != "2024-03-01" {
		t.Errorf("Date = %q, expected 2024-03-01", txn.Date)
	}
	if txn.Payee != "Coffee Supreme" {
		t.Errorf("Payee = %q, expected Coffee Supreme", txn.Payee)
	}
	if txn.Memo != "Coffee" {
		t.Errorf("Memo = %q, expected Coffee", txn.Memo)
	}
	if !txn.Amount.Equal(decimal.RequireFromString("-12.50")) {
		t.Errorf("Amount = %s, expected -12.50", txn.Amount)
	}
	if !txn.Cleared {
		t.Error("expected normalized transactions to be cleared")
	}
	if txn.AccountID != "acct-1" {
		t.Errorf("AccountID = %q, expected acct-1", txn.AccountID)
	}
}

func TestUnitConversions(t *testing.T) {
	tests := []struct {
		name       string
		amount     string
		milliunits int64
		cents      int64
	}{
		{"negative amount", "-12.50", -12500, -1250},
		{"positive amount", "532.10", 532100, 53210},
		{"sub-cent rounding", "0.005", 5, 1},
		{"zero", "0", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := decimal.RequireFromString(tt.amount)
			if got := Milliunits(d); got != tt.milliunits {
				t.Errorf("Milliunits(%s) = %d, expected %d", tt.amount, got, tt.milliunits)
			}
			if got := Cents(d); got != tt.cents {
				t.Errorf("Cents(%s) = %d, expected %d", tt.amount, got, tt.cents)
			}
		})
	}
}

func TestDollars(t *testing.T) {
	if got := Dollars(-1250); got.String() != "-12.5" {
		t.Errorf("Dollars(-1250) = %s, expected -12.5", got)
	}
	if got := Dollars(53000).StringFixed(2); got != "530.00" {
		t.Errorf("Dollars(53000) = %s, expected 530.00", got)
	}
}
