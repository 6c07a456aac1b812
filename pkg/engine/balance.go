package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nzfintools/akahu-budget-sync/pkg/actualbudget"
	"github.com/nzfintools/akahu-budget-sync/pkg/budget"
	"github.com/nzfintools/akahu-budget-sync/pkg/ynab"
)

// ReconcileActualBalance compares the Akahu balance (dollars) against the
// Actual account balance (cents) at cent precision and, when they disagree,
// creates exactly one adjustment transaction for the signed difference. The
// adjustment is buffered in the session and commits atomically with the
// rest of the account's batch. Returns the number of adjustments (0 or 1).
func ReconcileActualBalance(session *actualbudget.Session, accountID string, akahuBalance decimal.Decimal, today string) (int, error) {
	actualCents, err := session.Balance(accountID)
	if err != nil {
		return 0, &DestinationAccessError{Destination: DestActual, Err: err}
	}

	akahuCents := budget.Cents(akahuBalance)
	logBalanceComparison("Actual", akahuCents, actualCents)

	if akahuCents == actualCents {
		return 0, nil
	}

	diff := budget.Dollars(akahuCents - actualCents)
	adjustment := budget.Transaction{
		Date:   today,
		Payee:  AdjustmentPayee,
		Memo: fmt.Sprintf("Adjusted from $%s to $%s to reconcile tracking account",
			budget.Dollars(actualCents).StringFixed(2), budget.Dollars(akahuCents).StringFixed(2)),
		Amount:    diff,
		DedupKey:  adjustmentID(),
		Cleared:   true,
		AccountID: accountID,
	}

	if _, err := session.Create(adjustment); err != nil {
		return 0, &ReconcileError{DedupKey: adjustment.DedupKey, Err: err}
	}

	slog.Info("Created balance adjustment transaction",
		"destination", DestActual, "account_id", accountID, "amount", diff)
	return 1, nil
}

// ReconcileYNABBalance compares the Akahu balance (dollars) against the
// YNAB account balance (milliunits) at milliunit precision and, when they
// disagree, creates exactly one adjustment transaction for the signed
// difference. YNAB has no transactional commit, so the adjustment is its
// own request.
func ReconcileYNABBalance(ctx context.Context, dest BatchDestination, budgetID, accountID string, akahuBalance decimal.Decimal, today string) (int, error) {
	account, err := dest.GetAccount(ctx, budgetID, accountID)
	if err != nil {
		return 0, &TransportError{Err: err}
	}

	akahuMilli := budget.Milliunits(akahuBalance)
	logBalanceComparison("YNAB", akahuMilli/10, account.Balance/10)

	diff := akahuMilli - account.Balance
	if diff == 0 {
		slog.Info("No adjustment needed; balances are already in sync", "account_id", accountID)
		return 0, nil
	}

	adjustment := ynab.Transaction{
		AccountID: accountID,
		Date:      today,
		Amount:    diff,
		PayeeName: AdjustmentPayee,
		Memo: fmt.Sprintf("Adjusted from $%s to $%s based on retrieved balance",
			milliToDollars(account.Balance), milliToDollars(akahuMilli)),
		Cleared:   ynab.ClearedCleared,
		FlagColor: "red",
		Approved:  true,
		ImportID:  adjustmentID(),
	}

	if err := dest.CreateTransaction(ctx, budgetID, adjustment); err != nil {
		return 0, &TransportError{Err: err}
	}

	slog.Info("Created balance adjustment transaction",
		"destination", DestYNAB, "account_id", accountID, "amount_milliunits", diff)
	return 1, nil
}

// adjustmentID builds a dedup key for a synthesized adjustment. Adjustments
// are keyed by creation time, not by a source transaction.
func adjustmentID() string {
	return "adjustment_" + time.Now().UTC().Format(time.RFC3339Nano)
}

// logBalanceComparison logs source and destination balances in dollars in a
// consistent format.
func logBalanceComparison(destName string, sourceCents, destCents int64) {
	slog.Info("Balance comparison (dollars)",
		"akahu", budget.Dollars(sourceCents).StringFixed(2),
		destName, budget.Dollars(destCents).StringFixed(2),
	)
}

func milliToDollars(milli int64) string {
	return decimal.New(milli, -3).StringFixed(2)
}
