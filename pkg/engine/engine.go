// Package engine implements the reconciliation core: idempotent merging of
// normalized transactions into each destination ledger, balance
// reconciliation for tracking accounts, and the per-account sync
// orchestrator.
package engine

import (
	"context"
	"log/slog"

	"github.com/nzfintools/akahu-budget-sync/pkg/actualbudget"
	"github.com/nzfintools/akahu-budget-sync/pkg/budget"
	"github.com/nzfintools/akahu-budget-sync/pkg/ynab"
)

// Destination names used in errors, logs and sync history.
const (
	DestYNAB   = "ynab"
	DestActual = "actual"
)

// AdjustmentPayee is the recognizable payee name on synthesized balance
// adjustment transactions.
const AdjustmentPayee = "Balance Adjustment"

// Result is the outcome of one reconciliation pass.
type Result struct {
	// Created counts transactions newly created in the destination.
	Created int
	// Skipped counts transactions the destination recognized as already
	// present.
	Skipped int
	// Adjustments counts synthesized balance adjustment transactions.
	Adjustments int
	// RuleChanges logs field changes the destination's rule engine applied
	// to newly created transactions, keyed by dedup key.
	RuleChanges map[string][]string
}

// SyncActual reconciles a batch of normalized transactions into an Actual
// Budget session. Reference data (categories, payees, ruleset) is loaded up
// front; a failure there aborts before any write. Each transaction is
// reconciled in source order and newly created rows are run through the
// ruleset with an enumerated-field diff. All creations are buffered in the
// session and committed atomically at the end; any single failure rolls the
// whole batch back.
func SyncActual(session *actualbudget.Session, txns []budget.Transaction) (*Result, error) {
	categoryNames, err := session.Categories()
	if err != nil {
		return nil, &DestinationAccessError{Destination: DestActual, Err: err}
	}
	payeeNames, err := session.Payees()
	if err != nil {
		return nil, &DestinationAccessError{Destination: DestActual, Err: err}
	}

	ruleset, err := session.Ruleset()
	if err != nil {
		return nil, &DestinationAccessError{Destination: DestActual, Err: err}
	}
	if ruleset == nil {
		slog.Debug("No ruleset found in Actual Budget - this is normal for a new budget")
	}

	result := &Result{RuleChanges: make(map[string][]string)}
	alreadyMatched := make(map[string]bool)

	for _, txn := range txns {
		if txn.Date == "" {
			slog.Warn("Skipping transaction with unparseable date", "dedup_key", txn.DedupKey)
			continue
		}

		row, created, err := session.Reconcile(txn, alreadyMatched)
		if err != nil {
			session.Rollback()
			return nil, &ReconcileError{DedupKey: txn.DedupKey, Err: err}
		}
		alreadyMatched[row.ID] = true

		if !created {
			result.Skipped++
			slog.Debug("Transaction already exists",
				"date", txn.Date, "payee", txn.Payee, "amount", txn.Amount)
			continue
		}

		result.Created++
		slog.Info("Created new transaction",
			"date", txn.Date, "payee", txn.Payee, "amount", txn.Amount)

		if ruleset == nil {
			continue
		}

		before := *row
		if err := ruleset.Apply(session, row, payeeNames); err != nil {
			session.Rollback()
			return nil, &ReconcileError{DedupKey: txn.DedupKey, Err: err}
		}

		changes := actualbudget.DiffFields(before, *row, categoryNames, payeeNames)
		if len(changes) == 0 {
			continue
		}

		if err := session.Update(row); err != nil {
			session.Rollback()
			return nil, &ReconcileError{DedupKey: txn.DedupKey, Err: err}
		}

		result.RuleChanges[txn.DedupKey] = changes
		slog.Info("Rules modified transaction", "dedup_key", txn.DedupKey, "changes", changes)
	}

	return result, nil
}

// BatchDestination is the batch-submit destination contract (YNAB). The
// server performs its own duplicate detection on import ids.
type BatchDestination interface {
	CreateTransactions(ctx context.Context, budgetID string, txns []ynab.Transaction) (*ynab.CreateResult, error)
	CreateTransaction(ctx context.Context, budgetID string, txn ynab.Transaction) error
	GetAccount(ctx context.Context, budgetID, accountID string) (*ynab.Account, error)
}

// SyncYNAB submits a batch of normalized transactions to YNAB in one
// request. The server reports how many it accepted and how many were
// duplicate import ids; zero accepted with nonzero duplicates is a
// successful no-op.
func SyncYNAB(ctx context.Context, dest BatchDestination, budgetID string, txns []budget.Transaction) (*Result, error) {
	payload := make([]ynab.Transaction, 0, len(txns))
	for _, txn := range txns {
		if txn.Date == "" {
			slog.Warn("Skipping transaction with unparseable date", "dedup_key", txn.DedupKey)
			continue
		}
		payload = append(payload, toYNAB(txn))
	}

	if len(payload) == 0 {
		slog.Info("No transactions to load into YNAB")
		return &Result{}, nil
	}

	created, err := dest.CreateTransactions(ctx, budgetID, payload)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if created.Created == 0 {
		slog.Info("No new transactions loaded to YNAB", "skipped_duplicates", created.Duplicates)
	} else {
		slog.Info("Loaded transactions to YNAB",
			"created", created.Created, "skipped_duplicates", created.Duplicates)
	}

	return &Result{Created: created.Created, Skipped: created.Duplicates}, nil
}

// toYNAB converts a normalized transaction to the YNAB wire shape.
func toYNAB(txn budget.Transaction) ynab.Transaction {
	return ynab.Transaction{
		AccountID: txn.AccountID,
		Date:      txn.Date,
		Amount:    budget.Milliunits(txn.Amount),
		PayeeName: txn.Payee,
		Memo:      txn.Memo,
		Cleared:   ynab.ClearedCleared,
		FlagColor: "red",
		ImportID:  txn.DedupKey,
	}
}
