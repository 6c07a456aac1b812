package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nzfintools/akahu-budget-sync/pkg/actualbudget"
	"github.com/nzfintools/akahu-budget-sync/pkg/akahu"
	"github.com/nzfintools/akahu-budget-sync/pkg/budget"
	"github.com/nzfintools/akahu-budget-sync/pkg/history"
	"github.com/nzfintools/akahu-budget-sync/pkg/mapping"
)

// ErrUnmappedAccount is returned when a transaction event references an
// Akahu account with no mapping entry.
var ErrUnmappedAccount = errors.New("no mapping entry for account")

// Source is the aggregator contract consumed by the orchestrator.
type Source interface {
	FetchAllTransactions(ctx context.Context, accountID string, since time.Time) ([]akahu.Transaction, error)
	GetAccount(ctx context.Context, accountID string) (*akahu.Account, error)
}

// OrchestratorConfig wires the orchestrator's collaborators. YNAB is
// disabled when YNAB is nil; Actual is disabled when ActualBudgetPath is
// empty.
type OrchestratorConfig struct {
	Source           Source
	YNAB             BatchDestination
	ActualBudgetPath string
	Mapping          *mapping.Store
	History          *history.Store // optional
	Normalizer       *budget.Normalizer
}

// Orchestrator sequences fetch → normalize → reconcile → balance-reconcile
// → watermark per mapped account, independently for each destination.
//
// The scheduled pass and the webhook path share one mutex: the mapping
// table and an open destination session are not safe for concurrent
// mutation, so the two entry points are serialized here.
type Orchestrator struct {
	mu sync.Mutex

	source     Source
	ynab       BatchDestination
	actualPath string
	mapping    *mapping.Store
	history    *history.Store
	normalizer *budget.Normalizer
	now        func() time.Time
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		source:     cfg.Source,
		ynab:       cfg.YNAB,
		actualPath: cfg.ActualBudgetPath,
		mapping:    cfg.Mapping,
		history:    cfg.History,
		normalizer: cfg.Normalizer,
		now:        time.Now,
	}
}

// SyncAll syncs every mapped account into every enabled destination.
// Accounts are independent: one account failing is logged and the run moves
// on. Destinations are independent: a failure syncing to one never blocks
// the other. The combined error (if any) is returned so the caller can
// exit non-zero.
func (o *Orchestrator) SyncAll(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var errs []error

	if o.actualPath != "" {
		for _, entry := range o.mapping.Entries() {
			if entry.ActualAccountID == "" {
				continue
			}
			if err := o.syncAccountActual(ctx, entry); err != nil {
				slog.Error("Failed to sync account to Actual",
					"akahu_id", entry.AkahuID, "akahu_name", entry.AkahuName, "error", err)
				errs = append(errs, fmt.Errorf("actual sync of %s: %w", entry.AkahuName, err))
			}
		}
	}

	if o.ynab != nil {
		for _, entry := range o.mapping.Entries() {
			if entry.YNABAccountID == "" || entry.YNABBudgetID == "" {
				continue
			}
			if err := o.syncAccountYNAB(ctx, entry); err != nil {
				slog.Error("Failed to sync account to YNAB",
					"akahu_id", entry.AkahuID, "akahu_name", entry.AkahuName, "error", err)
				errs = append(errs, fmt.Errorf("ynab sync of %s: %w", entry.AkahuName, err))
			}
		}
	}

	return errors.Join(errs...)
}

// SyncTransaction reconciles a single pushed transaction into every enabled
// destination. This is the webhook path; it takes the same mutex as the
// scheduled pass.
func (o *Orchestrator) SyncTransaction(ctx context.Context, raw akahu.Transaction) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	entry := o.mapping.FindByAkahuID(raw.Account)
	if entry == nil {
		return fmt.Errorf("%w: %s", ErrUnmappedAccount, raw.Account)
	}

	var errs []error

	if o.actualPath != "" && entry.ActualAccountID != "" {
		txn := o.normalizer.Normalize(raw, entry.ActualAccountID)
		err := actualbudget.WithSession(o.actualPath, func(session *actualbudget.Session) error {
			if _, err := SyncActual(session, []budget.Transaction{txn}); err != nil {
				return err
			}
			if err := session.Commit(); err != nil {
				return &CommitError{Destination: DestActual, Err: err}
			}
			return nil
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	if o.ynab != nil && entry.YNABAccountID != "" && entry.YNABBudgetID != "" {
		txn := o.normalizer.Normalize(raw, entry.YNABAccountID)
		if _, err := SyncYNAB(ctx, o.ynab, entry.YNABBudgetID, []budget.Transaction{txn}); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// syncAccountActual runs one account's full sync pass against Actual.
func (o *Orchestrator) syncAccountActual(ctx context.Context, entry *mapping.Entry) error {
	start := o.now()

	if err := o.refreshBalance(ctx, entry); err != nil {
		return err
	}

	var result *Result
	err := actualbudget.WithSession(o.actualPath, func(session *actualbudget.Session) error {
		var err error
		if entry.Tracking {
			result, err = o.reconcileTrackingActual(session, entry)
		} else {
			result, err = o.reconcileTransactionsActual(ctx, session, entry)
		}
		if err != nil {
			return err
		}
		// All buffered creations (and any adjustment) commit together.
		if err := session.Commit(); err != nil {
			return &CommitError{Destination: DestActual, Err: err}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return o.finishPass(DestActual, entry, result, start)
}

func (o *Orchestrator) reconcileTransactionsActual(ctx context.Context, session *actualbudget.Session, entry *mapping.Entry) (*Result, error) {
	raw, err := o.source.FetchAllTransactions(ctx, entry.AkahuID, entry.ActualWatermark())
	if err != nil {
		return nil, &FetchError{AccountID: entry.AkahuID, Err: err}
	}
	if len(raw) > 0 {
		slog.Info("Fetched transactions from Akahu", "count", len(raw), "akahu_name", entry.AkahuName)
	}

	txns := o.normalizer.NormalizeAll(raw, entry.ActualAccountID)
	return SyncActual(session, txns)
}

func (o *Orchestrator) reconcileTrackingActual(session *actualbudget.Session, entry *mapping.Entry) (*Result, error) {
	balance, ok := entry.Balance()
	if !ok {
		slog.Warn("Tracking account has no recorded balance; skipping",
			"akahu_id", entry.AkahuID, "akahu_name", entry.AkahuName)
		return &Result{}, nil
	}

	adjustments, err := ReconcileActualBalance(session, entry.ActualAccountID, balance, o.today())
	if err != nil {
		return nil, err
	}
	return &Result{Adjustments: adjustments}, nil
}

// syncAccountYNAB runs one account's full sync pass against YNAB.
func (o *Orchestrator) syncAccountYNAB(ctx context.Context, entry *mapping.Entry) error {
	start := o.now()

	if err := o.refreshBalance(ctx, entry); err != nil {
		return err
	}

	var result *Result
	if entry.Tracking {
		balance, ok := entry.Balance()
		if !ok {
			slog.Warn("Tracking account has no recorded balance; skipping",
				"akahu_id", entry.AkahuID, "akahu_name", entry.AkahuName)
			result = &Result{}
		} else {
			adjustments, err := ReconcileYNABBalance(ctx, o.ynab, entry.YNABBudgetID, entry.YNABAccountID, balance, o.today())
			if err != nil {
				return err
			}
			result = &Result{Adjustments: adjustments}
		}
	} else {
		raw, err := o.source.FetchAllTransactions(ctx, entry.AkahuID, entry.YNABWatermark())
		if err != nil {
			return &FetchError{AccountID: entry.AkahuID, Err: err}
		}
		if len(raw) > 0 {
			slog.Info("Fetched transactions from Akahu", "count", len(raw), "akahu_name", entry.AkahuName)
		}

		txns := o.normalizer.NormalizeAll(raw, entry.YNABAccountID)
		result, err = SyncYNAB(ctx, o.ynab, entry.YNABBudgetID, txns)
		if err != nil {
			return err
		}
	}

	return o.finishPass(DestYNAB, entry, result, start)
}

// refreshBalance reads the account's current balance from Akahu into the
// mapping entry.
func (o *Orchestrator) refreshBalance(ctx context.Context, entry *mapping.Entry) error {
	account, err := o.source.GetAccount(ctx, entry.AkahuID)
	if err != nil {
		return &FetchError{AccountID: entry.AkahuID, Err: err}
	}
	if account.Balance != nil {
		entry.SetBalance(account.Balance.Current)
	}
	return nil
}

// finishPass advances the watermark, persists the mapping and records sync
// history. Runs only after a successful commit; a failed batch leaves the
// watermark untouched so the next run retries the same window.
func (o *Orchestrator) finishPass(dest string, entry *mapping.Entry, result *Result, start time.Time) error {
	switch dest {
	case DestActual:
		entry.AdvanceActualWatermark(start)
	case DestYNAB:
		entry.AdvanceYNABWatermark(start)
	}

	if err := o.mapping.Save(); err != nil {
		return fmt.Errorf("failed to persist mapping: %w", err)
	}

	if o.history != nil {
		record := history.PassRecord{
			Destination: dest,
			AkahuID:     entry.AkahuID,
			AkahuName:   entry.AkahuName,
			Created:     result.Created,
			Skipped:     result.Skipped,
			Adjustments: result.Adjustments,
			Watermark:   start.UTC().Format(time.RFC3339),
		}
		if err := o.history.RecordPass(record); err != nil {
			// History is observability, not correctness; don't fail the pass.
			slog.Error("Failed to record sync history", "error", err)
		}
	}

	slog.Info("Account sync complete",
		"destination", dest,
		"akahu_name", entry.AkahuName,
		"created", result.Created,
		"skipped", result.Skipped,
		"adjustments", result.Adjustments,
	)
	return nil
}

// today returns the current destination-local calendar date.
func (o *Orchestrator) today() string {
	return o.now().UTC().Add(time.Duration(o.normalizer.OffsetHours) * time.Hour).Format(budget.DateFormat)
}
