package engine

import "fmt"

// The engine distinguishes error kinds so operators can tell "could not
// read source" from "could not write destination". All wrap an underlying
// cause and support errors.As / errors.Is unwrapping.

// FetchError is a source read failure. The whole account's sync is aborted
// and already-fetched pages are discarded; nothing is partially applied.
type FetchError struct {
	AccountID string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch transactions for account %s: %v", e.AccountID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DestinationAccessError is a failure to read destination reference data
// (categories, payees, ruleset) before any write was attempted.
type DestinationAccessError struct {
	Destination string
	Err         error
}

func (e *DestinationAccessError) Error() string {
	return fmt.Sprintf("failed to access %s reference data: %v", e.Destination, e.Err)
}

func (e *DestinationAccessError) Unwrap() error { return e.Err }

// ReconcileError is a failure reconciling a single transaction. It aborts
// the whole batch's commit, preserving all-or-nothing semantics.
type ReconcileError struct {
	DedupKey string
	Err      error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("failed to reconcile transaction %s: %v", e.DedupKey, e.Err)
}

func (e *ReconcileError) Unwrap() error { return e.Err }

// CommitError is a rejected destination commit. All buffered creations for
// the batch are lost; the watermark is not advanced, so the whole account is
// safe to retry on the next run (dedup keys prevent duplicate creation).
type CommitError struct {
	Destination string
	Err         error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("failed to commit to %s: %v", e.Destination, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// TransportError is a REST call failure against the batch-submit
// destination, carrying whatever the server said in its response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("destination request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
