// Package webhook provides the HTTP receiver for Akahu-pushed transaction
// events. Events are verified against Akahu's webhook signing key and then
// driven through the same normalize/reconcile path as the scheduled sync.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nzfintools/akahu-budget-sync/pkg/akahu"
	"github.com/nzfintools/akahu-budget-sync/pkg/engine"
)

// Reconciler is the single-transaction sync contract the server drives.
type Reconciler interface {
	SyncTransaction(ctx context.Context, raw akahu.Transaction) error
}

// Server is the webhook HTTP server.
type Server struct {
	router     chi.Router
	reconciler Reconciler
}

// NewServer creates a webhook server. publicKeyPEM is Akahu's PEM-encoded
// webhook signing key; signature verification is skipped with a warning
// when it is empty (local development only).
func NewServer(reconciler Reconciler, publicKeyPEM string) (*Server, error) {
	s := &Server{
		router:     chi.NewRouter(),
		reconciler: reconciler,
	}

	var verifier *SignatureVerifier
	if publicKeyPEM != "" {
		var err error
		verifier, err = NewSignatureVerifier(publicKeyPEM)
		if err != nil {
			return nil, err
		}
	} else {
		slog.Warn("No Akahu public key configured; webhook signatures will not be verified")
	}

	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		if verifier != nil {
			r.Use(verifier.Middleware)
		}
		r.Post("/transaction", s.handleTransaction)
	})

	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTransaction accepts one Akahu webhook event. Non-transaction events
// are acknowledged and ignored so Akahu does not retry them.
func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	var event akahu.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_payload", "Failed to decode webhook event")
		return
	}

	if event.WebhookType != "TRANSACTION" || event.WebhookCode != "TRANSACTION_CREATED" {
		slog.Debug("Ignoring webhook event",
			"webhook_type", event.WebhookType, "webhook_code", event.WebhookCode)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if event.Item == nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_payload", "Transaction event has no item")
		return
	}

	raw := *event.Item
	if raw.Account == "" {
		raw.Account = event.AccountID
	}

	slog.Info("Received transaction webhook",
		"transaction_id", raw.ID, "account_id", raw.Account)

	if err := s.reconciler.SyncTransaction(r.Context(), raw); err != nil {
		if errors.Is(err, engine.ErrUnmappedAccount) {
			writeJSONError(w, http.StatusNotFound, "unmapped_account", err.Error())
			return
		}
		slog.Error("Failed to reconcile webhook transaction",
			"transaction_id", raw.ID, "account_id", raw.Account, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "sync_failed", "Failed to reconcile transaction")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "synced"})
}

// writeJSON writes a JSON response body.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, ErrorResponse{Error: code, ErrorDescription: description})
}
