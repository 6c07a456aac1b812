package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nzfintools/akahu-budget-sync/pkg/config"
	"github.com/nzfintools/akahu-budget-sync/pkg/webhook"
)

var (
	servePort int
	syncFirst bool
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server",
	Long: `Run the webhook HTTP server that accepts Akahu-pushed transaction
events and reconciles them in real time.

Endpoints:
  POST /transaction  signed Akahu webhook events
  GET  /health       liveness check

Webhook-triggered and scheduled reconciliation share one lock, so a pushed
transaction never races a running sync pass.

Example:
  akahu-sync serve
  akahu-sync serve --port 5000 --sync-first`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from WEBHOOK_PORT)")
	serveCmd.Flags().BoolVar(&syncFirst, "sync-first", false, "run a full sync pass before serving")
}

func runServe(cmd *cobra.Command, args []string) {
	// Load configuration
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	if err := cfg.Validate(requiredSettings(cfg)...); err != nil {
		exitOnError(err, "invalid configuration")
	}

	orch, historyStore, err := buildOrchestrator(cfg)
	exitOnError(err, "failed to initialize sync")
	defer historyStore.Close()

	if syncFirst {
		slog.Info("Running initial sync pass")
		if err := orch.SyncAll(context.Background()); err != nil {
			// A failed initial sync should not keep the receiver down;
			// the next webhook or scheduled run will retry.
			slog.Error("Initial sync finished with errors", "error", err)
		}
	}

	server, err := webhook.NewServer(orch, cfg.Akahu.PublicKey)
	exitOnError(err, "failed to create webhook server")

	port := servePort
	if port == 0 {
		port = cfg.Sync.WebhookPort
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("Shutting down webhook server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			slog.Error("Failed to shut down cleanly", "error", err)
		}
		close(done)
	}()

	slog.Info("Webhook server listening", "port", port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		exitOnError(err, "webhook server failed")
	}
	<-done
}
