package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nzfintools/akahu-budget-sync/pkg/config"
)

// syncCmd represents the sync command.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync all mapped accounts once",
	Long: `Run one full sync pass: every mapped Akahu account is fetched,
normalized and reconciled into each enabled destination.

This command:
1. Fetches transactions from Akahu since each account's watermark
2. Reconciles them idempotently into YNAB and/or Actual Budget
3. Synthesizes balance adjustments for tracking accounts
4. Advances per-account watermarks and records sync history

Example:
  akahu-sync sync
  akahu-sync sync --debug`,
	Run: runSync,
}

func runSync(cmd *cobra.Command, args []string) {
	slog.Info("Starting sync")

	// Load configuration
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	if err := cfg.Validate(requiredSettings(cfg)...); err != nil {
		exitOnError(err, "invalid configuration")
	}

	orch, historyStore, err := buildOrchestrator(cfg)
	exitOnError(err, "failed to initialize sync")
	defer historyStore.Close()

	err = orch.SyncAll(context.Background())
	exitOnError(err, "sync finished with errors")

	// Display final statistics
	stats, err := historyStore.GetStats()
	if err == nil {
		fmt.Println("\n=== Sync Statistics ===")
		for dest, ds := range stats.ByDestination {
			fmt.Printf("%-8s passes: %d, created: %d, skipped: %d, adjustments: %d\n",
				dest, ds.Passes, ds.Created, ds.Skipped, ds.Adjustments)
		}
		if stats.LastSync.Valid {
			fmt.Printf("Last sync: %s\n", stats.LastSync.String)
		}
		fmt.Println()
	}

	slog.Info("Sync completed")
}
