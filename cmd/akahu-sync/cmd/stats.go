package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nzfintools/akahu-budget-sync/pkg/config"
	"github.com/nzfintools/akahu-budget-sync/pkg/history"
)

// statsCmd represents the stats command.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display sync statistics",
	Long: `Display statistics about past sync passes.

Shows, per destination:
- Total sync passes
- Transactions created and skipped as duplicates
- Balance adjustments synthesized
- The most recent passes

Example:
  akahu-sync stats`,
	Run: runStats,
}

func runStats(cmd *cobra.Command, args []string) {
	slog.Info("Loading configuration")

	// Load configuration
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	pathResolver := newPathResolver(cfg)

	dbPath := pathResolver.GetHistoryDBPath()
	slog.Debug("Opening history database", "path", dbPath)

	store, err := history.Open(dbPath)
	exitOnError(err, "failed to open history database")
	defer store.Close()

	stats, err := store.GetStats()
	exitOnError(err, "failed to get statistics")

	fmt.Println("\n=== Sync Statistics ===")
	if len(stats.ByDestination) == 0 {
		fmt.Println("No sync passes recorded yet")
	}
	for dest, ds := range stats.ByDestination {
		fmt.Printf("%-8s passes: %d, created: %d, skipped: %d, adjustments: %d\n",
			dest, ds.Passes, ds.Created, ds.Skipped, ds.Adjustments)
	}

	if stats.LastSync.Valid {
		fmt.Printf("Last sync: %s\n", stats.LastSync.String)
	} else {
		fmt.Println("Last sync: (never)")
	}

	recent, err := store.RecentPasses(10)
	exitOnError(err, "failed to get recent passes")

	if len(recent) > 0 {
		fmt.Println("\n=== Recent Passes ===")
		for _, pass := range recent {
			fmt.Printf("%s  %-8s %-24s created: %d, skipped: %d, adjustments: %d\n",
				pass.SyncedAt.Format("2006-01-02 15:04:05"),
				pass.Destination, pass.AkahuName,
				pass.Created, pass.Skipped, pass.Adjustments)
		}
	}

	fmt.Println()
}
