package cmd

import (
	"fmt"
	"log/slog"

	"github.com/nzfintools/akahu-budget-sync/pkg/akahu"
	"github.com/nzfintools/akahu-budget-sync/pkg/budget"
	"github.com/nzfintools/akahu-budget-sync/pkg/config"
	"github.com/nzfintools/akahu-budget-sync/pkg/engine"
	"github.com/nzfintools/akahu-budget-sync/pkg/history"
	"github.com/nzfintools/akahu-budget-sync/pkg/mapping"
	"github.com/nzfintools/akahu-budget-sync/pkg/pathutil"
	"github.com/nzfintools/akahu-budget-sync/pkg/ynab"
)

// newPathResolver builds the data-directory path resolver from config.
func newPathResolver(cfg *config.Config) *pathutil.PathResolver {
	return pathutil.New(pathutil.Config{
		DataDir:       cfg.Sync.DataDir,
		MappingPath:   cfg.Sync.MappingPath,
		HistoryDBPath: cfg.Sync.HistoryDBPath,
	})
}

// buildOrchestrator wires the sync orchestrator and its collaborators from
// config. The caller must Close the returned history store.
func buildOrchestrator(cfg *config.Config) (*engine.Orchestrator, *history.Store, error) {
	if !cfg.YNAB.Enabled && !cfg.Actual.Enabled {
		return nil, nil, fmt.Errorf("no destination enabled: set RUN_SYNC_TO_YNAB or RUN_SYNC_TO_ACTUAL")
	}

	pathResolver := newPathResolver(cfg)
	if err := pathResolver.EnsureDataDir(); err != nil {
		return nil, nil, err
	}

	mappingStore, err := mapping.Load(pathResolver.GetMappingPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load account mapping: %w", err)
	}
	if len(mappingStore.Entries()) == 0 {
		slog.Warn("Account mapping is empty; nothing will be synced",
			"path", pathResolver.GetMappingPath())
	}

	historyDBPath := pathResolver.GetHistoryDBPath()
	slog.Debug("Opening history database", "path", historyDBPath)
	historyStore, err := history.Open(historyDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history database: %w", err)
	}

	akahuClient := akahu.NewClient(akahu.ClientConfig{
		Endpoint:  cfg.Akahu.Endpoint,
		AppToken:  cfg.Akahu.AppToken,
		UserToken: cfg.Akahu.UserToken,
	})

	var ynabClient engine.BatchDestination
	if cfg.YNAB.Enabled {
		ynabClient = ynab.NewClient(ynab.ClientConfig{
			Endpoint: cfg.YNAB.Endpoint,
			Token:    cfg.YNAB.Token,
		})
	}

	actualPath := ""
	if cfg.Actual.Enabled {
		actualPath = cfg.Actual.BudgetPath
	}

	orch := engine.NewOrchestrator(engine.OrchestratorConfig{
		Source:           akahuClient,
		YNAB:             ynabClient,
		ActualBudgetPath: actualPath,
		Mapping:          mappingStore,
		History:          historyStore,
		Normalizer:       budget.NewNormalizer(cfg.Sync.TimezoneOffset),
	})

	return orch, historyStore, nil
}

// requiredSettings lists the config keys a sync needs, depending on which
// destinations are enabled.
func requiredSettings(cfg *config.Config) [][]string {
	required := [][]string{
		{"akahu", "endpoint"},
		{"akahu", "appToken"},
		{"akahu", "userToken"},
	}
	if cfg.YNAB.Enabled {
		required = append(required, []string{"ynab", "token"})
	}
	if cfg.Actual.Enabled {
		required = append(required, []string{"actual", "budgetPath"})
	}
	return required
}
