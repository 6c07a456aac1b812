// Package pathutil provides centralized path management for the sync data directory.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// PathResolver manages paths for the account-mapping file, the sync-history
// database and the local Actual budget file.
type PathResolver struct {
	dataDir       string
	mappingPath   string
	historyDBPath string
}

// Config represents the configuration for PathResolver.
type Config struct {
	// DataDir is the root directory for sync state (e.g. ./data)
	DataDir string
	// MappingPath is the path to the account-mapping YAML file
	MappingPath string
	// HistoryDBPath is the path to the SQLite database file for sync history
	HistoryDBPath string
}

// New creates a new PathResolver with the given configuration.
// If MappingPath is empty, it defaults to {DataDir}/account_mapping.yaml
// If HistoryDBPath is empty, it defaults to {DataDir}/sync_history.db
func New(config Config) *PathResolver {
	mappingPath := config.MappingPath
	if mappingPath == "" {
		mappingPath = filepath.Join(config.DataDir, "account_mapping.yaml")
	}

	historyDBPath := config.HistoryDBPath
	if historyDBPath == "" {
		historyDBPath = filepath.Join(config.DataDir, "sync_history.db")
	}

	return &PathResolver{
		dataDir:       config.DataDir,
		mappingPath:   mappingPath,
		historyDBPath: historyDBPath,
	}
}

// GetDataDir returns the data root directory.
func (p *PathResolver) GetDataDir() string {
	return p.dataDir
}

// GetMappingPath returns the account-mapping file path.
func (p *PathResolver) GetMappingPath() string {
	return p.mappingPath
}

// GetHistoryDBPath returns the sync-history database file path.
func (p *PathResolver) GetHistoryDBPath() string {
	return p.historyDBPath
}

// EnsureDataDir creates the data directory if it doesn't exist.
// It creates all parent directories as needed (like mkdir -p).
func (p *PathResolver) EnsureDataDir() error {
	if err := os.MkdirAll(p.dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", p.dataDir, err)
	}
	return nil
}

// FileExists checks if a file exists.
func (p *PathResolver) FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}
