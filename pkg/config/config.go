// Package config provides configuration management for the sync tool.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config represents the application configuration.
// It is constructed once at startup and passed by reference; the sync
// engine never reads environment state directly.
type Config struct {
	Akahu  AkahuConfig
	YNAB   YNABConfig
	Actual ActualConfig
	Sync   SyncConfig
	Debug  bool
}

// AkahuConfig represents Akahu aggregator API configuration.
type AkahuConfig struct {
	Endpoint  string
	AppToken  string
	UserToken string
	PublicKey string // PEM-encoded webhook signing key
}

// YNABConfig represents YNAB API configuration.
type YNABConfig struct {
	Endpoint string
	Token    string
	Enabled  bool
}

// ActualConfig represents Actual Budget configuration.
type ActualConfig struct {
	BudgetPath string // path to the local budget SQLite file
	Enabled    bool
}

// SyncConfig represents sync behaviour configuration.
type SyncConfig struct {
	DataDir        string
	MappingPath    string
	HistoryDBPath  string
	TimezoneOffset int // hours added to UTC for destination-local dates
	WebhookPort    int
}

// Load loads configuration from environment variables.
// It automatically loads .env from the current directory if available.
// You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	tzOffset, err := parseIntEnv("SYNC_TZ_OFFSET_HOURS", 13)
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_TZ_OFFSET_HOURS: %w", err)
	}

	webhookPort, err := parseIntEnv("WEBHOOK_PORT", 5000)
	if err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_PORT: %w", err)
	}

	config := &Config{
		Akahu: AkahuConfig{
			Endpoint:  getEnvOrDefault("AKAHU_ENDPOINT", "https://api.akahu.io/v1"),
			AppToken:  os.Getenv("AKAHU_APP_TOKEN"),
			UserToken: os.Getenv("AKAHU_USER_TOKEN"),
			PublicKey: os.Getenv("AKAHU_PUBLIC_KEY"),
		},
		YNAB: YNABConfig{
			Endpoint: getEnvOrDefault("YNAB_ENDPOINT", "https://api.ynab.com/v1"),
			Token:    os.Getenv("YNAB_TOKEN"),
			Enabled:  os.Getenv("RUN_SYNC_TO_YNAB") == "true",
		},
		Actual: ActualConfig{
			BudgetPath: os.Getenv("ACTUAL_BUDGET_PATH"),
			Enabled:    os.Getenv("RUN_SYNC_TO_ACTUAL") == "true",
		},
		Sync: SyncConfig{
			DataDir:        getEnvOrDefault("SYNC_DATA_DIR", "./data"),
			MappingPath:    os.Getenv("SYNC_MAPPING_PATH"),
			HistoryDBPath:  os.Getenv("SYNC_HISTORY_DB_PATH"),
			TimezoneOffset: tzOffset,
			WebhookPort:    webhookPort,
		},
		Debug: os.Getenv("DEBUG") == "true",
	}

	return config, nil
}

// Validate validates the configuration.
// It checks if all required fields are set.
func (c *Config) Validate(required ...[]string) error {
	var missing []string

	for _, path := range required {
		if len(path) < 2 {
			continue
		}

		var value string
		switch path[0] {
		case "akahu":
			switch path[1] {
			case "endpoint":
				value = c.Akahu.Endpoint
			case "appToken":
				value = c.Akahu.AppToken
			case "userToken":
				value = c.Akahu.UserToken
			case "publicKey":
				value = c.Akahu.PublicKey
			}
		case "ynab":
			switch path[1] {
			case "endpoint":
				value = c.YNAB.Endpoint
			case "token":
				value = c.YNAB.Token
			}
		case "actual":
			switch path[1] {
			case "budgetPath":
				value = c.Actual.BudgetPath
			}
		case "sync":
			switch path[1] {
			case "dataDir":
				value = c.Sync.DataDir
			case "mappingPath":
				value = c.Sync.MappingPath
			}
		}

		if value == "" {
			missing = append(missing, joinPath(path))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}

	return nil
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv parses an int from an environment variable.
// Returns defaultValue if the environment variable is not set.
func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}

	return parsed, nil
}

// joinPath joins a path slice into a dot-separated string.
func joinPath(path []string) string {
	result := ""
	for i, p := range path {
		if i > 0 {
			result += "."
		}
		result += p
	}
	return result
}
