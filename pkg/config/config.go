// Package config provides configuration management for the e-Boekhouden import.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config represents the application configuration.
type Config struct {
	EBoekhouden EBoekhoudenConfig
	Company     string
	Import      ImportConfig
	Storage     StorageConfig
	Debug       bool
}

// EBoekhoudenConfig represents e-Boekhouden API configuration.
type EBoekhoudenConfig struct {
	APIURL   string
	APIToken string
	Source   string
}

// ImportConfig represents the mutation import settings.
type ImportConfig struct {
	OpeningDifferenceAccount string
	RoundOffAccount          string
	RoundingTolerance        decimal.Decimal
	DefaultCustomer          string
	DefaultSupplier          string
	Filter                   string
	Schedule                 string
}

// StorageConfig represents local storage and export configuration.
type StorageConfig struct {
	DataRoot  string
	DBPath    string
	ExportDir string
	Currency  string
}

// Load loads configuration from environment variables.
// It automatically loads .env file from the current directory if available.
// You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	// Load .env file
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	tolerance, err := parseDecimalEnv("ROUNDING_TOLERANCE", "0.05")
	if err != nil {
		return nil, err
	}
	if tolerance.IsNegative() {
		return nil, fmt.Errorf("invalid ROUNDING_TOLERANCE: must not be negative")
	}

	config := &Config{
		EBoekhouden: EBoekhoudenConfig{
			APIURL:   getEnvOrDefault("EBOEKHOUDEN_API_URL", "https://api.e-boekhouden.nl"),
			APIToken: os.Getenv("EBOEKHOUDEN_API_TOKEN"),
			Source:   getEnvOrDefault("EBOEKHOUDEN_SOURCE", "eboekhouden-sync"),
		},
		Company: os.Getenv("COMPANY_NAME"),
		Import: ImportConfig{
			OpeningDifferenceAccount: os.Getenv("OPENING_DIFFERENCE_ACCOUNT"),
			RoundOffAccount:          os.Getenv("ROUND_OFF_ACCOUNT"),
			RoundingTolerance:        tolerance,
			DefaultCustomer:          os.Getenv("DEFAULT_CUSTOMER"),
			DefaultSupplier:          os.Getenv("DEFAULT_SUPPLIER"),
			Filter:                   os.Getenv("IMPORT_FILTER"),
			Schedule:                 getEnvOrDefault("SYNC_SCHEDULE", "0 6 * * *"),
		},
		Storage: StorageConfig{
			DataRoot:  getEnvOrDefault("DATA_ROOT", "./data"),
			DBPath:    os.Getenv("DB_PATH"),
			ExportDir: os.Getenv("EXPORT_DIR"),
			Currency:  strings.ToUpper(getEnvOrDefault("CURRENCY", "EUR")),
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
		case "eboekhouden":
			switch path[1] {
			case "apiUrl":
				value = c.EBoekhouden.APIURL
			case "apiToken":
				value = c.EBoekhouden.APIToken
			case "source":
				value = c.EBoekhouden.Source
			}
		case "import":
			switch path[1] {
			case "openingDifferenceAccount":
				value = c.Import.OpeningDifferenceAccount
			case "roundOffAccount":
				value = c.Import.RoundOffAccount
			case "schedule":
				value = c.Import.Schedule
			}
		case "storage":
			switch path[1] {
			case "dataRoot":
				value = c.Storage.DataRoot
			case "dbPath":
				value = c.Storage.DBPath
			case "exportDir":
				value = c.Storage.ExportDir
			case "currency":
				value = c.Storage.Currency
			}
		}

		if value == "" {
			missing = append(missing, strings.Join(path, "."))
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

// parseDecimalEnv parses a decimal from an environment variable.
func parseDecimalEnv(key, defaultValue string) (decimal.Decimal, error) {
	value := getEnvOrDefault(key, defaultValue)

	parsed, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal value for %s: %s", key, value)
	}

	return parsed, nil
}
