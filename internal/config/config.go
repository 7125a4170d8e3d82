package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"sqr/internal/logger"
)

// Store drivers.
const (
	DriverSheets   = "sheets"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	// Ledger store
	StoreDriver      string
	GoogleSheetURL   string
	SQLitePath       string
	DatabaseDSN      string
	LedgerLayoutFile string

	// Google credentials shared by Sheets, Gmail and Document AI
	GoogleCredentialsFile string
	GoogleCredentialsJSON string

	// Document sources
	InboxDir   string
	GmailUser  string
	GmailQuery string
	GmailMax   int

	// Ingestion
	IngestWorkers int
	DedupRule     string

	// Tax
	VATRate decimal.Decimal

	// Document AI PDF fallback (optional)
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string

	// OpenAI suggestions (optional)
	OpenAIAPIKey string
	OpenAIModel  string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		StoreDriver:                strings.ToLower(getEnv("STORE_DRIVER", DriverSheets)),
		GoogleSheetURL:             getEnv("GOOGLE_SHEET_URL", ""),
		SQLitePath:                 getEnv("SQLITE_PATH", "sqr.db"),
		DatabaseDSN:                getEnv("DATABASE_DSN", ""),
		LedgerLayoutFile:           getEnv("LEDGER_LAYOUT_FILE", ""),
		GoogleCredentialsFile:      getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		GoogleCredentialsJSON:      getEnv("GOOGLE_CREDENTIALS", ""),
		InboxDir:                   getEnv("INGEST_DIR", "inbox"),
		GmailUser:                  getEnv("GMAIL_USER", ""),
		GmailQuery:                 getEnv("GMAIL_QUERY", "has:attachment (filename:zip OR filename:xml)"),
		GmailMax:                   getEnvInt("GMAIL_MAX_MESSAGES", 100),
		IngestWorkers:              getEnvInt("INGEST_WORKERS", 8),
		DedupRule:                  getEnv("DEDUP_RULE", "contains"),
		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),
		OpenAIAPIKey:               getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:                getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		LogLevel:                   getEnv("LOG_LEVEL", "info"),
		LogFormat:                  getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:              getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:                  getEnv("LOG_OUTPUT", "stderr"),
	}

	rate, err := decimal.NewFromString(getEnv("VAT_RATE", "0.19"))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: VAT_RATE: %w", err)
	}
	config.VATRate = rate

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverSheets:
		if c.GoogleSheetURL == "" {
			return fmt.Errorf("GOOGLE_SHEET_URL is required for the sheets store")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case DriverPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want %s, %s or %s)", c.StoreDriver, DriverSheets, DriverSQLite, DriverPostgres)
	}
	if c.VATRate.IsNegative() || c.VATRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("VAT_RATE must be a fraction between 0 and 1, got %s", c.VATRate)
	}
	if c.IngestWorkers <= 0 {
		return fmt.Errorf("INGEST_WORKERS must be positive")
	}
	return nil
}

// DocumentAIEnabled reports whether PDF invoices can be sent to Document AI.
func (c *Config) DocumentAIEnabled() bool {
	return c.GoogleCloudProject != "" && c.DocumentAIProcessorID != ""
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
