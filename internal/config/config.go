package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pennypal/internal/currency"
	"pennypal/internal/log"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendSheets   = "sheets"
)

// Backends lists the accepted DATA_BACKEND values.
func Backends() []string {
	return []string{BackendMemory, BackendSQLite, BackendPostgres, BackendSheets}
}

type Config struct {
	// HTTP Server
	Port        string
	CORSOrigins []string

	// Logging
	LogLevel  string
	LogFormat string

	// Backend selection
	DataBackend   string
	DataDirectory string

	// Database
	SQLiteDBPath string
	DatabaseURL  string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	// AMQPQueue is the routing key; each process binds its own queue with it.
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleGoalsSheetName     string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	SheetsPollInterval       time.Duration

	// Money
	BaseCurrency         string
	CurrencyRates        string
	DefaultSpendingLimit string
	Timezone             string

	// View cache
	ViewCacheSize int
	ViewCacheTTL  time.Duration
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8081"),
		CORSOrigins: getEnvList("CORS_ORIGINS"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend:   getEnv("DATA_BACKEND", BackendMemory),
		DataDirectory: getEnv("DATA_DIRECTORY", "./data"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/pennypal.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "pennypal"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_changes"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleGoalsSheetName:     getEnv("GOOGLE_GOALS_SHEET_NAME", "Goals"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		SheetsPollInterval:       getEnvDuration("SHEETS_POLL_INTERVAL", 30*time.Second),

		BaseCurrency:         getEnv("BASE_CURRENCY", currency.DefaultBase),
		CurrencyRates:        getEnv("CURRENCY_RATES", ""),
		DefaultSpendingLimit: getEnv("DEFAULT_SPENDING_LIMIT", "20000"),
		Timezone:             getEnv("TIMEZONE", "Local"),

		ViewCacheSize: getEnvInt("VIEW_CACHE_SIZE", 512),
		ViewCacheTTL:  getEnvDuration("VIEW_CACHE_TTL", 5*time.Minute),
	}
}

// Validate validates the configuration and returns an error listing every problem
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	if f := strings.ToLower(c.LogFormat); f != "" && f != "text" && f != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if !slices.Contains(Backends(), c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, Backends()))
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid DATABASE_URL: must be a postgres:// URL")
		}
	case BackendSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using sheets backend")
		}
		// badges live in SQLite for this backend
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path is required to store badges when using sheets backend")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
		if c.SheetsPollInterval < time.Second {
			errors = append(errors, fmt.Sprintf("invalid sheets poll interval %v: must be at least 1 second", c.SheetsPollInterval))
		} else if c.SheetsPollInterval > 24*time.Hour {
			errors = append(errors, fmt.Sprintf("invalid sheets poll interval %v: must be at most 24 hours", c.SheetsPollInterval))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue routing key cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := c.Rates(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid currency rates: %v", err))
	}
	if _, err := c.SpendingLimit(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid default spending limit '%s': must be a non-negative number", c.DefaultSpendingLimit))
	}
	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.ViewCacheSize < 1 || c.ViewCacheSize > 100000 {
		errors = append(errors, fmt.Sprintf("invalid view cache size %d: must be between 1 and 100000", c.ViewCacheSize))
	}
	if c.ViewCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid view cache TTL %v: must be at least 1 second", c.ViewCacheTTL))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Rates builds the currency table. Without CURRENCY_RATES the built-in
// table is used, which only works with its own base.
func (c *Config) Rates() (*currency.Table, error) {
	if strings.TrimSpace(c.CurrencyRates) != "" {
		return currency.ParseRates(c.BaseCurrency, c.CurrencyRates)
	}
	t := currency.DefaultTable()
	if !strings.EqualFold(strings.TrimSpace(c.BaseCurrency), t.Base()) {
		return nil, fmt.Errorf("CURRENCY_RATES is required when BASE_CURRENCY is not %s", t.Base())
	}
	return t, nil
}

func (c *Config) SpendingLimit() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(c.DefaultSpendingLimit))
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative spending limit %s", d)
	}
	return d, nil
}

func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// LoggerConfig maps the logging keys onto a log.Config.
func (c *Config) LoggerConfig() log.Config {
	cfg := log.DefaultConfig()
	if level, err := log.ParseLevel(c.LogLevel); err == nil {
		cfg.Level = level
	}
	if c.LogFormat != "" {
		cfg.Format = strings.ToLower(c.LogFormat)
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
