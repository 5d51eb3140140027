// Package cli holds the start-up steps shared by cmd/pennypal and
// cmd/pennypal-report.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"pennypal/internal/backend"
	"pennypal/internal/config"
	"pennypal/internal/engine"
	"pennypal/internal/log"
)

// SetupLogger builds the logger described by cfg and makes it the default.
func SetupLogger(cfg *config.Config) *log.Logger {
	logger := log.New(cfg.LoggerConfig())
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// BuildEngine creates the engine on top of the stores of res, using the
// currency table, default spending limit and timezone from cfg.
func BuildEngine(cfg *config.Config, res *backend.Result, logger *log.Logger) (*engine.Engine, error) {
	rates, err := cfg.Rates()
	if err != nil {
		return nil, fmt.Errorf("currency rates: %w", err)
	}
	limit, err := cfg.SpendingLimit()
	if err != nil {
		return nil, fmt.Errorf("default spending limit: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return engine.New(res.Ledger, res.Badges, rates, engine.Config{
		DefaultSpendingLimit: decimal.NewNullDecimal(limit),
		Location:             loc,
	}, logger), nil
}

// OpenBackend builds the stores selected by cfg.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.Result, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).CreateBackend(ctx, bcfg)
}

// GracefulShutdown returns a context cancelled by SIGINT or SIGTERM. The
// returned stop func releases the signal handler.
func GracefulShutdown() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
