// Package cli holds the boot steps shared by cmd/tally and cmd/tally-worker.
package cli

import (
	"os"

	"github.com/joho/godotenv"

	"tally/internal/config"
	applog "tally/internal/log"
	"tally/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger initializes structured logging for the given component and
// installs it as the process default.
func SetupLogger(component string) *applog.Logger {
	logger := applog.New(applog.DefaultConfig()).WithComponent(component)
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// MustInitStorage opens the repository or exits the process on failure.
func MustInitStorage(logger *applog.Logger, dbPath string) *storage.Repository {
	repo, err := storage.NewRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize storage", applog.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}
