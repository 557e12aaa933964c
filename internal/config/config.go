package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	// HTTP Server
	Port string

	// Runtime mode: development echoes internal error detail to clients and
	// relaxes the CORS origin check.
	Env string

	// Allowed cross-origin frontend URL (production only).
	FrontendURL string

	// Database
	DBPath string

	// Sessions
	SessionTTL time.Duration

	// AMQP (optional; empty URL disables the backup pipeline)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets ledger backup
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "5000"),
		Env:         getEnv("APP_ENV", EnvDevelopment),
		FrontendURL: getEnv("FRONTEND_URL", ""),

		DBPath: getEnv("DATABASE_PATH", "./data/tally.db"),

		SessionTTL: getEnvDuration("SESSION_TTL", 24*time.Hour),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "tally"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_backup"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Transactions"),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 30*time.Second),
	}
}

// Development reports whether internal error detail may be echoed to clients.
func (c *Config) Development() bool {
	return c.Env != EnvProduction
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		errs = append(errs, fmt.Sprintf("invalid env '%s': must be '%s' or '%s'", c.Env, EnvDevelopment, EnvProduction))
	}

	if c.Env == EnvProduction && c.FrontendURL == "" {
		errs = append(errs, "FRONTEND_URL is required in production mode")
	}
	if c.FrontendURL != "" {
		if u, err := url.Parse(c.FrontendURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("invalid frontend URL '%s'", c.FrontendURL))
		}
	}

	if c.DBPath == "" {
		errs = append(errs, "database path cannot be empty")
	} else if dir := filepath.Dir(c.DBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errs = append(errs, fmt.Sprintf("cannot create database directory '%s': %v", dir, err))
			}
		}
	}

	if c.SessionTTL < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SyncBatchSize < 1 || c.SyncBatchSize > 1000 {
		errs = append(errs, fmt.Sprintf("invalid sync batch size %d: must be between 1 and 1000", c.SyncBatchSize))
	}
	if c.SyncInterval < time.Second || c.SyncInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid sync interval %v: must be between 1s and 24h", c.SyncInterval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
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
