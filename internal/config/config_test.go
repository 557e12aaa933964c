package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Port:          "5000",
		Env:           EnvDevelopment,
		DBPath:        "./tally.db",
		SessionTTL:    24 * time.Hour,
		SyncBatchSize: 10,
		SyncInterval:  30 * time.Second,
	}
}

func TestValidateOK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Port = "abc" }, "invalid port"},
		{"port out of range", func(c *Config) { c.Port = "70000" }, "invalid port"},
		{"bad env", func(c *Config) { c.Env = "staging" }, "invalid env"},
		{"production needs frontend", func(c *Config) { c.Env = EnvProduction }, "FRONTEND_URL is required"},
		{"bad frontend url", func(c *Config) { c.FrontendURL = "not a url" }, "invalid frontend URL"},
		{"empty db path", func(c *Config) { c.DBPath = "" }, "database path"},
		{"short session ttl", func(c *Config) { c.SessionTTL = time.Second }, "session TTL"},
		{"bad amqp scheme", func(c *Config) { c.AMQPURL = "http://localhost" }, "AMQP URL scheme"},
		{"amqp without queue", func(c *Config) { c.AMQPURL = "amqp://localhost"; c.AMQPQueue = "" }, "queue name"},
		{"bad batch size", func(c *Config) { c.SyncBatchSize = 0 }, "sync batch size"},
		{"bad interval", func(c *Config) { c.SyncInterval = time.Millisecond }, "sync interval"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			tc.mutate(c)
			err := c.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err.Error(), tc.want)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("AMQP_URL", "")
	cfg := Load()
	if cfg.Port != "5000" {
		t.Fatalf("default port = %s", cfg.Port)
	}
	if cfg.Env != EnvDevelopment {
		t.Fatalf("default env = %s", cfg.Env)
	}
	if !cfg.Development() {
		t.Fatal("default config should be development")
	}
	if cfg.AMQPURL != "" {
		t.Fatal("AMQP should be disabled by default")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TALLY_TEST_STR", "x")
	if getEnv("TALLY_TEST_STR", "y") != "x" {
		t.Fatal("getEnv should prefer env value")
	}
	if getEnv("TALLY_TEST_MISSING", "y") != "y" {
		t.Fatal("getEnv should fall back to default")
	}
	t.Setenv("TALLY_TEST_INT", "7")
	if getEnvInt("TALLY_TEST_INT", 3) != 7 {
		t.Fatal("getEnvInt should parse value")
	}
	if getEnvInt("TALLY_TEST_MISSING", 3) != 3 {
		t.Fatal("getEnvInt should fall back")
	}
	t.Setenv("TALLY_TEST_DUR", "90s")
	if getEnvDuration("TALLY_TEST_DUR", time.Second) != 90*time.Second {
		t.Fatal("getEnvDuration should parse value")
	}
}
