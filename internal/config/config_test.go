package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
app:
  name: test-tracker
  environment: test
exchange:
  base_url: https://www.deribit.com/api/v2
  symbols: [btc_usd]
database:
  host: db.internal
  port: 5433
  name: prices
  user: tracker
  password: testpass
redis:
  host: redis.internal
  db: 2
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.App.Name != "test-tracker" {
		t.Errorf("App.Name = %q, want %q", cfg.App.Name, "test-tracker")
	}
	if cfg.Exchange.BaseURL != "https://www.deribit.com/api/v2" {
		t.Errorf("Exchange.BaseURL = %q, want %q", cfg.Exchange.BaseURL, "https://www.deribit.com/api/v2")
	}
	if len(cfg.Exchange.Symbols) != 1 || cfg.Exchange.Symbols[0] != "btc_usd" {
		t.Errorf("Exchange.Symbols = %v, want [btc_usd]", cfg.Exchange.Symbols)
	}
	if cfg.Database.Port != 5433 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 5433)
	}
	if cfg.Redis.DB != 2 {
		t.Errorf("Redis.DB = %d, want %d", cfg.Redis.DB, 2)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
database:
  host: localhost
  user: tracker
  password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Password != "secret123" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "secret123")
	}
}

func TestLoadWithDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("PRICES_TEST_REDIS_HOST=cache.internal\n"), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("PRICES_TEST_REDIS_HOST") })

	orig := DotEnvFile
	DotEnvFile = envPath
	t.Cleanup(func() { DotEnvFile = orig })

	path := writeTempFile(t, "redis:\n  host: ${PRICES_TEST_REDIS_HOST}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Redis.Host != "cache.internal" {
		t.Errorf("Redis.Host = %q, want %q", cfg.Redis.Host, "cache.internal")
	}
}

func TestLoadMissingDotEnv(t *testing.T) {
	orig := DotEnvFile
	DotEnvFile = filepath.Join(t.TempDir(), "missing.env")
	t.Cleanup(func() { DotEnvFile = orig })

	path := writeTempFile(t, "app:\n  name: x\n")
	if _, err := Load(path); err != nil {
		t.Fatalf("Load with missing .env failed: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load expected error for missing file")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
database:
  user: tracker
  password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Exchange.BaseURL != DefaultBaseURL {
		t.Errorf("Exchange.BaseURL = %q, want %q", cfg.Exchange.BaseURL, DefaultBaseURL)
	}
	if cfg.Exchange.Timeout != 30*time.Second {
		t.Errorf("Exchange.Timeout = %v, want %v", cfg.Exchange.Timeout, 30*time.Second)
	}
	if cfg.Exchange.RetryBackoff != 2 {
		t.Errorf("Exchange.RetryBackoff = %v, want 2", cfg.Exchange.RetryBackoff)
	}
	if strings.Join(cfg.Exchange.Symbols, ",") != "btc_usd,eth_usd" {
		t.Errorf("Exchange.Symbols = %v, want [btc_usd eth_usd]", cfg.Exchange.Symbols)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 5432)
	}
	if cfg.Database.SSLMode != "prefer" {
		t.Errorf("Database.SSLMode = %q, want %q", cfg.Database.SSLMode, "prefer")
	}
	if cfg.HTTP.Port != 8000 {
		t.Errorf("HTTP.Port = %d, want %d", cfg.HTTP.Port, 8000)
	}
	if cfg.Worker.FetchSchedule != "@every 1m" {
		t.Errorf("Worker.FetchSchedule = %q, want %q", cfg.Worker.FetchSchedule, "@every 1m")
	}
	if cfg.Worker.CleanupSchedule != "0 3 * * *" {
		t.Errorf("Worker.CleanupSchedule = %q, want %q", cfg.Worker.CleanupSchedule, "0 3 * * *")
	}
	if cfg.Worker.RetentionDays != 30 {
		t.Errorf("Worker.RetentionDays = %d, want %d", cfg.Worker.RetentionDays, 30)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, "database:\n  user: tracker\n")

	_, err := LoadAndValidate(path)
	if err == nil {
		t.Fatal("LoadAndValidate expected error for missing password")
	}
	if !strings.Contains(err.Error(), "database.password is required") {
		t.Errorf("error = %q, want it to mention database.password", err.Error())
	}
}

func validConfig() *Config {
	cfg := &Config{
		Database: DBConfig{User: "tracker", Password: "pass"},
	}
	cfg.applyDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			modify:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "relative base url",
			modify:  func(c *Config) { c.Exchange.BaseURL = "/api/v2" },
			wantErr: `exchange.base_url must be an absolute URL, got "/api/v2"`,
		},
		{
			name:    "negative retries",
			modify:  func(c *Config) { c.Exchange.MaxRetries = -1 },
			wantErr: "exchange.max_retries must be >= 0",
		},
		{
			name:    "shrinking backoff",
			modify:  func(c *Config) { c.Exchange.RetryBackoff = 0.5 },
			wantErr: "exchange.retry_backoff must be >= 1, got 0.5",
		},
		{
			name:    "symbol outside allow-list",
			modify:  func(c *Config) { c.Exchange.Symbols = []string{"btc_usd", "sol_usd"} },
			wantErr: `exchange.symbols[1] must be one of [btc_usd eth_usd], got "sol_usd"`,
		},
		{
			name:    "repeated symbol",
			modify:  func(c *Config) { c.Exchange.Symbols = []string{"btc_usd", "eth_usd", "btc_usd"} },
			wantErr: `exchange.symbols[2] repeats "btc_usd"`,
		},
		{
			name:    "missing database user",
			modify:  func(c *Config) { c.Database.User = "" },
			wantErr: "database.user is required",
		},
		{
			name: "min_conns exceeds max_conns",
			modify: func(c *Config) {
				c.Database.MinConns = 20
				c.Database.MaxConns = 10
			},
			wantErr: "database.min_conns (20) cannot exceed max_conns (10)",
		},
		{
			name:    "missing redis host",
			modify:  func(c *Config) { c.Redis.Host = "" },
			wantErr: "redis.host is required",
		},
		{
			name:    "http port out of range",
			modify:  func(c *Config) { c.HTTP.Port = 70000 },
			wantErr: "http.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "negative retention",
			modify:  func(c *Config) { c.Worker.RetentionDays = -1 },
			wantErr: "worker.retention_days must be >= 1",
		},
		{
			name:    "unknown log format",
			modify:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: `log.format must be json or text, got "xml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
