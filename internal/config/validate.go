package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/rickgao/deribit-prices/internal/deribit"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Exchange.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("exchange.base_url must be an absolute URL, got %q", c.Exchange.BaseURL)
	}
	if c.Exchange.MaxRetries < 0 {
		return errors.New("exchange.max_retries must be >= 0")
	}
	if c.Exchange.RetryBackoff < 1 {
		return fmt.Errorf("exchange.retry_backoff must be >= 1, got %g", c.Exchange.RetryBackoff)
	}

	seen := make(map[string]bool, len(c.Exchange.Symbols))
	for i, sym := range c.Exchange.Symbols {
		if !deribit.ValidSymbol(sym) {
			return fmt.Errorf("exchange.symbols[%d] must be one of %v, got %q", i, deribit.Symbols, sym)
		}
		if seen[sym] {
			return fmt.Errorf("exchange.symbols[%d] repeats %q", i, sym)
		}
		seen[sym] = true
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if c.Redis.Host == "" {
		return errors.New("redis.host is required")
	}
	if c.Redis.DB < 0 {
		return errors.New("redis.db must be >= 0")
	}

	if err := validatePort("http.port", c.HTTP.Port); err != nil {
		return err
	}

	if c.Worker.Concurrency < 1 {
		return errors.New("worker.concurrency must be >= 1")
	}
	if c.Worker.RetentionDays < 1 {
		return errors.New("worker.retention_days must be >= 1")
	}
	if c.Worker.FetchAttempts < 1 {
		return errors.New("worker.fetch_attempts must be >= 1")
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}

	return validatePort("metrics.port", c.Metrics.Port)
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}
