package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAppName          = "Deribit Tracker"
	DefaultEnvironment      = "development"
	DefaultBaseURL          = "https://test.deribit.com/api/v2"
	DefaultAPITimeout       = 30 * time.Second
	DefaultMaxRetries       = 3
	DefaultRetryDelay       = 1 * time.Second
	DefaultRetryBackoff     = 2.0
	DefaultHealthTimeout    = 10 * time.Second
	DefaultDBHost           = "localhost"
	DefaultDBPort           = 5432
	DefaultDBName           = "deribit_tracker"
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 10
	DefaultMinConns         = 2
	DefaultRedisHost        = "localhost"
	DefaultRedisPort        = 6379
	DefaultRedisDialTimeout = 1 * time.Second
	DefaultHTTPPort         = 8000
	DefaultReadTimeout      = 15 * time.Second
	DefaultWriteTimeout     = 15 * time.Second
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultHealthWait       = 10 * time.Second
	DefaultConcurrency      = 4
	DefaultFetchSchedule    = "@every 1m"
	DefaultHealthSchedule   = "*/5 * * * *"
	DefaultCleanupSchedule  = "0 3 * * *"
	DefaultRetentionDays    = 30
	DefaultFetchAttempts    = 3
	DefaultFetchRetryDelay  = 100 * time.Millisecond
	DefaultTaskMaxRetry     = 3
	DefaultTaskTimeout      = 5 * time.Minute
	DefaultResultRetention  = time.Hour
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsPort      = 9090
	DefaultMetricsPath      = "/metrics"
)

// ScheduleOff disables a periodic task.
const ScheduleOff = "off"

// DefaultSymbols are the index names polled by the fetch pipeline.
var DefaultSymbols = []string{"btc_usd", "eth_usd"}

func (c *Config) applyDefaults() {
	// App defaults
	if c.App.Name == "" {
		c.App.Name = DefaultAppName
	}
	if c.App.Environment == "" {
		c.App.Environment = DefaultEnvironment
	}

	// Exchange defaults
	if c.Exchange.BaseURL == "" {
		c.Exchange.BaseURL = DefaultBaseURL
	}
	if c.Exchange.Timeout == 0 {
		c.Exchange.Timeout = DefaultAPITimeout
	}
	if c.Exchange.MaxRetries == 0 {
		c.Exchange.MaxRetries = DefaultMaxRetries
	}
	if c.Exchange.RetryDelay == 0 {
		c.Exchange.RetryDelay = DefaultRetryDelay
	}
	if c.Exchange.RetryBackoff == 0 {
		c.Exchange.RetryBackoff = DefaultRetryBackoff
	}
	if len(c.Exchange.Symbols) == 0 {
		c.Exchange.Symbols = append([]string(nil), DefaultSymbols...)
	}
	if c.Exchange.HealthTimeout == 0 {
		c.Exchange.HealthTimeout = DefaultHealthTimeout
	}

	// Database defaults
	if c.Database.Host == "" {
		c.Database.Host = DefaultDBHost
	}
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.Name == "" {
		c.Database.Name = DefaultDBName
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Redis defaults
	if c.Redis.Host == "" {
		c.Redis.Host = DefaultRedisHost
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = DefaultRedisPort
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = DefaultRedisDialTimeout
	}

	// HTTP defaults
	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultHTTPPort
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = DefaultReadTimeout
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = DefaultWriteTimeout
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.HTTP.HealthWait == 0 {
		c.HTTP.HealthWait = DefaultHealthWait
	}

	// Worker defaults
	if c.Worker.Concurrency == 0 {
		c.Worker.Concurrency = DefaultConcurrency
	}
	if c.Worker.FetchSchedule == "" {
		c.Worker.FetchSchedule = DefaultFetchSchedule
	}
	if c.Worker.HealthSchedule == "" {
		c.Worker.HealthSchedule = DefaultHealthSchedule
	}
	if c.Worker.CleanupSchedule == "" {
		c.Worker.CleanupSchedule = DefaultCleanupSchedule
	}
	if c.Worker.RetentionDays == 0 {
		c.Worker.RetentionDays = DefaultRetentionDays
	}
	if c.Worker.FetchAttempts == 0 {
		c.Worker.FetchAttempts = DefaultFetchAttempts
	}
	if c.Worker.FetchRetryDelay == 0 {
		c.Worker.FetchRetryDelay = DefaultFetchRetryDelay
	}
	if c.Worker.TaskMaxRetry == 0 {
		c.Worker.TaskMaxRetry = DefaultTaskMaxRetry
	}
	if c.Worker.TaskTimeout == 0 {
		c.Worker.TaskTimeout = DefaultTaskTimeout
	}
	if c.Worker.ResultRetention == 0 {
		c.Worker.ResultRetention = DefaultResultRetention
	}
	if c.Worker.ShutdownTimeout == 0 {
		c.Worker.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
