package config

import "time"

// Config is the root configuration shared by the api and worker binaries.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Database DBConfig       `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	HTTP     HTTPConfig     `yaml:"http"`
	Worker   WorkerConfig   `yaml:"worker"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// AppConfig identifies the running service.
type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Debug       bool   `yaml:"debug"`
}

// ExchangeConfig holds Deribit API settings.
type ExchangeConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	RetryBackoff  float64       `yaml:"retry_backoff"` // multiplier applied per attempt
	Symbols       []string      `yaml:"symbols"`
	HealthTimeout time.Duration `yaml:"health_timeout"`
}

// DBConfig holds the PostgreSQL connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RedisConfig holds the broker connection used by the task queue.
type RedisConfig struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	DB          int           `yaml:"db"`
	Password    string        `yaml:"password"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// HTTPConfig holds query API listener settings.
type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	HealthWait      time.Duration `yaml:"health_wait"` // bounded wait for the on-demand health task
}

// WorkerConfig holds task worker and scheduler settings.
type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	FetchSchedule   string        `yaml:"fetch_schedule"`
	HealthSchedule  string        `yaml:"health_schedule"`
	CleanupSchedule string        `yaml:"cleanup_schedule"` // "off" disables scheduled cleanup
	RetentionDays   int           `yaml:"retention_days"`
	FetchAttempts   int           `yaml:"fetch_attempts"`
	FetchRetryDelay time.Duration `yaml:"fetch_retry_delay"`
	TaskMaxRetry    int           `yaml:"task_max_retry"`
	TaskTimeout     time.Duration `yaml:"task_timeout"`
	ResultRetention time.Duration `yaml:"result_retention"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"` // worker metrics/health listener
	Path string `yaml:"path"`
}
