// Package config provides configuration management for the profile service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Retry modes.
const (
	// RetryModeTerminal reports a failed refresh and stops.
	RetryModeTerminal = "terminal"
	// RetryModeRetry reports a failed refresh, waits and re-triggers it.
	RetryModeRetry = "retry"
)

// Backoff strategies for the retry delay.
const (
	BackoffConstant    = "constant"
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
)

// Session store types.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// envPrefix is the prefix of every environment variable read by Load.
const envPrefix = "PROFILE"

// Config holds all configuration for the profile service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Backend contains remote profile backend settings.
	Backend BackendConfig `mapstructure:"backend"`
	// Refresh contains refresh workflow settings.
	Refresh RefreshConfig `mapstructure:"refresh"`
	// Session contains session credential storage settings.
	Session SessionConfig `mapstructure:"session"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Temporal contains Temporal workflow orchestration settings.
	Temporal TemporalConfig `mapstructure:"temporal"`
	// Kafka contains Kafka publisher and command listener settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// BackendConfig holds settings for the remote profile backend.
type BackendConfig struct {
	// APIURLPrefix is the scheme and host every backend path is appended to.
	APIURLPrefix string `mapstructure:"api_url_prefix"`
	// Timeout bounds a single backend call. Zero means no timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// BurstSize is the maximum burst for the rate limiter.
	BurstSize int `mapstructure:"burst_size"`
	// UserAgent is sent with every request.
	UserAgent string `mapstructure:"user_agent"`
}

// RefreshConfig holds refresh workflow settings.
type RefreshConfig struct {
	// Retry controls what happens after a failed refresh.
	Retry RetryConfig `mapstructure:"retry"`
	// Schedule is a cron expression for periodic refreshes. Empty disables it.
	Schedule string `mapstructure:"schedule"`
	// OnStart dispatches a refresh and a deletion-status load at startup.
	OnStart bool `mapstructure:"on_start"`
}

// RetryConfig holds the retry policy of the refresh workflow.
type RetryConfig struct {
	// Mode is terminal or retry (default: retry).
	Mode string `mapstructure:"mode"`
	// Delay is the base wait before a refresh is re-triggered (default: 6s).
	Delay time.Duration `mapstructure:"delay"`
	// MaxAttempts bounds the attempts of one trigger chain. Zero means unbounded.
	MaxAttempts int `mapstructure:"max_attempts"`
	// Backoff is constant, linear or exponential (default: constant).
	Backoff string `mapstructure:"backoff"`
	// MaxDelay caps the computed delay. Zero means no cap.
	MaxDelay time.Duration `mapstructure:"max_delay"`
}

// SessionConfig holds session credential storage settings.
type SessionConfig struct {
	// ID identifies the session this instance refreshes (default: default).
	ID string `mapstructure:"id"`
	// Store is memory or redis (default: memory).
	Store string `mapstructure:"store"`
	// TTL is how long a stored token is kept. Zero means no expiry.
	TTL time.Duration `mapstructure:"ttl"`
	// Token bootstraps the session credential (loaded from PROFILE_SESSION_TOKEN env var).
	Token string `mapstructure:"-"`
	// Redis contains the Redis connection used by the redis store.
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	// Addr is the Redis server address.
	Addr string `mapstructure:"addr"`
	// DB is the Redis database number.
	DB int `mapstructure:"db"`
	// KeyPrefix is prepended to every session key.
	KeyPrefix string `mapstructure:"key_prefix"`
	// Password is the Redis password (loaded from PROFILE_SESSION_REDIS_PASSWORD env var).
	Password string `mapstructure:"-"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Enabled turns on snapshot and outcome persistence.
	Enabled bool `mapstructure:"enabled"`
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (loaded from PROFILE_DATABASE_PASSWORD env var).
	Password string `mapstructure:"-"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 10).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 2).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// TemporalConfig holds Temporal workflow configuration.
type TemporalConfig struct {
	// Enabled turns on the durable refresh endpoint.
	Enabled bool `mapstructure:"enabled"`
	// HostPort is the Temporal server address.
	HostPort string `mapstructure:"host_port"`
	// Namespace is the Temporal namespace.
	Namespace string `mapstructure:"namespace"`
	// TaskQueue is the task queue name for profile workflows.
	TaskQueue string `mapstructure:"task_queue"`
}

// KafkaConfig holds Kafka settings.
type KafkaConfig struct {
	// Enabled controls whether signals are published and commands consumed.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the topic signals are published to.
	Topic string `mapstructure:"topic"`
	// CommandTopic is the topic refresh commands are read from. Empty disables the listener.
	CommandTopic string `mapstructure:"command_topic"`
	// GroupID is the consumer group of the command listener.
	GroupID string `mapstructure:"group_id"`
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/profile-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets use mapstructure:"-" so a config file can never carry them.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.Session.Token = os.Getenv(envPrefix + "_SESSION_TOKEN")
	cfg.Session.Redis.Password = os.Getenv(envPrefix + "_SESSION_REDIS_PASSWORD")
	cfg.Database.Password = os.Getenv(envPrefix + "_DATABASE_PASSWORD")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Backend defaults. No call timeout unless configured.
	v.SetDefault("backend.api_url_prefix", "http://localhost:3000")
	v.SetDefault("backend.timeout", "0s")
	v.SetDefault("backend.rate_limit", 5.0)
	v.SetDefault("backend.burst_size", 5)
	v.SetDefault("backend.user_agent", "profile-service/1.0")

	// Refresh defaults
	v.SetDefault("refresh.retry.mode", RetryModeRetry)
	v.SetDefault("refresh.retry.delay", "6s")
	v.SetDefault("refresh.retry.max_attempts", 5)
	v.SetDefault("refresh.retry.backoff", BackoffConstant)
	v.SetDefault("refresh.retry.max_delay", "0s")
	v.SetDefault("refresh.schedule", "")
	v.SetDefault("refresh.on_start", true)

	// Session defaults
	v.SetDefault("session.id", "default")
	v.SetDefault("session.store", SessionStoreMemory)
	v.SetDefault("session.ttl", "0s")
	v.SetDefault("session.redis.addr", "localhost:6379")
	v.SetDefault("session.redis.db", 0)
	v.SetDefault("session.redis.key_prefix", "profile:session:")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "profile")
	v.SetDefault("database.name", "profile_service")
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	// Temporal defaults
	v.SetDefault("temporal.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "profile-refresh-tasks")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.profile_service")
	v.SetDefault("kafka.command_topic", "commands.profile_refresh")
	v.SetDefault("kafka.group_id", "profile-service")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "profile_service")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	// Validate backend
	u, err := url.Parse(c.Backend.APIURLPrefix)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend api_url_prefix: %q", c.Backend.APIURLPrefix)
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend timeout must not be negative")
	}
	if c.Backend.RateLimit <= 0 {
		return fmt.Errorf("backend rate_limit must be positive")
	}

	if err := c.Refresh.Validate(); err != nil {
		return err
	}

	// Validate session
	if c.Session.ID == "" {
		return fmt.Errorf("session id is required")
	}
	switch c.Session.Store {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.Session.Redis.Addr == "" {
			return fmt.Errorf("session redis addr is required for the redis store")
		}
	default:
		return fmt.Errorf("invalid session store: %s", c.Session.Store)
	}

	// Validate database config
	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
		}
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka is enabled")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// Validate validates the refresh settings.
func (c *RefreshConfig) Validate() error {
	switch c.Retry.Mode {
	case RetryModeTerminal, RetryModeRetry:
	default:
		return fmt.Errorf("invalid retry mode: %s", c.Retry.Mode)
	}
	switch c.Retry.Backoff {
	case BackoffConstant, BackoffLinear, BackoffExponential:
	default:
		return fmt.Errorf("invalid retry backoff: %s", c.Retry.Backoff)
	}
	if c.Retry.Delay < 0 {
		return fmt.Errorf("retry delay must not be negative")
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry max_attempts must not be negative")
	}
	if c.Retry.MaxDelay < 0 {
		return fmt.Errorf("retry max_delay must not be negative")
	}
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("invalid refresh schedule %q: %w", c.Schedule, err)
		}
	}
	return nil
}
