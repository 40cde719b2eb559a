// Package config provides configuration management for the researcher lookup service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

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

// Environment variables holding the SerpAPI key. The prefixed one wins.
const (
	EnvSerpAPIKey       = "RESEARCHERS_SOURCES_SERPAPI_API_KEY"
	EnvSerpAPIKeyLegacy = "SERPAPI_KEY"
)

// Config holds all configuration for the researcher lookup service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains optional PostgreSQL settings for the search audit log.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Sources contains the researcher source adapters.
	Sources SourcesConfig `mapstructure:"sources"`
	// Retry contains retry, backoff and pacing settings for scraping.
	Retry RetryConfig `mapstructure:"retry"`
	// Cache contains result cache settings.
	Cache CacheConfig `mapstructure:"cache"`
	// Kafka contains the search.completed event publisher settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
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
	// WriteTimeout is the maximum duration for writing response. A scraping
	// fetch paces its requests, so this is much longer than a typical API.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Enabled turns on the search audit log. Defaults to false.
	Enabled bool `mapstructure:"enabled"`
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool.
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open.
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
	// MigrationAutoRun enables automatic migration on startup.
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr).
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

// SourcesConfig holds configuration for both researcher sources.
type SourcesConfig struct {
	// SerpAPI contains the paid API adapter settings.
	SerpAPI SerpAPIConfig `mapstructure:"serpapi"`
	// Scholar contains the scraping adapter settings.
	Scholar ScholarConfig `mapstructure:"scholar"`
}

// SerpAPIConfig holds the SerpAPI adapter settings.
type SerpAPIConfig struct {
	// Enabled controls whether this source is registered.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is the server-side key (loaded from RESEARCHERS_SOURCES_SERPAPI_API_KEY or SERPAPI_KEY).
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Engine is the SerpAPI engine name.
	Engine string `mapstructure:"engine"`
	// Timeout is the request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
}

// ScholarConfig holds the Google Scholar scraping adapter settings.
type ScholarConfig struct {
	// Enabled controls whether this source is registered.
	Enabled bool `mapstructure:"enabled"`
	// BaseURL is the Scholar root URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the per-page request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum page requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// Proxies lists proxy URLs rotated through when proxies are requested.
	Proxies []string `mapstructure:"proxies"`
	// UseProxies is the form default for the proxy checkbox.
	UseProxies bool `mapstructure:"use_proxies"`
	// UserAgents overrides the browser User-Agent pool.
	UserAgents []string `mapstructure:"user_agents"`
}

// RetryConfig holds retry, backoff and pacing settings for the scraping adapter.
type RetryConfig struct {
	// MaxAttempts is the number of invocations per author enrichment.
	MaxAttempts int `mapstructure:"max_attempts"`
	// Base is the exponential backoff base, in seconds.
	Base float64 `mapstructure:"base"`
	// MaxJitter bounds the uniform jitter added to each delay.
	MaxJitter time.Duration `mapstructure:"max_jitter"`
	// FailureFactor is the growth factor of the consecutive-failure delay.
	FailureFactor float64 `mapstructure:"failure_factor"`
	// FailureCeiling caps the consecutive-failure delay.
	FailureCeiling time.Duration `mapstructure:"failure_ceiling"`
	// AbandonThreshold is the number of consecutive failures with no
	// result after which a scraping fetch gives up.
	AbandonThreshold int `mapstructure:"abandon_threshold"`
	// PaceMin and PaceMax bound the pause after each collected author.
	PaceMin time.Duration `mapstructure:"pace_min"`
	PaceMax time.Duration `mapstructure:"pace_max"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	// Enabled turns the result cache on.
	Enabled bool `mapstructure:"enabled"`
	// TTL is how long a cached result stays valid.
	TTL time.Duration `mapstructure:"ttl"`
	// MaxEntries bounds the number of cached results.
	MaxEntries int `mapstructure:"max_entries"`
}

// KafkaConfig holds Kafka publisher settings for search.completed events.
type KafkaConfig struct {
	// Enabled controls whether Kafka publishing is active.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the Kafka topic to publish events to.
	Topic string `mapstructure:"topic"`
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
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

	v.SetEnvPrefix("RESEARCHERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/researcher-lookup-service")

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

	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	key := os.Getenv(EnvSerpAPIKey)
	if key == "" {
		key = os.Getenv(EnvSerpAPIKeyLegacy)
	}
	cfg.Sources.SerpAPI.APIKey = strings.TrimSpace(key)
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults (audit log is optional)
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "researchers")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "researcher_lookup_service")
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "researcher_lookup")

	// SerpAPI defaults. The API key is loaded from the environment only.
	v.SetDefault("sources.serpapi.enabled", true)
	v.SetDefault("sources.serpapi.base_url", "https://serpapi.com")
	v.SetDefault("sources.serpapi.engine", "google_scholar_author")
	v.SetDefault("sources.serpapi.timeout", "30s")
	v.SetDefault("sources.serpapi.rate_limit", 5.0)

	// Scholar defaults
	v.SetDefault("sources.scholar.enabled", true)
	v.SetDefault("sources.scholar.base_url", "https://scholar.google.com")
	v.SetDefault("sources.scholar.timeout", "30s")
	v.SetDefault("sources.scholar.rate_limit", 1.0)
	v.SetDefault("sources.scholar.proxies", []string{})
	v.SetDefault("sources.scholar.use_proxies", true)
	v.SetDefault("sources.scholar.user_agents", []string{})

	// Retry defaults
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base", 2.0)
	v.SetDefault("retry.max_jitter", "1s")
	v.SetDefault("retry.failure_factor", 1.5)
	v.SetDefault("retry.failure_ceiling", "6s")
	v.SetDefault("retry.abandon_threshold", 3)
	v.SetDefault("retry.pace_min", "800ms")
	v.SetDefault("retry.pace_max", "1800ms")

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.max_entries", 256)

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.researcher_lookup.search_completed")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")
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

	// Validate database config only when the audit log is on
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

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate sources
	if !c.Sources.SerpAPI.Enabled && !c.Sources.Scholar.Enabled {
		return fmt.Errorf("at least one researcher source must be enabled")
	}
	for _, raw := range c.Sources.Scholar.Proxies {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return fmt.Errorf("invalid scholar proxy URL: %q", raw)
		}
	}

	// Validate retry config
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry max_attempts must be positive")
	}
	if c.Retry.Base < 1 {
		return fmt.Errorf("retry base must be >= 1")
	}
	if c.Retry.MaxJitter < 0 {
		return fmt.Errorf("retry max_jitter must not be negative")
	}
	if c.Retry.AbandonThreshold <= 0 {
		return fmt.Errorf("retry abandon_threshold must be positive")
	}
	if c.Retry.PaceMin < 0 || c.Retry.PaceMax < c.Retry.PaceMin {
		return fmt.Errorf("retry pace window invalid: min %s, max %s", c.Retry.PaceMin, c.Retry.PaceMax)
	}

	// Validate cache config
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive when the cache is enabled")
	}

	// Validate kafka config
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required when kafka is enabled")
		}
	}

	return nil
}
