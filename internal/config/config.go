// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MinJWTSecretLen is the minimum HS256 signing secret length in bytes.
const MinJWTSecretLen = 32

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// ServiceName names this deployment; it is the iss claim of access tokens and the telemetry service name.
	ServiceName string `mapstructure:"SERVICE_NAME"`
	// Env is the application environment (e.g. "development", "production"). Selects the log encoding.
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// JWTSecret is the HS256 signing secret for access tokens. Required by processes that issue or verify tokens.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTExpirationSeconds is the access token lifetime in seconds.
	JWTExpirationSeconds int `mapstructure:"JWT_EXPIRATION_SECONDS"`
	// RefreshTokenExpirationDays is the refresh token (session) lifetime in days.
	RefreshTokenExpirationDays int `mapstructure:"REFRESH_TOKEN_EXPIRATION_DAYS"`

	// Argon2 cost parameters for new password hashes.
	Argon2MemoryKB int `mapstructure:"ARGON2_MEMORY_KB"`
	Argon2Time     int `mapstructure:"ARGON2_TIME"`
	Argon2Threads  int `mapstructure:"ARGON2_THREADS"`

	// RedisURL enables login lockout when set (e.g. redis://localhost:6379/0).
	RedisURL string `mapstructure:"REDIS_URL"`
	// LockoutThreshold is the number of failed logins per username before the account locks.
	LockoutThreshold int `mapstructure:"LOCKOUT_THRESHOLD"`
	// LockoutWindow is how long failures are counted and how long a lock lasts (e.g. "15m").
	LockoutWindow string `mapstructure:"LOCKOUT_WINDOW"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses. When empty, audit events are only logged.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuditKafkaTopic is the Kafka topic for audit events.
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the audit worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// OTLPEndpoint is the OTLP gRPC collector address. Telemetry export is disabled when empty.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure disables TLS to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// SessionPurgeInterval is how often the worker deletes expired sessions (e.g. "1h").
	SessionPurgeInterval string `mapstructure:"SESSION_PURGE_INTERVAL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if fields are out of range.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	// Every key needs a default so Unmarshal sees it through AutomaticEnv.
	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SERVICE_NAME", "core-auth")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_EXPIRATION_SECONDS", 900)
	v.SetDefault("REFRESH_TOKEN_EXPIRATION_DAYS", 7)
	v.SetDefault("ARGON2_MEMORY_KB", 64*1024)
	v.SetDefault("ARGON2_TIME", 1)
	v.SetDefault("ARGON2_THREADS", 4)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("LOCKOUT_THRESHOLD", 5)
	v.SetDefault("LOCKOUT_WINDOW", "15m")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "core-auth-audit")
	v.SetDefault("KAFKA_GROUP_ID", "core-auth-audit-worker")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("SESSION_PURGE_INTERVAL", "1h")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	if cfg.ServiceName == "" {
		return nil, errors.New("config: SERVICE_NAME must be set")
	}
	if cfg.JWTExpirationSeconds <= 0 {
		return nil, errors.New("config: JWT_EXPIRATION_SECONDS must be positive")
	}
	if cfg.RefreshTokenExpirationDays <= 0 {
		return nil, errors.New("config: REFRESH_TOKEN_EXPIRATION_DAYS must be positive")
	}
	if cfg.Argon2MemoryKB < 8*cfg.Argon2Threads || cfg.Argon2Time < 1 {
		return nil, errors.New("config: ARGON2_MEMORY_KB must be at least 8*ARGON2_THREADS and ARGON2_TIME at least 1")
	}
	if cfg.Argon2Threads < 1 || cfg.Argon2Threads > 255 {
		return nil, errors.New("config: ARGON2_THREADS must be between 1 and 255")
	}
	if cfg.LockoutThreshold < 1 {
		return nil, errors.New("config: LOCKOUT_THRESHOLD must be at least 1")
	}

	return &cfg, nil
}

// ValidateAuth checks the settings needed to sign access tokens. Processes that
// issue or verify tokens call it after Load.
func (c *Config) ValidateAuth() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET must be set")
	}
	if len(c.JWTSecret) < MinJWTSecretLen {
		return fmt.Errorf("config: JWT_SECRET must be at least %d bytes", MinJWTSecretLen)
	}
	return nil
}

// AccessTTL returns the access token lifetime.
func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTExpirationSeconds) * time.Second
}

// RefreshTTL returns the refresh token lifetime.
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenExpirationDays) * 24 * time.Hour
}

// LockoutDuration parses LockoutWindow as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) LockoutDuration() time.Duration {
	d, err := time.ParseDuration(c.LockoutWindow)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// PurgeInterval parses SessionPurgeInterval as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) PurgeInterval() time.Duration {
	d, err := time.ParseDuration(c.SessionPurgeInterval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the audit stream is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
