package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Auth provider names
const (
	ProviderGoogle = "google"
	ProviderStatic = "static"
)

// Config holds all configuration for grade-compass
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Session   SessionConfig
	Analytics AnalyticsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host      string
	Port      int    `validate:"min=1,max=65535"`
	PublicURL string `validate:"required,url"`
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
}

// SlogLevel returns Level as a slog.Level
func (c LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// DatabaseConfig holds PostgreSQL configuration.
// An empty DSN selects the in-memory analytics store.
type DatabaseConfig struct {
	DSN      string
	MaxConns int `validate:"min=0"`
}

// RedisConfig holds Redis configuration.
// An empty Address disables the stats cache.
type RedisConfig struct {
	Address       string
	Password      string
	DB            int `validate:"min=0"`
	StatsCacheTTL time.Duration
}

// AuthConfig holds access gate configuration
type AuthConfig struct {
	Provider           string `validate:"oneof=google static"`
	Domain             string `validate:"required,hostname"`
	AdminEmail         string `validate:"required,email"`
	GoogleClientID     string `validate:"required_if=Provider google"`
	GoogleClientSecret string `validate:"required_if=Provider google"`
	StaticUserEmail    string `validate:"required_if=Provider static,omitempty,email"`
	StaticUserName     string
}

// SessionConfig holds session cookie configuration
type SessionConfig struct {
	Secret       string `validate:"required,min=32"`
	TTL          time.Duration
	SecureCookie bool
}

// AnalyticsConfig holds analytics pipeline configuration
type AnalyticsConfig struct {
	QueueSize       int `validate:"min=1"`
	Retention       time.Duration
	CleanupInterval time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:      getEnv("SERVER_HOST", "0.0.0.0"),
			Port:      getEnvAsInt("SERVER_PORT", 8080),
			PublicURL: getEnv("PUBLIC_URL", "http://localhost:8080"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			DSN:      getEnv("DATABASE_DSN", ""),
			MaxConns: getEnvAsInt("DATABASE_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			Address:       getEnv("REDIS_ADDRESS", ""),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvAsInt("REDIS_DB", 0),
			StatsCacheTTL: getEnvAsDuration("STATS_CACHE_TTL", 30*time.Second),
		},
		Auth: AuthConfig{
			Provider:           strings.ToLower(getEnv("AUTH_PROVIDER", ProviderGoogle)),
			Domain:             strings.TrimPrefix(getEnv("AUTH_DOMAIN", ""), "@"),
			AdminEmail:         getEnv("AUTH_ADMIN_EMAIL", ""),
			GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			StaticUserEmail:    getEnv("STATIC_USER_EMAIL", ""),
			StaticUserName:     getEnv("STATIC_USER_NAME", ""),
		},
		Session: SessionConfig{
			Secret:       getEnv("SESSION_SECRET", ""),
			TTL:          getEnvAsDuration("SESSION_TTL", 12*time.Hour),
			SecureCookie: getEnvAsBool("SESSION_SECURE_COOKIE", true),
		},
		Analytics: AnalyticsConfig{
			QueueSize:       getEnvAsInt("ANALYTICS_QUEUE_SIZE", 256),
			Retention:       getEnvAsDuration("ANALYTICS_RETENTION", 0),
			CleanupInterval: getEnvAsDuration("CLEANUP_INTERVAL", time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("invalid session TTL: %s", c.Session.TTL)
	}

	if c.Analytics.Retention < 0 {
		return fmt.Errorf("invalid analytics retention: %s", c.Analytics.Retention)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
