// Package config loads stratum configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/stratum/pkg/observability"
)

// Config holds all stratum configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Redis lookup-cache configuration
	Redis RedisConfig

	// Tree configuration
	Tree TreeConfig

	// Cache configuration
	Cache CacheConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	PrimaryURL  string
	ReplicaURLs string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// RedisConfig holds the shared lookup-cache configuration
type RedisConfig struct {
	// Enabled toggles the Redis lookup cache; when false all lookups go to
	// the database directly.
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// TreeConfig holds hierarchical-tree tuning
type TreeConfig struct {
	// NodeCodeWidth is the fixed width of one system-code segment. All
	// categories of one deployment must share a width; changing it on an
	// existing database invalidates every stored code.
	NodeCodeWidth int
}

// CacheConfig holds in-process cache tuning
type CacheConfig struct {
	// TaxonomySize is the entry capacity of the domain/kind lookup cache.
	TaxonomySize int
	// LookupTTL is the expiry for Redis-cached set/category lookups.
	LookupTTL time.Duration
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			PrimaryURL:  getEnv("STRATUM_POSTGRES_URL", ""),
			ReplicaURLs: getEnv("STRATUM_POSTGRES_REPLICA_URLS", ""),
			MaxConns:    getEnvInt("STRATUM_POSTGRES_MAX_CONNS", 20),
			MinConns:    getEnvInt("STRATUM_POSTGRES_MIN_CONNS", 2),
			Timeout:     getEnvDuration("STRATUM_POSTGRES_TIMEOUT", 5*time.Second),
			MaxLifetime: getEnvDuration("STRATUM_POSTGRES_MAX_LIFETIME", 30*time.Minute),
			MaxIdleTime: getEnvDuration("STRATUM_POSTGRES_MAX_IDLE_TIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("STRATUM_REDIS_ENABLED", false),
			Addr:     getEnv("STRATUM_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("STRATUM_REDIS_PASSWORD", ""),
			DB:       getEnvInt("STRATUM_REDIS_DB", 0),
		},
		Tree: TreeConfig{
			NodeCodeWidth: getEnvInt("STRATUM_TREE_NODE_CODE_WIDTH", 4),
		},
		Cache: CacheConfig{
			TaxonomySize: getEnvInt("STRATUM_TAXONOMY_CACHE_SIZE", 1024),
			LookupTTL:    getEnvDuration("STRATUM_LOOKUP_CACHE_TTL", 15*time.Minute),
		},
		Observability: ObservabilityConfig{
			LogLevel:       parseLogLevel(getEnv("STRATUM_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("STRATUM_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.PrimaryURL == "" {
		return fmt.Errorf("postgres primary URL is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("postgres max conns must be at least 1")
	}
	if c.Tree.NodeCodeWidth < 1 {
		return fmt.Errorf("tree node code width must be at least 1")
	}
	if c.Cache.TaxonomySize < 1 {
		return fmt.Errorf("taxonomy cache size must be at least 1")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when redis is enabled")
	}
	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
