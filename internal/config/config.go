package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	// Database connection string (DSN)
	DatabaseURL string

	// Server bind address (host:port)
	ServerAddr string

	// Maximum database connection pool size
	MaxDBConnections int

	// Enable debug logging
	Debug bool

	// Session token verification configuration
	Session SessionConfig

	// Route classification table (Casbin policy CSV). Empty uses the
	// embedded default table.
	RouteTablePath string

	// Catalog product file (JSON). Empty runs with a permissive catalog
	// that accepts every product reference; intended for development only.
	CatalogPath string

	// Size of the in-process catalog lookup cache.
	CatalogCacheSize int

	// Notification channel configuration
	Notify NotifyConfig

	// Cart retention configuration
	Retention RetentionConfig
}

// SessionConfig holds verification settings for the signed session token.
//
// The token itself is issued and refreshed by the external identity
// provider; this service only verifies it. The secret therefore has to
// match the issuer's signing secret.
type SessionConfig struct {
	// Secret is the HMAC signing secret shared with the identity provider.
	// Required for serving; at least 32 bytes.
	Secret string

	// CookieName is the cookie carrying the session token for browser
	// clients. Header bearer tokens take precedence over the cookie.
	CookieName string
}

// NotifyConfig holds the pub/sub notification channel settings.
// The channel is optional; with no brokers configured events are dropped.
type NotifyConfig struct {
	Brokers string // comma-separated Kafka broker addresses
	Topic   string
}

// RetentionConfig bounds how long cart rows outlive their usefulness.
type RetentionConfig struct {
	// GuestCartTTL is the inactivity window after which an unmerged guest
	// cart becomes eligible for purging. Refreshed on every mutation.
	GuestCartTTL time.Duration

	// TombstoneRetention is how long a merged guest cart is kept around
	// for idempotence checks before the purge job removes it.
	TombstoneRetention time.Duration

	// PurgeInterval is how often the housekeeping job runs.
	PurgeInterval time.Duration
}

// Load reads configuration from environment variables with fallback defaults
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", "file:storefront.db"),
		ServerAddr:       getEnv("SERVER_ADDR", "localhost:8080"),
		MaxDBConnections: getEnvInt("MAX_DB_CONNECTIONS", 25),
		Debug:            getEnvBool("DEBUG", false),
		Session: SessionConfig{
			Secret:     getEnv("SESSION_TOKEN_SECRET", ""),
			CookieName: getEnv("SESSION_COOKIE_NAME", "storefront.session"),
		},
		RouteTablePath:   getEnv("ROUTE_TABLE_PATH", ""),
		CatalogPath:      getEnv("CATALOG_PATH", ""),
		CatalogCacheSize: getEnvInt("CATALOG_CACHE_SIZE", 1024),
		Notify: NotifyConfig{
			Brokers: getEnv("NOTIFY_BROKERS", ""),
			Topic:   getEnv("NOTIFY_TOPIC", "storefront.identity"),
		},
		Retention: RetentionConfig{
			GuestCartTTL:       getEnvDuration("GUEST_CART_TTL", 7*24*time.Hour),
			TombstoneRetention: getEnvDuration("TOMBSTONE_RETENTION", 72*time.Hour),
			PurgeInterval:      getEnvDuration("PURGE_INTERVAL", time.Hour),
		},
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.Session.CookieName == "" {
		return nil, fmt.Errorf("SESSION_COOKIE_NAME must not be empty")
	}

	if cfg.Retention.GuestCartTTL <= 0 || cfg.Retention.TombstoneRetention <= 0 {
		return nil, fmt.Errorf("retention windows must be positive")
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (Go duration
// syntax, e.g. "72h") or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
