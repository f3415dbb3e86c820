// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/notify.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Store backends
// --------------------------------------------------------------------------

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Device store
	DeviceStore    string // postgres | sqlite
	DatabaseURL    string
	SQLitePath     string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration
	DBAutoMigrate  bool

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	LogLevel    slog.Level

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Outbound services
	OpenMeteoURL      string
	GeocoderURL       string
	GeocoderRPS       float64
	GeocoderUserAgent string
	PushRelayURL      string
	HTTPTimeout       time.Duration

	// Notification pipeline
	FallbackLatitude  float64
	FallbackLongitude float64
	IsolateFailures   bool
	Concurrency       int
	Timezone          *time.Location
	Schedule          string // cron expression; empty disables

	// Cache
	CacheEnabled bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	store := strings.ToLower(envOr("DEVICE_STORE", StorePostgres))
	if store != StorePostgres && store != StoreSQLite {
		return nil, fmt.Errorf("DEVICE_STORE must be %q or %q, got %q", StorePostgres, StoreSQLite, store)
	}

	dbURL := envOr("DATABASE_URL", envOr("SUPABASE_DB_URL", ""))
	if store == StorePostgres && dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or SUPABASE_DB_URL must be set when DEVICE_STORE=postgres")
	}

	tz, err := time.LoadLocation(envOr("NOTIFY_TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_TIMEZONE: %w", err)
	}

	level, err := parseLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	return &Config{
		DeviceStore:    store,
		DatabaseURL:    dbURL,
		SQLitePath:     envOr("SQLITE_PATH", "data/skyvibes.db"),
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 1),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 5),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,
		DBAutoMigrate:  envBool("DB_AUTO_MIGRATE", true),

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		LogLevel:    level,

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:8081",
			"http://localhost:19006",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   envDuration("RATE_LIMIT_WINDOW", 60*time.Second),

		OpenMeteoURL:      envOr("OPEN_METEO_URL", "https://api.open-meteo.com/v1/forecast"),
		GeocoderURL:       envOr("GEOCODER_URL", "https://nominatim.openstreetmap.org/reverse"),
		GeocoderRPS:       envFloat("GEOCODER_RPS", 1),
		GeocoderUserAgent: envOr("GEOCODER_USER_AGENT", "SkyVibes/1.0"),
		PushRelayURL:      envOr("PUSH_RELAY_URL", "https://exp.host/--/api/v2/push/send"),
		HTTPTimeout:       envDuration("HTTP_TIMEOUT", 15*time.Second),

		FallbackLatitude:  envFloat("FALLBACK_LATITUDE", 28.61),
		FallbackLongitude: envFloat("FALLBACK_LONGITUDE", 77.20),
		IsolateFailures:   envBool("NOTIFY_ISOLATE_FAILURES", false),
		Concurrency:       envInt("NOTIFY_CONCURRENCY", 0),
		Timezone:          tz,
		Schedule:          envOr("NOTIFY_SCHEDULE", ""),

		CacheEnabled: envBool("CACHE_ENABLED", true),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go duration strings ("90s") or bare seconds ("90").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}
