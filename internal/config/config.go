package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Mode controls which features are enabled.
// - off: JSON API only, rows kept in memory, no page/events/metrics/health check
// - full (default): everything
type Mode string

const (
	ModeOff  Mode = "off"
	ModeFull Mode = "full" // default
)

// MaxRetryAttempts is the largest accepted RETRY_MAX_ATTEMPTS.
const MaxRetryAttempts = 10

// StorageType controls the prediction-row table backend.
type StorageType string

const (
	StorageSQLite StorageType = "sqlite"
	StorageMemory StorageType = "memory"
	StorageOff    StorageType = "off"
)

// Features derived from MODE - centralized feature gating.
type Features struct {
	Page        bool
	Events      bool
	Metrics     bool
	Storage     bool // persistent row table; memory is used otherwise
	HealthCheck bool
	StockDB     bool
}

// Config contains all runtime configuration for the dashboard service.
type Config struct {
	// Core
	Mode           Mode
	ListenAddr     string
	BackendURL     string
	BackendTimeout time.Duration
	LogLevel       string

	// Dealer selection
	DealerCode      string
	DealerStatePath string

	// Row table
	Storage        StorageType
	StoragePath    string
	StorageMaxRows int

	// Prediction retry
	RetryMaxAttempts  int
	RetryInitialDelay time.Duration

	// Views
	RowsPerPage   int
	StockCacheTTL time.Duration

	// Optional direct Postgres lookup for PI suggested stock
	DatabaseURL string

	// Health + events
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
	EventBuffer         int

	// HTTP
	CORSAllowOrigin string
}

// Features returns the feature flags derived from the current MODE.
func (c *Config) Features() Features {
	f := Features{
		StockDB: c.DatabaseURL != "",
	}
	if c.Mode == ModeOff {
		return f
	}

	f.Page = true
	f.Events = true
	f.Metrics = true
	f.HealthCheck = true
	f.Storage = c.Storage == StorageSQLite
	return f
}

// Load parses env vars and returns a validated Config.
func Load() (Config, error) {
	mode := Mode(getEnvString("MODE", string(ModeFull)))

	var storageDefault StorageType
	if mode == ModeOff {
		storageDefault = StorageMemory
	} else {
		storageDefault = StorageSQLite
	}

	cfg := Config{
		// Core
		Mode:           mode,
		ListenAddr:     getEnvString("LISTEN_ADDR", ":8080"),
		BackendURL:     getEnvString("BACKEND_URL", "http://127.0.0.1:8000"),
		BackendTimeout: getEnvDuration("BACKEND_TIMEOUT", 10*time.Second),
		LogLevel:       getEnvString("LOG_LEVEL", "info"),

		// Dealer
		DealerCode:      strings.TrimSpace(getEnvString("DEALER_CODE", "10131")),
		DealerStatePath: getEnvString("DEALER_STATE_PATH", "data/dealer.json"),

		// Row table
		Storage:        StorageType(getEnvString("STORAGE", string(storageDefault))),
		StoragePath:    getEnvString("STORAGE_PATH", "data/partsdash.sqlite"),
		StorageMaxRows: getEnvInt("STORAGE_MAX_ROWS", 500),

		// Retry
		RetryMaxAttempts:  getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialDelay: getEnvDuration("RETRY_INITIAL_DELAY", time.Second),

		// Views
		RowsPerPage:   getEnvInt("ROWS_PER_PAGE", 10),
		StockCacheTTL: getEnvDuration("STOCK_CACHE_TTL", 5*time.Minute),

		DatabaseURL: getEnvString("DATABASE_URL", ""),

		// Health + events
		HealthCheckInterval: getEnvDuration("HEALTH_CHECK_INTERVAL", 30*time.Second),
		HealthCheckTimeout:  getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
		EventBuffer:         getEnvInt("EVENT_BUFFER", 256),

		// HTTP
		CORSAllowOrigin: getEnvString("CORS_ALLOW_ORIGIN", "*"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks configuration constraints.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeOff, ModeFull:
		// ok
	default:
		return fmt.Errorf("invalid MODE: %q (must be off|full)", c.Mode)
	}

	switch c.Storage {
	case StorageSQLite, StorageMemory, StorageOff:
		// ok
	default:
		return fmt.Errorf("invalid STORAGE: %q (must be sqlite|memory|off)", c.Storage)
	}

	if c.StorageMaxRows < 10 {
		return fmt.Errorf("STORAGE_MAX_ROWS must be >= 10")
	}

	if strings.TrimSpace(c.BackendURL) == "" {
		return fmt.Errorf("BACKEND_URL must not be empty")
	}
	if c.BackendTimeout <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must be > 0")
	}

	if c.DealerCode == "" {
		return fmt.Errorf("DEALER_CODE must not be empty")
	}

	if c.RetryMaxAttempts < 1 || c.RetryMaxAttempts > MaxRetryAttempts {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be between 1 and %d", MaxRetryAttempts)
	}
	if c.RetryInitialDelay < 0 {
		return fmt.Errorf("RETRY_INITIAL_DELAY must be >= 0")
	}

	if c.RowsPerPage < 1 {
		return fmt.Errorf("ROWS_PER_PAGE must be >= 1")
	}
	if c.StockCacheTTL < 0 {
		return fmt.Errorf("STOCK_CACHE_TTL must be >= 0")
	}

	if c.HealthCheckInterval <= 0 {
		return fmt.Errorf("HEALTH_CHECK_INTERVAL must be > 0")
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be > 0")
	}
	if c.EventBuffer < 1 {
		return fmt.Errorf("EVENT_BUFFER must be >= 1")
	}

	return nil
}

// Helper functions for parsing environment variables

func getEnvString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}
