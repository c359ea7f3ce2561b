// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Ledger drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Quote providers
const (
	ProviderIEX    = "iex"
	ProviderYahoo  = "yahoo"
	ProviderStatic = "static"
)

// Config holds application configuration
type Config struct {
	DataDir     string // Base directory for the SQLite ledger and backups (always absolute)
	LogLevel    string
	Port        int
	DevMode     bool
	InitialCash decimal.Decimal // Cash credited to every new account

	LedgerDriver string // sqlite or postgres
	DatabaseDSN  string // required for postgres

	Redis RedisConfig

	QuoteProvider string
	APIKey        string // IEX token, same variable name the web app always used
	IEXBaseURL    string
	StaticQuotes  string // SYMBOL=PRICE pairs served by the static provider

	LockTTL    time.Duration
	SessionTTL time.Duration

	// OperatorToken guards the /api/system routes. Empty disables them.
	OperatorToken string

	SnapshotSchedule    string
	SnapshotRetention   time.Duration // 0 keeps snapshots forever
	MaintenanceSchedule string
	JobTimeout          time.Duration
	Backup              BackupConfig
}

// RedisConfig stores Redis connection parameters. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis server was configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// BackupConfig configures uploads of ledger backups to S3-compatible storage.
type BackupConfig struct {
	Schedule string // cron expression; empty disables scheduled backups
	Bucket   string
	Endpoint string // optional custom endpoint (R2, MinIO)
	Region   string
	// RetentionDays deletes uploaded backups older than this; the newest
	// three are always kept. 0 keeps everything.
	RetentionDays int
	// Static credentials; when empty the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether backups can be uploaded.
func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

// CachePath returns the SQLite database holding login sessions.
func (c *Config) CachePath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// HistoryPath returns the SQLite database holding net-worth snapshots.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// LedgerPath returns the SQLite ledger database file.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.DataDir, "ledger.db")
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	absDataDir, err := filepath.Abs(getEnv("DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	initialCash, err := decimal.NewFromString(getEnv("INITIAL_CASH", "10000.00"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse INITIAL_CASH: %w", err)
	}

	cfg := &Config{
		DataDir:       absDataDir,
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Port:          getEnvAsInt("PORT", 8001),
		DevMode:       getEnvAsBool("DEV_MODE", false),
		InitialCash:   initialCash,
		LedgerDriver:  strings.ToLower(getEnv("LEDGER_DRIVER", DriverSQLite)),
		DatabaseDSN:   getEnv("DATABASE_DSN", ""),
		QuoteProvider: strings.ToLower(getEnv("QUOTE_PROVIDER", ProviderIEX)),
		APIKey:        getEnv("API_KEY", ""),
		IEXBaseURL:    getEnv("IEX_BASE_URL", "https://cloud.iexapis.com/stable"),
		StaticQuotes:  getEnv("STATIC_QUOTES", ""),
		LockTTL:       getEnvAsDuration("LOCK_TTL", 10*time.Second),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		OperatorToken: getEnv("OPERATOR_TOKEN", ""),
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		SnapshotSchedule:    getEnv("SNAPSHOT_SCHEDULE", "@every 1h"),
		SnapshotRetention:   getEnvAsDuration("SNAPSHOT_RETENTION", 0),
		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "0 0 3 * * *"),
		JobTimeout:          getEnvAsDuration("JOB_TIMEOUT", 10*time.Minute),
		Backup: BackupConfig{
			Schedule:        getEnv("BACKUP_SCHEDULE", ""),
			Bucket:          getEnv("BACKUP_BUCKET", ""),
			Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
			Region:          getEnv("BACKUP_REGION", "auto"),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
			AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	switch c.LedgerDriver {
	case DriverSQLite:
	case DriverPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required when LEDGER_DRIVER=%s", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown LEDGER_DRIVER %q", c.LedgerDriver)
	}

	switch c.QuoteProvider {
	case ProviderIEX:
		if c.APIKey == "" {
			return fmt.Errorf("API_KEY not set")
		}
	case ProviderYahoo, ProviderStatic:
	default:
		return fmt.Errorf("unknown QUOTE_PROVIDER %q", c.QuoteProvider)
	}

	if c.InitialCash.IsNegative() {
		return fmt.Errorf("INITIAL_CASH must not be negative")
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.SnapshotRetention < 0 {
		return fmt.Errorf("SNAPSHOT_RETENTION must not be negative")
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("JOB_TIMEOUT must be positive")
	}
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("BACKUP_RETENTION_DAYS must not be negative")
	}
	if c.Backup.Schedule != "" && !c.Backup.Enabled() {
		return fmt.Errorf("BACKUP_SCHEDULE requires BACKUP_BUCKET")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
