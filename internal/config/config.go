// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the full runtime configuration shared by the binaries.
type Config struct {
	Env         string
	LogLevel    string
	ServiceName string
	Port        string

	StorageDriver string
	DatabaseURL   string
	DBMaxConns    int
	DBMinConns    int

	JWTSecret string
	JWTTTL    time.Duration

	TxLockTimeout      time.Duration
	TxStatementTimeout time.Duration
	SaleMaxAttempts    int
	SaleRetryBackoff   time.Duration

	IdempotencyTTL    time.Duration
	SessionRetention  time.Duration
	CleanupInterval   time.Duration
	LowStockThreshold int64

	OtelEnabled  bool
	OtelEndpoint string

	SuperAdminEmail    string
	SuperAdminPassword string
	SeedDemo           bool
}

// Load reads an optional .env file and then the environment.
func Load() Config {
	_ = godotenv.Load() // .env is optional
	return LoadEnv()
}

// LoadEnv builds a Config from the current environment only.
func LoadEnv() Config {
	return Config{
		Env:         getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		ServiceName: getEnv("SERVICE_NAME", "retailpos"),
		Port:        getEnv("SERVER_PORT", "8080"),

		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", DriverPostgres)),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		DBMaxConns:    getEnvInt("DB_MAX_CONNS", 25),
		DBMinConns:    getEnvInt("DB_MIN_CONNS", 2),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTTTL:    getEnvDuration("JWT_TTL", 24*time.Hour),

		TxLockTimeout:      getEnvDuration("TX_LOCK_TIMEOUT", 5*time.Second),
		TxStatementTimeout: getEnvDuration("TX_STATEMENT_TIMEOUT", 15*time.Second),
		SaleMaxAttempts:    getEnvInt("SALE_MAX_ATTEMPTS", 3),
		SaleRetryBackoff:   getEnvDuration("SALE_RETRY_BACKOFF", 20*time.Millisecond),

		IdempotencyTTL:    getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		SessionRetention:  getEnvDuration("SESSION_RETENTION", 7*24*time.Hour),
		CleanupInterval:   getEnvDuration("CLEANUP_INTERVAL", 10*time.Minute),
		LowStockThreshold: int64(getEnvInt("LOW_STOCK_THRESHOLD", 10)),

		OtelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OtelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),

		SuperAdminEmail:    os.Getenv("SUPER_ADMIN_EMAIL"),
		SuperAdminPassword: os.Getenv("SUPER_ADMIN_PASSWORD"),
		SeedDemo:           getEnvBool("SEED_DEMO", false),
	}
}

// Development reports whether the process runs in development mode.
func (c Config) Development() bool {
	return c.Env == "development"
}

// Validate checks the settings every binary depends on.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	if c.LowStockThreshold < 0 {
		errs = append(errs, errors.New("LOW_STOCK_THRESHOLD must not be negative"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
