package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	NewRelic  NewRelicConfig
	Saga      SagaConfig
	Providers ProvidersConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	EventStream string
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// SagaConfig holds orchestration policy configuration.
type SagaConfig struct {
	// MaxAttempts caps retryable provider failures per leg.
	MaxAttempts int

	// BackoffBase is the first retry delay; each retry doubles it.
	BackoffBase time.Duration

	// BackoffCap bounds any single retry delay.
	BackoffCap time.Duration

	// ProviderTimeout is the hard timeout on any provider call.
	ProviderTimeout time.Duration

	// LockTTL bounds how long one orchestration step may hold the
	// per-order lock.
	LockTTL time.Duration

	// SchedulerInterval is how often due orders are polled.
	SchedulerInterval time.Duration

	// WorkerCount bounds concurrent order steps, sized to provider-side
	// rate limits.
	WorkerCount int
}

// ProviderConfig holds one external provider's endpoint configuration.
type ProviderConfig struct {
	ID            string
	BaseURL       string
	WebhookSecret string
}

// ProvidersConfig holds the configured provider endpoints, one per leg role.
type ProvidersConfig struct {
	Collection ProviderConfig
	Payout     ProviderConfig
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "corridor"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", "localhost:6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getIntEnv("REDIS_DB", 0),
			EventStream: getEnv("REDIS_EVENT_STREAM", "corridor:payment-events"),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "corridor-orchestrator"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Saga: SagaConfig{
			MaxAttempts:       getIntEnv("SAGA_MAX_ATTEMPTS", 5),
			BackoffBase:       getDurationEnv("SAGA_BACKOFF_BASE", 2*time.Second),
			BackoffCap:        getDurationEnv("SAGA_BACKOFF_CAP", 2*time.Minute),
			ProviderTimeout:   getDurationEnv("SAGA_PROVIDER_TIMEOUT", 30*time.Second),
			LockTTL:           getDurationEnv("SAGA_LOCK_TTL", 30*time.Second),
			SchedulerInterval: getDurationEnv("SAGA_SCHEDULER_INTERVAL", 2*time.Second),
			WorkerCount:       getIntEnv("SAGA_WORKER_COUNT", 8),
		},
		Providers: ProvidersConfig{
			Collection: ProviderConfig{
				ID:            getEnv("COLLECTION_PROVIDER_ID", "sandbox-collect"),
				BaseURL:       getEnv("COLLECTION_PROVIDER_URL", "http://localhost:9091"),
				WebhookSecret: getEnv("COLLECTION_PROVIDER_SECRET", "collect-secret"),
			},
			Payout: ProviderConfig{
				ID:            getEnv("PAYOUT_PROVIDER_ID", "sandbox-payout"),
				BaseURL:       getEnv("PAYOUT_PROVIDER_URL", "http://localhost:9092"),
				WebhookSecret: getEnv("PAYOUT_PROVIDER_SECRET", "payout-secret"),
			},
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
