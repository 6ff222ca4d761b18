package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"surveydraw/database"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// HTTP configuration
	HTTPAddr    string
	AdminAPIKey string // Bearer key for operator endpoints (draw, resend)

	// Identity hashing. Rotating the secret invalidates dedup against older digests,
	// so every rotation must bump the version.
	IdentitySecret        string
	IdentitySecretVersion int

	// Ingestion limits
	MaxAnswersBytes int

	// Timeouts for the two blocking dependencies
	StoreTimeout  time.Duration
	NotifyTimeout time.Duration

	// NATS configuration
	NATSServers string // NATS server addresses (comma-separated), empty disables NATS

	// Discord configuration
	DiscordToken string // Bot token used for winner DMs, empty disables the Discord transport

	// Redis configuration for submission rate limiting
	RedisAddr          string
	RedisPassword      string
	RateLimitPerMinute int

	// Draw worker configuration
	DrawWorkerEnabled  bool
	DrawWorkerInterval time.Duration

	// OpenTelemetry configuration
	OTelEnabled              bool
	OTelExporterType         string // "console", "otlp" or "none"
	OTelOTLPEndpoint         string
	OTelServiceName          string
	OTelExportIntervalMillis int

	// Logging
	LogLevel string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// load loads configuration from environment variables, after merging a local .env file if present
func load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Failed to read .env file, continuing with process environment")
	}

	config := &Config{
		// Database
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		// HTTP
		HTTPAddr:    getEnvWithDefault("HTTP_ADDR", ":8080"),
		AdminAPIKey: os.Getenv("ADMIN_API_KEY"),

		// Identity
		IdentitySecret:        os.Getenv("IDENTITY_SECRET"),
		IdentitySecretVersion: getEnvInt("IDENTITY_SECRET_VERSION", 1),

		// Ingestion
		MaxAnswersBytes: getEnvInt("MAX_ANSWERS_BYTES", 256*1024),

		// Timeouts
		StoreTimeout:  getEnvDuration("STORE_TIMEOUT", 5*time.Second),
		NotifyTimeout: getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second),

		// NATS
		NATSServers: os.Getenv("NATS_SERVERS"),

		// Discord
		DiscordToken: os.Getenv("DISCORD_TOKEN"),

		// Redis
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		// Draw worker
		DrawWorkerEnabled:  os.Getenv("DRAW_WORKER_ENABLED") == "true",
		DrawWorkerInterval: getEnvDuration("DRAW_WORKER_INTERVAL", 5*time.Minute),

		// OpenTelemetry
		OTelEnabled:              os.Getenv("OTEL_ENABLED") == "true",
		OTelExporterType:         getEnvWithDefault("OTEL_EXPORTER_TYPE", "none"),
		OTelOTLPEndpoint:         getEnvWithDefault("OTEL_OTLP_ENDPOINT", "otel-collector:4317"),
		OTelServiceName:          getEnvWithDefault("OTEL_SERVICE_NAME", "surveydraw"),
		OTelExportIntervalMillis: getEnvInt("OTEL_EXPORT_INTERVAL_MS", 30000),

		// Logging
		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),

		// Environment
		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.IdentitySecret == "" {
			return nil, fmt.Errorf("IDENTITY_SECRET is required")
		}
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
	}
	if config.IdentitySecretVersion < 1 {
		return nil, fmt.Errorf("IDENTITY_SECRET_VERSION must be >= 1, got %d", config.IdentitySecretVersion)
	}
	if config.DrawWorkerInterval <= 0 {
		return nil, fmt.Errorf("DRAW_WORKER_INTERVAL must be positive, got %s", config.DrawWorkerInterval)
	}
	if config.MaxAnswersBytes <= 0 {
		return nil, fmt.Errorf("MAX_ANSWERS_BYTES must be positive, got %d", config.MaxAnswersBytes)
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt parses an integer environment variable, falling back to the default on absence or parse errors
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.WithField("key", key).Warn("Invalid integer in environment, using default")
	}
	return defaultValue
}

// getEnvDuration parses a Go duration string (e.g. "5s"), falling back to the default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		log.WithField("key", key).Warn("Invalid duration in environment, using default")
	}
	return defaultValue
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:           "test",
		HTTPAddr:              ":0",
		AdminAPIKey:           "test-admin-key",
		IdentitySecret:        "test-identity-secret",
		IdentitySecretVersion: 1,
		MaxAnswersBytes:       64 * 1024,
		StoreTimeout:          5 * time.Second,
		NotifyTimeout:         2 * time.Second,
		RateLimitPerMinute:    30,
		DrawWorkerInterval:    time.Minute,
		OTelExporterType:      "none",
		OTelServiceName:       "surveydraw-test",
		LogLevel:              "debug",
	}
}
