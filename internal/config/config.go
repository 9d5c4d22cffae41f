// Package config loads application configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	LogLevel string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OTLPEndpoint    string
	MetricsEnabled  bool
	MetricsProtocol string

	CloudMetrics CloudMetricsConfig

	// CatalogPath points at the plan catalog file. Empty means the compiled-in
	// default catalog.
	CatalogPath string

	WebhookReplayTTLHours int

	StripeWebhookSecret string
}

// CloudMetricsConfig configures the optional Prometheus remote-write pusher.
type CloudMetricsConfig struct {
	Enabled   bool
	Endpoint  string
	AuthToken string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "rollcall"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		LogLevel: getenv("LOG_LEVEL", "info"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "rollcall"),
		DBUser:            getenv("DATABASE_USER", "rollcall"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		OTLPEndpoint:    getenv("OTLP_ENDPOINT", "localhost:4317"),
		MetricsEnabled:  getenvBool("METRICS_ENABLED", false),
		MetricsProtocol: strings.ToLower(getenv("METRICS_PROTOCOL", "grpc")),

		CloudMetrics: CloudMetricsConfig{
			Enabled:   getenvBool("CLOUD_METRICS_ENABLED", false),
			Endpoint:  strings.TrimSpace(getenv("CLOUD_METRICS_ENDPOINT", "")),
			AuthToken: strings.TrimSpace(getenv("CLOUD_METRICS_AUTH_TOKEN", "")),
		},

		CatalogPath: getenv("CATALOG_PATH", ""),

		WebhookReplayTTLHours: getenvInt("WEBHOOK_REPLAY_TTL_HOURS", 72),

		StripeWebhookSecret: getenv("STRIPE_WEBHOOK_SECRET", ""),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
