package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr string

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
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Bank integration.
	BankCode        string
	BankBaseURL     string
	BankAuthURL     string
	BankTimeout     time.Duration
	BankSandboxFake bool
	BankPDFDir      string
	BankPDFBaseURL  string

	// Inbound webhook shared secret.
	WebhookSecret string

	// Reconciliation scheduler.
	ReconcileInterval  time.Duration
	ReconcileBatchSize int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "cobranca"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		LogLevel: getenv("LOG_LEVEL", "info"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "cobranca"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		BankCode:        getenv("BANK_CODE", "237"),
		BankBaseURL:     strings.TrimRight(getenv("BANK_BASE_URL", "https://openapi.bradesco.com.br"), "/"),
		BankAuthURL:     getenv("BANK_AUTH_URL", ""),
		BankTimeout:     getenvDuration("BANK_TIMEOUT", 30*time.Second),
		BankSandboxFake: getenvBool("BANK_SANDBOX_FAKE", false),
		BankPDFDir:      getenv("BANK_PDF_DIR", "storage/boletos"),
		BankPDFBaseURL:  strings.TrimRight(getenv("BANK_PDF_BASE_URL", "/storage/boletos"), "/"),

		WebhookSecret: strings.TrimSpace(getenv("WEBHOOK_SECRET", "")),

		ReconcileInterval:  getenvDuration("RECONCILE_INTERVAL", 6*time.Hour),
		ReconcileBatchSize: getenvInt("RECONCILE_BATCH_SIZE", 50),
	}

	if cfg.BankAuthURL == "" {
		cfg.BankAuthURL = cfg.BankBaseURL + "/auth/server/v1.1/token"
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
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

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
