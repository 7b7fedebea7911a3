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
	HTTPAddr    string

	Edition             string
	LicenseKey          string
	LicenseSecret       string
	LicensePublicKeyPEM string
	PromoteEnterprise   bool

	AuthJWTSecret string
	AuthTokenTTL  time.Duration

	OTLPEndpoint string

	RegistryFile string

	UpdateCheckEnabled bool
	UpdateFeedURL      string
	UpdateFeedPath     string
	UpdateCheckTTL     time.Duration

	PermissionCacheTTL     time.Duration
	PermissionCheckLimit   int
	PermissionCheckTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitEnabled bool
	RateLimitRate    float64
	RateLimitBurst   int

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
}

const (
	EditionCommunity  = "ce"
	EditionEnterprise = "ee"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "console"),
		AppVersion:  getenv("APP_VERSION", "4.15.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		Edition:             normalizeEdition(getenv("APP_EDITION", EditionCommunity)),
		LicenseKey:          strings.TrimSpace(getenv("LICENSE_KEY", "")),
		LicenseSecret:       strings.TrimSpace(getenv("LICENSE_SECRET", "")),
		LicensePublicKeyPEM: getenv("LICENSE_PUBLIC_KEY", ""),
		PromoteEnterprise:   getenvBool("PROMOTE_EE", true),

		AuthJWTSecret: strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		AuthTokenTTL:  getenvDuration("AUTH_TOKEN_TTL", 12*time.Hour),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		RegistryFile: strings.TrimSpace(getenv("SETTINGS_REGISTRY_FILE", "")),

		UpdateCheckEnabled: getenvBool("UPDATE_CHECK_ENABLED", true),
		UpdateFeedURL:      strings.TrimSpace(getenv("UPDATE_FEED_URL", "https://api.github.com/repos/strapi/strapi/releases/latest")),
		UpdateFeedPath:     strings.TrimSpace(getenv("UPDATE_FEED_PATH", "tag_name")),
		UpdateCheckTTL:     getenvDuration("UPDATE_CHECK_TTL", time.Hour),

		PermissionCacheTTL:     getenvDuration("PERMISSION_CACHE_TTL", 30*time.Second),
		PermissionCheckLimit:   getenvInt("PERMISSION_CHECK_CONCURRENCY", 8),
		PermissionCheckTimeout: getenvDuration("PERMISSION_CHECK_TIMEOUT", 5*time.Second),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		RateLimitEnabled: getenvBool("RATE_LIMIT_ENABLED", true),
		RateLimitRate:    getenvFloat("RATE_LIMIT_RATE", 2),
		RateLimitBurst:   getenvInt("RATE_LIMIT_BURST", 10),

		DBType:            getenv("DATABASE_TYPE", "sqlite"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "console"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
	}

	return cfg
}

// IsEnterprise reports whether the enterprise edition was requested. The
// effective edition also depends on the license, see package edition.
func (c Config) IsEnterprise() bool {
	return c.Edition == EditionEnterprise
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func normalizeEdition(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case EditionEnterprise, "enterprise":
		return EditionEnterprise
	default:
		return EditionCommunity
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

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 {
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
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
