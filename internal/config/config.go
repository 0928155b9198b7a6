package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/spec-kit/license-service/pkg/licensegate"
)

// Config aggregates runtime configuration for the license server and the protected app.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Verify       VerifyConfig
	Gate         GateConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Development bool
}

// AuthConfig holds the secret shared between gates and the verification endpoint.
// An empty VerifySecret disables request signing on both sides.
type AuthConfig struct {
	VerifySecret string
}

// VerifyConfig throttles the public verification endpoint.
type VerifyConfig struct {
	RatePerSecond float64
	Burst         int
}

// GateConfig configures the license gate of the protected app.
type GateConfig struct {
	Endpoint     string
	LicenseKey   string
	ProductName  string
	CacheBackend string
	CacheDir     string
	SessionStore string
	Settings     licensegate.Config
}

// NotificationConfig holds notification endpoints. Denied and expired events are POSTed as
// JSON to WebhookURL when it is set.
type NotificationConfig struct {
	WebhookURL string
}

// Cache and session backends understood by GateConfig.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	ratePerSecond, err := strconv.ParseFloat(getEnv("VERIFY_RATE_PER_SECOND", "20"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid VERIFY_RATE_PER_SECOND: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	defaults := licensegate.DefaultConfig()
	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "license-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnv("APP_ENV", "development") == "development",
		},
		Auth: AuthConfig{
			VerifySecret: os.Getenv("AUTH_VERIFY_SECRET"),
		},
		Verify: VerifyConfig{
			RatePerSecond: ratePerSecond,
			Burst:         getEnvAsInt("VERIFY_RATE_BURST", 40),
		},
		Gate: GateConfig{
			Endpoint:     getEnv("LICENSE_ENDPOINT", "http://127.0.0.1:8080/verify"),
			LicenseKey:   os.Getenv("LICENSE_KEY"),
			ProductName:  os.Getenv("LICENSE_PRODUCT_NAME"),
			CacheBackend: getEnv("LICENSE_CACHE_BACKEND", BackendFile),
			CacheDir:     getEnv("LICENSE_CACHE_DIR", os.TempDir()),
			SessionStore: getEnv("LICENSE_SESSION_BACKEND", BackendMemory),
			Settings: licensegate.Config{
				TTLSeconds:             getEnvAsInt("LICENSE_TTL_SECONDS", defaults.TTLSeconds),
				SessionTTLSeconds:      getEnvAsInt("LICENSE_SESSION_TTL_SECONDS", defaults.SessionTTLSeconds),
				TimeoutSeconds:         getEnvAsInt("LICENSE_TIMEOUT_SECONDS", defaults.TimeoutSeconds),
				FailOpen:               getEnvAsBool("LICENSE_FAIL_OPEN", defaults.FailOpen),
				GraceSeconds:           getEnvAsInt("LICENSE_GRACE_SECONDS", defaults.GraceSeconds),
				Coalesce:               getEnvAsBool("LICENSE_COALESCE", defaults.Coalesce),
				BreakerFailures:        getEnvAsInt("LICENSE_BREAKER_FAILURES", defaults.BreakerFailures),
				BreakerCooldownSeconds: getEnvAsInt("LICENSE_BREAKER_COOLDOWN_SECONDS", defaults.BreakerCooldownSeconds),
			},
		},
		Notification: NotificationConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	if err := cfg.Gate.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid license gate settings: %w", err)
	}
	switch cfg.Gate.CacheBackend {
	case BackendMemory, BackendFile, BackendRedis:
	default:
		return nil, fmt.Errorf("invalid LICENSE_CACHE_BACKEND %q", cfg.Gate.CacheBackend)
	}
	switch cfg.Gate.SessionStore {
	case BackendMemory, BackendRedis:
	default:
		return nil, fmt.Errorf("invalid LICENSE_SESSION_BACKEND %q", cfg.Gate.SessionStore)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
