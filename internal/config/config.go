package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend selects which storage adapter the process runs with. The choice
// is made once at boot and fixed for the process lifetime.
type Backend string

const (
	BackendFile     Backend = "file"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Storage      StorageConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Admin        AdminConfig
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

// StorageConfig holds the backend selector plus per-backend location and
// credential parameters. Only the block matching Backend is consulted.
type StorageConfig struct {
	Backend Backend

	// File backend.
	FilePath   string
	BackupDir  string
	BackupKeep int

	// Embedded SQLite backend.
	SQLitePath string

	// Remote Postgres backend.
	PostgresDSN    string
	MaxConns       int32
	MinConns       int32
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds the optional stats-cache connection values. An empty
// Addr disables the cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	StatsTTL time.Duration
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AdminConfig guards the API-key management routes.
type AdminConfig struct {
	JWTSecret       string
	TokenTTLMinutes int
}

// NotificationConfig holds the webhook target for critical bug reports.
type NotificationConfig struct {
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	backend := Backend(strings.ToLower(getEnv("STORAGE_BACKEND", string(BackendFile))))
	switch backend {
	case BackendFile, BackendSQLite, BackendPostgres:
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q (expected file, sqlite or postgres)", backend)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "swarmdesk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Storage: StorageConfig{
			Backend:        backend,
			FilePath:       getEnv("FILE_STORAGE_PATH", "data/tickets.json"),
			BackupDir:      getEnv("FILE_BACKUP_DIR", "data/backups"),
			BackupKeep:     getEnvAsInt("FILE_BACKUP_KEEP", 10),
			SQLitePath:     getEnv("SQLITE_PATH", "data/tickets.db"),
			PostgresDSN:    os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			StatsTTL: time.Duration(getEnvAsInt("REDIS_STATS_TTL_SECONDS", 15)) * time.Second,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Admin: AdminConfig{
			JWTSecret:       getEnv("ADMIN_JWT_SECRET", "dev-secret"),
			TokenTTLMinutes: getEnvAsInt("ADMIN_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
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
