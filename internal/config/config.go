package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig
	Log       LogConfig
	Store     StoreConfig
	DB        DBConfig
	Redis     RedisConfig
	Firebase  FirebaseConfig
	Push      PushConfig
	Telephony TelephonyConfig
	CORS      CORSConfig
}

type AppConfig struct {
	Env  string
	Port string
}

type LogConfig struct {
	Level  string
	Format string
}

// StoreConfig selects the device store backend. The memory driver is
// volatile: records are lost when the process stops.
type StoreConfig struct {
	Driver string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN returns the PostgreSQL connection string
func (d DBConfig) DSN() string {
	return "host=" + d.Host +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" port=" + d.Port +
		" sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Prefix   string
}

// Addr returns the Redis address
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type FirebaseConfig struct {
	CredentialsFile string
	ProjectID       string
}

// PushConfig carries the delivery options applied to every call notification.
type PushConfig struct {
	Priority string
	TTL      time.Duration
	Timeout  time.Duration
}

type TelephonyConfig struct {
	APIHost         string
	Domain          string
	APIKey          string
	Timeout         time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
}

type CORSConfig struct {
	Origins []string
}

// Load reads configuration from .env file and environment variables
func Load() *Config {
	// Load .env file (ignore error if not exists - e.g. in Docker)
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, reading from environment variables")
	}

	return &Config{
		App: AppConfig{
			Env:  getEnv("APP_ENV", "development"),
			Port: getEnv("APP_PORT", "8780"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		},
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "regfree"),
			Password: getEnv("DB_PASSWORD", "regfree"),
			Name:     getEnv("DB_NAME", "regfree"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", "regfree"),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", "cloudonix-sample-reg-free"),
		},
		Push: PushConfig{
			Priority: getEnv("PUSH_PRIORITY", "high"),
			TTL:      getEnvDuration("PUSH_TTL", 30*time.Second),
			Timeout:  getEnvDuration("PUSH_TIMEOUT", 10*time.Second),
		},
		Telephony: TelephonyConfig{
			APIHost:         getEnv("CLOUDONIX_API_HOST", "api.cloudonix.io"),
			Domain:          getEnv("CLOUDONIX_DOMAIN", ""),
			APIKey:          getEnv("CLOUDONIX_API_KEY", ""),
			Timeout:         getEnvDuration("CLOUDONIX_TIMEOUT", 10*time.Second),
			BreakerFailures: getEnvInt("CLOUDONIX_CB_FAILURES", 5),
			BreakerCooldown: getEnvDuration("CLOUDONIX_CB_COOLDOWN", 30*time.Second),
		},
		CORS: CORSConfig{
			Origins: strings.Split(getEnv("CORS_ORIGINS", "*"), ","),
		},
	}
}

// Validate reports configuration values the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory, StorePostgres, StoreRedis:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want %s, %s or %s)",
			c.Store.Driver, StoreMemory, StorePostgres, StoreRedis)
	}
	if c.Push.TTL <= 0 {
		return fmt.Errorf("PUSH_TTL must be positive, got %s", c.Push.TTL)
	}
	if c.Telephony.BreakerFailures < 0 {
		return fmt.Errorf("CLOUDONIX_CB_FAILURES must not be negative, got %d", c.Telephony.BreakerFailures)
	}
	return nil
}

// IsProduction reports whether the app runs with APP_ENV=production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// SlogLevel converts LOG_LEVEL into a slog.Level, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return d
}
