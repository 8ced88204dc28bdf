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

type Config struct {
	App        AppConfig
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Redis      RedisConfig
	Allocation AllocationConfig
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectRetries  int
	AutoMigrate     bool
}

type JWTConfig struct {
	SecretKey string
}

type RedisConfig struct {
	Enabled       bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
}

type AllocationConfig struct {
	// TxTimeout bounds one allocation transaction including lock waits.
	TxTimeout time.Duration
	// PoolLock selects the explicit per-pool lock: "memory", "redis" or "none".
	PoolLock       string
	PoolLockTTL    time.Duration
	ThrottleLimit  int
	ThrottleWindow time.Duration
	Timezone       string
	SeedPath       string
	BonusExpiry    time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "promoHub"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8080")),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "promohub"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			SQLitePath:      getEnv("DB_SQLITE_PATH", "promohub.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME", 3600)) * time.Second,
			ConnectRetries:  getEnvInt("DB_CONNECT_RETRIES", 5),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET", ""),
		},
		Redis: RedisConfig{
			Enabled:       getEnvBool("REDIS_ENABLED", false),
			RedisHost:     getEnv("REDIS_HOST", "localhost"),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
		},
		Allocation: AllocationConfig{
			TxTimeout:      getEnvDuration("ALLOCATION_TX_TIMEOUT", 5*time.Second),
			PoolLock:       strings.ToLower(getEnv("ALLOCATION_POOL_LOCK", "memory")),
			PoolLockTTL:    getEnvDuration("ALLOCATION_POOL_LOCK_TTL", 10*time.Second),
			ThrottleLimit:  getEnvInt("ATTEMPT_THROTTLE_LIMIT", 10),
			ThrottleWindow: getEnvDuration("ATTEMPT_THROTTLE_WINDOW", time.Minute),
			Timezone:       getEnv("ALLOCATION_TIMEZONE", "UTC"),
			SeedPath:       getEnv("POOL_SEED_PATH", ""),
			BonusExpiry:    getEnvDuration("BONUS_ATTEMPT_EXPIRY", 24*time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.SecretKey == "" {
		return errors.New("missing jwt secret")
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.Password == "" {
			return errors.New("missing database password")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Allocation.PoolLock {
	case "memory", "none":
	case "redis":
		if !c.Redis.Enabled {
			return errors.New("redis pool lock requires REDIS_ENABLED=true")
		}
	default:
		return fmt.Errorf("unsupported pool lock %q", c.Allocation.PoolLock)
	}

	if c.Allocation.TxTimeout <= 0 {
		return errors.New("ALLOCATION_TX_TIMEOUT must be positive")
	}

	if _, err := time.LoadLocation(c.Allocation.Timezone); err != nil {
		return fmt.Errorf("invalid ALLOCATION_TIMEZONE: %w", err)
	}

	return nil
}

// Location returns the timezone used for calendar period boundaries.
func (c AllocationConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDuration accepts Go durations ("750ms") or plain seconds ("5").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
