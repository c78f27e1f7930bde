package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mr1hm/go-shelter-finder/internal/models"
)

type Config struct {
	Server   ServerConfig
	Worker   WorkerConfig
	Dataset  DatasetConfig
	Resolver ResolverConfig
	Location LocationConfig
	Settings SettingsConfig
	Redis    RedisConfig
	DB       DatabaseConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	RateLimitRPS int
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type DatasetConfig struct {
	File          string
	URL           string
	FetchTimeout  time.Duration
	PollInterval  time.Duration
	RecordTypes   bool
	TypeSeparator string
	FallbackTypes []models.HazardType
}

type ResolverConfig struct {
	DefaultLimit int
	MaxLimit     int
}

type LocationConfig struct {
	Timeout time.Duration
}

type SettingsConfig struct {
	Backend string // sqlite or redis
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			RateLimitRPS: getEnvInt("RATE_LIMIT_RPS", 20),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 2),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 8),
		},
		Dataset: DatasetConfig{
			File:          getEnv("DATASET_FILE", ""),
			URL:           getEnv("DATASET_URL", ""),
			FetchTimeout:  getEnvDuration("DATASET_FETCH_TIMEOUT", 15*time.Second),
			PollInterval:  getEnvDuration("DATASET_POLL_INTERVAL", 30*time.Minute),
			RecordTypes:   getEnvBool("DATASET_RECORD_TYPES", false),
			TypeSeparator: getEnv("DATASET_TYPE_SEPARATOR", "|"),
			FallbackTypes: getEnvHazards("DATASET_FALLBACK_TYPES", models.DefaultHazards),
		},
		Resolver: ResolverConfig{
			DefaultLimit: getEnvInt("RESOLVER_DEFAULT_LIMIT", 3),
			MaxLimit:     getEnvInt("RESOLVER_MAX_LIMIT", 50),
		},
		Location: LocationConfig{
			Timeout: getEnvDuration("LOCATION_TIMEOUT", 10*time.Second),
		},
		Settings: SettingsConfig{
			Backend: getEnv("SETTINGS_BACKEND", "sqlite"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/shelters.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.RateLimitRPS < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS must be at least 1")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Worker.Count < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1")
	}
	if c.Dataset.PollInterval < time.Minute {
		return fmt.Errorf("dataset poll interval must be at least 1 minute")
	}
	if c.Dataset.RecordTypes && c.Dataset.TypeSeparator == "" {
		return fmt.Errorf("DATASET_TYPE_SEPARATOR must not be empty when DATASET_RECORD_TYPES is set")
	}
	if c.Dataset.TypeSeparator == "," {
		return fmt.Errorf("DATASET_TYPE_SEPARATOR cannot be the field delimiter")
	}
	if len(c.Dataset.FallbackTypes) == 0 {
		return fmt.Errorf("DATASET_FALLBACK_TYPES must name at least one hazard type")
	}

	if c.Resolver.DefaultLimit < 0 {
		return fmt.Errorf("RESOLVER_DEFAULT_LIMIT must be >= 0")
	}
	if c.Resolver.MaxLimit < c.Resolver.DefaultLimit {
		return fmt.Errorf("RESOLVER_MAX_LIMIT must be >= RESOLVER_DEFAULT_LIMIT")
	}
	if c.Location.Timeout <= 0 {
		return fmt.Errorf("LOCATION_TIMEOUT must be positive")
	}

	switch c.Settings.Backend {
	case "sqlite":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("SETTINGS_BACKEND is redis but REDIS_ADDR is not set")
		}
	default:
		return fmt.Errorf("invalid settings backend: %s", c.Settings.Backend)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvHazards reads a comma separated list of hazard types.
func getEnvHazards(key string, fallback []models.HazardType) []models.HazardType {
	val := os.Getenv(key)
	if val == "" {
		return append([]models.HazardType(nil), fallback...)
	}
	var out []models.HazardType
	for _, part := range strings.Split(val, ",") {
		if t := strings.ToLower(strings.TrimSpace(part)); t != "" {
			out = append(out, models.HazardType(t))
		}
	}
	return out
}
