package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Supported DATABASE_DRIVER values.
const (
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DatabaseDriver string
	DatabaseURL    string
	Migrate        bool

	JobFile          string
	Workers          int
	StationCacheSize int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Completion notifications are disabled when the topic is empty.
	KafkaBrokers         []string
	KafkaCompletionTopic string
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first if present;
// variables already set in the environment take precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	workers, err := parsePositiveInt("INGEST_WORKERS", 8)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("STATION_CACHE_SIZE", 100000)
	if err != nil {
		return nil, err
	}

	httpAddr := ":8080"
	if v, ok := os.LookupEnv("HTTP_ADDR"); ok {
		httpAddr = v
	}

	cfg := &Config{
		DatabaseDriver:       sharedcfg.EnvOrDefault("DATABASE_DRIVER", DriverMySQL),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		Migrate:              os.Getenv("DB_MIGRATE") == "true",
		JobFile:              sharedcfg.EnvOrDefault("INGEST_JOB_FILE", "job.yaml"),
		Workers:              workers,
		StationCacheSize:     cacheSize,
		HTTPAddr:             httpAddr,
		LogLevel:             sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:      shutdownTimeout,
		KafkaBrokers:         sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaCompletionTopic: os.Getenv("KAFKA_COMPLETION_TOPIC"),
	}

	switch cfg.DatabaseDriver {
	case DriverMySQL, DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("invalid DATABASE_DRIVER %q: must be mysql, sqlite or postgres", cfg.DatabaseDriver)
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.KafkaCompletionTopic != "" && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_COMPLETION_TOPIC is set")
	}

	return cfg, nil
}

// NotificationsEnabled reports whether completion events should be published.
func (c *Config) NotificationsEnabled() bool {
	return c.KafkaCompletionTopic != ""
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}
