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

// Storage backend names.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendNeo4j    = "neo4j"
	BackendRedis    = "redis"
)

type Config struct {
	HTTP     HTTPConfig
	Logging  LoggingConfig
	Storage  StorageConfig
	Postgres PostgresConfig
	Graph    GraphConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Cascade  CascadeConfig
}

type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type LoggingConfig struct {
	Mode  string // development|production
	Level string
}

// StorageConfig selects the backend of each repository.
type StorageConfig struct {
	Ledgers  string // memory|postgres
	Members  string // memory|neo4j
	Progress string // memory|redis
}

type PostgresConfig struct {
	DSN     string
	Migrate bool
}

type GraphConfig struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	HashKey  string
}

// KafkaConfig is disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers     []string
	GroupID     string
	TopicPrefix string
}

func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

type CascadeConfig struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	ResumeOnStart   bool
}

const (
	defaultAddr             = ":8080"
	defaultShutdownTimeout  = 10 * time.Second
	defaultLogMode          = "development"
	defaultLogLevel         = "info"
	defaultGraphMaxSessions = 10
	defaultKafkaGroup       = "network-ledger"
	defaultMaxAttempts      = 5
	defaultInitialInterval  = 20 * time.Millisecond
	defaultMaxInterval      = 500 * time.Millisecond
)

// Load reads a .env file when present, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables alone.
func FromEnv() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Addr: valueOrDefault("HTTP_ADDR", defaultAddr),
		},
		Logging: LoggingConfig{
			Mode:  valueOrDefault("LOG_MODE", defaultLogMode),
			Level: valueOrDefault("LOG_LEVEL", defaultLogLevel),
		},
		Storage: StorageConfig{
			Ledgers:  strings.ToLower(valueOrDefault("LEDGER_STORE", BackendMemory)),
			Members:  strings.ToLower(valueOrDefault("MEMBER_STORE", BackendMemory)),
			Progress: strings.ToLower(valueOrDefault("PROGRESS_STORE", BackendMemory)),
		},
		Postgres: PostgresConfig{
			DSN:     os.Getenv("POSTGRES_DSN"),
			Migrate: parseBoolWithDefault("POSTGRES_MIGRATE", true),
		},
		Graph: GraphConfig{
			URI:            os.Getenv("GRAPH_URI"),
			Database:       os.Getenv("GRAPH_DATABASE"),
			Username:       os.Getenv("GRAPH_USERNAME"),
			Password:       os.Getenv("GRAPH_PASSWORD"),
			MaxConnections: parseIntWithDefault("GRAPH_MAX_CONNECTIONS", defaultGraphMaxSessions),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       parseIntWithDefault("REDIS_DB", 0),
			HashKey:  os.Getenv("REDIS_PROGRESS_KEY"),
		},
		Kafka: KafkaConfig{
			Brokers:     splitCSV(os.Getenv("KAFKA_BROKERS")),
			GroupID:     valueOrDefault("KAFKA_GROUP_ID", defaultKafkaGroup),
			TopicPrefix: os.Getenv("KAFKA_TOPIC_PREFIX"),
		},
		Cascade: CascadeConfig{
			MaxAttempts:   uint(parseIntWithDefault("CASCADE_MAX_ATTEMPTS", defaultMaxAttempts)),
			ResumeOnStart: parseBoolWithDefault("CASCADE_RESUME_ON_START", true),
		},
	}

	var err error
	if cfg.HTTP.ShutdownTimeout, err = parseDurationWithDefault("HTTP_SHUTDOWN_TIMEOUT", defaultShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Cascade.InitialInterval, err = parseDurationWithDefault("CASCADE_RETRY_INITIAL", defaultInitialInterval); err != nil {
		return Config{}, err
	}
	if cfg.Cascade.MaxInterval, err = parseDurationWithDefault("CASCADE_RETRY_MAX", defaultMaxInterval); err != nil {
		return Config{}, err
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Storage.Ledgers {
	case BackendMemory:
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("POSTGRES_DSN is required when LEDGER_STORE=postgres")
		}
	default:
		return fmt.Errorf("unsupported LEDGER_STORE %q", c.Storage.Ledgers)
	}

	switch c.Storage.Members {
	case BackendMemory:
	case BackendNeo4j:
		if c.Graph.URI == "" {
			return errors.New("GRAPH_URI is required when MEMBER_STORE=neo4j")
		}
	default:
		return fmt.Errorf("unsupported MEMBER_STORE %q", c.Storage.Members)
	}

	switch c.Storage.Progress {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("REDIS_ADDR is required when PROGRESS_STORE=redis")
		}
	default:
		return fmt.Errorf("unsupported PROGRESS_STORE %q", c.Storage.Progress)
	}

	if c.Cascade.MaxAttempts == 0 {
		return errors.New("CASCADE_MAX_ATTEMPTS must be positive")
	}
	return nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val >= 0 {
			return val
		}
	}
	return fallback
}

func parseDurationWithDefault(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
