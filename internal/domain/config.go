package domain

import (
	"os"
	"strconv"
	"time"
)

// Config holds the complete service configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`
	Reference  ReferenceConfig  `json:"reference"`
	Worker     WorkerConfig     `json:"worker"`

	Logging LoggingConfig `json:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// ReferenceConfig tells where the lookup tables come from.
type ReferenceConfig struct {
	// File is a YAML dataset. Empty means the embedded default.
	File string `json:"file"`

	// SeedRepository writes the dataset into an empty repository at startup.
	SeedRepository bool `json:"seedRepository"`
}

// WorkerConfig holds async worker settings.
type WorkerConfig struct {
	Enabled    bool `json:"enabled"`
	MaxWorkers int  `json:"maxWorkers"` // rule evaluation concurrency
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite + channels + in-memory cache
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./tourismlevy.db",
		},
		Cache: CacheConfig{
			Type:          "memory",
			LocalMaxSize:  10000,
			LocalTTL:      5 * time.Minute,
			AssessmentTTL: time.Hour,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Reference: ReferenceConfig{
			SeedRepository: true,
		},
		Worker: WorkerConfig{
			Enabled:    true,
			MaxWorkers: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "tourismlevy",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
		AssessmentTTL:  24 * time.Hour,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	return cfg
}

// LoadConfig picks the tier from LEVY_TIER and applies LEVY_* overrides.
func LoadConfig() *Config {
	cfg := DefaultConfig()
	if os.Getenv("LEVY_TIER") == string(TierPro) {
		cfg = ProConfig()
	}
	ApplyEnv(cfg)
	return cfg
}

// ApplyEnv overrides cfg with LEVY_* environment variables. Unset or
// unparsable values leave the field untouched.
func ApplyEnv(cfg *Config) {
	envString(&cfg.Server.Host, "LEVY_HOST")
	envInt(&cfg.Server.Port, "LEVY_PORT")

	envString(&cfg.Repository.Driver, "LEVY_DB_DRIVER")
	envString(&cfg.Repository.SQLitePath, "LEVY_SQLITE_PATH")
	envString(&cfg.Repository.PostgresHost, "LEVY_PG_HOST")
	envInt(&cfg.Repository.PostgresPort, "LEVY_PG_PORT")
	envString(&cfg.Repository.PostgresUser, "LEVY_PG_USER")
	envString(&cfg.Repository.PostgresPassword, "LEVY_PG_PASSWORD")
	envString(&cfg.Repository.PostgresDB, "LEVY_PG_DB")
	envString(&cfg.Repository.PostgresSSLMode, "LEVY_PG_SSLMODE")

	envString(&cfg.Cache.Type, "LEVY_CACHE")
	envString(&cfg.Cache.RedisAddr, "LEVY_REDIS_ADDR")
	envString(&cfg.Cache.RedisPassword, "LEVY_REDIS_PASSWORD")

	envString(&cfg.EventBus.Type, "LEVY_BUS")
	envString(&cfg.EventBus.NATSUrl, "LEVY_NATS_URL")
	envString(&cfg.EventBus.NATSToken, "LEVY_NATS_TOKEN")

	envString(&cfg.Reference.File, "LEVY_REFERENCE_FILE")
	envBool(&cfg.Reference.SeedRepository, "LEVY_SEED")
	envBool(&cfg.Worker.Enabled, "LEVY_ASYNC_WORKER")

	if os.Getenv("LEVY_DEBUG") == "true" {
		cfg.Logging.Level = "debug"
	}
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
