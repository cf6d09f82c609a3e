// Package config loads service configuration from config/config.yaml, a
// local .env file and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Shivanand-hulikatti/open-mic-lineup/internal/model"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Store     StoreConfig     `mapstructure:"store"`
	Signup    SignupConfig    `mapstructure:"signup"`
	Allocator AllocatorConfig `mapstructure:"allocator"`
	Lineup    LineupConfig    `mapstructure:"lineup"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            string `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Name            string `mapstructure:"name"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	ConnectAttempts int    `mapstructure:"connect_attempts"`
}

// DSN builds a libpq-compatible connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// StoreConfig selects the entry store backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // postgres | memory
}

// SignupConfig carries the field requirements for new entries.
type SignupConfig struct {
	RequirePerformerName bool `mapstructure:"require_performer_name"`
	RequireSelection     bool `mapstructure:"require_selection"`
	MaxNameLength        int  `mapstructure:"max_name_length"`
}

// AllocatorConfig tunes the public slot allocator.
type AllocatorConfig struct {
	// MaxAttempts bounds how many times a claim is tried when other
	// writers keep taking the scanned position first.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// LineupConfig tunes the display projection.
type LineupConfig struct {
	QueueSize int `mapstructure:"queue_size"`
}

// CatalogConfig selects where selection usage counts are recorded.
type CatalogConfig struct {
	UsageBackend string `mapstructure:"usage_backend"` // postgres | redis | none
	// Selections lists the selection IDs known to the memory store. The
	// postgres store reads them from the selections table instead.
	Selections []int64 `mapstructure:"selections"`
}

// RedisConfig holds the connection for the redis usage backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// RateLimitConfig configures per-client throttling of the public claim endpoint.
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	RPS     float64       `mapstructure:"rps"`
	Burst   int           `mapstructure:"burst"`
	IdleTTL time.Duration `mapstructure:"idle_ttl"`
}

// LogConfig configures the logrus logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text | json
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "lineup")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.connect_attempts", 5)

	v.SetDefault("store.driver", "postgres")

	v.SetDefault("signup.require_performer_name", true)
	v.SetDefault("signup.require_selection", false)
	v.SetDefault("signup.max_name_length", model.MaxNameLength)

	v.SetDefault("allocator.max_attempts", 3)
	v.SetDefault("lineup.queue_size", 5)

	v.SetDefault("catalog.usage_backend", "postgres")
	v.SetDefault("catalog.selections", []int64{})
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "lineup:selection_usage")

	// Off by default: a venue's guests often share one NAT address.
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.rps", 2.0)
	v.SetDefault("ratelimit.burst", 5)
	v.SetDefault("ratelimit.idle_ttl", 15*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration. A missing config file is not an error; every key
// has a default and may be overridden by an environment variable such as
// DATABASE_HOST or ALLOCATOR_MAX_ATTEMPTS.
func Load(paths ...string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./config", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("store.driver must be postgres or memory, got %q", c.Store.Driver)
	}
	switch c.Catalog.UsageBackend {
	case "postgres", "redis", "none":
	default:
		return fmt.Errorf("catalog.usage_backend must be postgres, redis or none, got %q", c.Catalog.UsageBackend)
	}
	if c.Allocator.MaxAttempts < 1 {
		return fmt.Errorf("allocator.max_attempts must be at least 1, got %d", c.Allocator.MaxAttempts)
	}
	if c.Signup.MaxNameLength < 1 || c.Signup.MaxNameLength > model.MaxNameLength {
		return fmt.Errorf("signup.max_name_length must be between 1 and %d, got %d", model.MaxNameLength, c.Signup.MaxNameLength)
	}
	if c.Lineup.QueueSize < 0 {
		return fmt.Errorf("lineup.queue_size cannot be negative")
	}
	for _, id := range c.Catalog.Selections {
		if id <= 0 {
			return fmt.Errorf("catalog.selections must be positive, got %d", id)
		}
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1) {
		return fmt.Errorf("ratelimit.rps and ratelimit.burst must be positive when enabled")
	}
	return nil
}
