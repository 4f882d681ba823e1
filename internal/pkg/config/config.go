package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=10s"`

	Token TokenConfig
	Admin AdminConfig
	Mongo MongoConfig
	Redis RedisConfig
}

type TokenConfig struct {
	Secret string        `env:"TOKEN_SECRET, required"`
	TTL    time.Duration `env:"TOKEN_TTL,    default=24h"`
}

// AdminConfig seeds the administrator account at startup. Nothing is seeded
// when Email is empty.
type AdminConfig struct {
	Username string `env:"ADMIN_USERNAME, default=admin"`
	Email    string `env:"ADMIN_EMAIL"`
	Password string `env:"ADMIN_PASSWORD"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=storefront"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`

	CatalogTTL     time.Duration `env:"CATALOG_CACHE_TTL, default=5m"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL,   default=24h"`
}

func (c *Config) validate() error {
	if c.Admin.Email != "" && c.Admin.Password == "" {
		return fmt.Errorf("config: ADMIN_PASSWORD is required when ADMIN_EMAIL is set")
	}
	return nil
}

// IsDevelopment reports whether the service runs locally.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration from l.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
