package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	JWT      JWTConfig
	Password PasswordConfig
	Cache    CacheConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Mongo    MongoConfig
	Queue    QueueConfig
}

type JWTConfig struct {
	AccessSecret  string        `env:"JWT_ACCESS_SECRET"`
	RefreshSecret string        `env:"JWT_REFRESH_SECRET"`
	AccessTTL     time.Duration `env:"JWT_ACCESS_TTL,  default=15m"`
	RefreshTTL    time.Duration `env:"JWT_REFRESH_TTL, default=168h"`
}

type PasswordConfig struct {
	Cost int `env:"PASSWORD_COST, default=10"`
}

type CacheConfig struct {
	// Driver selects the role cache substrate: redis or memory.
	Driver string        `env:"CACHE_DRIVER,   default=redis"`
	TTL    time.Duration `env:"ROLE_CACHE_TTL, default=1h"`
}

type PostgresConfig struct {
	DSN     string        `env:"DATABASE_URL"`
	Timeout time.Duration `env:"DB_TIMEOUT, default=5s"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB,       default=0"`
	Timeout  time.Duration `env:"REDIS_TIMEOUT,  default=5s"`
}

// MongoConfig is optional. With an empty URI failed invalidation jobs are kept
// in Redis instead.
type MongoConfig struct {
	URI      string        `env:"MONGO_URI"`
	Database string        `env:"MONGO_DB,      default=access_control"`
	Timeout  time.Duration `env:"MONGO_TIMEOUT, default=10s"`
}

type QueueConfig struct {
	Name        string        `env:"QUEUE_NAME,         default=role-cache-invalidation"`
	Workers     int           `env:"QUEUE_WORKERS,      default=4"`
	MaxAttempts int           `env:"QUEUE_MAX_ATTEMPTS, default=3"`
	Backoff     time.Duration `env:"QUEUE_BACKOFF,      default=1s"`
}

// IsProduction reports whether cookies must be marked Secure.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate rejects configurations the auth core cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET is required"))
	}
	if c.JWT.RefreshSecret == "" {
		errs = append(errs, errors.New("JWT_REFRESH_SECRET is required"))
	}
	if c.JWT.AccessSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ"))
	}
	if c.Cache.Driver != "redis" && c.Cache.Driver != "memory" {
		errs = append(errs, fmt.Errorf("CACHE_DRIVER %q must be redis or memory", c.Cache.Driver))
	}
	return errors.Join(errs...)
}

// Load reads an optional .env file, then the environment, using go-envconfig.
// Variables already set in the environment win over the file.
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	return &cfg, nil
}
