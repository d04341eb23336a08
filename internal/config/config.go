// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full service configuration. Every component receives the
// values it needs explicitly; nothing reads the environment on its own.
type Config struct {
	Env  string `env:"SG_ENV" envDefault:"development"`
	Addr string `env:"SG_ADDR" envDefault:":8080"`

	PostgresDSN string `env:"SG_PG_DSN,required"`
	RedisAddr   string `env:"SG_REDIS_ADDR"`

	AuthSecret  string        `env:"SG_AUTH_SECRET,required"`
	TokenIssuer string        `env:"SG_TOKEN_ISSUER" envDefault:"storegrid"`
	AccessTTL   time.Duration `env:"SG_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL  time.Duration `env:"SG_REFRESH_TTL" envDefault:"720h"`

	SweepInterval time.Duration `env:"SG_BLACKLIST_SWEEP_INTERVAL" envDefault:"1h"`

	RateLimitRPS   int   `env:"SG_RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst int   `env:"SG_RATE_LIMIT_BURST" envDefault:"100"`
	MaxBodyBytes   int64 `env:"SG_MAX_BODY_BYTES" envDefault:"1048576"`
}

// Production reports whether the service runs in production mode.
func (c Config) Production() bool { return c.Env == "production" }

// Load reads .env when present, then parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
