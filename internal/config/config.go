package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port          string `envconfig:"PORT" default:"8080"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`

	DatabaseURL    string `envconfig:"DATABASE_URL"`
	MigrateOnStart bool   `envconfig:"MIGRATE_ON_START" default:"true"`

	RedisAddr               string `envconfig:"REDIS_ADDR"`
	RedisPassword           string `envconfig:"REDIS_PASSWORD"`
	RedisDB                 int    `envconfig:"REDIS_DB" default:"0"`
	CalendarCacheTTLSeconds int    `envconfig:"CALENDAR_CACHE_TTL_SECONDS" default:"30"`

	AuthSecret            string `envconfig:"AUTH_SECRET"`
	AccessTokenTTLMinutes int    `envconfig:"ACCESS_TOKEN_TTL_MINUTES" default:"480"`
	ManagerPIN            string `envconfig:"MANAGER_PIN"`

	HeadquartersBranchID      string `envconfig:"HEADQUARTERS_BRANCH_ID" default:"hq"`
	Timezone                  string `envconfig:"TIMEZONE" default:"Asia/Seoul"`
	PointAccumulationEnabled  bool   `envconfig:"POINT_ACCUMULATION_ENABLED" default:"true"`
	SimplifiedPathEarnsPoints bool   `envconfig:"SIMPLIFIED_PATH_EARNS_POINTS" default:"false"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.ManagerPIN = strings.TrimSpace(cfg.ManagerPIN)
	if cfg.CalendarCacheTTLSeconds < 1 {
		cfg.CalendarCacheTTLSeconds = 30
	}
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) CalendarCacheTTL() time.Duration {
	return time.Duration(c.CalendarCacheTTLSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

// Location resolves TIMEZONE, falling back to UTC when the zone is unknown.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
