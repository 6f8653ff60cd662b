package config

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime settings for the console.
type Config struct {
	APIBaseURL     string        `env:"ATMADMIN_API_URL, overwrite" validate:"required,url"`
	TokenDBPath    string        `env:"ATMADMIN_TOKEN_DB, overwrite" validate:"required"`
	RequestTimeout time.Duration `env:"ATMADMIN_TIMEOUT, overwrite" validate:"min=1s"`
	PageSize       int           `env:"ATMADMIN_PAGE_SIZE, overwrite" validate:"min=1,max=1000"`
	LogLevel       string        `env:"ATMADMIN_LOG_LEVEL, overwrite" validate:"oneof=debug info warn error"`
	LogFormat      string        `env:"ATMADMIN_LOG_FORMAT, overwrite" validate:"oneof=text json zap zap-console"`
	MetricsAddr    string        `env:"ATMADMIN_METRICS_ADDR, overwrite" validate:"omitempty,hostname_port"`
}

// LoadDefaults populates c with development defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8000/api/v1"
	c.TokenDBPath = "atmadmin.db"
	c.RequestTimeout = 15 * time.Second
	c.PageSize = 15
	c.LogLevel = "info"
	c.LogFormat = "text"
	c.MetricsAddr = ""
}

// Validate checks field constraints after all sources were merged.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadConfig builds a Config from defaults, the optional JSON file, the
// environment and finally args (usually os.Args[1:]).
func LoadConfig(ctx context.Context, args []string) (*Config, error) {
	return load(ctx, args, envconfig.OsLookuper())
}

func load(ctx context.Context, args []string, env envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(ctx, cfg, env); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseEnv(ctx context.Context, cfg *Config, env envconfig.Lookuper) error {
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: env,
	})
	if err != nil {
		return fmt.Errorf("env config: %w", err)
	}
	return nil
}
