package simulator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/sethvargo/go-envconfig"
)

// Config is read from the environment only; the simulator runs unattended
// next to the device it imitates.
type Config struct {
	APIBaseURL     string        `env:"API_BASE_URL, overwrite" validate:"required,url"`
	ATMID          int64         `env:"ATM_ID_IN_DB, required" validate:"min=1"`
	APIKey         string        `env:"SIMULATOR_API_KEY"`
	Schedule       string        `env:"SIMULATOR_SCHEDULE, overwrite" validate:"required"`
	RequestTimeout time.Duration `env:"SIMULATOR_TIMEOUT, overwrite" validate:"min=1s"`
	LogLevel       string        `env:"SIMULATOR_LOG_LEVEL, overwrite" validate:"oneof=debug info warn error"`
	LogFormat      string        `env:"SIMULATOR_LOG_FORMAT, overwrite" validate:"oneof=text json zap zap-console"`
}

func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://localhost:8000/api/v1"
	c.Schedule = "@every 30s"
	c.RequestTimeout = 15 * time.Second
	c.LogLevel = "info"
	c.LogFormat = "text"
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("invalid config: schedule %q: %w", c.Schedule, err)
	}
	return nil
}

// LoadConfig reads the simulator settings through env.
func LoadConfig(ctx context.Context, env envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: cfg, Lookuper: env})
	if err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
