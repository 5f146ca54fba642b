// Package config holds runtime configuration, read from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/warp/advance-engine/anticipo"
)

// Config holds runtime configuration for the server.
type Config struct {
	Addr         string        `envconfig:"ADDR" default:":8080"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`

	DBPath string `envconfig:"DB_PATH" default:"anticipos.db"`

	// Solicitation window: day-of-month bounds, inclusive, during which
	// new advance requests may be created.
	WindowFromDay int `envconfig:"WINDOW_FROM_DAY" default:"1"`
	WindowToDay   int `envconfig:"WINDOW_TO_DAY" default:"15"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from environment variables with the ADVANCE_
// prefix (e.g. ADVANCE_ADDR, ADVANCE_WINDOW_TO_DAY).
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("advance", &cfg); err != nil {
		return nil, err
	}
	if cfg.WindowFromDay < 1 || cfg.WindowToDay > 31 || cfg.WindowFromDay > cfg.WindowToDay {
		return nil, fmt.Errorf("invalid solicitation window [%d, %d]", cfg.WindowFromDay, cfg.WindowToDay)
	}
	return &cfg, nil
}

// Window returns the configured solicitation window.
func (c *Config) Window() anticipo.SolicitationWindow {
	return anticipo.SolicitationWindow{FromDay: c.WindowFromDay, ToDay: c.WindowToDay}
}
