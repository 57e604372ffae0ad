// Package config loads arbor settings from an optional HCL file with
// environment overrides.
//
//	forest     = "kpis"
//	order_step = 0.5
//	cascade    = "full"
//
//	store {
//	  driver  = "sqlite"
//	  dsn     = "forest.db"
//	  timeout = "5s"
//	}
//
//	notify {
//	  redis_url = "redis://localhost:6379/0"
//	}
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

type Config struct {
	Forest    string
	OrderStep float64
	Cascade   string

	StoreDriver  string
	StoreDSN     string
	StoreTimeout time.Duration

	// RedisURL enables diff publishing when set.
	RedisURL string
}

type fileConfig struct {
	Forest    string       `hcl:"forest,optional"`
	OrderStep float64      `hcl:"order_step,optional"`
	Cascade   string       `hcl:"cascade,optional"`
	Store     *storeBlock  `hcl:"store,block"`
	Notify    *notifyBlock `hcl:"notify,block"`
}

type storeBlock struct {
	Driver  string `hcl:"driver,optional"`
	DSN     string `hcl:"dsn,optional"`
	Timeout string `hcl:"timeout,optional"`
}

type notifyBlock struct {
	RedisURL string `hcl:"redis_url"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Forest:       "default",
		OrderStep:    0.5,
		Cascade:      "full",
		StoreDriver:  "sqlite",
		StoreDSN:     "arbor.db",
		StoreTimeout: 5 * time.Second,
	}
}

// Load reads path (if non-empty) over the defaults, then applies
// ARBOR_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		var fc fileConfig
		if err := hclsimple.DecodeFile(path, nil, &fc); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
		if err := cfg.merge(fc); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}

	cfg.Forest = getenv("ARBOR_FOREST", cfg.Forest)
	cfg.StoreDriver = getenv("ARBOR_DB_DRIVER", cfg.StoreDriver)
	cfg.StoreDSN = getenv("ARBOR_DB_DSN", cfg.StoreDSN)
	cfg.RedisURL = getenv("ARBOR_REDIS_URL", cfg.RedisURL)
	cfg.OrderStep = getenvFloat("ARBOR_ORDER_STEP", cfg.OrderStep)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) merge(fc fileConfig) error {
	if fc.Forest != "" {
		c.Forest = fc.Forest
	}
	if fc.OrderStep != 0 {
		c.OrderStep = fc.OrderStep
	}
	if fc.Cascade != "" {
		c.Cascade = fc.Cascade
	}
	if fc.Store != nil {
		if fc.Store.Driver != "" {
			c.StoreDriver = fc.Store.Driver
		}
		if fc.Store.DSN != "" {
			c.StoreDSN = fc.Store.DSN
		}
		if fc.Store.Timeout != "" {
			d, err := time.ParseDuration(fc.Store.Timeout)
			if err != nil {
				return fmt.Errorf("store timeout: %w", err)
			}
			c.StoreTimeout = d
		}
	}
	if fc.Notify != nil {
		c.RedisURL = fc.Notify.RedisURL
	}
	return nil
}

func (c Config) validate() error {
	if c.OrderStep <= 0 {
		return fmt.Errorf("order_step must be positive, got %v", c.OrderStep)
	}
	switch c.Cascade {
	case "full", "shallow":
	default:
		return fmt.Errorf("cascade must be \"full\" or \"shallow\", got %q", c.Cascade)
	}
	return nil
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
