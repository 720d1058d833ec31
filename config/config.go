// Package config loads tracker daemon configuration from a YAML file
// with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root daemon configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Redis   RedisConfig   `yaml:"redis"`
	Tracker TrackerConfig `yaml:"tracker"`
}

// ServerConfig describes the HTTP server.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RedisConfig describes the optional Redis backend. When disabled the
// daemon runs on in-memory storage.
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// TrackerConfig tunes the command path.
type TrackerConfig struct {
	MachineID   int `yaml:"machine_id"`
	SaveRetries int `yaml:"save_retries"`
	EventBuffer int `yaml:"event_buffer"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			PoolSize:    10,
			IdleTimeout: 5 * time.Minute,
		},
		Tracker: TrackerConfig{
			MachineID:   1,
			SaveRetries: 3,
			EventBuffer: 100,
		},
	}
}

// Load reads the config file at path (optional, "" for defaults),
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TRACKER_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("TRACKER_REDIS_ENABLED"); v != "" {
		c.Redis.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("TRACKER_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("TRACKER_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("TRACKER_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = n
		}
	}
	if v := os.Getenv("TRACKER_MACHINE_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Tracker.MachineID = n
		}
	}
}

// Validate checks the configuration for obvious misconfiguration.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.Tracker.SaveRetries < 0 {
		return fmt.Errorf("tracker.save_retries must be >= 0")
	}
	if c.Tracker.EventBuffer <= 0 {
		return fmt.Errorf("tracker.event_buffer must be > 0")
	}
	// The id becomes the snowflake node id, a uint16.
	if c.Tracker.MachineID < 0 || c.Tracker.MachineID > 65535 {
		return fmt.Errorf("tracker.machine_id must be in [0, 65535]")
	}
	return nil
}
