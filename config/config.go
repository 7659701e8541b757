// Package config loads the server configuration from YAML with ${ENV}
// expansion. A .env file next to the binary is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AMQP      AMQPConfig      `yaml:"amqp"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Booking   BookingConfig   `yaml:"booking"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig enables the availability cache when Address is set.
type RedisConfig struct {
	Address         string        `yaml:"address"`
	Password        string        `yaml:"password"`
	DB              int           `yaml:"db"`
	Prefix          string        `yaml:"prefix"`
	AvailabilityTTL time.Duration `yaml:"availability_ttl"`
}

// AMQPConfig enables event publishing when URL is set.
type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type BookingConfig struct {
	Timezone        string        `yaml:"timezone"`
	CompletionSweep time.Duration `yaml:"completion_sweep"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads path. An empty path yields the defaults (still honoring .env).
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	expanded := []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// =============================================================================
// DEFAULTS
// =============================================================================

func (c *Config) Port() int {
	if c.Server.Port == 0 {
		return 8080
	}
	return c.Server.Port
}

func (c *Config) DBPath() string {
	if c.Database.Path == "" {
		return "./cafe.db"
	}
	return c.Database.Path
}

func (c *Config) CORSOrigins() []string {
	if len(c.Server.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return c.Server.CORSOrigins
}

func (c *Config) Exchange() string {
	if c.AMQP.Exchange == "" {
		return "cafe.events"
	}
	return c.AMQP.Exchange
}

func (c *Config) JWTSecret() string {
	if c.Auth.JWTSecret == "" {
		return os.Getenv("JWT_SECRET")
	}
	return c.Auth.JWTSecret
}

// Limits returns the per-caller request rate and burst.
func (c *Config) Limits() (rps float64, burst int) {
	rps, burst = c.RateLimit.RPS, c.RateLimit.Burst
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return rps, burst
}

// Location resolves the booking timezone, UTC when unset.
func (c *Config) Location() (*time.Location, error) {
	if c.Booking.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return nil, fmt.Errorf("booking timezone: %w", err)
	}
	return loc, nil
}

func (c *Config) CompletionSweep() time.Duration {
	if c.Booking.CompletionSweep <= 0 {
		return 5 * time.Minute
	}
	return c.Booking.CompletionSweep
}

func (c *Config) LogLevel() string {
	if c.Log.Level == "" {
		return "info"
	}
	return c.Log.Level
}
