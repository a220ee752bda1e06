// Package config loads the fork-purger configuration.
//
// Sources, highest precedence first: command-line flags, FORK_PURGER_*
// environment variables (GITHUB_TOKEN is accepted for the token), an optional
// YAML or TOML config file, a .env file, and the built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FORK_PURGER"

const (
	// DefaultConcurrency is the default number of consumers.
	DefaultConcurrency = 5

	// DefaultPagePause is the default pause between listing pages.
	DefaultPagePause = 300 * time.Millisecond
)

// Config is the complete runtime configuration.
type Config struct {
	Username            string        `mapstructure:"username"`
	Token               string        `mapstructure:"token"`
	BaseURL             string        `mapstructure:"base_url"`
	UserAgent           string        `mapstructure:"user_agent"`
	Delete              bool          `mapstructure:"delete"`
	Debug               bool          `mapstructure:"debug"`
	Concurrency         int           `mapstructure:"concurrency"`
	MaxPages            int           `mapstructure:"max_pages"`
	MaxItemsPerConsumer int           `mapstructure:"max_items"`
	PagePause           time.Duration `mapstructure:"page_pause"`
	PerPage             int           `mapstructure:"per_page"`
	RedisURL            string        `mapstructure:"redis_url"`
	MetricsAddr         string        `mapstructure:"metrics_addr"`
	LogLevel            string        `mapstructure:"log_level"`
}

// LoadOptions selects the optional sources for Load.
type LoadOptions struct {
	// ConfigFile is an explicit YAML or TOML file (optional).
	ConfigFile string

	// EnvFile is an explicit .env file. When empty, ./.env is used if present.
	EnvFile string

	// Flags are bound by name, with dashes mapped to underscores.
	Flags *pflag.FlagSet
}

// SetDefaults registers the default values.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "https://api.github.com")
	v.SetDefault("user_agent", "fork-purger")
	v.SetDefault("delete", false)
	v.SetDefault("debug", false)
	v.SetDefault("concurrency", DefaultConcurrency)
	v.SetDefault("max_pages", 0)
	v.SetDefault("max_items", 0)
	v.SetDefault("page_pause", DefaultPagePause)
	v.SetDefault("per_page", 100)
	v.SetDefault("redis_url", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("log_level", "info")
}

// keys are the configuration keys that flags and env vars may set.
var keys = []string{
	"username", "token", "base_url", "user_agent", "delete", "debug",
	"concurrency", "max_pages", "max_items", "page_pause", "per_page",
	"redis_url", "metrics_addr", "log_level",
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
	_ = v.BindEnv("token", EnvPrefix+"_TOKEN", "GITHUB_TOKEN")

	return v
}

// Load reads the configuration from all sources.
func Load(opts LoadOptions) (*Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	v := NewViper()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", opts.ConfigFile, err)
		}
	}

	if opts.Flags != nil {
		for _, key := range keys {
			flag := opts.Flags.Lookup(strings.ReplaceAll(key, "_", "-"))
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", flag.Name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// loadEnvFile loads path, or ./.env when path is empty and the file exists.
// Variables already set in the environment are not overridden.
func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Username == "":
		return errors.New("username is required")
	case c.Token == "":
		return errors.New("token is required (set --token, FORK_PURGER_TOKEN or GITHUB_TOKEN)")
	case c.Concurrency < 1:
		return fmt.Errorf("concurrency must be >= 1 (got %d)", c.Concurrency)
	case c.MaxPages < 0:
		return fmt.Errorf("max pages must be >= 0 (got %d)", c.MaxPages)
	case c.MaxItemsPerConsumer < 0:
		return fmt.Errorf("max items must be >= 0 (got %d)", c.MaxItemsPerConsumer)
	case c.PagePause < 0:
		return fmt.Errorf("page pause must be >= 0 (got %s)", c.PagePause)
	case c.PerPage < 1 || c.PerPage > 100:
		return fmt.Errorf("per page must be between 1 and 100 (got %d)", c.PerPage)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error", "disabled":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// RedisClient returns a client for RedisURL, or nil when no URL is set.
func (c *Config) RedisClient() (*redis.Client, error) {
	if c.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}
