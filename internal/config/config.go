package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// HTTP Server
	Port string

	// Storage
	DataBackend    string
	StorageMode    string
	SQLiteDBPath   string
	RedisURL       string
	RedisKeyPrefix string
	DataSeedDir    string

	// Write queue for networked stores
	WriteMaxAttempts int
	WriteBaseDelay   time.Duration

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	RecurringInterval time.Duration

	// Display and calendar
	Timezone string
	Currency string

	// Logging
	LogLevel  string
	LogFormat string
}

var (
	validBackends   = []string{"memory", "sqlite", "redis"}
	validModes      = []string{"local", "cloud"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
)

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8081")
	v.SetDefault("data_backend", "memory")
	v.SetDefault("storage_mode", "local")
	v.SetDefault("sqlite_db_path", "./data/budgetbeacon.db")
	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("redis_key_prefix", "budgetbeacon:")
	v.SetDefault("data_seed_dir", "data")
	v.SetDefault("write_max_attempts", 5)
	v.SetDefault("write_base_delay", 200*time.Millisecond)
	v.SetDefault("amqp_url", "")
	v.SetDefault("amqp_exchange", "budgetbeacon")
	v.SetDefault("amqp_queue", "state_changed")
	v.SetDefault("recurring_interval", time.Hour)
	v.SetDefault("timezone", "Local")
	v.SetDefault("currency", "USD")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads the configuration from path, when given, with environment
// variables taking precedence over the file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	return FromViper(v), nil
}

// FromViper builds a Config from the keys set on v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Port: v.GetString("port"),

		DataBackend:    strings.ToLower(v.GetString("data_backend")),
		StorageMode:    strings.ToLower(v.GetString("storage_mode")),
		SQLiteDBPath:   v.GetString("sqlite_db_path"),
		RedisURL:       v.GetString("redis_url"),
		RedisKeyPrefix: v.GetString("redis_key_prefix"),
		DataSeedDir:    v.GetString("data_seed_dir"),

		WriteMaxAttempts: v.GetInt("write_max_attempts"),
		WriteBaseDelay:   v.GetDuration("write_base_delay"),

		AMQPURL:      v.GetString("amqp_url"),
		AMQPExchange: v.GetString("amqp_exchange"),
		AMQPQueue:    v.GetString("amqp_queue"),

		RecurringInterval: v.GetDuration("recurring_interval"),

		Timezone: v.GetString("timezone"),
		Currency: strings.ToUpper(v.GetString("currency")),

		LogLevel:  strings.ToLower(v.GetString("log_level")),
		LogFormat: strings.ToLower(v.GetString("log_format")),
	}
}

// Location resolves Timezone. An empty value or "Local" is the system zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	if !slices.Contains(validModes, c.StorageMode) {
		errs = append(errs, fmt.Sprintf("invalid storage mode '%s': must be one of %v", c.StorageMode, validModes))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.DataBackend == "redis" {
		if parsedURL, err := url.Parse(c.RedisURL); err != nil || c.RedisURL == "" {
			errs = append(errs, fmt.Sprintf("invalid Redis URL '%s'", c.RedisURL))
		} else if parsedURL.Scheme != "redis" && parsedURL.Scheme != "rediss" {
			errs = append(errs, fmt.Sprintf("invalid Redis URL scheme '%s': must be 'redis' or 'rediss'", parsedURL.Scheme))
		}
		if c.WriteMaxAttempts < 1 {
			errs = append(errs, fmt.Sprintf("invalid write max attempts %d: must be at least 1", c.WriteMaxAttempts))
		}
		if c.WriteBaseDelay <= 0 {
			errs = append(errs, fmt.Sprintf("invalid write base delay %v: must be positive", c.WriteBaseDelay))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RecurringInterval < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid recurring interval %v: must be at least 1 minute", c.RecurringInterval))
	} else if c.RecurringInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid recurring interval %v: must be at most 24 hours", c.RecurringInterval))
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("invalid timezone '%s'", c.Timezone))
	}
	if len(c.Currency) != 3 {
		errs = append(errs, fmt.Sprintf("invalid currency '%s': must be a 3-letter code", c.Currency))
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	if len(errs) > 0 {
		return errors.New("configuration validation failed:\n- " + strings.Join(errs, "\n- "))
	}

	return nil
}
