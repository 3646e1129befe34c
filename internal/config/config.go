package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "time/tzdata"

	"github.com/BurntSushi/toml"
)

// Config holds the application settings. Values come from defaults, then an
// optional TOML file named by ALICE_CONFIG_FILE, then environment variables.
type Config struct {
	Port string `toml:"port"`

	// Writes allowed per client per minute; 0 disables the limit
	RateLimitPerMinute int `toml:"rate_limit_per_minute"`

	// Storage
	DataBackend  string `toml:"data_backend"` // "memory", "sqlite" or "postgres"
	SQLiteDBPath string `toml:"sqlite_db_path"`
	PostgresURL  string `toml:"postgres_url"`

	// Cached store in front of the backend
	CacheSize int           `toml:"cache_size"`
	CacheTTL  time.Duration `toml:"cache_ttl"`

	// Notifications
	NotificationsEnabled bool          `toml:"notifications_enabled"`
	NotifyTimeout        time.Duration `toml:"notify_timeout"`
	RecentNotifications  int           `toml:"recent_notifications"`
	AMQPURL              string        `toml:"amqp_url"`
	AMQPExchange         string        `toml:"amqp_exchange"`
	AMQPQueue            string        `toml:"amqp_queue"`

	// Calendar used to decide "today" and month boundaries
	Timezone string `toml:"timezone"`

	// Rollover worker
	RolloverInterval    time.Duration `toml:"rollover_interval"`
	RolloverConcurrency int           `toml:"rollover_concurrency"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`

	// Create the development account on startup
	SeedTestUser bool `toml:"seed_test_user"`

	// File the TOML overlay was read from, if any
	ConfigFile string `toml:"-"`
}

var validBackends = []string{"memory", "sqlite", "postgres"}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:                 "8081",
		RateLimitPerMinute:   60,
		DataBackend:          "sqlite",
		SQLiteDBPath:         "./data/alice.db",
		CacheSize:            256,
		CacheTTL:             5 * time.Minute,
		NotificationsEnabled: true,
		NotifyTimeout:        5 * time.Second,
		RecentNotifications:  100,
		AMQPExchange:         "alice",
		AMQPQueue:            "notifications",
		Timezone:             "UTC",
		RolloverInterval:     time.Hour,
		RolloverConcurrency:  4,
		LogLevel:             "info",
		LogFormat:            "text",
		SeedTestUser:         true,
	}
}

// Load builds the configuration. Only an unreadable or malformed config file
// is an error; bad values are reported by Validate.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("ALICE_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys in config file %s: %s", path, strings.Join(keys, ", "))
	}
	c.ConfigFile = path
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.DataBackend = getEnv("DATA_BACKEND", c.DataBackend)
	c.SQLiteDBPath = getEnv("SQLITE_DB_PATH", c.SQLiteDBPath)
	c.PostgresURL = getEnv("POSTGRES_URL", c.PostgresURL)
	c.CacheSize = getEnvInt("CACHE_SIZE", c.CacheSize)
	c.CacheTTL = getEnvDuration("CACHE_TTL", c.CacheTTL)
	c.NotificationsEnabled = getEnvBool("NOTIFICATIONS_ENABLED", c.NotificationsEnabled)
	c.NotifyTimeout = getEnvDuration("NOTIFY_TIMEOUT", c.NotifyTimeout)
	c.RecentNotifications = getEnvInt("RECENT_NOTIFICATIONS", c.RecentNotifications)
	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPQueue = getEnv("AMQP_QUEUE", c.AMQPQueue)
	c.Timezone = getEnv("TIMEZONE", c.Timezone)
	c.RolloverInterval = getEnvDuration("ROLLOVER_INTERVAL", c.RolloverInterval)
	c.RolloverConcurrency = getEnvInt("ROLLOVER_CONCURRENCY", c.RolloverConcurrency)
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.SeedTestUser = getEnvBool("SEED_TEST_USER", c.SeedTestUser)
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil || c.Timezone == "" {
		return time.UTC
	}
	return loc
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if c.Port == "" {
		errors = append(errors, "port cannot be empty")
	} else if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port %q: must be numeric", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate backend
	valid := false
	for _, b := range validBackends {
		if c.DataBackend == b {
			valid = true
			break
		}
	}
	if !valid {
		errors = append(errors, fmt.Sprintf("invalid data backend %q: must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create SQLite database directory %s: %v", dir, err))
			}
		}
	case "postgres":
		if c.PostgresURL == "" {
			errors = append(errors, "Postgres URL is required when using postgres backend")
		} else if u, err := url.Parse(c.PostgresURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Postgres URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid Postgres URL scheme %q: must be postgres or postgresql", u.Scheme))
		}
	}

	// AMQP is optional
	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme %q: must be amqp or amqps", u.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.Timezone == "" {
		errors = append(errors, "timezone cannot be empty")
	} else if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone %q: %v", c.Timezone, err))
	}

	if c.CacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must not be negative", c.CacheSize))
	}
	if c.CacheSize > 0 && c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}
	if c.NotifyTimeout < 100*time.Millisecond {
		errors = append(errors, fmt.Sprintf("invalid notify timeout %v: must be at least 100ms", c.NotifyTimeout))
	}
	if c.RecentNotifications < 1 {
		errors = append(errors, fmt.Sprintf("invalid recent notifications %d: must be at least 1", c.RecentNotifications))
	}

	if c.RolloverInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid rollover interval %v: must be at least 1 minute", c.RolloverInterval))
	}
	if c.RolloverInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid rollover interval %v: must be at most 24 hours", c.RolloverInterval))
	}
	if c.RolloverConcurrency < 1 {
		errors = append(errors, fmt.Sprintf("invalid rollover concurrency %d: must be at least 1", c.RolloverConcurrency))
	}
	if c.RolloverConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid rollover concurrency %d: must be at most 64", c.RolloverConcurrency))
	}
	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: cannot be negative", c.RateLimitPerMinute))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format %q: must be text or json", c.LogFormat))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level %q: must be debug, info, warn or error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
