package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/damon-houk/cbr-rates-service/internal/infrastructure/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers
const (
	StoreBadger   = "badger"
	StorePostgres = "postgres"
)

// Cache backends
const (
	CacheMemory = "memory"
	CacheBadger = "badger"
)

// Config holds application configuration.
type Config struct {
	Port     string
	LogLevel logger.Level

	FeedURL      string
	FeedEncoding string
	FeedTimeout  time.Duration

	CacheBackend string
	CacheTTL     time.Duration

	RefreshMaxAttempts int
	RefreshBackoff     time.Duration
	// RefreshDailyAt is HH:MM local time; empty or "off" disables the daily refresh
	RefreshDailyAt string

	QueueWorkers int
	QueueSize    int

	StoreDriver string
	BadgerPath  string
	DatabaseURL string
}

var defaults = map[string]interface{}{
	"PORT":                 "8080",
	"LOG_LEVEL":            "INFO",
	"FEED_URL":             "https://www.cbr.ru/scripts/XML_daily.asp",
	"FEED_ENCODING":        "windows-1251",
	"FEED_TIMEOUT":         "10s",
	"CACHE_BACKEND":        CacheMemory,
	"CACHE_TTL":            "4h",
	"REFRESH_MAX_ATTEMPTS": 5,
	"REFRESH_BACKOFF":      "60s",
	"REFRESH_DAILY_AT":     "00:00",
	"QUEUE_WORKERS":        2,
	"QUEUE_SIZE":           16,
	"STORE_DRIVER":         StoreBadger,
	"BADGER_PATH":          "./data",
	"PGSQL_URL":            "",
}

// LoadConfig loads configuration from environment variables and .env file if present.
// Invalid values fall back to their defaults with a warning.
func LoadConfig(log logger.Logger) (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	return fromViper(v, logger.OrDefault(log))
}

func fromViper(v *viper.Viper, log logger.Logger) (*Config, error) {
	l := loader{v: v, log: log}

	cfg := &Config{
		Port:               l.str("PORT"),
		FeedURL:            l.str("FEED_URL"),
		FeedEncoding:       l.str("FEED_ENCODING"),
		FeedTimeout:        l.duration("FEED_TIMEOUT"),
		CacheBackend:       l.choice("CACHE_BACKEND", CacheMemory, CacheBadger),
		CacheTTL:           l.duration("CACHE_TTL"),
		RefreshMaxAttempts: l.positiveInt("REFRESH_MAX_ATTEMPTS"),
		RefreshBackoff:     l.duration("REFRESH_BACKOFF"),
		RefreshDailyAt:     l.timeOfDay("REFRESH_DAILY_AT"),
		QueueWorkers:       l.positiveInt("QUEUE_WORKERS"),
		QueueSize:          l.positiveInt("QUEUE_SIZE"),
		StoreDriver:        l.choice("STORE_DRIVER", StoreBadger, StorePostgres),
		BadgerPath:         l.str("BADGER_PATH"),
		DatabaseURL:        v.GetString("PGSQL_URL"),
	}

	level, err := logger.ParseLevel(v.GetString("LOG_LEVEL"))
	if err != nil {
		l.warn("LOG_LEVEL", v.GetString("LOG_LEVEL"), string(level))
	}
	cfg.LogLevel = level

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no safe fallback
func (c *Config) Validate() error {
	if c.StoreDriver == StorePostgres && c.DatabaseURL == "" {
		return errors.New("PGSQL_URL is required when STORE_DRIVER is postgres")
	}
	return nil
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	return ":" + c.Port
}

// UsesBadger reports whether any component needs the Badger database
func (c *Config) UsesBadger() bool {
	return c.StoreDriver == StoreBadger || c.CacheBackend == CacheBadger
}

type loader struct {
	v   *viper.Viper
	log logger.Logger
}

func (l loader) warn(key, value, fallback string) {
	l.log.Warn("Invalid configuration value, using default", map[string]interface{}{
		"key":     key,
		"value":   value,
		"default": fallback,
	})
}

func (l loader) fallback(key string) string {
	return fmt.Sprint(defaults[key])
}

func (l loader) str(key string) string {
	s := strings.TrimSpace(l.v.GetString(key))
	if s == "" {
		return l.fallback(key)
	}
	return s
}

func (l loader) duration(key string) time.Duration {
	raw := l.v.GetString(key)
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		l.warn(key, raw, l.fallback(key))
		d, _ = time.ParseDuration(l.fallback(key))
	}
	return d
}

func (l loader) positiveInt(key string) int {
	raw := l.v.GetString(key)
	n, err := castPositive(raw)
	if err != nil {
		l.warn(key, raw, l.fallback(key))
		return defaults[key].(int)
	}
	return n
}

func (l loader) choice(key string, allowed ...string) string {
	raw := strings.ToLower(strings.TrimSpace(l.v.GetString(key)))
	for _, a := range allowed {
		if raw == a {
			return raw
		}
	}
	l.warn(key, raw, l.fallback(key))
	return l.fallback(key)
}

func (l loader) timeOfDay(key string) string {
	raw := strings.TrimSpace(l.v.GetString(key))
	if raw == "" || strings.EqualFold(raw, "off") {
		return ""
	}
	if _, err := time.Parse("15:04", raw); err != nil {
		l.warn(key, raw, l.fallback(key))
		return l.fallback(key)
	}
	return raw
}

func castPositive(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}
