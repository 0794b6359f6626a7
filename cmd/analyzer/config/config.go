// Package config provides configuration parsing and management for the
// analyzer.
//
// It handles both command-line flags and environment variables, with flags
// taking precedence over environment variables. The Config struct contains
// all runtime configuration for the analyzer including:
//   - Event and anomaly storage (Postgres DSN, or memory for development)
//   - Prediction cache settings (memory or Redis, TTL)
//   - Analysis parameters (detection window, loop interval)
//   - Delegated scorer settings (backend, URL, model, timeout)
//   - Logging configuration (level, format)
//   - TLS configuration (cert, key, CA files)
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables
//  3. Default values
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cleanloop/binsight/pkg/tls"
)

// Config holds all analyzer configuration.
type Config struct {
	Listen    string
	LogFormat string
	LogLevel  string

	Store       string
	PostgresDSN string

	Cache         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	InsightBackend string
	InsightURL     string
	InsightModel   string
	InsightTimeout time.Duration

	DetectWindow time.Duration
	Interval     time.Duration

	TLS tls.Config
}

// ParseFlags parses command-line flags and environment variables into a
// Config. Environment variables are used as fallbacks when flags are not
// provided.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8082"), "HTTP listen address")

	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.StringVar(&cfg.Store, "store", getEnv("STORE", "postgres"), "Event/anomaly store backend: postgres or memory")
	flag.StringVar(&cfg.PostgresDSN, "postgres-dsn", getEnv("POSTGRES_DSN", ""), "Postgres connection string (required when store=postgres)")

	flag.StringVar(&cfg.Cache, "cache", getEnv("CACHE", "memory"), "Prediction cache backend: memory or redis")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 30*time.Minute), "Cached prediction TTL")

	flag.StringVar(&cfg.InsightBackend, "insight-backend", getEnv("INSIGHT_BACKEND", "none"), "Delegated scorer backend: http or none")
	flag.StringVar(&cfg.InsightURL, "insight-url", getEnv("INSIGHT_URL", ""), "Delegated scorer URL (required when insight-backend=http)")
	flag.StringVar(&cfg.InsightModel, "insight-model", getEnv("INSIGHT_MODEL", ""), "Model name passed to the delegated scorer")
	flag.DurationVar(&cfg.InsightTimeout, "insight-timeout", getEnvDuration("INSIGHT_TIMEOUT", 10*time.Second), "Delegated scorer call timeout")

	flag.DurationVar(&cfg.DetectWindow, "detect-window", getEnvDuration("DETECT_WINDOW", 168*time.Hour), "Event window for anomaly detection")
	flag.DurationVar(&cfg.Interval, "interval", getEnvDuration("INTERVAL", 15*time.Minute), "Analysis loop interval")

	flag.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Enable TLS for HTTP server")
	flag.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	flag.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	flag.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file for client verification")

	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	return cfg
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Store {
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("--postgres-dsn is required when store=postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid store %q (must be postgres or memory)", c.Store)
	}

	switch c.Cache {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("--redis-addr is required when cache=redis")
		}
	default:
		return fmt.Errorf("invalid cache %q (must be memory or redis)", c.Cache)
	}

	switch c.InsightBackend {
	case "", "none":
	case "http":
		if c.InsightURL == "" {
			return fmt.Errorf("--insight-url is required when insight-backend=http")
		}
	default:
		return fmt.Errorf("invalid insight backend %q (must be http or none)", c.InsightBackend)
	}

	if c.DetectWindow <= 0 {
		return fmt.Errorf("detect window must be > 0")
	}
	if c.Interval <= 0 {
		c.Interval = 15 * time.Minute
	}

	return c.TLS.Validate()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
