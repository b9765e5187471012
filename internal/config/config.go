// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults applied by LoadFromEnv.
const (
	DefaultMaxQueryLength       = 10240
	DefaultSessionIdleTTL       = 30 * time.Minute
	DefaultSessionSweepSchedule = "@every 1m"
	DefaultRateLimitRPS         = 5
	DefaultRateLimitBurst       = 10
)

// Config holds the configuration of the SQL sandbox.
type Config struct {
	// Gatekeeper
	MaxQueryLength int  // maximum accepted query length in bytes (default 10240)
	StrictCTE      bool // require a SELECT-like statement after a WITH list

	// Sessions
	SeedScript           string        // seed location: file path, s3://, gs://, az://, abfss:// or Azure https URL; empty = embedded demo
	SessionIdleTTL       time.Duration // idle sessions older than this are evicted; 0 disables eviction
	SessionSweepSchedule string        // cron schedule for the eviction sweep (default "@every 1m")
	SandboxLockdown      bool          // disable external access and lock configuration after seeding (default true)

	// Execution
	QueryTimeout   time.Duration // per-query deadline; 0 = none
	RateLimitRPS   float64       // sustained queries per second per session; 0 disables (default 5)
	RateLimitBurst int           // burst capacity per session (default 10)

	// S3 fields are optional; nil when not configured.
	S3KeyID    *string
	S3Secret   *string
	S3Endpoint *string
	S3Region   *string

	// GCS and Azure seed sources.
	GCSKeyFile       string
	AzureAccountName string
	AzureAccountKey  string

	LogLevel  string // log level: debug, info, warn, error (default "info")
	LogFormat string // log format: text or json (default "text")
	Env       string // environment: "development" (default) or "production"

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the sandbox is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// HasS3Config returns true if all required S3 fields are set.
func (c *Config) HasS3Config() bool {
	return c.S3KeyID != nil && c.S3Secret != nil &&
		c.S3Endpoint != nil && c.S3Region != nil
}

// HasAzureConfig returns true if Azure shared-key credentials are set.
func (c *Config) HasAzureConfig() bool {
	return c.AzureAccountName != "" && c.AzureAccountKey != ""
}

// LoadFromEnv loads configuration from environment variables.
// Storage variables are optional; without SEED_SCRIPT the embedded demo seed is used.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		MaxQueryLength:       DefaultMaxQueryLength,
		StrictCTE:            parseBoolEnvDefault("STRICT_CTE", false),
		SeedScript:           strings.TrimSpace(os.Getenv("SEED_SCRIPT")),
		SessionIdleTTL:       DefaultSessionIdleTTL,
		SessionSweepSchedule: os.Getenv("SESSION_SWEEP_SCHEDULE"),
		SandboxLockdown:      parseBoolEnvDefault("SANDBOX_LOCKDOWN", true),
		RateLimitRPS:         DefaultRateLimitRPS,
		RateLimitBurst:       DefaultRateLimitBurst,
		GCSKeyFile:           os.Getenv("GCS_KEY_FILE"),
		AzureAccountName:     os.Getenv("AZURE_ACCOUNT_NAME"),
		AzureAccountKey:      os.Getenv("AZURE_ACCOUNT_KEY"),
		LogLevel:             os.Getenv("LOG_LEVEL"),
		LogFormat:            strings.ToLower(os.Getenv("LOG_FORMAT")),
		Env:                  os.Getenv("ENV"),
	}

	if v := os.Getenv("MAX_QUERY_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxQueryLength = n
		} else {
			cfg.warnf("MAX_QUERY_LENGTH=%q is not a positive integer, using %d", v, DefaultMaxQueryLength)
		}
	}
	if v := os.Getenv("SESSION_IDLE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.SessionIdleTTL = d
		} else {
			cfg.warnf("SESSION_IDLE_TTL=%q is not a valid duration, using %s", v, DefaultSessionIdleTTL)
		}
	}
	if v := os.Getenv("QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.QueryTimeout = d
		} else {
			cfg.warnf("QUERY_TIMEOUT=%q is not a valid duration, queries run without a deadline", v)
		}
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitBurst = n
		}
	}

	// S3 fields are optional, only set if present
	if v := os.Getenv("KEY_ID"); v != "" {
		cfg.S3KeyID = &v
	}
	if v := os.Getenv("SECRET"); v != "" {
		cfg.S3Secret = &v
	}
	if v := os.Getenv("ENDPOINT"); v != "" {
		cfg.S3Endpoint = &v
	}
	if v := os.Getenv("REGION"); v != "" {
		cfg.S3Region = &v
	}

	// Defaults
	if cfg.SessionSweepSchedule == "" {
		cfg.SessionSweepSchedule = DefaultSessionSweepSchedule
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	switch cfg.LogFormat {
	case "":
		cfg.LogFormat = "text"
	case "text", "json":
	default:
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}
	if cfg.SeedScript == "" {
		cfg.Warnings = append(cfg.Warnings, "SEED_SCRIPT not set, sessions use the embedded demo dataset")
	}
	if cfg.SessionIdleTTL == 0 {
		cfg.Warnings = append(cfg.Warnings, "SESSION_IDLE_TTL=0, idle sessions are never evicted")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if cfg.SeedScript == "" {
			return nil, fmt.Errorf("SEED_SCRIPT must be set in production (ENV=production)")
		}
		if !cfg.SandboxLockdown {
			cfg.Warnings = append(cfg.Warnings, "SANDBOX_LOCKDOWN is disabled in production")
		}
	}

	return cfg, nil
}

func (c *Config) warnf(format string, args ...interface{}) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
